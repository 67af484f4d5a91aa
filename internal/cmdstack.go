// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package internal

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime/debug"

	"github.com/uvis-qe/flatqc/internal/anneal"
	"github.com/uvis-qe/flatqc/internal/config"
	"github.com/uvis-qe/flatqc/internal/fits"
	"github.com/uvis-qe/flatqc/internal/logging"
	"github.com/uvis-qe/flatqc/internal/plane"
	"github.com/uvis-qe/flatqc/internal/stack"
)

// Stacking parameters shared by the stack, reference and epochs commands
type StackParams struct {
	Regions          []plane.Region
	Method           stack.Method
	Options          stack.Options
	Policy           stack.Policy
	Tiler            *stack.Tiler
	Parallelism      int    // headers read concurrently
	EpochPattern     string // filter, epoch, visit date
	ReferencePattern string // filter
}

func NewStackParams(c *config.StackConfig) (*StackParams, error) {
	m, err := stack.ParseMethod(c.Method)
	if err != nil {
		return nil, err
	}
	mode, err := stack.ParseTileMode(c.Tiling)
	if err != nil {
		return nil, err
	}
	parallelism := c.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}
	return &StackParams{
		Regions: Regions(c.Regions),
		Method:  m,
		Options: stack.Options{MaskByDefect: c.MaskByDefect, CombineDefects: c.CombineDefects},
		Policy: stack.Policy{
			Mode:          mode,
			FileThreshold: c.TileFileThreshold,
			MemoryBytes:   uint64(c.MemoryMiB) * 1024 * 1024,
		},
		Tiler:            &stack.Tiler{TempDir: c.TempDir, Parallelism: parallelism},
		Parallelism:      parallelism,
		EpochPattern:     c.EpochPattern,
		ReferencePattern: c.ReferencePattern,
	}, nil
}

func (p *StackParams) String() string {
	return fmt.Sprintf("Regions %v Method %v %v Tiling %d files / %d MiB Parallelism %d",
		p.Regions, p.Method, p.Options, p.Policy.FileThreshold, p.Policy.Budget()>>20, p.Parallelism)
}

// Combine files with the configured method into a single product
func CmdStack(fileNames []string, p *StackParams, outName string) error {
	logging.Printf("Stacking %d frames into %s with %s", len(fileNames), outName, p)
	results, tiled, err := stack.CombineFiles(fileNames, p.Method, p.Regions, p.Options, p.Policy, p.Tiler)
	if err != nil {
		return err
	}
	return SaveProduct(&Product{
		OutName:  outName,
		Results:  results,
		Manifest: stack.NewManifest(outName, p.Method, p.Options, tiled, fileNames, results),
	})
}

// Median-combine all exposures of each filter into a reference flat. If
// proposals is non-empty, only exposures from those proposals are used.
func CmdReference(fileNames []string, p *StackParams, proposals []string, outDir string) error {
	metas, err := ReadMetas(fileNames, p.Parallelism)
	if err != nil {
		return err
	}
	if len(proposals) > 0 {
		logging.Printf("Making reference flats from proposals %v", proposals)
	} else {
		logging.Printf("Making reference flats from all proposals")
	}

	o := stack.Options{MaskByDefect: p.Options.MaskByDefect, CombineDefects: true}
	made := 0
	for _, g := range anneal.GroupByFilter(metas, proposals) {
		outName := filepath.Join(outDir, fmt.Sprintf(p.ReferencePattern, g.Filter))
		logging.Printf("Reference flat for %s from %d files", g.Filter, len(g.Files))

		results, tiled, err := stack.CombineFiles(g.Files, stack.Median, p.Regions, o, p.Policy, p.Tiler)
		if errors.Is(err, plane.ErrEmptyStack) {
			logging.Warnf("Filter %s: %s, skipping", g.Filter, err)
			continue
		} else if err != nil {
			return fmt.Errorf("filter %s: %w", g.Filter, err)
		}

		m := stack.NewManifest(outName, stack.Median, o, tiled, g.Files, results)
		m.Filter, m.Proposals = g.Filter, g.Proposals
		err = SaveProduct(&Product{
			OutName:  outName,
			Results:  results,
			Manifest: m,
			Keywords: []fits.Keyword{{Name: "FILTER", Value: g.Filter}},
		})
		if err != nil {
			return err
		}
		made++
		debug.FreeOSMemory()
	}
	if made == 0 {
		return fmt.Errorf("no reference flat made: %w", plane.ErrEmptyStack)
	}
	return nil
}

// Mean-combine exposures per filter, anneal epoch and visit date
func CmdEpochs(fileNames []string, p *StackParams, t *anneal.Table, minMJD float64, outDir string) error {
	metas, err := ReadMetas(fileNames, p.Parallelism)
	if err != nil {
		return err
	}
	assigned, rejected := anneal.Assign(metas, t, minMJD)
	if len(rejected) > 0 {
		logging.Warnf("%d exposures fall outside the known anneal epochs from MJD %g on", len(rejected), minMJD)
	}

	o := stack.Options{MaskByDefect: p.Options.MaskByDefect, CombineDefects: true}
	made := 0
	for _, g := range anneal.GroupByEpoch(assigned, t) {
		outName := filepath.Join(outDir, fmt.Sprintf(p.EpochPattern, g.Filter, g.Epoch, g.DateObs))
		logging.Printf("Epoch flat for %v", g)

		results, tiled, err := stack.CombineFiles(g.Files, stack.Mean, p.Regions, o, p.Policy, p.Tiler)
		if errors.Is(err, plane.ErrEmptyStack) {
			logging.Warnf("%v: %s, skipping", g, err)
			continue
		} else if err != nil {
			return fmt.Errorf("%v: %w", g, err)
		}

		m := stack.NewManifest(outName, stack.Mean, o, tiled, g.Files, results)
		m.Filter, m.Epoch, m.DateObs = g.Filter, g.Epoch, g.DateObs
		err = SaveProduct(&Product{
			OutName:  outName,
			Results:  results,
			Manifest: m,
			Keywords: []fits.Keyword{
				{Name: "FILTER", Value: g.Filter},
				{Name: "ANNEAL", Value: g.Epoch, Comment: "MJD of the anneal ending the epoch"},
				{Name: "DATE-OBS", Value: g.DateObs, Comment: "visit date"},
			},
		})
		if err != nil {
			return err
		}
		made++
	}
	if made == 0 {
		return fmt.Errorf("no epoch flat made: %w", plane.ErrEmptyStack)
	}
	return nil
}
