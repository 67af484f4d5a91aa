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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/uvis-qe/flatqc/internal/config"
	"github.com/uvis-qe/flatqc/internal/fits"
	"github.com/uvis-qe/flatqc/internal/logging"
	"github.com/uvis-qe/flatqc/internal/plane"
	"github.com/uvis-qe/flatqc/internal/qe"
)

// Detection parameters
type DetectParams struct {
	Regions          []plane.Region
	Windows          []qe.Window // every threshold paired with every lower bound
	Options          qe.Options
	ReferenceDir     string
	ReferencePattern string  // filter
	OutDir           string  // CSV tables and previews
	PreviewRange     float64 // 0 disables previews
}

func NewDetectParams(d *config.DetectConfig, referencePattern, referenceDir, outDir string) *DetectParams {
	p := &DetectParams{
		Regions:          Regions(d.Regions),
		Options:          qe.Options{MaskByDefect: d.MaskByDefect, MaskBorder: d.MaskBorder, BorderRows: d.BorderRows},
		ReferenceDir:     referenceDir,
		ReferencePattern: referencePattern,
		OutDir:           outDir,
		PreviewRange:     d.PreviewRange,
	}
	for _, t := range d.Thresholds {
		for _, lb := range d.LowerBounds {
			p.Windows = append(p.Windows, qe.Window{Threshold: t, LowerBound: lb})
		}
	}
	return p
}

func (p *DetectParams) String() string {
	return fmt.Sprintf("Regions %v Windows %v %v Reference %s Preview %g%%",
		p.Regions, p.Windows, p.Options, filepath.Join(p.ReferenceDir, p.ReferencePattern), p.PreviewRange)
}

// The window with the deepest threshold, narrowest on ties. Used to
// highlight pixels in previews.
func strictest(windows []qe.Window) *qe.Window {
	var best *qe.Window
	for i := range windows {
		w := &windows[i]
		if w.Empty() {
			continue
		}
		if best == nil || w.Threshold < best.Threshold ||
			(w.Threshold == best.Threshold && w.LowerBound > best.LowerBound) {
			best = w
		}
	}
	return best
}

// Name of the anomaly table of one epoch flat and window
func TableName(outDir, epochFile string, w qe.Window) string {
	base := strings.TrimSuffix(filepath.Base(epochFile), filepath.Ext(epochFile))
	return filepath.Join(outDir, fmt.Sprintf("%s_anom_%g_%g.csv", base, w.Threshold, w.LowerBound))
}

// Compares each epoch flat against the reference flat of its filter and
// writes one anomaly table per window. If catalog is non-nil, every run is
// recorded there as well.
func CmdDetect(ctx context.Context, epochFiles []string, p *DetectParams, catalog *qe.Catalog) error {
	logging.Printf("Detecting anomalous pixels in %d epoch flats with %s", len(epochFiles), p)
	if err := os.MkdirAll(p.OutDir, 0755); err != nil {
		return err
	}
	for _, epochFile := range epochFiles {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := detectOne(ctx, epochFile, p, catalog); err != nil {
			return err
		}
	}
	return nil
}

func detectOne(ctx context.Context, epochFile string, p *DetectParams, catalog *qe.Catalog) error {
	meta, err := fits.ReadMeta(epochFile)
	if err != nil {
		return err
	}
	refFile := filepath.Join(p.ReferenceDir, fmt.Sprintf(p.ReferencePattern, meta.Filter))

	epochPairs, err := fits.LoadPairs(epochFile, p.Regions, true)
	if err != nil {
		return err
	}
	refPairs, err := fits.LoadPairs(refFile, p.Regions, true)
	if err != nil {
		return fmt.Errorf("reference for %s: %w", meta.Filter, err)
	}
	inputs := make([]qe.Input, len(p.Regions))
	for i, r := range p.Regions {
		inputs[i] = qe.Input{Region: r, Epoch: epochPairs[i], Reference: refPairs[i]}
	}

	d, err := qe.NewDeviationMap(inputs, p.Options)
	if err != nil {
		return fmt.Errorf("%s vs %s: %w", epochFile, refFile, err)
	}
	logging.Printf("%s: filter %s epoch %s date %s against %s", filepath.Base(epochFile), meta.Filter, meta.Epoch, meta.DateObs, refFile)

	for _, w := range p.Windows {
		records := d.Classify(w)
		if w.Empty() {
			continue
		}
		tableName := TableName(p.OutDir, epochFile, w)
		if err := qe.WriteCSVFile(tableName, records); err != nil {
			return err
		}
		logging.Printf("Window %v: %d anomalous pixels %v, wrote %s", w, len(records), d.Count(w), tableName)

		if catalog != nil {
			id, err := catalog.InsertRun(ctx, qe.Run{
				EpochFile:     epochFile,
				ReferenceFile: refFile,
				Filter:        meta.Filter,
				Epoch:         meta.Epoch,
				DateObs:       meta.DateObs,
				Threshold:     w.Threshold,
				LowerBound:    w.LowerBound,
			}, records)
			if err != nil {
				return err
			}
			logging.Debugf("Catalog run %d", id)
		}
	}

	if p.PreviewRange > 0 {
		highlight := strictest(p.Windows)
		base := strings.TrimSuffix(filepath.Base(epochFile), filepath.Ext(epochFile))
		for _, r := range d.Regions() {
			img, err := d.RenderPreview(r, p.PreviewRange, highlight)
			if err != nil {
				return err
			}
			name := filepath.Join(p.OutDir, fmt.Sprintf("%s_chip%d_deviation.png", base, r))
			if err := qe.WritePNG(name, img); err != nil {
				return err
			}
			logging.Debugf("Wrote preview %s", name)
		}
	}
	return nil
}
