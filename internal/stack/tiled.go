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

package stack

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/uvis-qe/flatqc/internal/fits"
	"github.com/uvis-qe/flatqc/internal/logging"
	"github.com/uvis-qe/flatqc/internal/plane"
)

// Combines large stacks quadrant by quadrant. Every source file is split
// once into per-region, per-quadrant temporary containers; each quadrant
// stack is then combined on its own and the quadrants reassembled.
// Temporary containers live in a private directory that is removed on
// every exit path.
type Tiler struct {
	TempDir     string // parent of the intermediate directory, "" for the system default
	Parallelism int    // quadrant stacks combined concurrently, values below 1 mean 1
}

// Per region and quadrant, the temporary containers holding that quadrant
// of each eligible source file, in source order
type tileSet map[plane.Region]*[4][]string

// Combines the given regions of the files. Regions missing from a file make
// that file ineligible for the region; a region without any eligible file is
// skipped with a warning. Results are keyed by region.
func (t *Tiler) Combine(fileNames []string, m Method, regions []plane.Region, o Options) (results map[plane.Region]*Result, err error) {
	if !m.valid() {
		return nil, fmt.Errorf("combination method %v: %w", m, plane.ErrInvalidArgument)
	}
	if len(fileNames) == 0 {
		return nil, plane.ErrEmptyStack
	}
	regions = sortedRegions(regions)

	dir, err := os.MkdirTemp(t.TempDir, "flatqc-tiles-")
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := os.RemoveAll(dir); rerr != nil {
			logging.Errorf("Removing intermediate directory %s: %s", dir, rerr)
			if err == nil {
				err = rerr
			}
		}
	}()

	logging.Printf("Splitting %d files into quadrants under %s", len(fileNames), dir)
	tiles, shapes, err := split(dir, fileNames, regions)
	if err != nil {
		return nil, err
	}

	results = make(map[plane.Region]*Result, len(regions))
	for _, region := range regions {
		set := tiles[region]
		if set == nil || len(set[plane.TopLeft]) == 0 {
			logging.Warnf("Region %d: no eligible source files, skipping", region)
			continue
		}
		res, err := t.combineRegion(region, shapes[region], set, m, o)
		if err != nil {
			return nil, fmt.Errorf("region %d: %w", region, err)
		}
		results[region] = res
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no region produced a combination: %w", plane.ErrEmptyStack)
	}
	return results, nil
}

func sortedRegions(regions []plane.Region) []plane.Region {
	out := append([]plane.Region(nil), regions...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Writes the quadrants of every source file into dir
func split(dir string, fileNames []string, regions []plane.Region) (tileSet, map[plane.Region]plane.Shape, error) {
	tiles := make(tileSet, len(regions))
	shapes := make(map[plane.Region]plane.Shape, len(regions))

	for id, fileName := range fileNames {
		for _, region := range regions {
			pair, err := fits.LoadPair(fileName, region, true)
			if errors.Is(err, plane.ErrNotFound) {
				logging.Warnf("%d: %s has no region %d, not using it for that region", id, fileName, region)
				continue
			}
			if err != nil {
				return nil, nil, err
			}

			shape, seen := shapes[region]
			if !seen {
				shapes[region], shape = pair.Sci.Shape, pair.Sci.Shape
				tiles[region] = &[4][]string{}
			} else if pair.Sci.Shape != shape {
				return nil, nil, fmt.Errorf("%s region %d is %v, expected %v: %w", fileName, region, pair.Sci.Shape, shape, plane.ErrShapeMismatch)
			}

			for _, q := range plane.Quadrants {
				w := plane.QuadrantWindow(shape, q)
				if w.Width == 0 || w.Height == 0 {
					continue
				}
				sub, err := subPair(pair, w)
				if err != nil {
					return nil, nil, err
				}
				tileName := filepath.Join(dir, fmt.Sprintf("%05d_chip%d_%s.fits", id, region, q.Tag()))
				if err := fits.Write(tileName, []plane.Pair{sub}); err != nil {
					return nil, nil, err
				}
				tiles[region][q] = append(tiles[region][q], tileName)
			}
		}
		logging.Debugf("%d: split %s", id, fileName)
	}
	return tiles, shapes, nil
}

func subPair(p plane.Pair, w plane.Window) (plane.Pair, error) {
	sci, err := p.Sci.Sub(w)
	if err != nil {
		return plane.Pair{}, err
	}
	dq, err := p.DQ.Sub(w)
	if err != nil {
		return plane.Pair{}, err
	}
	return plane.Pair{Region: p.Region, Sci: sci, DQ: dq}, nil
}

// Combines the four quadrant stacks of one region, with limited
// concurrency, and reassembles the full plane
func (t *Tiler) combineRegion(region plane.Region, shape plane.Shape, set *[4][]string, m Method, o Options) (*Result, error) {
	var parts [4]*Result
	var errs [4]error

	parallelism := t.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}
	sem := make(chan bool, parallelism)
	for _, q := range plane.Quadrants {
		if len(set[q]) == 0 {
			continue // degenerate shape without this quadrant
		}
		sem <- true
		go func(q plane.Quadrant) {
			defer func() { <-sem }()
			parts[q], errs[q] = combineTiles(region, set[q], m, o)
			if errs[q] == nil {
				logging.Debugf("Region %d %v quadrant: combined %d frames", region, q, parts[q].Frames)
			}
		}(q)
	}
	for i := 0; i < cap(sem); i++ { // wait for goroutines to finish
		sem <- true
	}
	for _, q := range plane.Quadrants {
		if errs[q] != nil {
			return nil, fmt.Errorf("%v quadrant: %w", q, errs[q])
		}
	}

	var sciParts [4]*plane.Plane
	var dqParts [4]*plane.FlagPlane
	frames := 0
	for _, q := range plane.Quadrants {
		if parts[q] != nil {
			sciParts[q], dqParts[q] = parts[q].Sci, parts[q].DQ
			frames = parts[q].Frames
		}
	}
	sci, err := plane.Assemble(shape, sciParts)
	if err != nil {
		return nil, err
	}
	dq, err := plane.AssembleFlags(shape, dqParts)
	if err != nil {
		return nil, err
	}
	return &Result{Region: region, Sci: sci, DQ: dq, Frames: frames}, nil
}

// Loads one quadrant's tiles and combines them
func combineTiles(region plane.Region, tileNames []string, m Method, o Options) (*Result, error) {
	quadStack := make([]plane.Pair, 0, len(tileNames))
	for _, name := range tileNames {
		pair, err := fits.LoadPair(name, region, true)
		if err != nil {
			return nil, err
		}
		quadStack = append(quadStack, pair)
	}
	return Combine(quadStack, m, o)
}
