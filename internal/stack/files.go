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

	"github.com/pbnjay/memory"

	"github.com/uvis-qe/flatqc/internal/fits"
	"github.com/uvis-qe/flatqc/internal/logging"
	"github.com/uvis-qe/flatqc/internal/plane"
)

// When to combine through quadrant tiles
type TileMode int

const (
	TileAuto TileMode = iota
	TileAlways
	TileNever
)

func ParseTileMode(s string) (TileMode, error) {
	switch s {
	case "auto":
		return TileAuto, nil
	case "always":
		return TileAlways, nil
	case "never":
		return TileNever, nil
	}
	return 0, fmt.Errorf("tiling mode %q: %w", s, plane.ErrInvalidArgument)
}

// Caller-supplied policy deciding between in-memory and tiled combination
type Policy struct {
	Mode          TileMode
	FileThreshold int    // in auto mode, tile from this many files on. 0 disables the check
	MemoryBytes   uint64 // in auto mode, tile if the stack would exceed this. 0 uses 70% of physical memory
}

// Memory budget in bytes
func (p Policy) Budget() uint64 {
	if p.MemoryBytes > 0 {
		return p.MemoryBytes
	}
	return memory.TotalMemory() / 10 * 7
}

// Bytes needed to hold every plane of the stack at once
func EstimateBytes(numFiles int, shapes map[plane.Region]plane.Shape) uint64 {
	pixels := uint64(0)
	for _, s := range shapes {
		pixels += uint64(s.Pixels())
	}
	// float32 measurement, int32 flags, per file, plus two result planes
	return (uint64(numFiles) + 2) * pixels * 8
}

// Whether a stack of numFiles with the given region shapes should be tiled
func (p Policy) ShouldTile(numFiles int, shapes map[plane.Region]plane.Shape) bool {
	switch p.Mode {
	case TileAlways:
		return true
	case TileNever:
		return false
	}
	if p.FileThreshold > 0 && numFiles >= p.FileThreshold {
		return true
	}
	return EstimateBytes(numFiles, shapes) > p.Budget()
}

// Loads every file fully and combines each region in memory. Same
// eligibility and skipping rules as Tiler.Combine.
func CombineInMemory(fileNames []string, m Method, regions []plane.Region, o Options) (map[plane.Region]*Result, error) {
	if !m.valid() {
		return nil, fmt.Errorf("combination method %v: %w", m, plane.ErrInvalidArgument)
	}
	if len(fileNames) == 0 {
		return nil, plane.ErrEmptyStack
	}
	regions = sortedRegions(regions)

	stacks := make(map[plane.Region][]plane.Pair, len(regions))
	for id, fileName := range fileNames {
		for _, region := range regions {
			pair, err := fits.LoadPair(fileName, region, true)
			if errors.Is(err, plane.ErrNotFound) {
				logging.Warnf("%d: %s has no region %d, not using it for that region", id, fileName, region)
				continue
			}
			if err != nil {
				return nil, err
			}
			stacks[region] = append(stacks[region], pair)
		}
	}

	results := make(map[plane.Region]*Result, len(regions))
	for _, region := range regions {
		if len(stacks[region]) == 0 {
			logging.Warnf("Region %d: no eligible source files, skipping", region)
			continue
		}
		logging.Printf("Region %d: computing %v of %d frames", region, m, len(stacks[region]))
		res, err := Combine(stacks[region], m, o)
		if err != nil {
			return nil, fmt.Errorf("region %d: %w", region, err)
		}
		results[region] = res
		stacks[region] = nil
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no region produced a combination: %w", plane.ErrEmptyStack)
	}
	return results, nil
}

// Combines the files, tiling if the policy says so. Returns the results and
// whether tiling was used.
func CombineFiles(fileNames []string, m Method, regions []plane.Region, o Options, p Policy, t *Tiler) (map[plane.Region]*Result, bool, error) {
	if len(fileNames) == 0 {
		return nil, false, plane.ErrEmptyStack
	}
	tile := p.Mode == TileAlways
	if p.Mode == TileAuto {
		shapes := make(map[plane.Region]plane.Shape, len(regions))
		for _, r := range regions {
			s, err := fits.RegionShapes(fileNames[0], []plane.Region{r})
			if errors.Is(err, plane.ErrNotFound) {
				continue
			} else if err != nil {
				return nil, false, err
			}
			shapes[r] = s[r]
		}
		tile = p.ShouldTile(len(fileNames), shapes)
		logging.Printf("Stack of %d files needs about %d MiB, budget %d MiB, tiling %v",
			len(fileNames), EstimateBytes(len(fileNames), shapes)>>20, p.Budget()>>20, tile)
	}
	if tile {
		if t == nil {
			t = &Tiler{}
		}
		res, err := t.Combine(fileNames, m, regions, o)
		return res, true, err
	}
	res, err := CombineInMemory(fileNames, m, regions, o)
	return res, false, err
}

// Results in ascending region order, as pairs ready for writing
func Pairs(results map[plane.Region]*Result) []plane.Pair {
	regions := make([]plane.Region, 0, len(results))
	for r := range results {
		regions = append(regions, r)
	}
	regions = sortedRegions(regions)
	pairs := make([]plane.Pair, 0, len(regions))
	for _, r := range regions {
		pairs = append(pairs, results[r].Pair())
	}
	return pairs
}
