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

package fits

import (
	"fmt"

	"github.com/astrogo/fitsio"

	"github.com/uvis-qe/flatqc/internal/logging"
	"github.com/uvis-qe/flatqc/internal/plane"
)

// Loads the SCI plane, and the DQ plane if withDQ is set, of each requested
// region, in the order requested. Fails with plane.ErrNotFound if a region
// has no SCI extension. A missing DQ extension yields an all-zero flag plane.
func LoadPairs(fileName string, regions []plane.Region, withDQ bool) ([]plane.Pair, error) {
	pairs := make([]plane.Pair, 0, len(regions))
	err := withFile(fileName, func(f *fitsio.File) error {
		for _, region := range regions {
			sci := findImage(f, SciExtName, region)
			if sci == nil {
				return fmt.Errorf("%s: extension %s,%d: %w", fileName, SciExtName, region, plane.ErrNotFound)
			}
			p, err := readPlane(sci)
			if err != nil {
				return fmt.Errorf("%s: extension %s,%d: %w", fileName, SciExtName, region, err)
			}
			pair := plane.Pair{Region: region, Sci: p}

			if withDQ {
				if dq := findImage(f, DQExtName, region); dq != nil {
					flags, err := readFlags(dq)
					if err != nil {
						return fmt.Errorf("%s: extension %s,%d: %w", fileName, DQExtName, region, err)
					}
					pair.DQ = flags
				} else {
					logging.Debugf("%s: no %s,%d extension, assuming no defects", fileName, DQExtName, region)
					pair.DQ = plane.NewFlags(p.Shape)
				}
			}
			if err := pair.Validate(); err != nil {
				return fmt.Errorf("%s: %w", fileName, err)
			}
			pairs = append(pairs, pair)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pairs, nil
}

// Loads a single region
func LoadPair(fileName string, region plane.Region, withDQ bool) (plane.Pair, error) {
	pairs, err := LoadPairs(fileName, []plane.Region{region}, withDQ)
	if err != nil {
		return plane.Pair{}, err
	}
	return pairs[0], nil
}

// Returns the shape of each requested region's SCI plane from the headers
func RegionShapes(fileName string, regions []plane.Region) (map[plane.Region]plane.Shape, error) {
	shapes := make(map[plane.Region]plane.Shape, len(regions))
	err := withFile(fileName, func(f *fitsio.File) error {
		for _, region := range regions {
			sci := findImage(f, SciExtName, region)
			if sci == nil {
				return fmt.Errorf("%s: extension %s,%d: %w", fileName, SciExtName, region, plane.ErrNotFound)
			}
			s, err := imageShape(sci)
			if err != nil {
				return fmt.Errorf("%s: %w", fileName, err)
			}
			shapes[region] = s
		}
		return nil
	})
	return shapes, err
}
