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
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/uvis-qe/flatqc/internal/fits"
	"github.com/uvis-qe/flatqc/internal/logging"
	"github.com/uvis-qe/flatqc/internal/plane"
)

// Summary of one region of one container
type RegionStats struct {
	Region  plane.Region
	Shape   plane.Shape
	Valid   int // pixels with a value
	Flagged int // pixels with a non-zero defect flag
	Min     float64
	Max     float64
	Mean    float64
	StdDev  float64
	Median  float64
}

func (s RegionStats) String() string {
	return fmt.Sprintf("region %d %v valid %d flagged %d min %.4g max %.4g mean %.4g stddev %.4g median %.4g",
		s.Region, s.Shape, s.Valid, s.Flagged, s.Min, s.Max, s.Mean, s.StdDev, s.Median)
}

func regionStats(p plane.Pair) RegionStats {
	s := RegionStats{Region: p.Region, Shape: p.Sci.Shape}
	if p.DQ != nil {
		s.Flagged = p.DQ.Flagged()
	}
	values := make([]float64, 0, len(p.Sci.Data))
	for _, v := range p.Sci.Data {
		if !math.IsNaN(float64(v)) {
			values = append(values, float64(v))
		}
	}
	s.Valid = len(values)
	if s.Valid == 0 {
		nan := math.NaN()
		s.Min, s.Max, s.Mean, s.StdDev, s.Median = nan, nan, nan, nan, nan
		return s
	}
	s.Min, s.Max = floats.Min(values), floats.Max(values)
	s.Mean, s.StdDev = stat.MeanStdDev(values, nil)
	sort.Float64s(values)
	s.Median = stat.Quantile(0.5, stat.Empirical, values, nil)
	return s
}

// Print per-region statistics of each file, with up to parallelism files
// in flight. Results are returned in input order; unreadable files are
// logged and yield nil.
func CmdStats(fileNames []string, regions []plane.Region, parallelism int) [][]RegionStats {
	if parallelism < 1 {
		parallelism = 1
	}
	all := make([][]RegionStats, len(fileNames))

	sem := make(chan bool, parallelism)
	for id, fileName := range fileNames {
		sem <- true
		go func(id int, fileName string) {
			defer func() { <-sem }()
			pairs, err := fits.LoadPairs(fileName, regions, true)
			if err != nil {
				logging.Errorf("%d: %s", id, err)
				return
			}
			stats := make([]RegionStats, len(pairs))
			for i, p := range pairs {
				stats[i] = regionStats(p)
			}
			all[id] = stats
		}(id, fileName)
	}
	for i := 0; i < cap(sem); i++ { // wait for goroutines to finish
		sem <- true
	}

	for id, stats := range all {
		for _, s := range stats {
			logging.Printf("%d: %s %v", id, fileNames[id], s)
		}
	}
	return all
}
