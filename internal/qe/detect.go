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

// Package qe finds pixels of anomalous quantum efficiency by comparing a
// combined epoch flat against a long-term reference flat of the same filter.
package qe

import (
	"fmt"
	"math"
	"sort"

	"github.com/uvis-qe/flatqc/internal/logging"
	"github.com/uvis-qe/flatqc/internal/plane"
)

// Rows masked at the top and bottom of each region by default. Edge rows
// carry detector artifacts.
const DefaultBorderRows = 10

// Masking applied to both planes before comparison
type Options struct {
	MaskByDefect bool // ignore pixels flagged in the plane's own flag plane
	MaskBorder   bool // ignore the first and last BorderRows rows
	BorderRows   int  // 0 means DefaultBorderRows
}

func (o Options) borderRows() int {
	if o.BorderRows > 0 {
		return o.BorderRows
	}
	return DefaultBorderRows
}

func (o Options) String() string {
	return fmt.Sprintf("maskByDefect %v maskBorder %v borderRows %d", o.MaskByDefect, o.MaskBorder, o.borderRows())
}

// Epoch and reference planes of one region
type Input struct {
	Region    plane.Region
	Epoch     plane.Pair
	Reference plane.Pair
}

// Open interval of percent deviations classified as anomalous
type Window struct {
	Threshold  float64 // upper bound, exclusive
	LowerBound float64 // lower bound, exclusive
}

func (w Window) String() string { return fmt.Sprintf("(%g, %g)", w.LowerBound, w.Threshold) }

// Whether no deviation can fall into the window
func (w Window) Empty() bool { return !(w.LowerBound < w.Threshold) }

// Whether d lies strictly between the bounds. NaN never does.
func (w Window) Contains(d float64) bool { return w.LowerBound < d && d < w.Threshold }

// One anomalous pixel
type Record struct {
	Region           plane.Region `json:"region"`
	Row              int          `json:"row"`
	Column           int          `json:"column"`
	PercentDeviation float64      `json:"percentDeviation"`
	MeasuredValue    float32      `json:"measuredValue"`
}

type regionDeviation struct {
	region    plane.Region
	shape     plane.Shape
	deviation []float64 // percent, NaN where undefined
	measured  []float32 // epoch values after masking
}

// Percent deviation of epoch from reference for every pixel of every
// region. Compute once, classify for as many windows as needed.
type DeviationMap struct {
	regions []regionDeviation // ascending region order
	options Options
}

func maskedCopy(p plane.Pair, o Options) (*plane.Plane, error) {
	sci := p.Sci.Clone()
	if o.MaskBorder {
		sci.MaskBorderRows(o.borderRows())
	}
	if o.MaskByDefect {
		if err := sci.MaskFlagged(p.DQ); err != nil {
			return nil, err
		}
	}
	return sci, nil
}

// Computes (epoch - reference) / reference * 100 per pixel after masking.
// Pixels with a zero or NaN reference get a NaN deviation. Inputs are not
// modified.
func NewDeviationMap(inputs []Input, o Options) (*DeviationMap, error) {
	sorted := append([]Input(nil), inputs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Region < sorted[j].Region })

	d := &DeviationMap{regions: make([]regionDeviation, 0, len(sorted)), options: o}
	for i, in := range sorted {
		if i > 0 && sorted[i-1].Region == in.Region {
			return nil, fmt.Errorf("region %d given twice: %w", in.Region, plane.ErrInvalidArgument)
		}
		if err := in.Epoch.Validate(); err != nil {
			return nil, fmt.Errorf("epoch: %w", err)
		}
		if err := in.Reference.Validate(); err != nil {
			return nil, fmt.Errorf("reference: %w", err)
		}
		if in.Epoch.Sci.Shape != in.Reference.Sci.Shape {
			return nil, fmt.Errorf("region %d: epoch %v vs reference %v: %w", in.Region, in.Epoch.Sci.Shape, in.Reference.Sci.Shape, plane.ErrShapeMismatch)
		}

		epoch, err := maskedCopy(in.Epoch, o)
		if err != nil {
			return nil, fmt.Errorf("region %d epoch: %w", in.Region, err)
		}
		ref, err := maskedCopy(in.Reference, o)
		if err != nil {
			return nil, fmt.Errorf("region %d reference: %w", in.Region, err)
		}

		rd := regionDeviation{
			region:    in.Region,
			shape:     epoch.Shape,
			deviation: make([]float64, len(epoch.Data)),
			measured:  epoch.Data,
		}
		for k, e := range epoch.Data {
			r := float64(ref.Data[k])
			if r == 0 || math.IsNaN(r) {
				rd.deviation[k] = math.NaN()
				continue
			}
			rd.deviation[k] = (float64(e) - r) / r * 100
		}
		d.regions = append(d.regions, rd)
	}
	return d, nil
}

// Regions covered, ascending
func (d *DeviationMap) Regions() []plane.Region {
	out := make([]plane.Region, len(d.regions))
	for i, rd := range d.regions {
		out[i] = rd.region
	}
	return out
}

// Deviation plane of one region, as float32 with NaN where undefined
func (d *DeviationMap) Plane(region plane.Region) (*plane.Plane, error) {
	for _, rd := range d.regions {
		if rd.region != region {
			continue
		}
		p := plane.New(rd.shape)
		for i, v := range rd.deviation {
			p.Data[i] = float32(v)
		}
		return p, nil
	}
	return nil, fmt.Errorf("deviation of region %d: %w", region, plane.ErrNotFound)
}

// Records of every pixel whose deviation lies strictly inside the window,
// ascending by region, then row, then column. An empty window logs a
// warning and yields no records.
func (d *DeviationMap) Classify(w Window) []Record {
	if w.Empty() {
		logging.Warnf("Classification window %v is empty, no pixel can qualify", w)
		return nil
	}
	var records []Record
	for _, rd := range d.regions {
		for k, dev := range rd.deviation {
			if !w.Contains(dev) {
				continue
			}
			records = append(records, Record{
				Region:           rd.region,
				Row:              k / rd.shape.Width,
				Column:           k % rd.shape.Width,
				PercentDeviation: dev,
				MeasuredValue:    rd.measured[k],
			})
		}
	}
	return records
}

// Number of pixels inside the window, per region
func (d *DeviationMap) Count(w Window) map[plane.Region]int {
	counts := make(map[plane.Region]int, len(d.regions))
	if w.Empty() {
		return counts
	}
	for _, rd := range d.regions {
		for _, dev := range rd.deviation {
			if w.Contains(dev) {
				counts[rd.region]++
			}
		}
	}
	return counts
}

// Computes the deviation map and classifies it for a single window
func Detect(inputs []Input, w Window, o Options) ([]Record, error) {
	d, err := NewDeviationMap(inputs, o)
	if err != nil {
		return nil, err
	}
	return d.Classify(w), nil
}
