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

// Package plane holds the in-memory image grids the combiners and detectors
// operate on: a float32 measurement plane, where NaN marks "no value", and an
// int32 defect flag plane, where any non-zero value marks a defective pixel.
// Both are stored row-major with the column index varying fastest, matching
// the on-disk FITS axis order (NAXIS1 = columns, NAXIS2 = rows).
package plane

import (
	"fmt"
	"math"
)

// Detector sub-unit, e.g. one physical chip. Matches the EXTVER of the
// SCI and DQ extensions in a container.
type Region int

// Dimensions of a plane
type Shape struct {
	Width  int // columns, NAXIS1
	Height int // rows, NAXIS2
}

// Number of pixels covered by the shape
func (s Shape) Pixels() int { return s.Width * s.Height }

func (s Shape) String() string { return fmt.Sprintf("%dx%d", s.Width, s.Height) }

// A 2D grid of measurement values. NaN marks "no value".
type Plane struct {
	Shape
	Data []float32
}

// Creates a zero-valued plane of the given shape
func New(s Shape) *Plane {
	return &Plane{Shape: s, Data: make([]float32, s.Pixels())}
}

// Wraps existing data in a plane. Data is not copied.
func NewFromData(s Shape, data []float32) (*Plane, error) {
	if s.Width <= 0 || s.Height <= 0 {
		return nil, fmt.Errorf("plane shape %v: %w", s, ErrInvalidArgument)
	}
	if len(data) != s.Pixels() {
		return nil, fmt.Errorf("plane shape %v needs %d values, got %d: %w", s, s.Pixels(), len(data), ErrShapeMismatch)
	}
	return &Plane{Shape: s, Data: data}, nil
}

func (p *Plane) index(row, col int) int { return row*p.Width + col }

func (p *Plane) At(row, col int) float32 { return p.Data[p.index(row, col)] }

func (p *Plane) Set(row, col int, v float32) { p.Data[p.index(row, col)] = v }

// Deep copy
func (p *Plane) Clone() *Plane {
	return &Plane{Shape: p.Shape, Data: append([]float32(nil), p.Data...)}
}

// Sets every pixel to NaN where the paired flag plane is non-zero
func (p *Plane) MaskFlagged(flags *FlagPlane) error {
	if flags == nil {
		return nil
	}
	if flags.Shape != p.Shape {
		return fmt.Errorf("mask %v onto plane %v: %w", flags.Shape, p.Shape, ErrShapeMismatch)
	}
	nan := float32(math.NaN())
	for i, f := range flags.Data {
		if f != 0 {
			p.Data[i] = nan
		}
	}
	return nil
}

// Sets the first and last n rows to NaN. Planes with fewer than 2n rows are
// masked entirely.
func (p *Plane) MaskBorderRows(n int) {
	if n <= 0 {
		return
	}
	nan := float32(math.NaN())
	for row := 0; row < p.Height; row++ {
		if row >= n && row < p.Height-n {
			continue
		}
		line := p.Data[row*p.Width : (row+1)*p.Width]
		for i := range line {
			line[i] = nan
		}
	}
}

// Number of pixels holding a value other than NaN
func (p *Plane) Valid() int {
	n := 0
	for _, v := range p.Data {
		if !math.IsNaN(float64(v)) {
			n++
		}
	}
	return n
}

// A 2D grid of defect flags. 0 = no defect.
type FlagPlane struct {
	Shape
	Data []int32
}

func NewFlags(s Shape) *FlagPlane {
	return &FlagPlane{Shape: s, Data: make([]int32, s.Pixels())}
}

func NewFlagsFromData(s Shape, data []int32) (*FlagPlane, error) {
	if s.Width <= 0 || s.Height <= 0 {
		return nil, fmt.Errorf("flag plane shape %v: %w", s, ErrInvalidArgument)
	}
	if len(data) != s.Pixels() {
		return nil, fmt.Errorf("flag plane shape %v needs %d values, got %d: %w", s, s.Pixels(), len(data), ErrShapeMismatch)
	}
	return &FlagPlane{Shape: s, Data: data}, nil
}

func (f *FlagPlane) At(row, col int) int32 { return f.Data[row*f.Width+col] }

func (f *FlagPlane) Clone() *FlagPlane {
	return &FlagPlane{Shape: f.Shape, Data: append([]int32(nil), f.Data...)}
}

// Bitwise OR of other into f
func (f *FlagPlane) Or(other *FlagPlane) error {
	if other.Shape != f.Shape {
		return fmt.Errorf("or %v into %v: %w", other.Shape, f.Shape, ErrShapeMismatch)
	}
	for i, v := range other.Data {
		f.Data[i] |= v
	}
	return nil
}

// Number of flagged pixels
func (f *FlagPlane) Flagged() int {
	n := 0
	for _, v := range f.Data {
		if v != 0 {
			n++
		}
	}
	return n
}

// A measurement plane with its optional defect flags, for one region of
// one source image.
type Pair struct {
	Region Region
	Sci    *Plane
	DQ     *FlagPlane // nil if not loaded
}

// Checks the pair is internally consistent
func (p Pair) Validate() error {
	if p.Sci == nil {
		return fmt.Errorf("region %d: missing measurement plane: %w", p.Region, ErrInvalidArgument)
	}
	if p.DQ != nil && p.DQ.Shape != p.Sci.Shape {
		return fmt.Errorf("region %d: flags %v vs plane %v: %w", p.Region, p.DQ.Shape, p.Sci.Shape, ErrShapeMismatch)
	}
	return nil
}
