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

// Package stack combines stacks of same-shape planes into mean or median
// images, either fully in memory or quadrant by quadrant through temporary
// files when the stack is too large to hold at once.
package stack

import (
	"fmt"
	"math"

	"github.com/uvis-qe/flatqc/internal/plane"
)

// Combination method
type Method int

const (
	Mean Method = iota
	Median
)

func (m Method) String() string {
	switch m {
	case Mean:
		return "mean"
	case Median:
		return "median"
	}
	return fmt.Sprintf("method(%d)", int(m))
}

func (m Method) valid() bool { return m == Mean || m == Median }

// Parses "mean" or "median"
func ParseMethod(s string) (Method, error) {
	switch s {
	case "mean":
		return Mean, nil
	case "median":
		return Median, nil
	}
	return 0, fmt.Errorf("combination method %q: %w", s, plane.ErrInvalidArgument)
}

// Options for combination
type Options struct {
	MaskByDefect   bool // ignore each member's pixels where its own flag plane is non-zero
	CombineDefects bool // result flags are the bitwise OR of all members' unmasked flags
}

func (o Options) String() string {
	return fmt.Sprintf("maskByDefect %v combineDefects %v", o.MaskByDefect, o.CombineDefects)
}

// The combination of one region's stack
type Result struct {
	Region plane.Region
	Sci    *plane.Plane
	DQ     *plane.FlagPlane // all zero unless defects were combined
	Frames int              // number of stack members
}

// Pair view of the result, for writing
func (r *Result) Pair() plane.Pair {
	return plane.Pair{Region: r.Region, Sci: r.Sci, DQ: r.DQ}
}

// Checks method, length and shapes of a stack
func validate(stack []plane.Pair, m Method) (plane.Shape, error) {
	if !m.valid() {
		return plane.Shape{}, fmt.Errorf("combination method %v: %w", m, plane.ErrInvalidArgument)
	}
	if len(stack) == 0 {
		return plane.Shape{}, plane.ErrEmptyStack
	}
	if err := stack[0].Validate(); err != nil {
		return plane.Shape{}, fmt.Errorf("stack member 0: %w", err)
	}
	shape := stack[0].Sci.Shape
	for i, p := range stack[1:] {
		if err := p.Validate(); err != nil {
			return shape, fmt.Errorf("stack member %d: %w", i+1, err)
		}
		if p.Sci.Shape != shape {
			return shape, fmt.Errorf("stack member %d is %v, member 0 is %v: %w", i+1, p.Sci.Shape, shape, plane.ErrShapeMismatch)
		}
	}
	return shape, nil
}

// Combines the stack element-wise with the given method. NaN members of a
// pixel are ignored; a pixel NaN in all members stays NaN. Inputs are not
// modified.
func Combine(stack []plane.Pair, m Method, o Options) (*Result, error) {
	shape, err := validate(stack, m)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Region: stack[0].Region,
		Sci:    plane.New(shape),
		DQ:     plane.NewFlags(shape),
		Frames: len(stack),
	}

	nan := float32(math.NaN())
	buf := make([]float64, 0, len(stack))
	for i := range res.Sci.Data {
		buf = buf[:0]
		var flags int32
		for _, p := range stack {
			var f int32
			if p.DQ != nil {
				f = p.DQ.Data[i]
			}
			flags |= f
			if o.MaskByDefect && f != 0 {
				continue
			}
			v := p.Sci.Data[i]
			if math.IsNaN(float64(v)) {
				continue
			}
			buf = append(buf, float64(v))
		}

		if o.CombineDefects {
			res.DQ.Data[i] = flags
		}
		switch {
		case len(buf) == 0:
			res.Sci.Data[i] = nan
		case m == Median:
			res.Sci.Data[i] = float32(median(buf))
		default:
			res.Sci.Data[i] = float32(mean(buf))
		}
	}
	return res, nil
}
