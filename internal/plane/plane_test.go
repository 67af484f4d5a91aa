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

package plane

import (
	"errors"
	"math"
	"testing"
)

func seq(s Shape) *Plane {
	p := New(s)
	for i := range p.Data {
		p.Data[i] = float32(i)
	}
	return p
}

func TestQuadrantWindowsCoverPlane(t *testing.T) {
	for _, s := range []Shape{{4, 4}, {5, 3}, {7, 9}, {2, 1}, {1, 1}, {4096, 2051}} {
		covered := make([]int, s.Pixels())
		for _, q := range Quadrants {
			w := QuadrantWindow(s, q)
			for r := w.Row; r < w.Row+w.Height; r++ {
				for c := w.Col; c < w.Col+w.Width; c++ {
					covered[r*s.Width+c]++
				}
			}
		}
		for i, n := range covered {
			if n != 1 {
				t.Fatalf("shape %v: pixel %d covered %d times", s, i, n)
			}
		}
	}
}

func TestQuadrantSplitRoundsUp(t *testing.T) {
	w := QuadrantWindow(Shape{Width: 4096, Height: 2051}, TopLeft)
	if w.Height != 1026 || w.Width != 2048 {
		t.Errorf("expected 2048x1026 top-left quadrant, got %v", w)
	}
	w = QuadrantWindow(Shape{Width: 4096, Height: 2051}, BottomRight)
	if w.Row != 1026 || w.Col != 2048 || w.Height != 1025 {
		t.Errorf("unexpected bottom-right quadrant %v", w)
	}
}

func TestSubAndAssembleIsLossless(t *testing.T) {
	s := Shape{Width: 7, Height: 5}
	p := seq(s)
	f := NewFlags(s)
	for i := range f.Data {
		f.Data[i] = int32(i % 3)
	}

	var parts [4]*Plane
	var flagParts [4]*FlagPlane
	for _, q := range Quadrants {
		var err error
		if parts[q], err = p.Sub(QuadrantWindow(s, q)); err != nil {
			t.Fatal(err)
		}
		if flagParts[q], err = f.Sub(QuadrantWindow(s, q)); err != nil {
			t.Fatal(err)
		}
	}
	back, err := Assemble(s, parts)
	if err != nil {
		t.Fatal(err)
	}
	backFlags, err := AssembleFlags(s, flagParts)
	if err != nil {
		t.Fatal(err)
	}
	for i := range p.Data {
		if back.Data[i] != p.Data[i] {
			t.Fatalf("pixel %d: got %g want %g", i, back.Data[i], p.Data[i])
		}
		if backFlags.Data[i] != f.Data[i] {
			t.Fatalf("flag %d: got %d want %d", i, backFlags.Data[i], f.Data[i])
		}
	}
}

func TestSubOutsidePlane(t *testing.T) {
	p := seq(Shape{Width: 3, Height: 3})
	if _, err := p.Sub(Window{Row: 2, Col: 0, Height: 2, Width: 1}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestMaskBorderRows(t *testing.T) {
	p := seq(Shape{Width: 3, Height: 25})
	p.MaskBorderRows(10)
	for row := 0; row < p.Height; row++ {
		nan := math.IsNaN(float64(p.At(row, 1)))
		if want := row < 10 || row >= 15; nan != want {
			t.Errorf("row %d: masked=%v want %v", row, nan, want)
		}
	}

	small := seq(Shape{Width: 2, Height: 6})
	small.MaskBorderRows(10)
	if small.Valid() != 0 {
		t.Errorf("expected fully masked small plane, %d valid", small.Valid())
	}
}

func TestMaskFlagged(t *testing.T) {
	s := Shape{Width: 2, Height: 2}
	p := seq(s)
	f, _ := NewFlagsFromData(s, []int32{0, 4, 0, 16})
	if err := p.MaskFlagged(f); err != nil {
		t.Fatal(err)
	}
	if p.Valid() != 2 || !math.IsNaN(float64(p.Data[1])) || !math.IsNaN(float64(p.Data[3])) {
		t.Errorf("unexpected masked data %v", p.Data)
	}
	if err := p.MaskFlagged(NewFlags(Shape{Width: 3, Height: 2})); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestFlagsOr(t *testing.T) {
	s := Shape{Width: 3, Height: 1}
	a, _ := NewFlagsFromData(s, []int32{1, 0, 4})
	b, _ := NewFlagsFromData(s, []int32{2, 0, 4})
	if err := a.Or(b); err != nil {
		t.Fatal(err)
	}
	if a.Data[0] != 3 || a.Data[1] != 0 || a.Data[2] != 4 || a.Flagged() != 2 {
		t.Errorf("unexpected or result %v", a.Data)
	}
}

func TestNewFromDataValidatesLength(t *testing.T) {
	if _, err := NewFromData(Shape{Width: 2, Height: 2}, make([]float32, 3)); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
}
