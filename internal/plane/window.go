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

import "fmt"

// A rectangular sub-area of a plane
type Window struct {
	Row, Col      int // top-left corner
	Height, Width int
}

func (w Window) Shape() Shape { return Shape{Width: w.Width, Height: w.Height} }

func (w Window) String() string {
	return fmt.Sprintf("[%d:%d,%d:%d]", w.Row, w.Row+w.Height, w.Col, w.Col+w.Width)
}

// Whether the window lies within a plane of shape s
func (w Window) Inside(s Shape) bool {
	return w.Row >= 0 && w.Col >= 0 && w.Height > 0 && w.Width > 0 &&
		w.Row+w.Height <= s.Height && w.Col+w.Width <= s.Width
}

// One of the four fixed tiles a region is split into for out-of-core
// combination
type Quadrant int

const (
	TopLeft Quadrant = iota
	TopRight
	BottomLeft
	BottomRight
)

// All quadrants in reassembly order
var Quadrants = [4]Quadrant{TopLeft, TopRight, BottomLeft, BottomRight}

func (q Quadrant) String() string {
	switch q {
	case TopLeft:
		return "top-left"
	case TopRight:
		return "top-right"
	case BottomLeft:
		return "bottom-left"
	case BottomRight:
		return "bottom-right"
	}
	return fmt.Sprintf("quadrant(%d)", int(q))
}

// Short tag for file names, clockwise from the top left
func (q Quadrant) Tag() string {
	return [4]string{"A", "B", "C", "D"}[q]
}

// Returns the window of quadrant q in a plane of shape s. The midline split
// rounds up, so top and left quadrants take the extra row or column of odd
// dimensions. A 1-pixel wide or high plane yields empty right or bottom
// quadrants (Width or Height 0).
func QuadrantWindow(s Shape, q Quadrant) Window {
	top, left := (s.Height+1)/2, (s.Width+1)/2
	switch q {
	case TopLeft:
		return Window{Row: 0, Col: 0, Height: top, Width: left}
	case TopRight:
		return Window{Row: 0, Col: left, Height: top, Width: s.Width - left}
	case BottomLeft:
		return Window{Row: top, Col: 0, Height: s.Height - top, Width: left}
	default:
		return Window{Row: top, Col: left, Height: s.Height - top, Width: s.Width - left}
	}
}

func cut[T any](data []T, s Shape, w Window) []T {
	out := make([]T, 0, w.Width*w.Height)
	for row := w.Row; row < w.Row+w.Height; row++ {
		start := row*s.Width + w.Col
		out = append(out, data[start:start+w.Width]...)
	}
	return out
}

func paste[T any](dst []T, s Shape, w Window, src []T) {
	for r := 0; r < w.Height; r++ {
		start := (w.Row+r)*s.Width + w.Col
		copy(dst[start:start+w.Width], src[r*w.Width:(r+1)*w.Width])
	}
}

// Copies the window out of the plane
func (p *Plane) Sub(w Window) (*Plane, error) {
	if !w.Inside(p.Shape) {
		return nil, fmt.Errorf("window %v outside plane %v: %w", w, p.Shape, ErrInvalidArgument)
	}
	return &Plane{Shape: w.Shape(), Data: cut(p.Data, p.Shape, w)}, nil
}

// Copies the window out of the flag plane
func (f *FlagPlane) Sub(w Window) (*FlagPlane, error) {
	if !w.Inside(f.Shape) {
		return nil, fmt.Errorf("window %v outside flag plane %v: %w", w, f.Shape, ErrInvalidArgument)
	}
	return &FlagPlane{Shape: w.Shape(), Data: cut(f.Data, f.Shape, w)}, nil
}

// Places src at window w of p
func (p *Plane) Paste(w Window, src *Plane) error {
	if !w.Inside(p.Shape) || src.Shape != w.Shape() {
		return fmt.Errorf("paste %v at %v into %v: %w", src.Shape, w, p.Shape, ErrShapeMismatch)
	}
	paste(p.Data, p.Shape, w, src.Data)
	return nil
}

// Places src at window w of f
func (f *FlagPlane) Paste(w Window, src *FlagPlane) error {
	if !w.Inside(f.Shape) || src.Shape != w.Shape() {
		return fmt.Errorf("paste %v at %v into %v: %w", src.Shape, w, f.Shape, ErrShapeMismatch)
	}
	paste(f.Data, f.Shape, w, src.Data)
	return nil
}

// Reassembles a full plane of shape s from its four quadrants, indexed by
// Quadrant. Empty quadrants of degenerate shapes may be nil.
func Assemble(s Shape, parts [4]*Plane) (*Plane, error) {
	out := New(s)
	for _, q := range Quadrants {
		w := QuadrantWindow(s, q)
		if w.Width == 0 || w.Height == 0 {
			continue
		}
		if parts[q] == nil {
			return nil, fmt.Errorf("assemble %v: missing %v quadrant: %w", s, q, ErrInvalidArgument)
		}
		if err := out.Paste(w, parts[q]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Reassembles a full flag plane of shape s from its four quadrants
func AssembleFlags(s Shape, parts [4]*FlagPlane) (*FlagPlane, error) {
	out := NewFlags(s)
	for _, q := range Quadrants {
		w := QuadrantWindow(s, q)
		if w.Width == 0 || w.Height == 0 {
			continue
		}
		if parts[q] == nil {
			return nil, fmt.Errorf("assemble flags %v: missing %v quadrant: %w", s, q, ErrInvalidArgument)
		}
		if err := out.Paste(w, parts[q]); err != nil {
			return nil, err
		}
	}
	return out, nil
}
