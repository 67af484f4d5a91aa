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
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/uvis-qe/flatqc/internal/plane"
)

func testPair(region plane.Region, s plane.Shape, offset float32) plane.Pair {
	p := plane.New(s)
	f := plane.NewFlags(s)
	for i := range p.Data {
		p.Data[i] = offset + float32(i)/4
		f.Data[i] = int32(i % 5)
	}
	return plane.Pair{Region: region, Sci: p, DQ: f}
}

func TestWriteLoadRoundTrip(t *testing.T) {
	s := plane.Shape{Width: 6, Height: 4}
	name := filepath.Join(t.TempDir(), "flat.fits")
	in := []plane.Pair{testPair(1, s, 10), testPair(2, s, 20)}
	in[1].Sci.Data[3] = float32(math.NaN())

	if err := Write(name, in, Keyword{Name: "FILTER", Value: "F475W"}); err != nil {
		t.Fatal(err)
	}

	// request in reverse order, results follow the request
	out, err := LoadPairs(name, []plane.Region{2, 1}, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || out[0].Region != 2 || out[1].Region != 1 {
		t.Fatalf("unexpected regions %v", out)
	}
	for k, want := range []plane.Pair{in[1], in[0]} {
		got := out[k]
		if got.Sci.Shape != s || got.DQ.Shape != s {
			t.Fatalf("region %d: unexpected shapes %v %v", got.Region, got.Sci.Shape, got.DQ.Shape)
		}
		for i := range want.Sci.Data {
			w, g := want.Sci.Data[i], got.Sci.Data[i]
			if math.IsNaN(float64(w)) != math.IsNaN(float64(g)) || (!math.IsNaN(float64(w)) && w != g) {
				t.Errorf("region %d pixel %d: got %g want %g", got.Region, i, g, w)
			}
			if want.DQ.Data[i] != got.DQ.Data[i] {
				t.Errorf("region %d flag %d: got %d want %d", got.Region, i, got.DQ.Data[i], want.DQ.Data[i])
			}
		}
	}
}

func TestLoadMissingRegion(t *testing.T) {
	name := filepath.Join(t.TempDir(), "one.fits")
	if err := Write(name, []plane.Pair{testPair(1, plane.Shape{Width: 2, Height: 2}, 0)}); err != nil {
		t.Fatal(err)
	}
	_, err := LoadPairs(name, []plane.Region{1, 2}, false)
	if !errors.Is(err, plane.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadWithoutDQExtension(t *testing.T) {
	s := plane.Shape{Width: 3, Height: 2}
	name := filepath.Join(t.TempDir(), "nodq.fits")
	pair := testPair(1, s, 1)
	pair.DQ = nil
	if err := Write(name, []plane.Pair{pair}); err != nil {
		t.Fatal(err)
	}
	got, err := LoadPair(name, 1, true)
	if err != nil {
		t.Fatal(err)
	}
	if got.DQ == nil || got.DQ.Flagged() != 0 || got.DQ.Shape != s {
		t.Errorf("expected empty flag plane, got %+v", got.DQ)
	}

	got, err = LoadPair(name, 1, false)
	if err != nil {
		t.Fatal(err)
	}
	if got.DQ != nil {
		t.Errorf("expected no flag plane without withDQ")
	}
}

func TestWriteLeavesNoTemporaries(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "out.fits")
	if err := Write(name, []plane.Pair{testPair(1, plane.Shape{Width: 2, Height: 2}, 0)}); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "out.fits" {
		t.Errorf("unexpected directory content %v", entries)
	}
}

func TestWriteInvalidPairLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "bad.fits")
	bad := testPair(1, plane.Shape{Width: 2, Height: 2}, 0)
	bad.DQ = plane.NewFlags(plane.Shape{Width: 3, Height: 2})
	if err := Write(name, []plane.Pair{bad}); !errors.Is(err, plane.ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected empty directory, got %v", entries)
	}
}

func TestReadMeta(t *testing.T) {
	name := filepath.Join(t.TempDir(), "exp_flt.fits")
	err := Write(name, []plane.Pair{testPair(1, plane.Shape{Width: 2, Height: 2}, 0)},
		Keyword{Name: "FILTER", Value: "F606W"},
		Keyword{Name: "PROPOSID", Value: 14567},
		Keyword{Name: "DATE-OBS", Value: "2017-03-04"},
		Keyword{Name: "TIME-OBS", Value: "12:30:00"},
	)
	if err != nil {
		t.Fatal(err)
	}
	meta, err := ReadMeta(name)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Filter != "F606W" || meta.ProposalID != "14567" || meta.DateObs != "2017-03-04" || meta.TimeObs != "12:30:00" {
		t.Errorf("unexpected metadata %+v", meta)
	}
}

func TestRegionShapes(t *testing.T) {
	name := filepath.Join(t.TempDir(), "shapes.fits")
	pairs := []plane.Pair{testPair(1, plane.Shape{Width: 4, Height: 3}, 0), testPair(2, plane.Shape{Width: 4, Height: 3}, 0)}
	if err := Write(name, pairs); err != nil {
		t.Fatal(err)
	}
	shapes, err := RegionShapes(name, []plane.Region{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	if shapes[2] != (plane.Shape{Width: 4, Height: 3}) {
		t.Errorf("unexpected shapes %v", shapes)
	}
}
