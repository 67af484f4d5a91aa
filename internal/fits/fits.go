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

// Package fits reads and writes multi-extension FITS containers holding, per
// region, a SCI measurement extension and a DQ defect flag extension
// addressed by EXTNAME and EXTVER.
//
// Spec here:   https://fits.gsfc.nasa.gov/standard40/fits_standard40aa-le.pdf
package fits

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/astrogo/fitsio"

	"github.com/uvis-qe/flatqc/internal/plane"
)

const (
	SciExtName = "SCI" // measurement plane extension
	DQExtName  = "DQ"  // defect flag plane extension
)

type number interface {
	~uint8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}

// Opens a container for reading and hands it to fn. Both the FITS handle
// and the underlying file are closed on every exit path.
func withFile(fileName string, fn func(f *fitsio.File) error) (err error) {
	r, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer r.Close()

	f, err := fitsio.Open(r)
	if err != nil {
		return fmt.Errorf("%s: %w", fileName, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%s: %w", fileName, cerr)
		}
	}()
	return fn(f)
}

// Finds the image extension with the given EXTNAME and EXTVER, or nil
func findImage(f *fitsio.File, extName string, region plane.Region) fitsio.Image {
	for _, hdu := range f.HDUs() {
		img, ok := hdu.(fitsio.Image)
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(hdu.Name()), extName) && hdu.Version() == int(region) {
			return img
		}
	}
	return nil
}

// Returns the numeric value of a header card, or def if absent
func cardFloat(hdr *fitsio.Header, name string, def float64) float64 {
	card := hdr.Get(name)
	if card == nil {
		return def
	}
	switch v := card.Value.(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case float64:
		return v
	case float32:
		return float64(v)
	}
	return def
}

// Returns the string form of a header card, or "" if absent
func cardString(hdr *fitsio.Header, name string) string {
	card := hdr.Get(name)
	if card == nil || card.Value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(card.Value))
}

func imageShape(img fitsio.Image) (plane.Shape, error) {
	axes := img.Header().Axes()
	if len(axes) != 2 || axes[0] <= 0 || axes[1] <= 0 {
		return plane.Shape{}, fmt.Errorf("%s,%d has axes %v, want 2D: %w", img.Name(), img.Version(), axes, plane.ErrInvalidArgument)
	}
	return plane.Shape{Width: axes[0], Height: axes[1]}, nil
}

func readRaw[T number](img fitsio.Image, n int) ([]T, error) {
	buf := make([]T, n)
	if err := img.Read(&buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func convert[T number](raw []T, bzero, bscale float64) []float64 {
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = bzero + bscale*float64(v)
	}
	return out
}

// Reads image data as physical values, applying BZERO and BSCALE
func readValues(img fitsio.Image) ([]float64, plane.Shape, error) {
	shape, err := imageShape(img)
	if err != nil {
		return nil, shape, err
	}
	hdr := img.Header()
	n := shape.Pixels()
	bzero, bscale := cardFloat(hdr, "BZERO", 0), cardFloat(hdr, "BSCALE", 1)

	var values []float64
	switch hdr.Bitpix() {
	case 8:
		raw, err := readRaw[uint8](img, n)
		if err != nil {
			return nil, shape, err
		}
		values = convert(raw, bzero, bscale)
	case 16:
		raw, err := readRaw[int16](img, n)
		if err != nil {
			return nil, shape, err
		}
		values = convert(raw, bzero, bscale)
	case 32:
		raw, err := readRaw[int32](img, n)
		if err != nil {
			return nil, shape, err
		}
		values = convert(raw, bzero, bscale)
	case 64:
		raw, err := readRaw[int64](img, n)
		if err != nil {
			return nil, shape, err
		}
		values = convert(raw, bzero, bscale)
	case -32:
		raw, err := readRaw[float32](img, n)
		if err != nil {
			return nil, shape, err
		}
		values = convert(raw, bzero, bscale)
	case -64:
		raw, err := readRaw[float64](img, n)
		if err != nil {
			return nil, shape, err
		}
		values = convert(raw, bzero, bscale)
	default:
		return nil, shape, fmt.Errorf("unsupported bitpix %d: %w", hdr.Bitpix(), plane.ErrInvalidArgument)
	}
	return values, shape, nil
}

func readPlane(img fitsio.Image) (*plane.Plane, error) {
	values, shape, err := readValues(img)
	if err != nil {
		return nil, err
	}
	data := make([]float32, len(values))
	for i, v := range values {
		data[i] = float32(v)
	}
	return plane.NewFromData(shape, data)
}

func readFlags(img fitsio.Image) (*plane.FlagPlane, error) {
	values, shape, err := readValues(img)
	if err != nil {
		return nil, err
	}
	data := make([]int32, len(values))
	for i, v := range values {
		if math.IsNaN(v) || v < 0 || v > math.MaxInt32 {
			return nil, fmt.Errorf("defect flag %g at pixel %d out of range: %w", v, i, plane.ErrInvalidArgument)
		}
		data[i] = int32(v)
	}
	return plane.NewFlagsFromData(shape, data)
}
