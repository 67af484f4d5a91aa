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

package qe

import (
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/uvis-qe/flatqc/internal/plane"
)

var (
	previewLow       = colorful.Color{R: 0.13, G: 0.27, B: 0.72} // strongly negative deviation
	previewNeutral   = colorful.Color{R: 1, G: 1, B: 1}
	previewHigh      = colorful.Color{R: 0.75, G: 0.12, B: 0.12} // strongly positive deviation
	previewNoValue   = colorful.Color{R: 0.35, G: 0.35, B: 0.35}
	previewAnomalous = colorful.Hsv(55, 1, 1)
)

// Renders the deviation of one region with a diverging colormap clamped to
// +-rangePct percent, in Lab space so equal steps look equally strong.
// Pixels without a deviation are gray. If highlight is non-nil, pixels
// inside it are painted yellow. Row 0 is at the bottom, as FITS viewers
// display it.
func (d *DeviationMap) RenderPreview(region plane.Region, rangePct float64, highlight *Window) (image.Image, error) {
	if rangePct <= 0 {
		return nil, fmt.Errorf("preview range %g: %w", rangePct, plane.ErrInvalidArgument)
	}
	var rd *regionDeviation
	for i := range d.regions {
		if d.regions[i].region == region {
			rd = &d.regions[i]
		}
	}
	if rd == nil {
		return nil, fmt.Errorf("preview of region %d: %w", region, plane.ErrNotFound)
	}

	w, h := rd.shape.Width, rd.shape.Height
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for k, dev := range rd.deviation {
		row, col := k/w, k%w
		var c colorful.Color
		switch {
		case math.IsNaN(dev):
			c = previewNoValue
		case highlight != nil && highlight.Contains(dev):
			c = previewAnomalous
		case dev < 0:
			c = previewNeutral.BlendLab(previewLow, math.Min(-dev/rangePct, 1)).Clamped()
		default:
			c = previewNeutral.BlendLab(previewHigh, math.Min(dev/rangePct, 1)).Clamped()
		}
		img.Set(col, h-1-row, c)
	}
	return img, nil
}

// Writes an image as PNG, via a temporary file renamed into place
func WritePNG(fileName string, img image.Image) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(fileName), "."+filepath.Base(fileName)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if err = png.Encode(tmp, img); err != nil {
		return fmt.Errorf("%s: %w", fileName, err)
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), fileName)
}
