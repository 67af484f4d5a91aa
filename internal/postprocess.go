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
	"os"
	"path/filepath"

	"github.com/uvis-qe/flatqc/internal/fits"
	"github.com/uvis-qe/flatqc/internal/logging"
	"github.com/uvis-qe/flatqc/internal/plane"
	"github.com/uvis-qe/flatqc/internal/stack"
)

// A combined product ready to be written
type Product struct {
	OutName  string
	Results  map[plane.Region]*stack.Result
	Manifest stack.Manifest
	Keywords []fits.Keyword
}

// Minimum number of frames over all regions
func frames(results map[plane.Region]*stack.Result) int {
	n := -1
	for _, r := range results {
		if n < 0 || r.Frames < n {
			n = r.Frames
		}
	}
	return n
}

// Writes the product container and its manifest. Creates the output
// directory if needed.
func SaveProduct(p *Product) error {
	if dir := filepath.Dir(p.OutName); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	keywords := append([]fits.Keyword{
		{Name: "METHOD", Value: p.Manifest.Method, Comment: "combination method"},
		{Name: "NCOMBINE", Value: frames(p.Results), Comment: "minimum frames combined per region"},
	}, p.Keywords...)

	logging.Printf("Writing %s", p.OutName)
	if err := fits.Write(p.OutName, stack.Pairs(p.Results), keywords...); err != nil {
		return err
	}
	return stack.WriteManifest(stack.ManifestName(p.OutName), p.Manifest)
}
