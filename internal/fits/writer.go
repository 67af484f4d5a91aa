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
	"fmt"
	"os"
	"path/filepath"

	"github.com/astrogo/fitsio"

	"github.com/uvis-qe/flatqc/internal/plane"
)

// A primary header keyword to write. Names are at most 8 characters.
type Keyword struct {
	Name    string
	Value   interface{}
	Comment string
}

// Writes a container with an empty primary HDU carrying the keywords,
// followed by a SCI extension and, if present, a DQ extension per pair.
// Output goes to a temporary file in the target directory that is renamed
// into place only after everything was written, so failures never leave a
// partial container behind.
func Write(fileName string, pairs []plane.Pair, keywords ...Keyword) (err error) {
	for _, p := range pairs {
		if err := p.Validate(); err != nil {
			return err
		}
	}

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

	if err = encode(tmp, pairs, keywords); err != nil {
		return fmt.Errorf("%s: %w", fileName, err)
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), fileName)
}

func encode(w *os.File, pairs []plane.Pair, keywords []Keyword) (err error) {
	f, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	cards := make([]fitsio.Card, 0, len(keywords))
	for _, k := range keywords {
		cards = append(cards, fitsio.Card{Name: k.Name, Value: k.Value, Comment: k.Comment})
	}
	phdu, err := fitsio.NewPrimaryHDU(fitsio.NewHeader(cards, fitsio.IMAGE_HDU, 8, []int{}))
	if err != nil {
		return err
	}
	defer phdu.Close()
	if err := f.Write(phdu); err != nil {
		return err
	}

	for _, p := range pairs {
		axes := []int{p.Sci.Width, p.Sci.Height}
		if err := writeExtension(f, SciExtName, p.Region, -32, axes, &p.Sci.Data); err != nil {
			return err
		}
		if p.DQ != nil {
			if err := writeExtension(f, DQExtName, p.Region, 32, axes, &p.DQ.Data); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeExtension(f *fitsio.File, extName string, region plane.Region, bitpix int, axes []int, data interface{}) error {
	img := fitsio.NewImage(bitpix, axes)
	defer img.Close()
	err := img.Header().Append(
		fitsio.Card{Name: "EXTNAME", Value: extName},
		fitsio.Card{Name: "EXTVER", Value: int(region)},
	)
	if err != nil {
		return err
	}
	if err := img.Write(data); err != nil {
		return fmt.Errorf("extension %s,%d: %w", extName, region, err)
	}
	return f.Write(img)
}
