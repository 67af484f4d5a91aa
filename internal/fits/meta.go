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

	"github.com/astrogo/fitsio"
)

// Observation metadata of one exposure, read from its primary header.
// Carried alongside the planes so nothing depends on directory naming.
type ExposureMeta struct {
	File       string
	Filter     string
	ProposalID string
	DateObs    string // YYYY-MM-DD
	TimeObs    string // hh:mm:ss, may be empty
	Epoch      string // anneal epoch label, from ANNEAL or assigned by the anneal package
}

func (m ExposureMeta) String() string {
	return fmt.Sprintf("%s filter %s proposal %s date %s %s epoch %s", m.File, m.Filter, m.ProposalID, m.DateObs, m.TimeObs, m.Epoch)
}

// Reads FILTER, PROPOSID, DATE-OBS, TIME-OBS and, for combined epoch flats,
// ANNEAL from the primary header
func ReadMeta(fileName string) (ExposureMeta, error) {
	meta := ExposureMeta{File: fileName}
	err := withFile(fileName, func(f *fitsio.File) error {
		if len(f.HDUs()) == 0 {
			return fmt.Errorf("%s: no header data units", fileName)
		}
		hdr := f.HDU(0).Header()
		meta.Filter = cardString(hdr, "FILTER")
		meta.ProposalID = cardString(hdr, "PROPOSID")
		meta.DateObs = cardString(hdr, "DATE-OBS")
		meta.TimeObs = cardString(hdr, "TIME-OBS")
		meta.Epoch = cardString(hdr, "ANNEAL")
		if meta.Filter == "" || meta.DateObs == "" {
			return fmt.Errorf("%s: primary header lacks FILTER or DATE-OBS", fileName)
		}
		return nil
	})
	return meta, err
}
