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
	"fmt"

	"github.com/uvis-qe/flatqc/internal/fits"
	"github.com/uvis-qe/flatqc/internal/logging"
	"github.com/uvis-qe/flatqc/internal/plane"
)

// Reads observation metadata of all exposures, with up to parallelism files
// in flight. Unreadable files are logged and left out; input order is kept.
func ReadMetas(fileNames []string, parallelism int) ([]fits.ExposureMeta, error) {
	if parallelism < 1 {
		parallelism = 1
	}
	metas := make([]fits.ExposureMeta, len(fileNames))
	ok := make([]bool, len(fileNames))

	sem := make(chan bool, parallelism)
	for id, fileName := range fileNames {
		sem <- true
		go func(id int, fileName string) {
			defer func() { <-sem }()
			m, err := fits.ReadMeta(fileName)
			if err != nil {
				logging.Errorf("%d: %s", id, err)
				return
			}
			logging.Debugf("%d: %v", id, m)
			metas[id], ok[id] = m, true
		}(id, fileName)
	}
	for i := 0; i < cap(sem); i++ { // wait for goroutines to finish
		sem <- true
	}

	out := metas[:0]
	for id, m := range metas {
		if ok[id] {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no readable exposures among %d files: %w", len(fileNames), plane.ErrEmptyStack)
	}
	if skipped := len(fileNames) - len(out); skipped > 0 {
		logging.Warnf("Skipped %d of %d files without usable headers", skipped, len(fileNames))
	}
	return out, nil
}
