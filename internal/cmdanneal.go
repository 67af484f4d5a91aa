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
	"os"

	"github.com/uvis-qe/flatqc/internal/anneal"
	"github.com/uvis-qe/flatqc/internal/logging"
	"github.com/uvis-qe/flatqc/internal/plane"
)

// Convert a downloaded anneal dates table into the MJD list the epoch
// grouping reads
func CmdAnneal(tableName, listName string) error {
	f, err := os.Open(tableName)
	if err != nil {
		return err
	}
	defer f.Close()

	mjds, err := anneal.ParseTable(f)
	if err != nil {
		return fmt.Errorf("%s: %w", tableName, err)
	}
	if len(mjds) == 0 {
		return fmt.Errorf("%s: no anneal dates: %w", tableName, plane.ErrNotFound)
	}
	// reject malformed dates before overwriting a good list
	if _, err := anneal.NewTable(mjds); err != nil {
		return fmt.Errorf("%s: %w", tableName, err)
	}
	if err := anneal.WriteMJDList(listName, mjds); err != nil {
		return err
	}
	logging.Printf("Wrote %d anneal dates from %s to %s, last %s", len(mjds), tableName, listName, mjds[len(mjds)-1])
	return nil
}
