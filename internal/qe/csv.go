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
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// Column header of anomaly tables
var CSVHeader = []string{"region", "row", "column", "percent_deviation", "measured_value"}

// Writes records as comma separated rows with a header line
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	row := make([]string, len(CSVHeader))
	for _, r := range records {
		row[0] = strconv.Itoa(int(r.Region))
		row[1] = strconv.Itoa(r.Row)
		row[2] = strconv.Itoa(r.Column)
		row[3] = strconv.FormatFloat(r.PercentDeviation, 'g', -1, 64)
		row[4] = strconv.FormatFloat(float64(r.MeasuredValue), 'g', -1, 32)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Writes records to a file, via a temporary file renamed into place
func WriteCSVFile(fileName string, records []Record) (err error) {
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
	if err = WriteCSV(tmp, records); err != nil {
		return fmt.Errorf("%s: %w", fileName, err)
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), fileName)
}
