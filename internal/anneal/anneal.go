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

// Package anneal maps exposures to detector anneal epochs. An epoch is
// labeled by the MJD of the anneal that ends it; an exposure at MJD t
// belongs to the first anneal a[i] with a[i-1] < t <= a[i].
package anneal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/uvis-qe/flatqc/internal/plane"
)

// Anneal dates, ascending
type Table struct {
	labels []string
	mjds   []float64
}

// Builds a table from MJD labels as they appear in the published list.
// Labels are kept verbatim for naming epochs.
func NewTable(labels []string) (*Table, error) {
	t := &Table{labels: make([]string, 0, len(labels)), mjds: make([]float64, 0, len(labels))}
	type entry struct {
		label string
		mjd   float64
	}
	entries := make([]entry, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		mjd, err := strconv.ParseFloat(l, 64)
		if err != nil {
			return nil, fmt.Errorf("anneal date %q: %w", l, plane.ErrInvalidArgument)
		}
		entries = append(entries, entry{l, mjd})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].mjd < entries[j].mjd })
	for i, e := range entries {
		if i > 0 && entries[i-1].mjd == e.mjd {
			continue
		}
		t.labels = append(t.labels, e.label)
		t.mjds = append(t.mjds, e.mjd)
	}
	return t, nil
}

func (t *Table) Len() int { return len(t.mjds) }

// Labels, ascending by date
func (t *Table) Labels() []string { return append([]string(nil), t.labels...) }

// Labels of anneals at or after minMJD, ascending
func (t *Table) LabelsFrom(minMJD float64) []string {
	i := sort.SearchFloat64s(t.mjds, minMJD)
	return append([]string(nil), t.labels[i:]...)
}

// Label and MJD of the anneal closing the epoch that contains mjd. ok is
// false after the last known anneal.
func (t *Table) Nearest(mjd float64) (label string, annealMJD float64, ok bool) {
	// first a[i] >= mjd; everything before is < mjd, so a[i-1] < mjd <= a[i]
	i := sort.SearchFloat64s(t.mjds, mjd)
	if i == len(t.mjds) {
		return "", 0, false
	}
	return t.labels[i], t.mjds[i], true
}

// Extracts anneal MJDs from the published dates table: the first field of
// every line whose last field mentions an anneal
func ParseTable(r io.Reader) ([]string, error) {
	var mjds []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if strings.Contains(fields[len(fields)-1], "anneal") {
			mjds = append(mjds, fields[0])
		}
	}
	return mjds, sc.Err()
}

// Reads a list with one anneal MJD per line
func ReadMJDList(fileName string) (*Table, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var labels []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		labels = append(labels, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}
	t, err := NewTable(labels)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}
	return t, nil
}

// Writes one MJD per line, via a temporary file renamed into place
func WriteMJDList(fileName string, mjds []string) (err error) {
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
	w := bufio.NewWriter(tmp)
	for _, m := range mjds {
		if _, err = fmt.Fprintln(w, m); err != nil {
			return err
		}
	}
	if err = w.Flush(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), fileName)
}

// Modified Julian Date of a DATE-OBS (YYYY-MM-DD) and optional TIME-OBS
// (hh:mm:ss[.fff]) pair, in UTC
func MJD(dateObs, timeObs string) (float64, error) {
	layout, value := "2006-01-02", strings.TrimSpace(dateObs)
	if ts := strings.TrimSpace(timeObs); ts != "" {
		layout, value = layout+"T15:04:05", value+"T"+ts
	}
	t, err := time.Parse(layout, value)
	if err != nil {
		return 0, fmt.Errorf("observation time %q %q: %w", dateObs, timeObs, plane.ErrInvalidArgument)
	}
	const unixEpochMJD = 40587
	return float64(t.UnixNano())/float64(24*time.Hour) + unixEpochMJD, nil
}
