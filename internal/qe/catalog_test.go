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
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/uvis-qe/flatqc/internal/plane"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := OpenCatalog(context.Background(), "sqlite3", filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCatalogRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := openTestCatalog(t)

	records := []Record{
		{Region: 1, Row: 20, Column: 3, PercentDeviation: -6.25, MeasuredValue: 0.9375},
		{Region: 1, Row: 20, Column: 9, PercentDeviation: -8, MeasuredValue: 0.92},
		{Region: 2, Row: 11, Column: 0, PercentDeviation: -9.5, MeasuredValue: 0.905},
	}
	run := Run{EpochFile: "combined_mean_flat_F475W_2012-05-01_56048.fits", ReferenceFile: "F475W_median_flat.fits",
		Filter: "F475W", Epoch: "56048", DateObs: "2012-05-01", Threshold: -5, LowerBound: -10}
	id1, err := c.InsertRun(ctx, run, records)
	if err != nil {
		t.Fatal(err)
	}
	run.Filter, run.ReferenceFile = "F814W", "F814W_median_flat.fits"
	id2, err := c.InsertRun(ctx, run, nil)
	if err != nil {
		t.Fatal(err)
	}
	if id2 <= id1 {
		t.Errorf("run ids should ascend, got %d then %d", id1, id2)
	}

	runs, err := c.Runs(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != id2 || runs[1].ID != id1 {
		t.Fatalf("expected newest first, got %+v", runs)
	}
	if runs[1].Count != 3 || runs[1].Threshold != -5 || runs[1].LowerBound != -10 || runs[1].Created.IsZero() {
		t.Errorf("unexpected run %+v", runs[1])
	}

	runs, err = c.Runs(ctx, "F475W")
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != id1 {
		t.Errorf("filter not applied: %+v", runs)
	}

	back, err := c.Anomalies(ctx, id1)
	if err != nil {
		t.Fatal(err)
	}
	if len(back) != len(records) {
		t.Fatalf("expected %d records, got %d", len(records), len(back))
	}
	for i := range records {
		if back[i] != records[i] {
			t.Errorf("record %d: %+v, want %+v", i, back[i], records[i])
		}
	}

	empty, err := c.Anomalies(ctx, id2)
	if err != nil || len(empty) != 0 {
		t.Errorf("expected an empty result, got %v %v", empty, err)
	}
	if _, err := c.Anomalies(ctx, id2+100); !errors.Is(err, plane.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestOpenCatalogRejectsDriver(t *testing.T) {
	if _, err := OpenCatalog(context.Background(), "mysql", "x"); !errors.Is(err, plane.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}
