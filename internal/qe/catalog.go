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
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"github.com/uvis-qe/flatqc/internal/plane"
)

// One detection run: an epoch flat classified against a reference flat for
// one window
type Run struct {
	ID            int64     `json:"id"`
	EpochFile     string    `json:"epochFile"`
	ReferenceFile string    `json:"referenceFile"`
	Filter        string    `json:"filter"`
	Epoch         string    `json:"epoch"`
	DateObs       string    `json:"dateObs"`
	Threshold     float64   `json:"threshold"`
	LowerBound    float64   `json:"lowerBound"`
	Created       time.Time `json:"created"`
	Count         int       `json:"count"`
}

// SQL store of detection runs and their anomalous pixels. Works with the
// sqlite3 and postgres drivers; both accept $n placeholders and RETURNING.
type Catalog struct {
	db     *sql.DB
	driver string
}

func schema(driver string) []string {
	id := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if driver == "postgres" {
		id = "BIGSERIAL PRIMARY KEY"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id ` + id + `,
			epoch_file TEXT NOT NULL,
			reference_file TEXT NOT NULL,
			filter_name TEXT NOT NULL,
			epoch TEXT NOT NULL,
			date_obs TEXT NOT NULL,
			threshold DOUBLE PRECISION NOT NULL,
			lower_bound DOUBLE PRECISION NOT NULL,
			created TEXT NOT NULL,
			record_count INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS anomalies (
			run_id BIGINT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			region INTEGER NOT NULL,
			row_index INTEGER NOT NULL,
			column_index INTEGER NOT NULL,
			percent_deviation DOUBLE PRECISION NOT NULL,
			measured_value DOUBLE PRECISION NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS anomalies_run ON anomalies (run_id, region, row_index, column_index)`,
	}
}

// Opens the catalog and creates its tables if needed
func OpenCatalog(ctx context.Context, driver, dsn string) (*Catalog, error) {
	if driver != "sqlite3" && driver != "postgres" {
		return nil, fmt.Errorf("catalog driver %q: %w", driver, plane.ErrInvalidArgument)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog %s: %w", driver, err)
	}
	for _, stmt := range schema(driver) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("catalog schema: %w", err)
		}
	}
	return &Catalog{db: db, driver: driver}, nil
}

func (c *Catalog) Close() error { return c.db.Close() }

// Stores a run with its records in one transaction. Returns the run id.
func (c *Catalog) InsertRun(ctx context.Context, run Run, records []Record) (id int64, err error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if run.Created.IsZero() {
		run.Created = time.Now().UTC()
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO runs (epoch_file, reference_file, filter_name, epoch, date_obs, threshold, lower_bound, created, record_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		run.EpochFile, run.ReferenceFile, run.Filter, run.Epoch, run.DateObs,
		run.Threshold, run.LowerBound, run.Created.Format(time.RFC3339), len(records),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO anomalies (run_id, region, row_index, column_index, percent_deviation, measured_value)
		 VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	for _, r := range records {
		if _, err = stmt.ExecContext(ctx, id, int(r.Region), r.Row, r.Column, r.PercentDeviation, float64(r.MeasuredValue)); err != nil {
			return 0, fmt.Errorf("insert anomaly: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// Runs, newest first, optionally restricted to one filter
func (c *Catalog) Runs(ctx context.Context, filter string) ([]Run, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, epoch_file, reference_file, filter_name, epoch, date_obs, threshold, lower_bound, created, record_count
		 FROM runs WHERE CAST($1 AS TEXT) = '' OR filter_name = CAST($1 AS TEXT) ORDER BY id DESC`, filter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var created string
		if err := rows.Scan(&r.ID, &r.EpochFile, &r.ReferenceFile, &r.Filter, &r.Epoch, &r.DateObs,
			&r.Threshold, &r.LowerBound, &created, &r.Count); err != nil {
			return nil, err
		}
		if r.Created, err = time.Parse(time.RFC3339, created); err != nil {
			return nil, fmt.Errorf("run %d created %q: %w", r.ID, created, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Records of one run in region, row, column order. Fails with
// plane.ErrNotFound for unknown runs.
func (c *Catalog) Anomalies(ctx context.Context, runID int64) ([]Record, error) {
	var exists int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = $1`, runID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, fmt.Errorf("run %d: %w", runID, plane.ErrNotFound)
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT region, row_index, column_index, percent_deviation, measured_value
		 FROM anomalies WHERE run_id = $1 ORDER BY region, row_index, column_index`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var r Record
		var region int
		var measured float64
		if err := rows.Scan(&region, &r.Row, &r.Column, &r.PercentDeviation, &measured); err != nil {
			return nil, err
		}
		r.Region, r.MeasuredValue = plane.Region(region), float32(measured)
		records = append(records, r)
	}
	return records, rows.Err()
}
