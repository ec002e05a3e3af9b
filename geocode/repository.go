// Copyright 2026 The Vereinsmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mgraber/vereinsmatrix/spatial"
	"github.com/uber/h3-go/v4"
)

// Repository persists the geocode cache in DuckDB. The cache is the only
// durable state of the whole pipeline: coordinates survive runs here, the
// distance matrices themselves do not.
type Repository struct {
	db *sql.DB
}

// NewRepository wraps an open DuckDB connection.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// DB returns the underlying database connection.
func (r *Repository) DB() *sql.DB {
	return r.db
}

// CreateSchema creates the geocode_cache table.
func (r *Repository) CreateSchema() error {
	// DuckDB needs to load the spatial extension
	_, err := r.db.Exec(`INSTALL spatial; LOAD spatial;`)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		CREATE TABLE IF NOT EXISTS geocode_cache (
			key VARCHAR PRIMARY KEY,
			point POINT_2D,
			resolved_at TIMESTAMP NOT NULL,
			h3_res5 UBIGINT,
			h3_res6 UBIGINT,
			h3_res7 UBIGINT,
			h3_res8 UBIGINT
		);
	`)

	return err
}

// h3Cells derives the H3 cells stored alongside a coordinate. They are not
// part of the snapshot format; clubs sharing a cell at res 8 are almost
// certainly the same venue under different spellings, which makes duplicates
// easy to spot with plain SQL.
func h3Cells(point *spatial.Point) ([4]int64, error) {
	var cells [4]int64

	if point == nil {
		return cells, nil
	}

	latLng := h3.NewLatLng(point.Lat, point.Lng)

	for i, res := range []int{5, 6, 7, 8} {
		cell, err := h3.LatLngToCell(latLng, res)
		if err != nil {
			return cells, fmt.Errorf("converting to h3 cell at res %d: %w", res, err)
		}

		cells[i] = int64(cell)
	}

	return cells, nil
}

// Save upserts every cache entry. Entries without a coordinate are persisted
// too, so a merge against a later snapshot can still apply its
// absent-only-overwrite policy.
func (r *Repository) Save(c *Cache) error {
	snapshot := c.Export()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO geocode_cache(
			key,
			point,
			resolved_at,
			h3_res5,
			h3_res6,
			h3_res7,
			h3_res8
		)
		VALUES (?, ST_Point(?, ?), ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return rollback(tx, err)
	}
	defer stmt.Close()

	for _, e := range snapshot.Entries {
		cells, err := h3Cells(e.Point)
		if err != nil {
			return rollback(tx, err)
		}

		var lng, lat interface{}

		if e.Point != nil {
			lng, lat = e.Point.Lng, e.Point.Lat
		}

		if _, err := stmt.Exec(
			e.Key,
			lng,
			lat,
			e.ResolvedAt,
			cells[0],
			cells[1],
			cells[2],
			cells[3],
		); err != nil {
			return rollback(tx, fmt.Errorf("saving cache entry %q: %w", e.Key, err))
		}
	}

	return tx.Commit()
}

// rollback keeps the root cause visible even when the rollback itself
// fails.
func rollback(tx *sql.Tx, err error) error {
	if rErr := tx.Rollback(); rErr != nil {
		return errors.Join(err, rErr)
	}

	return err
}

// Load reads every persisted entry into a fresh cache.
func (r *Repository) Load() (*Cache, error) {
	rows, err := r.db.Query(`SELECT key, point, resolved_at FROM geocode_cache`)
	if err != nil {
		return nil, fmt.Errorf("loading geocode cache: %w", err)
	}
	defer rows.Close()

	cache := NewCache()

	for rows.Next() {
		var (
			key        string
			point      spatial.Point
			hasPoint   bool
			resolvedAt time.Time
		)

		var raw interface{}
		if err := rows.Scan(&key, &raw, &resolvedAt); err != nil {
			return nil, fmt.Errorf("scanning geocode cache row: %w", err)
		}

		if raw != nil {
			if err := point.Scan(raw); err != nil {
				return nil, fmt.Errorf("scanning point for %q: %w", key, err)
			}

			hasPoint = true
		}

		entry := &Entry{Key: key, ResolvedAt: resolvedAt}
		if hasPoint {
			entry.Point = &point
		}

		cache.restore(entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating geocode cache rows: %w", err)
	}

	return cache, nil
}

// Count returns the number of persisted entries and how many of them carry a
// coordinate.
func (r *Repository) Count() (total, resolved int, err error) {
	err = r.db.QueryRow(`
		SELECT COUNT(*), COUNT(point)
		FROM geocode_cache
	`).Scan(&total, &resolved)

	return total, resolved, err
}
