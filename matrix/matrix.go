// Copyright 2026 The Vereinsmatrix Authors
// SPDX-License-Identifier: Apache-2.0

// Package matrix computes all-pairs road distances and travel times
// between geocoded addresses using the Google Distance Matrix API.
package matrix

import (
	"fmt"
	"sync"
)

// CellStatus describes the outcome of a single origin/destination pair.
// A missing route and a failed request are different facts and are
// never collapsed into one another.
type CellStatus int

const (
	// StatusPending marks a cell that has not been written yet.
	StatusPending CellStatus = iota
	// StatusOK means the service returned distance and duration.
	StatusOK
	// StatusNoRoute means the service answered but found no road
	// connection between the two points.
	StatusNoRoute
	// StatusFailed means the request for this cell did not complete.
	StatusFailed
)

func (s CellStatus) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusOK:
		return "OK"
	case StatusNoRoute:
		return "NO_ROUTE"
	case StatusFailed:
		return "FAILED"
	}

	return fmt.Sprintf("CellStatus(%d)", int(s))
}

// Cell is one entry of the result matrix. DistanceKm and DurationMin
// are only meaningful when Status is StatusOK; the exporter leaves the
// other cells blank.
type Cell struct {
	DistanceKm  float64
	DurationMin float64
	Status      CellStatus
}

// Matrix is an n×n result grid. Writes are serialized through a mutex
// because chunks are fetched concurrently; every off-diagonal cell of a
// finished computation is written exactly once.
type Matrix struct {
	mu      sync.Mutex
	n       int
	cells   [][]Cell
	written int
}

func NewMatrix(n int) *Matrix {
	cells := make([][]Cell, n)
	for i := range cells {
		cells[i] = make([]Cell, n)
	}

	return &Matrix{n: n, cells: cells}
}

// Size returns the number of rows (and columns).
func (m *Matrix) Size() int {
	return m.n
}

// Cell returns a copy of the cell at (origin, destination).
func (m *Matrix) Cell(origin, destination int) Cell {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.cells[origin][destination]
}

// SetCell writes one cell. It refuses to overwrite an already written
// cell: chunk planning guarantees each pair appears in exactly one
// chunk, so a second write means a bug upstream.
func (m *Matrix) SetCell(origin, destination int, cell Cell) error {
	if origin < 0 || origin >= m.n || destination < 0 || destination >= m.n {
		return fmt.Errorf("cell (%d,%d) out of range for %d×%d matrix", origin, destination, m.n, m.n)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cells[origin][destination].Status != StatusPending {
		return fmt.Errorf("cell (%d,%d) written twice", origin, destination)
	}

	m.cells[origin][destination] = cell
	m.written++

	return nil
}

// FillDiagonal writes the known-zero self distances. The service is
// never asked about them.
func (m *Matrix) FillDiagonal() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := 0; i < m.n; i++ {
		if m.cells[i][i].Status == StatusPending {
			m.cells[i][i] = Cell{Status: StatusOK}
			m.written++
		}
	}
}

// MarkRowColFailed marks every still-pending cell in row i and column i
// as failed. Used for addresses that could not be geocoded, so their
// pairs never reach the service.
func (m *Matrix) MarkRowColFailed(i int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for j := 0; j < m.n; j++ {
		if m.cells[i][j].Status == StatusPending {
			m.cells[i][j] = Cell{Status: StatusFailed}
			m.written++
		}

		if m.cells[j][i].Status == StatusPending {
			m.cells[j][i] = Cell{Status: StatusFailed}
			m.written++
		}
	}
}

// Complete reports whether every cell has been written.
func (m *Matrix) Complete() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.written == m.n*m.n
}

// Count returns how many cells carry the given status.
func (m *Matrix) Count(status CellStatus) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total int

	for i := range m.cells {
		for j := range m.cells[i] {
			if m.cells[i][j].Status == status {
				total++
			}
		}
	}

	return total
}
