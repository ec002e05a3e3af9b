// Copyright 2026 The Vereinsmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package matrix

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/mgraber/vereinsmatrix/geocode"
	"github.com/mgraber/vereinsmatrix/spatial"
	"github.com/schollz/progressbar/v3"
)

// State tracks the pipeline stage of a run.
type State int

const (
	StateLoaded State = iota
	StateNormalized
	StateGeocoded
	StateBatched
	StateFetching
	StateAssembled
	StateDone
	StatePartial
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "LOADED"
	case StateNormalized:
		return "NORMALIZED"
	case StateGeocoded:
		return "GEOCODED"
	case StateBatched:
		return "BATCHED"
	case StateFetching:
		return "FETCHING"
	case StateAssembled:
		return "ASSEMBLED"
	case StateDone:
		return "DONE"
	case StatePartial:
		return "PARTIAL"
	}

	return fmt.Sprintf("State(%d)", int(s))
}

// AddressStatus reports what happened to one input record. Every record
// keeps its row and column in the final matrix even when unresolved.
type AddressStatus struct {
	Record   geocode.AddressRecord
	Key      string
	Point    *spatial.Point
	Resolved bool
}

// Result is the outcome of a full pipeline run.
type Result struct {
	Matrix    *Matrix
	Addresses []AddressStatus
	State     State

	GeocodeStats *geocode.ResolveStats
	ChunksTotal  int
	ChunksFailed int
}

// Orchestrator drives one run: normalize, geocode cache-first, plan
// chunks, fetch them concurrently, assemble the matrix.
type Orchestrator struct {
	resolver *geocode.Resolver
	client   Client
	opts     Options
	backoff  geocode.Backoff

	// Progress enables a progress bar on stderr when it is a terminal.
	Progress bool
}

func NewOrchestrator(resolver *geocode.Resolver, client Client, opts Options) *Orchestrator {
	return &Orchestrator{
		resolver: resolver,
		client:   client,
		opts:     opts.withDefaults(),
		backoff:  geocode.DefaultBackoff,
	}
}

// Run computes the full n×n matrix over the given records. A permanent
// service failure (rejected credential, exhausted quota) aborts the
// run; anything less degrades the affected cells to FAILED and the run
// finishes PARTIAL.
func (o *Orchestrator) Run(ctx context.Context, records []geocode.AddressRecord) (*Result, error) {
	result := &Result{
		Matrix:    NewMatrix(len(records)),
		Addresses: make([]AddressStatus, len(records)),
		State:     StateLoaded,
	}

	for i := range records {
		result.Addresses[i] = AddressStatus{
			Record: records[i],
			Key:    geocode.NormalizeKey(&records[i]),
		}
	}

	// first record of a shared key supplies the address string
	index := geocode.BuildKeyIndex(records)
	lookups := make(map[string]string, len(index))

	for key, ids := range index {
		lookups[key] = records[ids[0]].FullAddress()
	}

	result.State = StateNormalized

	resolved, stats, err := o.resolver.Resolve(ctx, lookups)
	result.GeocodeStats = stats

	if err != nil {
		return result, fmt.Errorf("geocoding addresses: %w", err)
	}

	points := make([]*spatial.Point, len(records))

	var resolvedIdx []int

	for i := range result.Addresses {
		point := resolved[result.Addresses[i].Key]
		if point != nil {
			points[i] = point
			result.Addresses[i].Point = point
			result.Addresses[i].Resolved = true
			resolvedIdx = append(resolvedIdx, i)
		}
	}

	result.State = StateGeocoded
	log.Printf("Geocoded %d of %d addresses (%d from cache, %d failed)",
		len(resolvedIdx), len(records), stats.Cached, stats.Failed)

	chunks, err := PlanChunks(resolvedIdx, o.opts.MaxElements, o.opts.PerAxisCap)
	if err != nil {
		return result, fmt.Errorf("planning chunks: %w", err)
	}

	result.State = StateBatched
	result.ChunksTotal = len(chunks)

	result.State = StateFetching

	if err := o.fetchAll(ctx, chunks, points, result); err != nil {
		return result, err
	}

	result.Matrix.FillDiagonal()

	for i := range result.Addresses {
		if !result.Addresses[i].Resolved {
			result.Matrix.MarkRowColFailed(i)
		}
	}

	if !result.Matrix.Complete() {
		return result, fmt.Errorf("matrix incomplete after assembly")
	}

	result.State = StateAssembled

	// Element-level failures surface only in the cells, so the matrix
	// itself decides the terminal state.
	if result.Matrix.Count(StatusFailed) == 0 {
		result.State = StateDone
	} else {
		result.State = StatePartial
	}

	return result, nil
}

// fetchAll dispatches the chunk plan with bounded concurrency. Each
// chunk writes a disjoint set of off-diagonal cells; a chunk that still
// fails after retries marks its own cells FAILED and the run goes on.
func (o *Orchestrator) fetchAll(ctx context.Context, chunks []Chunk, points []*spatial.Point, result *Result) error {
	var bar *progressbar.ProgressBar
	if o.Progress && isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.NewOptions(len(chunks),
			progressbar.OptionSetDescription("Fetching distances"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		permanent error
	)

	semaphore := make(chan struct{}, o.opts.Workers)

	for _, chunk := range chunks {
		wg.Add(1)

		go func(chunk Chunk) {
			defer wg.Done()
			semaphore <- struct{}{}

			defer func() { <-semaphore }()

			if ctx.Err() != nil {
				o.failChunk(chunk, result.Matrix)

				mu.Lock()
				result.ChunksFailed++
				mu.Unlock()

				return
			}

			var cells []CellResult

			err := o.backoff.Do(ctx, func() error {
				fetched, err := o.client.FetchChunk(ctx, chunk, points, o.opts)
				if err != nil {
					return err
				}

				cells = fetched

				return nil
			})

			if err != nil {
				mu.Lock()
				if geocode.IsPermanent(err) && permanent == nil {
					permanent = err

					cancel()
				}
				result.ChunksFailed++
				mu.Unlock()

				log.Printf("Chunk fetch failed (%d×%d): %v", len(chunk.Origins), len(chunk.Destinations), err)
				o.failChunk(chunk, result.Matrix)
			} else {
				o.writeChunk(cells, result.Matrix)
			}

			if bar != nil {
				_ = bar.Add(1)
			}
		}(chunk)
	}

	wg.Wait()

	if permanent != nil {
		return fmt.Errorf("fetching distance matrix: %w", permanent)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return nil
}

// writeChunk stores the fetched elements. Diagonal pairs that rode
// along in on-diagonal chunks are discarded; FillDiagonal owns those.
func (o *Orchestrator) writeChunk(cells []CellResult, m *Matrix) {
	for _, cell := range cells {
		if cell.Origin == cell.Destination {
			continue
		}

		err := m.SetCell(cell.Origin, cell.Destination, Cell{
			DistanceKm:  cell.DistanceKm,
			DurationMin: cell.DurationMin,
			Status:      cell.Status,
		})
		if err != nil {
			log.Printf("Dropping duplicate cell write: %v", err)
		}
	}
}

// failChunk marks every off-diagonal cell of the chunk FAILED.
func (o *Orchestrator) failChunk(chunk Chunk, m *Matrix) {
	for _, origin := range chunk.Origins {
		for _, destination := range chunk.Destinations {
			if origin == destination {
				continue
			}

			_ = m.SetCell(origin, destination, Cell{Status: StatusFailed})
		}
	}
}
