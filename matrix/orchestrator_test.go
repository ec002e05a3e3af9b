// Copyright 2026 The Vereinsmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package matrix

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mgraber/vereinsmatrix/geocode"
	"github.com/mgraber/vereinsmatrix/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gridGeocoder resolves every address to a synthetic coordinate and
// counts its calls.
type gridGeocoder struct {
	mu    sync.Mutex
	calls int
	fail  map[string]bool
}

func (g *gridGeocoder) Geocode(_ context.Context, address string) (*spatial.Point, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()

	if g.fail[address] {
		return nil, &geocode.ServiceError{Kind: geocode.KindNotFound, Message: "ZERO_RESULTS"}
	}

	return &spatial.Point{Lat: 53 + float64(len(address))/1000, Lng: 8.8}, nil
}

func (g *gridGeocoder) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.calls
}

// fakeClient computes per-pair results locally; failOnce can make the
// first call for a given chunk fail with the scripted error.
type fakeClient struct {
	mu       sync.Mutex
	calls    int
	failWith error
	failFor  func(chunk Chunk) bool
}

func (c *fakeClient) FetchChunk(_ context.Context, chunk Chunk, points []*spatial.Point, _ Options) ([]CellResult, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()

	if c.failWith != nil && (c.failFor == nil || c.failFor(chunk)) {
		return nil, c.failWith
	}

	var results []CellResult

	for _, o := range chunk.Origins {
		for _, d := range chunk.Destinations {
			distance := points[o].HaversineDistance(points[d]) / 1000

			results = append(results, CellResult{
				Origin:      o,
				Destination: d,
				DistanceKm:  distance,
				DurationMin: distance, // close enough for tests
				Status:      StatusOK,
			})
		}
	}

	return results, nil
}

func makeRecords(n int) []geocode.AddressRecord {
	records := make([]geocode.AddressRecord, n)

	for i := range records {
		records[i] = geocode.AddressRecord{
			ID:         i,
			Name:       fmt.Sprintf("Verein %d", i),
			Street:     fmt.Sprintf("Teststraße %d", i+1),
			PostalCode: "28195",
			City:       "Bremen",
		}
	}

	return records
}

func newTestOrchestrator(geocoder geocode.Geocoder, client Client, opts Options) *Orchestrator {
	resolver := geocode.NewResolver(geocode.NewCache(), geocoder, 2)

	o := NewOrchestrator(resolver, client, opts)
	o.backoff.Initial = time.Millisecond

	return o
}

func TestRunAllOK(t *testing.T) {
	records := makeRecords(4)
	o := newTestOrchestrator(&gridGeocoder{}, &fakeClient{}, DefaultOptions())

	result, err := o.Run(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, StateDone, result.State)
	assert.True(t, result.Matrix.Complete())
	assert.Equal(t, 0, result.Matrix.Count(StatusFailed))
	assert.Equal(t, 1, result.ChunksTotal)
	assert.Equal(t, 0, result.ChunksFailed)

	for i := 0; i < 4; i++ {
		cell := result.Matrix.Cell(i, i)
		assert.Equal(t, StatusOK, cell.Status)
		assert.Zero(t, cell.DistanceKm)
	}

	for _, address := range result.Addresses {
		assert.True(t, address.Resolved)
	}
}

func TestRunDeduplicatesSharedAddresses(t *testing.T) {
	records := makeRecords(3)
	// records 0 and 1 share a venue, spelled differently
	records[1].Street = "  TESTSTRAßE 1 "

	geocoder := &gridGeocoder{}
	o := newTestOrchestrator(geocoder, &fakeClient{}, DefaultOptions())

	result, err := o.Run(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, 2, geocoder.callCount(), "shared addresses must geocode once")
	assert.Equal(t, result.Addresses[0].Key, result.Addresses[1].Key)
	require.NotNil(t, result.Addresses[0].Point)
	require.NotNil(t, result.Addresses[1].Point)
	assert.Equal(t, result.Addresses[0].Point.Lat, result.Addresses[1].Point.Lat)

	// shared venue means identical rows in the matrix
	for j := 2; j < 3; j++ {
		a := result.Matrix.Cell(0, j)
		b := result.Matrix.Cell(1, j)
		assert.Equal(t, a.DistanceKm, b.DistanceKm)
	}
}

func TestRunWithUnresolvedAddress(t *testing.T) {
	records := makeRecords(3)

	geocoder := &gridGeocoder{
		fail: map[string]bool{records[1].FullAddress(): true},
	}

	o := newTestOrchestrator(geocoder, &fakeClient{}, DefaultOptions())

	result, err := o.Run(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, StatePartial, result.State)
	assert.True(t, result.Matrix.Complete())
	assert.False(t, result.Addresses[1].Resolved)

	// the unresolved club keeps its row and column, all FAILED
	for j := 0; j < 3; j++ {
		assert.Equal(t, StatusFailed, result.Matrix.Cell(1, j).Status)
		assert.Equal(t, StatusFailed, result.Matrix.Cell(j, 1).Status)
	}

	// the resolved pair is unaffected
	assert.Equal(t, StatusOK, result.Matrix.Cell(0, 2).Status)
	assert.Equal(t, StatusOK, result.Matrix.Cell(2, 0).Status)
}

func TestRunChunkFailureIsPartial(t *testing.T) {
	records := makeRecords(6)

	opts := DefaultOptions()
	// force multiple chunks: blocks of 3 over 6 records -> 4 chunks
	opts.MaxElements = 9
	opts.PerAxisCap = 3

	client := &fakeClient{
		failWith: &geocode.ServiceError{Kind: geocode.KindNetwork, Message: "connection reset"},
		failFor: func(chunk Chunk) bool {
			// only the chunk pairing the first block against the second
			return chunk.Origins[0] == 0 && chunk.Destinations[0] == 3
		},
	}

	o := newTestOrchestrator(&gridGeocoder{}, client, opts)

	result, err := o.Run(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, StatePartial, result.State)
	assert.True(t, result.Matrix.Complete())
	assert.Equal(t, 4, result.ChunksTotal)
	assert.Equal(t, 1, result.ChunksFailed)

	// cells of the failed chunk
	assert.Equal(t, StatusFailed, result.Matrix.Cell(0, 3).Status)
	assert.Equal(t, StatusFailed, result.Matrix.Cell(2, 5).Status)

	// the mirrored chunk succeeded
	assert.Equal(t, StatusOK, result.Matrix.Cell(3, 0).Status)
	assert.Equal(t, StatusOK, result.Matrix.Cell(5, 2).Status)
}

func TestRunFailedElementInSuccessfulChunkIsPartial(t *testing.T) {
	records := makeRecords(3)

	// the chunk request succeeds, one element inside it does not
	client := &elementFailClient{inner: &fakeClient{}, origin: 0, destination: 2}

	o := newTestOrchestrator(&gridGeocoder{}, client, DefaultOptions())

	result, err := o.Run(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, StatePartial, result.State)
	assert.True(t, result.Matrix.Complete())
	assert.Equal(t, 0, result.ChunksFailed)
	assert.Equal(t, 1, result.Matrix.Count(StatusFailed))
	assert.Equal(t, StatusFailed, result.Matrix.Cell(0, 2).Status)
	assert.Equal(t, StatusOK, result.Matrix.Cell(2, 0).Status)
}

// elementFailClient degrades one pair of an otherwise successful chunk.
type elementFailClient struct {
	inner       Client
	origin      int
	destination int
}

func (c *elementFailClient) FetchChunk(ctx context.Context, chunk Chunk, points []*spatial.Point, opts Options) ([]CellResult, error) {
	cells, err := c.inner.FetchChunk(ctx, chunk, points, opts)
	if err != nil {
		return nil, err
	}

	for i := range cells {
		if cells[i].Origin == c.origin && cells[i].Destination == c.destination {
			cells[i] = CellResult{Origin: c.origin, Destination: c.destination, Status: StatusFailed}
		}
	}

	return cells, nil
}

func TestRunPermanentClientErrorAborts(t *testing.T) {
	records := makeRecords(3)

	client := &fakeClient{
		failWith: &geocode.ServiceError{Kind: geocode.KindDenied, Message: "REQUEST_DENIED"},
	}

	o := newTestOrchestrator(&gridGeocoder{}, client, DefaultOptions())

	_, err := o.Run(context.Background(), records)
	require.Error(t, err)
	assert.True(t, geocode.IsPermanent(err))
}

func TestRunRetriesTransientChunkFailures(t *testing.T) {
	records := makeRecords(3)

	var mu sync.Mutex

	attempts := 0

	client := &retryClient{
		inner: &fakeClient{},
		gate: func() error {
			mu.Lock()
			defer mu.Unlock()

			attempts++
			if attempts == 1 {
				return &geocode.ServiceError{Kind: geocode.KindRateLimit, Message: "rate limit reached"}
			}

			return nil
		},
	}

	o := newTestOrchestrator(&gridGeocoder{}, client, DefaultOptions())

	result, err := o.Run(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, 0, result.ChunksFailed)
	assert.Equal(t, 2, attempts)
}

// retryClient fails per the gate before delegating.
type retryClient struct {
	inner Client
	gate  func() error
}

func (c *retryClient) FetchChunk(ctx context.Context, chunk Chunk, points []*spatial.Point, opts Options) ([]CellResult, error) {
	if err := c.gate(); err != nil {
		return nil, err
	}

	return c.inner.FetchChunk(ctx, chunk, points, opts)
}
