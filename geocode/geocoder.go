// Copyright 2026 The Vereinsmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"log"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/mgraber/vereinsmatrix/spatial"
	"github.com/schollz/progressbar/v3"
)

// Geocoder resolves one address string to a coordinate.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*spatial.Point, error)
}

// ResolveStats summarizes one resolution pass.
type ResolveStats struct {
	Cached   int // keys answered from the cache
	Resolved int // keys resolved over the network
	Failed   int // keys with no coordinate after retries
	Calls    int // network calls issued (includes retries' first attempts only once)
}

// Resolver resolves a deduplicated key set against the external service,
// cache first. Distinct keys are resolved concurrently up to Workers.
type Resolver struct {
	cache    *Cache
	geocoder Geocoder
	backoff  Backoff
	workers  int

	// Progress enables a progress bar on stderr when it is a terminal.
	Progress bool
}

// NewResolver wires a resolver over a cache and a geocoding client.
func NewResolver(cache *Cache, geocoder Geocoder, workers int) *Resolver {
	if workers < 1 {
		workers = 1
	}

	return &Resolver{
		cache:    cache,
		geocoder: geocoder,
		backoff:  DefaultBackoff,
		workers:  workers,
	}
}

// Resolve maps every key in lookups (key -> address string) to a coordinate,
// or nil when the key could not be resolved. A single unresolvable address
// never aborts the pass; a permanent service failure (rejected credential,
// exhausted quota) does, since no later call can succeed either.
func (r *Resolver) Resolve(ctx context.Context, lookups map[string]string) (map[string]*spatial.Point, *ResolveStats, error) {
	results := make(map[string]*spatial.Point, len(lookups))
	stats := &ResolveStats{}

	// cache pass, no network
	var pending []string

	for key := range lookups {
		if point, ok := r.cache.Lookup(key); ok {
			results[key] = point
			stats.Cached++

			continue
		}

		pending = append(pending, key)
	}

	if len(pending) == 0 {
		return results, stats, nil
	}

	var bar *progressbar.ProgressBar
	if r.Progress && isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.NewOptions(len(pending),
			progressbar.OptionSetDescription("Geocoding"),
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

	semaphore := make(chan struct{}, r.workers)

	for _, key := range pending {
		wg.Add(1)

		go func(key string) {
			defer wg.Done()
			semaphore <- struct{}{}

			defer func() { <-semaphore }()

			if ctx.Err() != nil {
				return
			}

			address := lookups[key]

			var point *spatial.Point

			err := r.backoff.Do(ctx, func() error {
				p, err := r.geocoder.Geocode(ctx, address)
				if err != nil {
					return err
				}

				point = p

				return nil
			})

			mu.Lock()
			defer mu.Unlock()

			stats.Calls++

			switch {
			case err == nil:
				r.cache.Store(key, point)

				results[key] = point
				stats.Resolved++
			case ctx.Err() != nil:
				// the pass was cancelled while this key was in flight;
				// the cause is already recorded elsewhere
			case IsPermanent(err):
				if permanent == nil {
					permanent = err
				}

				cancel()
			default:
				// not found or retries exhausted: the one address fails,
				// the pass continues
				log.Printf("Geocoding failed for %q: %v", address, err)

				results[key] = nil
				stats.Failed++
			}

			if bar != nil {
				_ = bar.Add(1)
			}
		}(key)
	}

	wg.Wait()

	if permanent != nil {
		return nil, stats, permanent
	}

	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}

	return results, stats, nil
}
