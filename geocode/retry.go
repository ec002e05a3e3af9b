// Copyright 2026 The Vereinsmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"time"
)

// Backoff is the bounded-retry executor shared by the geocoder and the
// distance matrix client. Transient failures are retried with exponential
// backoff; everything else is returned to the caller on the first attempt.
type Backoff struct {
	// Attempts is the total number of tries, including the first one.
	Attempts int

	// Initial is the delay before the second attempt; it doubles afterwards.
	Initial time.Duration

	// Transient decides whether an error is worth another attempt.
	// Defaults to IsTransient.
	Transient func(error) bool
}

// DefaultBackoff matches the service rate-limit guidance: three attempts,
// 200ms initial delay.
var DefaultBackoff = Backoff{
	Attempts: 3,
	Initial:  200 * time.Millisecond,
}

// Do runs op until it succeeds, fails permanently, or the attempts are
// exhausted. Cancellation of ctx wins over the backoff timer.
func (b Backoff) Do(ctx context.Context, op func() error) error {
	attempts := b.Attempts
	if attempts < 1 {
		attempts = 1
	}

	delay := b.Initial
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}

	transient := b.Transient
	if transient == nil {
		transient = IsTransient
	}

	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}

		if !transient(lastErr) || attempt == attempts {
			return lastErr
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()

			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}

	return lastErr
}
