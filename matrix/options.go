// Copyright 2026 The Vereinsmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package matrix

import "time"

// TravelMode selects how the service routes between two points.
type TravelMode string

const (
	ModeDriving   TravelMode = "driving"
	ModeWalking   TravelMode = "walking"
	ModeBicycling TravelMode = "bicycling"
	ModeTransit   TravelMode = "transit"
)

// Units selects the distance unit of the result matrix.
type Units string

const (
	UnitsMetric   Units = "metric"
	UnitsImperial Units = "imperial"
)

const (
	// DefaultMaxElements is the Distance Matrix per-request element cap.
	DefaultMaxElements = 625
	// DefaultPerAxisCap is the per-request origin/destination cap.
	DefaultPerAxisCap = 25
)

// Options configures a matrix computation.
type Options struct {
	APIKey string
	Mode   TravelMode
	Units  Units

	// UseTraffic asks for duration_in_traffic with a departure time of
	// now. Only honored for driving.
	UseTraffic bool

	MaxElements    int
	PerAxisCap     int
	Workers        int
	RequestTimeout time.Duration
}

// DefaultOptions returns the settings the CLI starts from.
func DefaultOptions() Options {
	return Options{
		Mode:           ModeDriving,
		Units:          UnitsMetric,
		UseTraffic:     true,
		MaxElements:    DefaultMaxElements,
		PerAxisCap:     DefaultPerAxisCap,
		Workers:        4,
		RequestTimeout: 30 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	if o.Mode == "" {
		o.Mode = ModeDriving
	}

	if o.Units == "" {
		o.Units = UnitsMetric
	}

	if o.MaxElements < 1 {
		o.MaxElements = DefaultMaxElements
	}

	if o.PerAxisCap < 1 {
		o.PerAxisCap = DefaultPerAxisCap
	}

	if o.Workers < 1 {
		o.Workers = 4
	}

	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}

	return o
}
