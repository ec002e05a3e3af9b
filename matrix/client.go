// Copyright 2026 The Vereinsmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package matrix

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mgraber/vereinsmatrix/geocode"
	"github.com/mgraber/vereinsmatrix/spatial"
	"github.com/mgraber/vereinsmatrix/utils/httputils"
)

const googleDistanceMatrixURL = "https://maps.googleapis.com/maps/api/distancematrix/json"

// CellResult is one element of a fetched chunk, addressed by indices
// into the full address list.
type CellResult struct {
	Origin      int
	Destination int
	DistanceKm  float64
	DurationMin float64
	Status      CellStatus
}

// Client fetches one chunk of the distance matrix. points is indexed by
// the same indices the chunk carries.
type Client interface {
	FetchChunk(ctx context.Context, chunk Chunk, points []*spatial.Point, opts Options) ([]CellResult, error)
}

// GoogleClient talks to the Google Distance Matrix API.
type GoogleClient struct {
	// BaseURL can be pointed at a test server.
	BaseURL string

	apiKey     string
	language   string
	httpClient *http.Client
}

func NewGoogleClient(apiKey string, timeout time.Duration) *GoogleClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &GoogleClient{
		BaseURL:  googleDistanceMatrixURL,
		apiKey:   apiKey,
		language: "de",
		httpClient: httputils.NewClient(httputils.ClientOptions{
			Timeout: timeout,
		}),
	}
}

type googleMatrixResponse struct {
	Rows []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Value int `json:"value"` // meters
			} `json:"distance"`
			Duration struct {
				Value int `json:"value"` // seconds
			} `json:"duration"`
			DurationInTraffic struct {
				Value int `json:"value"`
			} `json:"duration_in_traffic"`
		} `json:"elements"`
	} `json:"rows"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

func (c *GoogleClient) FetchChunk(ctx context.Context, chunk Chunk, points []*spatial.Point, opts Options) ([]CellResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building distance matrix request: %w", err)
	}

	query := url.Values{}
	query.Set("origins", joinTokens(chunk.Origins, points))
	query.Set("destinations", joinTokens(chunk.Destinations, points))
	query.Set("mode", string(opts.Mode))
	query.Set("units", string(opts.Units))
	query.Set("language", c.language)
	if opts.UseTraffic && opts.Mode == ModeDriving {
		query.Set("departure_time", "now")
	}
	query.Set("key", c.apiKey)
	req.URL.RawQuery = query.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &geocode.ServiceError{
			Kind:    geocode.KindNetwork,
			Message: "calling distance matrix service",
			Err:     err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, geocode.ClassifyHTTPStatus(resp.StatusCode)
	}

	var body googleMatrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &geocode.ServiceError{
			Kind:    geocode.KindNetwork,
			Message: "decoding distance matrix response",
			Err:     err,
		}
	}

	if body.Status != "OK" {
		return nil, geocode.ClassifyGoogleStatus(body.Status, body.ErrorMessage)
	}

	if len(body.Rows) != len(chunk.Origins) {
		return nil, &geocode.ServiceError{
			Kind:    geocode.KindNetwork,
			Message: fmt.Sprintf("expected %d rows, got %d", len(chunk.Origins), len(body.Rows)),
		}
	}

	results := make([]CellResult, 0, chunk.Elements())

	for i, row := range body.Rows {
		if len(row.Elements) != len(chunk.Destinations) {
			return nil, &geocode.ServiceError{
				Kind:    geocode.KindNetwork,
				Message: fmt.Sprintf("row %d: expected %d elements, got %d", i, len(chunk.Destinations), len(row.Elements)),
			}
		}

		for j, element := range row.Elements {
			result := CellResult{
				Origin:      chunk.Origins[i],
				Destination: chunk.Destinations[j],
			}

			switch element.Status {
			case "OK":
				result.Status = StatusOK
				result.DistanceKm = float64(element.Distance.Value) / 1000
				seconds := element.Duration.Value
				if element.DurationInTraffic.Value > 0 {
					seconds = element.DurationInTraffic.Value
				}
				result.DurationMin = float64(seconds) / 60
			case "ZERO_RESULTS", "NOT_FOUND":
				result.Status = StatusNoRoute
			default:
				result.Status = StatusFailed
			}

			results = append(results, result)
		}
	}

	return results, nil
}

// joinTokens renders the pipe-separated coordinate list the service
// expects.
func joinTokens(indices []int, points []*spatial.Point) string {
	tokens := make([]string, 0, len(indices))
	for _, i := range indices {
		tokens = append(tokens, points[i].Token())
	}

	return strings.Join(tokens, "|")
}
