// Copyright 2026 The Vereinsmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/mgraber/vereinsmatrix/spatial"
	"github.com/mgraber/vereinsmatrix/utils/httputils"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// GoogleGeocoder uses the Google Maps Geocoding API, one address per call.
type GoogleGeocoder struct {
	// BaseURL may be overridden in tests.
	BaseURL string

	apiKey     string
	language   string
	region     string
	httpClient *http.Client
}

// NewGoogleGeocoder creates a new Google Maps geocoder biased to Germany.
func NewGoogleGeocoder(apiKey, userAgent string) *GoogleGeocoder {
	return &GoogleGeocoder{
		BaseURL:  googleGeocodeURL,
		apiKey:   apiKey,
		language: "de",
		region:   "de",
		httpClient: httputils.NewClient(httputils.ClientOptions{
			Timeout:   10 * time.Second,
			UserAgent: userAgent,
		}),
	}
}

type googleGeocodeResponse struct {
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
	Status       string `json:"status"` // OK, ZERO_RESULTS, OVER_QUERY_LIMIT, ...
	ErrorMessage string `json:"error_message"`
}

// Geocode resolves an address string to a coordinate. Failures come back as
// *ServiceError so the caller can tell transient from permanent ones.
func (g *GoogleGeocoder) Geocode(ctx context.Context, address string) (*spatial.Point, error) {
	if address == "" {
		return nil, &ServiceError{Kind: KindInvalidRequest, Message: "empty address"}
	}

	params := url.Values{}
	params.Set("address", address)
	params.Set("key", g.apiKey)
	params.Set("language", g.language)
	params.Set("region", g.region)

	reqURL := g.BaseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building geocoding request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, &ServiceError{Kind: KindNetwork, Message: "geocoding request failed", Err: err}
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ClassifyHTTPStatus(resp.StatusCode)
	}

	var gr googleGeocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("decoding geocoding response: %w", err)
	}

	if gr.Status != "OK" {
		return nil, ClassifyGoogleStatus(gr.Status, gr.ErrorMessage)
	}

	if len(gr.Results) == 0 {
		return nil, &ServiceError{Kind: KindNotFound, Message: "no results for address"}
	}

	point := &spatial.Point{
		Lat: gr.Results[0].Geometry.Location.Lat,
		Lng: gr.Results[0].Geometry.Location.Lng,
	}

	if !point.Valid() {
		return nil, fmt.Errorf("geocoding returned out-of-range coordinate %s", point)
	}

	return point, nil
}
