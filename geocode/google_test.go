// Copyright 2026 The Vereinsmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func geocoderForTest(t *testing.T, handler http.HandlerFunc) *GoogleGeocoder {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	g := NewGoogleGeocoder("test-key", "test-agent")
	g.BaseURL = server.URL

	return g
}

func TestGoogleGeocodeOK(t *testing.T) {
	var gotQuery map[string]string

	g := geocoderForTest(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"address":  r.URL.Query().Get("address"),
			"key":      r.URL.Query().Get("key"),
			"language": r.URL.Query().Get("language"),
			"region":   r.URL.Query().Get("region"),
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "OK",
			"results": [
				{"geometry": {"location": {"lat": 53.0793, "lng": 8.8017}},
				 "formatted_address": "Hauptstraße 12, 28195 Bremen, Deutschland"}
			]
		}`))
	})

	point, err := g.Geocode(context.Background(), "Hauptstraße 12, 28195 Bremen, Deutschland")
	require.NoError(t, err)

	assert.Equal(t, 53.0793, point.Lat)
	assert.Equal(t, 8.8017, point.Lng)
	assert.Equal(t, "Hauptstraße 12, 28195 Bremen, Deutschland", gotQuery["address"])
	assert.Equal(t, "test-key", gotQuery["key"])
	assert.Equal(t, "de", gotQuery["language"])
	assert.Equal(t, "de", gotQuery["region"])
}

func TestGoogleGeocodeZeroResults(t *testing.T) {
	g := geocoderForTest(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status": "ZERO_RESULTS", "results": []}`))
	})

	_, err := g.Geocode(context.Background(), "Nirgendwostraße 1")

	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsTransient(err))
}

func TestGoogleGeocodeRequestDenied(t *testing.T) {
	g := geocoderForTest(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status": "REQUEST_DENIED", "error_message": "The provided API key is invalid.", "results": []}`))
	})

	_, err := g.Geocode(context.Background(), "Hauptstraße 12")

	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.Contains(t, err.Error(), "API key")
}

func TestGoogleGeocodeRateLimited(t *testing.T) {
	g := geocoderForTest(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := g.Geocode(context.Background(), "Hauptstraße 12")

	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestGoogleGeocodeEmptyAddress(t *testing.T) {
	g := NewGoogleGeocoder("test-key", "test-agent")

	_, err := g.Geocode(context.Background(), "")

	require.Error(t, err)
	assert.True(t, IsPermanent(err))
}

func TestGoogleGeocodeInvalidCoordinate(t *testing.T) {
	g := geocoderForTest(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"status": "OK",
			"results": [{"geometry": {"location": {"lat": 999, "lng": 0}}}]
		}`))
	})

	_, err := g.Geocode(context.Background(), "Hauptstraße 12")
	assert.Error(t, err)
}
