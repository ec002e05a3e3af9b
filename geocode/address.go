// Copyright 2026 The Vereinsmatrix Authors
// SPDX-License-Identifier: Apache-2.0

// Package geocode resolves club addresses to coordinates through the Google
// Geocoding API, backed by a persistent cache keyed by normalized address.
package geocode

import (
	"strings"

	"github.com/mgraber/vereinsmatrix/utils"
)

// DefaultCountry is assumed when a record carries no country column.
const DefaultCountry = "Deutschland"

// AddressRecord is one row of the club list. ID is the stable 0-based
// position of the row and doubles as the matrix index.
type AddressRecord struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Street     string `json:"street"`
	PostalCode string `json:"postal_code"`
	City       string `json:"city"`
	Country    string `json:"country,omitempty"`

	// Full overrides the assembled address when the source sheet already
	// carries a full_address column.
	Full string `json:"full_address,omitempty"`
}

// FullAddress assembles the human-readable address sent to the geocoding
// service: "street, postal city, country".
func (r *AddressRecord) FullAddress() string {
	if r.Full != "" {
		return r.Full
	}

	var segs []string

	if s := strings.TrimSpace(r.Street); s != "" {
		segs = append(segs, s)
	}

	var place []string

	if s := strings.TrimSpace(r.PostalCode); s != "" {
		place = append(place, s)
	}

	if s := strings.TrimSpace(r.City); s != "" {
		place = append(place, s)
	}

	if len(place) > 0 {
		segs = append(segs, strings.Join(place, " "))
	}

	country := strings.TrimSpace(r.Country)
	if country == "" {
		country = DefaultCountry
	}

	segs = append(segs, country)

	return strings.Join(segs, ", ")
}

// NormalizeKey derives the cache lookup key of a record. The key is built
// from street, postal code and city: case-folded, accents stripped, runs of
// whitespace collapsed. Missing fields map to empty segments, so the function
// is total. Two records spelling the same address differently in case or
// spacing collapse onto one key.
func NormalizeKey(r *AddressRecord) string {
	segs := []string{r.Street, r.PostalCode, r.City}

	empty := true

	for i, s := range segs {
		s = utils.CollapseSpaces(utils.LowerASCIIFolding(s))
		if s != "" {
			empty = false
		}

		segs[i] = s
	}

	// Sheets that only carry a prebuilt full_address column would otherwise
	// all collapse onto the empty key.
	if empty && r.Full != "" {
		return utils.CollapseSpaces(utils.LowerASCIIFolding(r.Full))
	}

	return strings.Join(segs, "|")
}

// KeyIndex maps a normalized key to the ids of every record sharing it.
type KeyIndex map[string][]int

// BuildKeyIndex builds the key multiplicities map over a record list. The
// resolver walks the index so each distinct address hits the network at most
// once, no matter how many clubs share a venue.
func BuildKeyIndex(records []AddressRecord) KeyIndex {
	index := make(KeyIndex, len(records))

	for i := range records {
		key := NormalizeKey(&records[i])
		index[key] = append(index[key], records[i].ID)
	}

	return index
}
