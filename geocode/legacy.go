// Copyright 2026 The Vereinsmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/mgraber/vereinsmatrix/spatial"
	"github.com/mgraber/vereinsmatrix/utils"
)

// ParseLegacyCSV converts the old "address,lat,lng" cache files into a
// snapshot. The old tool cached by raw address string; those collapse onto
// the same folded form the key fallback for prebuilt addresses uses.
func ParseLegacyCSV(data []byte) (*Snapshot, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = 3

	snapshot := &Snapshot{Version: SnapshotVersion}
	now := time.Now().UTC()

	line := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("parsing legacy cache CSV: %w", err)
		}

		line++

		// header row of the old export
		if line == 1 && record[0] == "address" {
			continue
		}

		lat, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing legacy cache CSV line %d: lat: %w", line, err)
		}

		lng, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing legacy cache CSV line %d: lng: %w", line, err)
		}

		key := utils.CollapseSpaces(utils.LowerASCIIFolding(record[0]))
		if key == "" {
			continue
		}

		snapshot.Entries = append(snapshot.Entries, &Entry{
			Key:        key,
			Point:      &spatial.Point{Lat: lat, Lng: lng},
			ResolvedAt: now,
		})
	}

	return snapshot, nil
}
