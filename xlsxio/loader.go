// Copyright 2026 The Vereinsmatrix Authors
// SPDX-License-Identifier: Apache-2.0

// Package xlsxio reads club lists from and writes result workbooks to
// xlsx files.
package xlsxio

import (
	"fmt"
	"strings"

	"github.com/mgraber/vereinsmatrix/geocode"
	"github.com/xuri/excelize/v2"
)

// ColumnMap names the input columns. Matching is case-insensitive on
// the trimmed header text. FullAddress, when present in the sheet,
// wins over the composed street/postal/city fields.
type ColumnMap struct {
	Name        string
	Street      string
	PostalCode  string
	City        string
	Country     string
	FullAddress string
}

// DefaultColumns matches the German sheets the tool is usually fed.
func DefaultColumns() ColumnMap {
	return ColumnMap{
		Name:        "Name",
		Street:      "Straße",
		PostalCode:  "PLZ",
		City:        "Ort",
		Country:     "Land",
		FullAddress: "Adresse",
	}
}

// LoadRecords reads the address records from the workbook. An empty
// sheet name selects the first sheet; sample > 0 caps the number of
// records read.
func LoadRecords(path, sheet string, columns ColumnMap, sample int) ([]geocode.AddressRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook %s: %w", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}

	if len(rows) < 2 {
		return nil, fmt.Errorf("sheet %q has no data rows", sheet)
	}

	header := make(map[string]int, len(rows[0]))
	for i, cell := range rows[0] {
		header[strings.ToLower(strings.TrimSpace(cell))] = i
	}

	column := func(name string) int {
		if name == "" {
			return -1
		}

		if i, ok := header[strings.ToLower(name)]; ok {
			return i
		}

		return -1
	}

	nameCol := column(columns.Name)
	if nameCol < 0 {
		return nil, fmt.Errorf("sheet %q: missing column %q", sheet, columns.Name)
	}

	streetCol := column(columns.Street)
	postalCol := column(columns.PostalCode)
	cityCol := column(columns.City)
	countryCol := column(columns.Country)
	fullCol := column(columns.FullAddress)

	cell := func(row []string, i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}

		return strings.TrimSpace(row[i])
	}

	var records []geocode.AddressRecord

	for _, row := range rows[1:] {
		record := geocode.AddressRecord{
			ID:         len(records),
			Name:       cell(row, nameCol),
			Street:     cell(row, streetCol),
			PostalCode: cell(row, postalCol),
			City:       cell(row, cityCol),
			Country:    cell(row, countryCol),
			Full:       cell(row, fullCol),
		}

		if record.Name == "" && record.Street == "" && record.City == "" && record.Full == "" {
			continue
		}

		records = append(records, record)

		if sample > 0 && len(records) >= sample {
			break
		}
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("sheet %q has no usable rows", sheet)
	}

	return records, nil
}
