// Copyright 2026 The Vereinsmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package xlsxio

import (
	"path/filepath"
	"testing"

	"github.com/mgraber/vereinsmatrix/geocode"
	"github.com/mgraber/vereinsmatrix/matrix"
	"github.com/mgraber/vereinsmatrix/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func exportTestResult(t *testing.T) *matrix.Result {
	t.Helper()

	m := matrix.NewMatrix(2)
	require.NoError(t, m.SetCell(0, 1, matrix.Cell{DistanceKm: 12.3456, DurationMin: 17.89, Status: matrix.StatusOK}))
	require.NoError(t, m.SetCell(1, 0, matrix.Cell{Status: matrix.StatusNoRoute}))
	m.FillDiagonal()

	return &matrix.Result{
		Matrix: m,
		Addresses: []matrix.AddressStatus{
			{
				Record:   geocode.AddressRecord{ID: 0, Name: "TSV Bremen", Street: "Hauptstraße 12", PostalCode: "28195", City: "Bremen"},
				Point:    &spatial.Point{Lat: 53.0793, Lng: 8.8017},
				Resolved: true,
			},
			{
				Record: geocode.AddressRecord{ID: 1, Name: "SV Insel", City: "Inselstadt"},
			},
		},
		State:       matrix.StatePartial,
		ChunksTotal: 1,
	}
}

func TestExportWorkbookLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")

	require.NoError(t, Export(path, exportTestResult(t), matrix.DefaultOptions()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)

	defer f.Close()

	assert.ElementsMatch(t,
		[]string{"Einstellungen", "Vereine", "Distanz_km", "Fahrzeit_min", "Status"},
		f.GetSheetList())

	// distance matrix: bold name headers, rounded values, empty NO_ROUTE cell
	name, err := f.GetCellValue("Distanz_km", "B1")
	require.NoError(t, err)
	assert.Equal(t, "TSV Bremen", name)

	distance, err := f.GetCellValue("Distanz_km", "C2")
	require.NoError(t, err)
	assert.Equal(t, "12.35", distance)

	noRoute, err := f.GetCellValue("Distanz_km", "B3")
	require.NoError(t, err)
	assert.Empty(t, noRoute)

	diagonal, err := f.GetCellValue("Distanz_km", "B2")
	require.NoError(t, err)
	assert.Equal(t, "0", diagonal)

	duration, err := f.GetCellValue("Fahrzeit_min", "C2")
	require.NoError(t, err)
	assert.Equal(t, "17.9", duration)

	// the status sheet tells NO_ROUTE and FAILED apart
	status, err := f.GetCellValue("Status", "B3")
	require.NoError(t, err)
	assert.Equal(t, "NO_ROUTE", status)
}

func TestExportClubSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")

	require.NoError(t, Export(path, exportTestResult(t), matrix.DefaultOptions()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)

	defer f.Close()

	rows, err := f.GetRows("Vereine")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"Nr", "Name", "Adresse", "Lat", "Lng", "Geocodiert"}, rows[0])
	assert.Equal(t, "TSV Bremen", rows[1][1])
	assert.Equal(t, "Ja", rows[1][5])
	assert.Equal(t, "Nein", rows[2][5])
}

func TestExportImperialUnits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")

	opts := matrix.DefaultOptions()
	opts.Units = matrix.UnitsImperial

	require.NoError(t, Export(path, exportTestResult(t), opts))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)

	defer f.Close()

	assert.Contains(t, f.GetSheetList(), "Distanz_mi")
	assert.NotContains(t, f.GetSheetList(), "Distanz_km")

	// 12.3456 km -> 7.67 miles
	distance, err := f.GetCellValue("Distanz_mi", "C2")
	require.NoError(t, err)
	assert.Equal(t, "7.67", distance)
}
