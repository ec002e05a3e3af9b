// Copyright 2026 The Vereinsmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package xlsxio

import (
	"fmt"
	"math"
	"time"

	"github.com/mgraber/vereinsmatrix/matrix"
	"github.com/xuri/excelize/v2"
)

const (
	sheetSettings   = "Einstellungen"
	sheetClubs      = "Vereine"
	sheetDistanceKm = "Distanz_km"
	sheetDistanceMi = "Distanz_mi"
	sheetDuration   = "Fahrzeit_min"
	sheetStatus     = "Status"

	milesPerKm = 1.609344
)

// Export writes the result workbook: a settings sheet, the club list
// with geocoding outcomes, distance and travel-time matrices, and a
// per-cell status matrix. Cells without a route or without data stay
// empty in the metric sheets; the status sheet tells them apart.
func Export(path string, result *matrix.Result, opts matrix.Options) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", sheetSettings)

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	if err := writeSettings(f, bold, result, opts); err != nil {
		return err
	}

	if err := writeClubs(f, bold, result); err != nil {
		return err
	}

	distanceSheet := sheetDistanceKm
	if opts.Units == matrix.UnitsImperial {
		distanceSheet = sheetDistanceMi
	}

	err = writeMatrix(f, bold, distanceSheet, result, func(c matrix.Cell) interface{} {
		if c.Status != matrix.StatusOK {
			return nil
		}

		value := c.DistanceKm
		if opts.Units == matrix.UnitsImperial {
			value /= milesPerKm
		}

		return math.Round(value*100) / 100
	})
	if err != nil {
		return err
	}

	err = writeMatrix(f, bold, sheetDuration, result, func(c matrix.Cell) interface{} {
		if c.Status != matrix.StatusOK {
			return nil
		}

		return math.Round(c.DurationMin*10) / 10
	})
	if err != nil {
		return err
	}

	err = writeMatrix(f, bold, sheetStatus, result, func(c matrix.Cell) interface{} {
		return c.Status.String()
	})
	if err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook %s: %w", path, err)
	}

	return nil
}

func writeSettings(f *excelize.File, bold int, result *matrix.Result, opts matrix.Options) error {
	rows := [][2]interface{}{
		{"Erstellt", time.Now().Format("2006-01-02 15:04")},
		{"Modus", string(opts.Mode)},
		{"Einheiten", string(opts.Units)},
		{"Verkehr", opts.UseTraffic},
		{"Vereine", len(result.Addresses)},
		{"Status", result.State.String()},
	}

	for i, row := range rows {
		keyCell, _ := excelize.CoordinatesToCellName(1, i+1)
		valueCell, _ := excelize.CoordinatesToCellName(2, i+1)

		if err := f.SetCellValue(sheetSettings, keyCell, row[0]); err != nil {
			return fmt.Errorf("writing settings: %w", err)
		}

		if err := f.SetCellValue(sheetSettings, valueCell, row[1]); err != nil {
			return fmt.Errorf("writing settings: %w", err)
		}

		if err := f.SetCellStyle(sheetSettings, keyCell, keyCell, bold); err != nil {
			return fmt.Errorf("styling settings: %w", err)
		}
	}

	return nil
}

func writeClubs(f *excelize.File, bold int, result *matrix.Result) error {
	if _, err := f.NewSheet(sheetClubs); err != nil {
		return fmt.Errorf("creating sheet %s: %w", sheetClubs, err)
	}

	headers := []string{"Nr", "Name", "Adresse", "Lat", "Lng", "Geocodiert"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetClubs, cell, h); err != nil {
			return fmt.Errorf("writing club header: %w", err)
		}
	}

	first, _ := excelize.CoordinatesToCellName(1, 1)
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)

	if err := f.SetCellStyle(sheetClubs, first, last, bold); err != nil {
		return fmt.Errorf("styling club header: %w", err)
	}

	for i, address := range result.Addresses {
		row := i + 2

		values := []interface{}{
			i + 1,
			address.Record.Name,
			address.Record.FullAddress(),
			nil,
			nil,
			"Nein",
		}

		if address.Resolved {
			values[3] = address.Point.Lat
			values[4] = address.Point.Lng
			values[5] = "Ja"
		}

		for j, v := range values {
			if v == nil {
				continue
			}

			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			if err := f.SetCellValue(sheetClubs, cell, v); err != nil {
				return fmt.Errorf("writing club row %d: %w", i, err)
			}
		}
	}

	return nil
}

// writeMatrix writes one n×n value sheet with club names on both axes.
func writeMatrix(f *excelize.File, bold int, sheet string, result *matrix.Result, value func(matrix.Cell) interface{}) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("creating sheet %s: %w", sheet, err)
	}

	n := result.Matrix.Size()

	for i, address := range result.Addresses {
		colCell, _ := excelize.CoordinatesToCellName(i+2, 1)
		rowCell, _ := excelize.CoordinatesToCellName(1, i+2)

		if err := f.SetCellValue(sheet, colCell, address.Record.Name); err != nil {
			return fmt.Errorf("writing %s header: %w", sheet, err)
		}

		if err := f.SetCellValue(sheet, rowCell, address.Record.Name); err != nil {
			return fmt.Errorf("writing %s header: %w", sheet, err)
		}
	}

	lastCol, _ := excelize.CoordinatesToCellName(n+1, 1)
	lastRow, _ := excelize.CoordinatesToCellName(1, n+1)
	origin, _ := excelize.CoordinatesToCellName(1, 1)

	if err := f.SetCellStyle(sheet, origin, lastCol, bold); err != nil {
		return fmt.Errorf("styling %s: %w", sheet, err)
	}

	if err := f.SetCellStyle(sheet, origin, lastRow, bold); err != nil {
		return fmt.Errorf("styling %s: %w", sheet, err)
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := value(result.Matrix.Cell(i, j))
			if v == nil {
				continue
			}

			cell, _ := excelize.CoordinatesToCellName(j+2, i+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("writing %s cell (%d,%d): %w", sheet, i, j, err)
			}
		}
	}

	return nil
}
