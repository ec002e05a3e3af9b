// Copyright 2026 The Vereinsmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/joho/godotenv"
	"github.com/mgraber/vereinsmatrix/geocode"
	"github.com/mgraber/vereinsmatrix/matrix"
	"github.com/mgraber/vereinsmatrix/utils"
	"github.com/mgraber/vereinsmatrix/xlsxio"
	"github.com/spf13/cobra"
)

const databaseFile = "vereinsmatrix.duckdb"

type computeConfig struct {
	In     string
	Out    string
	Sheet  string
	APIKey string
	DbPath string

	Mode       string
	Units      string
	Traffic    bool
	Workers    int
	MaxElement int
	PerAxis    int
	Sample     int

	Columns xlsxio.ColumnMap
}

var computeOptions = &computeConfig{}

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Compute the distance and travel-time matrix for a club list",
	Long: `Reads the club list from an xlsx workbook, geocodes every address
(cache first), fetches the all-pairs distance matrix in chunks and writes
the result workbook. The geocode cache persists in a local database so a
second run over the same list costs no geocoding quota.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		// .env is optional
		_ = godotenv.Load()

		records, err := xlsxio.LoadRecords(computeOptions.In, computeOptions.Sheet, computeOptions.Columns, computeOptions.Sample)
		if err != nil {
			return err
		}

		if len(records) < 2 {
			return fmt.Errorf("need at least two addresses, got %d", len(records))
		}

		apiKey, err := resolveAPIKey(cmd.Context(), computeOptions.APIKey)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(computeOptions.DbPath, 0o750); err != nil {
			return fmt.Errorf("creating db directory: %w", err)
		}

		db, err := sql.Open("duckdb", filepath.Join(computeOptions.DbPath, databaseFile))
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		repo := geocode.NewRepository(db)
		if err := repo.CreateSchema(); err != nil {
			return fmt.Errorf("creating cache schema: %w", err)
		}

		cache := loadCacheOrWarn(repo)

		userAgent := fmt.Sprintf("vereinsmatrix/%s (+https://github.com/mgraber/vereinsmatrix)", Version)

		resolver := geocode.NewResolver(cache, geocode.NewGoogleGeocoder(apiKey, userAgent), computeOptions.Workers)
		resolver.Progress = true

		opts := matrix.DefaultOptions()
		opts.APIKey = apiKey
		opts.Mode = matrix.TravelMode(computeOptions.Mode)
		opts.Units = matrix.Units(computeOptions.Units)
		opts.UseTraffic = computeOptions.Traffic
		opts.Workers = computeOptions.Workers
		opts.MaxElements = computeOptions.MaxElement
		opts.PerAxisCap = computeOptions.PerAxis

		orchestrator := matrix.NewOrchestrator(resolver, matrix.NewGoogleClient(apiKey, opts.RequestTimeout), opts)
		orchestrator.Progress = true

		result, runErr := orchestrator.Run(cmd.Context(), records)

		// new geocodes are worth keeping even when the run aborts
		if err := repo.Save(cache); err != nil {
			return fmt.Errorf("saving geocode cache: %w", err)
		}

		if runErr != nil {
			return runErr
		}

		if err := xlsxio.Export(computeOptions.Out, result, opts); err != nil {
			return err
		}

		fmt.Printf("✅ %s (%s Vereine, %s OK, %s ohne Route, %s fehlgeschlagen) → %s\n",
			result.State,
			utils.FormatInt(int64(len(records))),
			utils.FormatInt(int64(result.Matrix.Count(matrix.StatusOK))),
			utils.FormatInt(int64(result.Matrix.Count(matrix.StatusNoRoute))),
			utils.FormatInt(int64(result.Matrix.Count(matrix.StatusFailed))),
			computeOptions.Out)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(computeCmd)

	computeCmd.Flags().StringVar(&computeOptions.In, "in", "", "Vereinsliste (xlsx)")
	_ = computeCmd.MarkFlagRequired("in")
	computeCmd.Flags().StringVar(&computeOptions.Out, "out", "vereinsmatrix.xlsx", "Ausgabedatei (xlsx)")
	computeCmd.Flags().StringVar(&computeOptions.Sheet, "sheet", "", "Tabellenblatt (Standard: erstes Blatt)")
	computeCmd.Flags().StringVar(&computeOptions.APIKey, "api-key", "", "Google Maps API Key (Standard: GOOGLE_MAPS_API_KEY)")
	computeCmd.Flags().StringVar(&computeOptions.DbPath, "db-path", "db", "Verzeichnis für den Geocode-Cache")
	computeCmd.Flags().StringVar(&computeOptions.Mode, "mode", string(matrix.ModeDriving), "Verkehrsmittel: driving, walking, bicycling, transit")
	computeCmd.Flags().StringVar(&computeOptions.Units, "units", string(matrix.UnitsMetric), "Einheiten: metric oder imperial")
	computeCmd.Flags().BoolVar(&computeOptions.Traffic, "traffic", true, "Fahrzeiten mit aktuellem Verkehr (nur driving)")
	computeCmd.Flags().IntVar(&computeOptions.Workers, "workers", 4, "Parallele Anfragen")
	computeCmd.Flags().IntVar(&computeOptions.MaxElement, "max-elements", matrix.DefaultMaxElements, "Elemente pro Matrix-Anfrage")
	computeCmd.Flags().IntVar(&computeOptions.PerAxis, "per-axis", matrix.DefaultPerAxisCap, "Adressen pro Anfrage-Achse")
	computeCmd.Flags().IntVar(&computeOptions.Sample, "sample", 0, "Nur die ersten N Vereine verwenden (0 = alle)")

	defaults := xlsxio.DefaultColumns()
	computeCmd.Flags().StringVar(&computeOptions.Columns.Name, "col-name", defaults.Name, "Spalte mit dem Vereinsnamen")
	computeCmd.Flags().StringVar(&computeOptions.Columns.Street, "col-street", defaults.Street, "Spalte mit der Straße")
	computeCmd.Flags().StringVar(&computeOptions.Columns.PostalCode, "col-plz", defaults.PostalCode, "Spalte mit der PLZ")
	computeCmd.Flags().StringVar(&computeOptions.Columns.City, "col-city", defaults.City, "Spalte mit dem Ort")
	computeCmd.Flags().StringVar(&computeOptions.Columns.Country, "col-country", defaults.Country, "Spalte mit dem Land")
	computeCmd.Flags().StringVar(&computeOptions.Columns.FullAddress, "col-address", defaults.FullAddress, "Spalte mit der vollständigen Adresse")
}
