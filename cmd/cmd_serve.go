// Copyright 2026 The Vereinsmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/mgraber/vereinsmatrix/geocode"
	"github.com/mgraber/vereinsmatrix/matrix"
	"github.com/mgraber/vereinsmatrix/web"
	"github.com/spf13/cobra"
)

var serveOptions = struct {
	DbPath  string
	APIKey  string
	Workers int
}{}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local matrix API server (local only)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_ = godotenv.Load()

		apiKey, err := resolveAPIKey(cmd.Context(), serveOptions.APIKey)
		if err != nil {
			return err
		}

		cacheOptions.DbPath = serveOptions.DbPath

		db, repo, err := openCacheDB()
		if err != nil {
			return err
		}
		defer db.Close()

		cache := loadCacheOrWarn(repo)

		userAgent := fmt.Sprintf("vereinsmatrix/%s (+https://github.com/mgraber/vereinsmatrix)", Version)
		resolver := geocode.NewResolver(cache, geocode.NewGoogleGeocoder(apiKey, userAgent), serveOptions.Workers)

		opts := matrix.DefaultOptions()
		opts.APIKey = apiKey
		opts.Workers = serveOptions.Workers

		server := web.NewServer(cache, repo, resolver, matrix.NewGoogleClient(apiKey, opts.RequestTimeout), opts)

		fmt.Println("🗺️  Matrix API server starting...")
		fmt.Println("📍 Listening on http://localhost:8080")
		fmt.Println("🔒 Local only - not exposed to internet")

		// geocodes accumulated while serving survive restarts
		defer func() {
			if err := repo.Save(cache); err != nil {
				fmt.Printf("saving geocode cache: %v\n", err)
			}
		}()

		return server.Run()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveOptions.DbPath, "db-path", "db", "Verzeichnis für den Geocode-Cache")
	serveCmd.Flags().StringVar(&serveOptions.APIKey, "api-key", "", "Google Maps API Key (Standard: GOOGLE_MAPS_API_KEY)")
	serveCmd.Flags().IntVar(&serveOptions.Workers, "workers", 4, "Parallele Anfragen")
}
