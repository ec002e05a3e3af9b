// Copyright 2026 The Vereinsmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/mgraber/vereinsmatrix/geocode"
	"github.com/mgraber/vereinsmatrix/utils"
	"github.com/spf13/cobra"
)

const snapshotFile = "geocache.json"

var cacheOptions = struct {
	DbPath    string
	File      string
	Overwrite bool
}{}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the persistent geocode cache",
}

func openCacheDB() (*sql.DB, *geocode.Repository, error) {
	db, err := sql.Open("duckdb", filepath.Join(cacheOptions.DbPath, databaseFile))
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	repo := geocode.NewRepository(db)
	if err := repo.CreateSchema(); err != nil {
		db.Close()

		return nil, nil, fmt.Errorf("creating cache schema: %w", err)
	}

	return db, repo, nil
}

// loadCacheOrWarn rehydrates the cache from the repository. Unreadable
// cache state costs re-geocoding, not the run: the caller continues
// with an empty cache.
func loadCacheOrWarn(repo *geocode.Repository) *geocode.Cache {
	cache, err := repo.Load()
	if err != nil {
		log.Printf("⚠️  Geocode cache unreadable, starting empty: %v", err)

		return geocode.NewCache()
	}

	return cache
}

// parseSnapshotOrWarn treats a corrupt snapshot file like a missing
// one: warn and continue with an empty snapshot.
func parseSnapshotOrWarn(data []byte) *geocode.Snapshot {
	snapshot, err := geocode.ParseSnapshot(data)
	if err != nil {
		log.Printf("⚠️  Cache snapshot corrupt, nothing to import: %v", err)

		return &geocode.Snapshot{Version: geocode.SnapshotVersion}
	}

	return snapshot
}

var cacheStoreCmd = &cobra.Command{
	Use:   "store",
	Short: "Export the geocode cache to a file",
	Long:  `Exports all cached geocodes from the database to a local JSON file. The file is sorted to minimize diffs when checking into version control.`,
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		db, repo, err := openCacheDB()
		if err != nil {
			return err
		}
		defer db.Close()

		cache, err := repo.Load()
		if err != nil {
			return fmt.Errorf("loading geocode cache: %w", err)
		}

		data, err := geocode.MarshalSnapshot(cache.Export())
		if err != nil {
			return fmt.Errorf("marshaling cache snapshot: %w", err)
		}

		if err := os.WriteFile(cacheOptions.File, data, 0o600); err != nil {
			return fmt.Errorf("writing snapshot file: %w", err)
		}

		fmt.Printf("✅ Exported %s geocodes to %s\n",
			utils.FormatInt(int64(cache.Len())), cacheOptions.File)

		return nil
	},
}

var cacheLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Import a geocode snapshot file into the database",
	Long: `Merges the snapshot into the database cache. An existing resolved entry is
only replaced when --overwrite is set. When the database holds more geocodes
than the file, the import is skipped: that usually means unsaved local work.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		data, err := os.ReadFile(cacheOptions.File)
		if err != nil {
			return fmt.Errorf("reading snapshot file: %w", err)
		}

		snapshot := parseSnapshotOrWarn(data)

		db, repo, err := openCacheDB()
		if err != nil {
			return err
		}
		defer db.Close()

		cache, err := repo.Load()
		if err != nil {
			return fmt.Errorf("loading geocode cache: %w", err)
		}

		if cache.Len() > len(snapshot.Entries) && !cacheOptions.Overwrite {
			log.Printf("⚠️  Local cache (%d) exceeds file counts (%d). Unsaved work detected.",
				cache.Len(), len(snapshot.Entries))
			log.Println("🛑 Skipping import to prevent data loss. Run 'cache store' first, or pass --overwrite.")

			return nil
		}

		merged, err := cache.Merge(snapshot, cacheOptions.Overwrite)
		if err != nil {
			return fmt.Errorf("merging snapshot: %w", err)
		}

		if err := repo.Save(cache); err != nil {
			return fmt.Errorf("saving geocode cache: %w", err)
		}

		fmt.Printf("✅ Imported %s geocodes (%s in cache)\n",
			utils.FormatInt(int64(merged)), utils.FormatInt(int64(cache.Len())))

		return nil
	},
}

var cacheImportCSVCmd = &cobra.Command{
	Use:   "import-csv <file>",
	Short: "Import a legacy address,lat,lng cache file",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading legacy cache file: %w", err)
		}

		snapshot, err := geocode.ParseLegacyCSV(data)
		if err != nil {
			return err
		}

		db, repo, err := openCacheDB()
		if err != nil {
			return err
		}
		defer db.Close()

		cache, err := repo.Load()
		if err != nil {
			return fmt.Errorf("loading geocode cache: %w", err)
		}

		merged, err := cache.Merge(snapshot, cacheOptions.Overwrite)
		if err != nil {
			return fmt.Errorf("merging legacy cache: %w", err)
		}

		if err := repo.Save(cache); err != nil {
			return fmt.Errorf("saving geocode cache: %w", err)
		}

		fmt.Printf("✅ Imported %s geocodes from %s\n",
			utils.FormatInt(int64(merged)), args[0])

		return nil
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache counts",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		db, repo, err := openCacheDB()
		if err != nil {
			return err
		}
		defer db.Close()

		total, resolved, err := repo.Count()
		if err != nil {
			return fmt.Errorf("counting cache entries: %w", err)
		}

		fmt.Printf("%s geocodes cached, %s resolved\n",
			utils.FormatInt(int64(total)), utils.FormatInt(int64(resolved)))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStoreCmd)
	cacheCmd.AddCommand(cacheLoadCmd)
	cacheCmd.AddCommand(cacheImportCSVCmd)
	cacheCmd.AddCommand(cacheStatsCmd)

	cacheCmd.PersistentFlags().StringVar(&cacheOptions.DbPath, "db-path", "db", "Verzeichnis für den Geocode-Cache")
	cacheCmd.PersistentFlags().StringVar(&cacheOptions.File, "file", snapshotFile, "Snapshot-Datei")
	cacheCmd.PersistentFlags().BoolVar(&cacheOptions.Overwrite, "overwrite", false, "Vorhandene Geocodes überschreiben")
}
