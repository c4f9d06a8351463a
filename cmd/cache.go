package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/derickschaefer/aasun/internal/app"
	"github.com/derickschaefer/aasun/internal/render"
	"github.com/derickschaefer/aasun/internal/store"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the local database file",
	Long: `Bucket-level maintenance of the bbolt database written by --store.

Stored days, energy sets and series names never expire. Use 'cache clear'
to drop them and 'cache compact' to give the space back to the disk.`,
}

// openStore builds deps and opens the database. The caller closes deps.
func openStore() (*app.Deps, error) {
	deps, err := buildDeps()
	if err != nil {
		return nil, err
	}
	if err := deps.RequireStore(); err != nil {
		return nil, err
	}
	return deps, nil
}

// ─── cache stats ──────────────────────────────────────────────────────────────

type cacheStats struct {
	Path    string              `json:"path"`
	Schema  string              `json:"schema"`
	Buckets []store.BucketStats `json:"buckets"`
	Rows    int                 `json:"rows"`
	Bytes   int64               `json:"bytes"`
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show row counts and sizes per bucket",
	Example: `  aasun cache stats
  aasun cache stats --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := openStore()
		if err != nil {
			return err
		}
		defer deps.Close()

		buckets, err := deps.Store.Stats()
		if err != nil {
			return fmt.Errorf("reading store stats: %w", err)
		}
		schema, err := deps.Store.SchemaVersion()
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
		cs := cacheStats{Path: deps.Store.Path(), Schema: schema, Buckets: buckets}
		for _, b := range buckets {
			cs.Rows += b.Count
			cs.Bytes += b.Bytes
		}

		out := cmd.OutOrStdout()
		switch resolveFormat(deps.Config.Format) {
		case render.FormatJSON, render.FormatJSONL:
			return json.NewEncoder(out).Encode(cs)
		case render.FormatYAML:
			b, err := yaml.Marshal(cs)
			if err != nil {
				return err
			}
			_, err = out.Write(b)
			return err
		}

		fmt.Fprintf(out, "Database: %s (schema %s)\n\n", cs.Path, cs.Schema)
		printSimpleTable(out, []string{"BUCKET", "ROWS", "SIZE"}, func(add func(...string)) {
			for _, b := range cs.Buckets {
				add(b.Name, strconv.Itoa(b.Count), humanBytes(b.Bytes))
			}
			add("total", strconv.Itoa(cs.Rows), humanBytes(cs.Bytes))
		})
		return nil
	},
}

// ─── cache clear ──────────────────────────────────────────────────────────────

var (
	cacheClearAll    bool
	cacheClearBucket string
)

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty one bucket, or all of them",
	Long: `Empty one bucket (--bucket) or every bucket (--all). The schema
metadata is kept.

The file does not shrink until 'aasun cache compact' runs.`,
	Example: `  aasun cache clear --bucket energy
  aasun cache clear --all && aasun cache compact`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cacheClearAll == (cacheClearBucket != "") {
			return fmt.Errorf("specify exactly one of --all or --bucket <name>\n\nBuckets: %s",
				strings.Join(store.AllBuckets, ", "))
		}

		deps, err := openStore()
		if err != nil {
			return err
		}
		defer deps.Close()

		what := fmt.Sprintf("bucket %q", cacheClearBucket)
		if cacheClearAll {
			what = "all buckets"
			err = deps.Store.ClearAll()
		} else {
			err = deps.Store.ClearBucket(cacheClearBucket)
		}
		if err != nil {
			return fmt.Errorf("clearing %s: %w", what, err)
		}
		if !deps.Config.Quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Cleared %s\n", what)
		}
		return nil
	},
}

// ─── cache compact ────────────────────────────────────────────────────────────

var cacheCompactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Rewrite the database file to reclaim freed space",
	Long: `bbolt keeps freed pages on an internal freelist, so the file never
shrinks on its own. Compact copies the live data into a fresh file and
swaps it in place of the old one.`,
	Example: `  aasun cache compact`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := openStore()
		if err != nil {
			return err
		}
		defer deps.Close()

		out := cmd.OutOrStdout()
		before, after, err := deps.Store.Compact()
		if err != nil {
			return fmt.Errorf("compacting %s: %w", deps.Store.Path(), err)
		}
		if deps.Config.Quiet {
			return nil
		}
		printKVTable(out, [][]string{
			{"database", deps.Store.Path()},
			{"before", humanBytes(before)},
			{"after", humanBytes(after)},
			{"saved", humanBytes(max(0, before-after))},
		})
		return nil
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheCompactCmd)

	cacheClearCmd.Flags().BoolVar(&cacheClearAll, "all", false, "empty every bucket")
	cacheClearCmd.Flags().StringVar(&cacheClearBucket, "bucket", "",
		"bucket to empty: "+strings.Join(store.AllBuckets, "|"))
}
