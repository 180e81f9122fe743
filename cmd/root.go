package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"ratfun/tripgraph/internal/cache"
	"ratfun/tripgraph/internal/config"
	"ratfun/tripgraph/internal/db"
	"ratfun/tripgraph/internal/graph"
)

const dbFileName = ".tripgraph.db"

var (
	dbPath     string
	configPath string
	worldID    string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "tripgraph",
	Short:         "Trip graph analysis and next-trip advice",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logger = cfg.NewLogger()
		slog.SetDefault(logger)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to .tripgraph.db database")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVarP(&worldID, "world", "w", "default", "World identifier")
}

// DiscoverDB finds the database path using priority: env > flag > config > walk-up > XDG fallback
func DiscoverDB() (string, error) {
	// 1. Environment variable
	if envPath := os.Getenv("TRIPGRAPH_DB"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	// 2. CLI flag
	if dbPath != "" {
		if _, err := os.Stat(dbPath); err == nil {
			return dbPath, nil
		}
		return "", fmt.Errorf("database not found at --db path: %s", dbPath)
	}

	// 3. Config file
	if cfg != nil && cfg.Database.Path != "" {
		if _, err := os.Stat(cfg.Database.Path); err == nil {
			return cfg.Database.Path, nil
		}
		return "", fmt.Errorf("database not found at database.path: %s", cfg.Database.Path)
	}

	// 4. Walk up from CWD
	dir, err := os.Getwd()
	if err == nil {
		for {
			candidate := filepath.Join(dir, dbFileName)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	// 5. XDG fallback
	if p := xdgPath(); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no %s found (set TRIPGRAPH_DB, use --db, or run from a directory containing %s)", dbFileName, dbFileName)
}

func xdgPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "tripgraph", "tripgraph.db")
}

// OpenDatabase discovers and opens the database
func OpenDatabase() (*db.DB, error) {
	path, err := DiscoverDB()
	if err != nil {
		return nil, err
	}
	return db.OpenDB(path)
}

// OpenOrCreateDatabase opens the discovered database, or creates one at the
// flag path (or in the working directory) when none exists yet.
func OpenOrCreateDatabase() (*db.DB, error) {
	if path, err := DiscoverDB(); err == nil {
		return db.OpenDB(path)
	}
	path := dbPath
	if path == "" && cfg != nil {
		path = cfg.Database.Path
	}
	if path == "" {
		path = dbFileName
	}
	logger.Info("creating database", "path", path)
	return db.OpenDB(path)
}

// newCache builds a graph cache over the store using the loaded config.
func newCache(d *db.DB) *cache.Cache {
	src := &graph.DBSource{DB: d, Logger: logger}
	return cache.New(src,
		cache.WithBuildOptions(cfg.BuildOptions(logger)),
		cache.WithStalenessPolicy(cfg.StalenessPolicy()),
		cache.WithLogger(logger),
	)
}

// ResolveTrip finds a trip of the world by full ID, ID prefix, or prompt search.
func ResolveTrip(ctx context.Context, d *db.DB, world, reference string) (*db.TripRow, error) {
	// 1. Exact ID match
	trip, err := d.GetTrip(ctx, reference)
	if err == nil && trip != nil && trip.WorldID == world {
		return trip, nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("looking up trip: %w", err)
	}

	// 2. ID prefix match (≥6 hex/dash chars)
	if len(reference) >= 6 && isHexDash(reference) {
		matches, err := d.SearchByIDPrefix(ctx, world, reference, 10)
		if err == nil {
			switch len(matches) {
			case 1:
				return &matches[0], nil
			case 0:
				// fall through to prompt search
			default:
				return nil, ambiguous(reference, matches, "Use a full trip ID instead.")
			}
		}
	}

	// 3. Prompt search
	found, err := d.SearchTrips(ctx, world, reference, 10)
	if err == nil {
		switch len(found) {
		case 1:
			return &found[0], nil
		case 0:
			// fall through to not found
		default:
			return nil, ambiguous(reference, found, "Use a trip ID instead.")
		}
	}

	return nil, fmt.Errorf("trip not found: %s", reference)
}

func ambiguous(reference string, matches []db.TripRow, hint string) error {
	lines := make([]string, len(matches))
	for i, m := range matches {
		lines[i] = fmt.Sprintf("  %s %s", truncID(m.ID), truncTitle(m.Prompt, 60))
	}
	return fmt.Errorf("ambiguous reference '%s'. %d matches:\n%s\n%s",
		reference, len(matches), strings.Join(lines, "\n"), hint)
}

// resolvePath resolves every reference of a comma-separated trip path.
func resolvePath(ctx context.Context, d *db.DB, world string, refs []string) ([]string, error) {
	path := make([]string, 0, len(refs))
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		t, err := ResolveTrip(ctx, d, world, ref)
		if err != nil {
			return nil, err
		}
		path = append(path, t.ID)
	}
	return path, nil
}

func isHexDash(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') || c == '-') {
			return false
		}
	}
	return true
}
