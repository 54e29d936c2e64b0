package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/steveyegge/modhook/internal/config"
	"github.com/steveyegge/modhook/internal/storage"
)

// version is stamped into lock files and ingest events.
var version = "dev"

var (
	cfgPath string
	cfg     config.Config
	store   storage.Storage
)

var rootCmd = &cobra.Command{
	Use:   "modhook",
	Short: "Check module patches and lazy finds against host bundle snapshots",
	Long: `modhook stores snapshots of a host application's module graph and checks
plugin patch files against them.

Typical workflow:
  modhook init                      # create .modhook/config.yaml and plugins/
  modhook ingest bundle.json        # store a module snapshot
  modhook check                     # verify every plugin against the latest build
  modhook events -f                 # watch check results as they are recorded`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		path := cfgPath
		if path == "" {
			var err error
			path, err = storage.DiscoverConfig()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}

		loaded, err := config.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded

		logger, err := newLogger(os.Stderr, cfg.Log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		slog.SetDefault(logger)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			if err := store.Close(); err != nil {
				slog.Warn("failed to close database", "error", err)
			}
			store = nil
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file (default: .modhook/config.yaml, or $MODHOOK_CONFIG)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openStore opens the configured database, exiting on failure. The store is
// closed by the root command's post-run hook.
func openStore(ctx context.Context) storage.Storage {
	if store != nil {
		return store
	}
	s, err := storage.NewStorage(ctx, &storage.Config{Path: cfg.DatabasePath})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open database %s: %v\n", cfg.DatabasePath, err)
		os.Exit(1)
	}
	store = s
	return store
}

// newLogger builds a slog.Logger backed by a charmbracelet/log handler.
func newLogger(w io.Writer, lc config.LogConfig) (*slog.Logger, error) {
	level, err := log.ParseLevel(lc.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", lc.Level, err)
	}

	var formatter log.Formatter
	switch lc.Format {
	case "", "text":
		formatter = log.TextFormatter
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	default:
		return nil, fmt.Errorf("invalid log format %q", lc.Format)
	}

	handler := log.NewWithOptions(w, log.Options{
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: formatter == log.TextFormatter,
		Prefix:          "modhook",
	})
	return slog.New(handler), nil
}
