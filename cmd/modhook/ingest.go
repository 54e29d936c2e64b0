package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/steveyegge/modhook/internal/events"
	"github.com/steveyegge/modhook/internal/modgraph"
	"github.com/steveyegge/modhook/internal/storage"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <snapshot.json>",
	Short: "Store a module snapshot as a build",
	Long: `Read a module graph snapshot and store it as a build.

A snapshot is a JSON document of the form:
  {"build": "...", "version": "...", "modules": [{"id": ..., "source": "...", "exports": {...}}]}

Modules are stored in registration order. Ingesting a build ID that already
exists replaces it. After ingest, builds beyond the retention limit
(builds.keep, default 5) are pruned, oldest version first.

Examples:
  modhook ingest bundle.json
  modhook ingest --version 1.4.2 bundle.json`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		versionOverride, _ := cmd.Flags().GetString("version")
		buildOverride, _ := cmd.Flags().GetString("build")
		ctx := context.Background()

		snap, err := readSnapshotFile(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if versionOverride != "" {
			snap.Version = versionOverride
		}
		if buildOverride != "" {
			snap.Build = buildOverride
		}

		lockPath, err := storage.AcquireExclusiveLock(cfg.DatabasePath, "ingest", version)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer func() {
			if err := storage.ReleaseExclusiveLock(lockPath); err != nil {
				slog.Warn("failed to release lock", "path", lockPath, "error", err)
			}
		}()

		s := openStore(ctx)
		build, err := s.SaveBuild(ctx, snap, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to store build: %v\n", err)
			os.Exit(1)
		}

		event, err := events.NewBuildIngestedEvent(build.ID, events.BuildIngestedData{
			Version:     build.Version,
			ModuleCount: build.ModuleCount,
			Source:      args[0],
		})
		if err == nil {
			err = s.StoreEvent(ctx, event)
		}
		if err != nil {
			slog.Warn("failed to record ingest event", "build", build.ID, "error", err)
		}

		pruned, err := s.PruneBuilds(ctx, cfg.Builds.KeepBuilds)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to prune old builds: %v\n", err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("%s Ingested build %s\n", green("✓"), cyan(build.ID))
		if build.Version != "" {
			fmt.Printf("  Version: %s\n", build.Version)
		}
		fmt.Printf("  Modules: %s\n", formatNumber(build.ModuleCount))
		if len(pruned) > 0 {
			fmt.Printf("  %s\n", gray(fmt.Sprintf("Pruned %d old build(s): %v", len(pruned), pruned)))
		}
	},
}

func init() {
	ingestCmd.Flags().String("version", "", "Override the snapshot's version")
	ingestCmd.Flags().String("build", "", "Override the snapshot's build ID")
	rootCmd.AddCommand(ingestCmd)
}

// readSnapshotFile reads a snapshot from path, or from stdin when path is "-".
func readSnapshotFile(path string) (*modgraph.Snapshot, error) {
	if path == "-" {
		return modgraph.ReadSnapshot(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	snap, err := modgraph.ReadSnapshot(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}
	return snap, nil
}
