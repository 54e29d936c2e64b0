package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/steveyegge/modhook/internal/modgraph"
	"github.com/steveyegge/modhook/internal/repl"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start interactive REPL shell",
	Long: `Start an interactive shell over a stored build.

The build's modules are replayed into a live module graph. From the shell you
can:
- Hash localization keys and expand pattern templates
- Search modules by code, props, component code or pattern
- Declare lazy finds and register new modules to watch them resolve

With --empty the shell starts on an empty graph; use 'register' to add modules.

Type 'help' in the REPL for available commands.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		buildID, _ := cmd.Flags().GetString("build")
		empty, _ := cmd.Flags().GetBool("empty")
		ctx := context.Background()

		graph := modgraph.New()
		defer graph.Close()

		label := ""
		if !empty {
			s := openStore(ctx)
			build, err := resolveBuild(ctx, s, buildID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			snap, err := s.LoadSnapshot(ctx, build.ID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if err := modgraph.Replay(graph, snap); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			label = build.Version
			if label == "" {
				label = build.ID
			}
		}

		r, err := repl.New(&repl.Config{
			Graph:         graph,
			Build:         label,
			Canonicalizer: cfg.Canonicalizer(),
			HistoryFile:   filepath.Join(filepath.Dir(cfg.DatabasePath), "repl_history"),
			Logger:        slog.Default(),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create REPL: %v\n", err)
			os.Exit(1)
		}
		defer r.Close()

		if err := r.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	replCmd.Flags().StringP("build", "b", "", "Build ID to load (default: latest)")
	replCmd.Flags().Bool("empty", false, "Start with an empty module graph")
	rootCmd.AddCommand(replCmd)
}
