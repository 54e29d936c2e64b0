package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/steveyegge/modhook/internal/storage"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize modhook in the current directory",
	Long: `Initialize modhook by creating a .modhook/ directory.

This creates:
  - .modhook/config.yaml (default configuration)
  - .modhook/modhook.db (SQLite database for builds and events)
  - plugins/ (directory scanned for plugin patch files)

Example:
  cd ~/client-mods
  modhook init`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cwd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to get current directory: %v\n", err)
			os.Exit(1)
		}

		path, err := storage.InitProject(cwd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		// Create the schema now so later commands open an existing database
		openStore(context.Background())

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s Initialized modhook\n\n", green("✓"))
		fmt.Printf("  Config: %s\n", cyan(path))
		fmt.Printf("  Database: %s\n", cyan(cfg.DatabasePath))
		fmt.Printf("  Plugins: %s\n", cyan(cfg.PatchesDir))
		fmt.Println()
		fmt.Printf("%s\n", gray("Next: modhook ingest <snapshot.json>"))
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
