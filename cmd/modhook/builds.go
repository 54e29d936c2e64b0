package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/steveyegge/modhook/internal/modgraph"
	"github.com/steveyegge/modhook/internal/storage"
)

var buildsCmd = &cobra.Command{
	Use:   "builds",
	Short: "List stored builds",
	Long: `List stored builds, newest version first. Versions are compared as
semantic versions; builds without a valid version sort last.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		builds, err := openStore(ctx).ListBuilds(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if len(builds) == 0 {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("\n%s No builds stored. Run 'modhook ingest <snapshot.json>' first.\n\n", yellow("✨"))
			return
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		for i, b := range builds {
			marker := " "
			if i == 0 {
				marker = green("*")
			}
			fmt.Printf("%s %-38s %-12s %8s modules  %s\n",
				marker,
				cyan(b.ID),
				displayVersion(b.Version),
				formatNumber(b.ModuleCount),
				gray(formatAge(time.Since(b.IngestedAt))),
			)
		}
	},
}

var buildsExportCmd = &cobra.Command{
	Use:   "export [build-id]",
	Short: "Write a stored build back out as a snapshot",
	Long: `Write a stored build as a snapshot document. Defaults to the latest build
and standard output.

Examples:
  modhook builds export > latest.json
  modhook builds export 2f1c... -o old.json`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		output, _ := cmd.Flags().GetString("output")
		ctx := context.Background()
		s := openStore(ctx)

		id := ""
		if len(args) > 0 {
			id = args[0]
		}
		build, err := resolveBuild(ctx, s, id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		snap, err := s.LoadSnapshot(ctx, build.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		w := os.Stdout
		if output != "" && output != "-" {
			f, err := os.Create(output)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			defer f.Close()
			w = f
		}
		if err := modgraph.WriteSnapshot(w, snap); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	buildsExportCmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")
	buildsCmd.AddCommand(buildsExportCmd)
	rootCmd.AddCommand(buildsCmd)
}

// resolveBuild returns the build with the given ID, or the latest build when
// id is empty.
func resolveBuild(ctx context.Context, s storage.Storage, id string) (*storage.Build, error) {
	if id != "" {
		return s.GetBuild(ctx, id)
	}
	build, err := s.LatestBuild(ctx)
	if errors.Is(err, storage.ErrBuildNotFound) {
		return nil, fmt.Errorf("no builds stored; run 'modhook ingest <snapshot.json>' first")
	}
	return build, err
}

// displayVersion renders an empty version as a dash.
func displayVersion(v string) string {
	if v == "" {
		return "-"
	}
	return v
}

// formatAge renders a duration as a coarse "ago" string
func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
