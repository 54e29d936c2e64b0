package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/steveyegge/modhook/internal/events"
	"github.com/steveyegge/modhook/internal/patches"
	"github.com/steveyegge/modhook/internal/reporter"
	"github.com/steveyegge/modhook/internal/storage"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check plugin patches and finds against a stored build",
	Long: `Replay a stored build through a fresh module graph and check every plugin
in the patches directory against it.

Reports:
  - lazy finds that never resolved
  - patches whose find matched no module, or several without 'all'
  - replacements whose match had no effect

Results are recorded as events (see 'modhook events'). Exits non-zero when
any patch or find needs attention.

Examples:
  modhook check                     # latest build, configured plugins dir
  modhook check --build 2f1c...     # a specific build
  modhook check --dir ./wip --json  # other plugins, machine-readable output`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		buildID, _ := cmd.Flags().GetString("build")
		dir, _ := cmd.Flags().GetString("dir")
		asJSON, _ := cmd.Flags().GetBool("json")
		verbose, _ := cmd.Flags().GetBool("verbose")
		if dir == "" {
			dir = cfg.PatchesDir
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		s := openStore(ctx)

		build, err := resolveBuild(ctx, s, buildID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		plugins, err := patches.LoadPluginsFromDir(dir, cfg.LoadOptions())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to load plugins: %v\n", err)
			os.Exit(1)
		}
		if len(plugins) == 0 {
			fmt.Fprintf(os.Stderr, "Error: no plugin files found in %s\n", dir)
			os.Exit(1)
		}

		snap, err := s.LoadSnapshot(ctx, build.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		runner, err := reporter.NewRunner(&reporter.Config{
			Canonicalizer: cfg.Canonicalizer(),
			Concurrency:   cfg.Concurrency,
			Sink:          &events.StoreSink{Store: s, BuildID: build.ID, Logger: slog.Default()},
			Logger:        slog.Default(),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		report, err := runner.Run(ctx, snap, plugins)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: check failed: %v\n", err)
			os.Exit(1)
		}

		if cleanup, err := storage.RunEventCleanup(ctx, s, cfg.Events); err != nil {
			slog.Warn("event cleanup failed", "error", err)
		} else if cleanup.DeletedOrphaned+cleanup.DeletedByAge+cleanup.DeletedByLimit > 0 {
			slog.Debug("event cleanup", "orphaned", cleanup.DeletedOrphaned, "by_age", cleanup.DeletedByAge, "by_limit", cleanup.DeletedByLimit, "remaining", cleanup.RemainingEvents)
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		} else {
			printReport(os.Stdout, report, verbose)
		}

		if !report.Passed() {
			os.Exit(1)
		}
	},
}

func init() {
	checkCmd.Flags().StringP("build", "b", "", "Build ID to check (default: latest)")
	checkCmd.Flags().StringP("dir", "d", "", "Plugin directory (default: configured patches dir)")
	checkCmd.Flags().Bool("json", false, "Print the report as JSON")
	checkCmd.Flags().BoolP("verbose", "v", false, "Also list patches and finds that passed")
	rootCmd.AddCommand(checkCmd)
}

// printReport renders a report for humans. Passing results are listed only
// when verbose is set.
func printReport(w io.Writer, report *reporter.Report, verbose bool) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(w, "\nBuild %s", cyan(report.BuildID))
	if report.Version != "" {
		fmt.Fprintf(w, " (%s)", report.Version)
	}
	fmt.Fprintf(w, ": %s modules\n\n", formatNumber(report.Modules))

	for _, p := range report.Patches {
		if p.Status.Passed() && !verbose {
			continue
		}
		icon := statusIcon(p.Status)
		label := string(p.Status)
		switch {
		case p.Status.Passed():
			label = green(label)
		case p.Status == reporter.StatusNoEffect:
			label = yellow(label)
		default:
			label = red(label)
		}
		fmt.Fprintf(w, "%s %s #%d %s  %s\n", icon, p.Plugin, p.Index, label, gray(truncateString(p.Find, 60)))
		if len(p.Modules) > 0 && !p.Status.Passed() {
			fmt.Fprintf(w, "    %s %v\n", gray("modules:"), p.Modules)
		}
		for _, rr := range p.Replacements {
			if rr.Outcome == patches.Applied.String() && !verbose {
				continue
			}
			line := fmt.Sprintf("    [%d] %s in %s: %s", rr.Index, rr.Outcome, rr.Module, truncateString(rr.Match, 50))
			if rr.Error != "" {
				line += " (" + rr.Error + ")"
			}
			fmt.Fprintln(w, line)
		}
		if p.Error != "" {
			fmt.Fprintf(w, "    %s\n", red(p.Error))
		}
	}

	for _, f := range report.Finds {
		if f.Resolved && !verbose {
			continue
		}
		name := f.Name
		if name == "" {
			name = f.Filter
		}
		if f.Resolved {
			fmt.Fprintf(w, "%s %s find %s -> module %s\n", green("✓"), f.Plugin, name, f.Module)
			continue
		}
		msg := "never resolved"
		if f.Error != "" {
			msg = f.Error
		}
		fmt.Fprintf(w, "%s %s find %s %s  %s\n", red("✗"), f.Plugin, name, red(msg), gray(f.Filter))
	}

	failed := len(report.FailedPatches())
	unresolved := len(report.UnresolvedFinds())
	fmt.Fprintln(w)
	if failed == 0 && unresolved == 0 {
		fmt.Fprintf(w, "%s %d patches, %d finds OK (%s)\n", green("✓"), len(report.Patches), len(report.Finds), report.Duration.Round(time.Millisecond))
		return
	}
	fmt.Fprintf(w, "%s %d of %d patches failed, %d of %d finds unresolved (%s)\n",
		red("✗"), failed, len(report.Patches), unresolved, len(report.Finds), report.Duration.Round(time.Millisecond))
}

// statusIcon maps a patch status to a one-character marker.
func statusIcon(s reporter.Status) string {
	switch s {
	case reporter.StatusOK:
		return color.GreenString("✓")
	case reporter.StatusDisabled:
		return color.HiBlackString("-")
	case reporter.StatusNoEffect:
		return color.YellowString("⚠")
	default:
		return color.RedString("✗")
	}
}
