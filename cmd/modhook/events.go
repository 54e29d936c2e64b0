package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/steveyegge/modhook/internal/events"
	"github.com/steveyegge/modhook/internal/storage"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recorded registry and check events",
	Long: `Display recent events and optionally follow live updates.

Events include:
- Build ingests
- Patch check results
- Lazy finds left unresolved
- Predicate failures
- Report summaries

Interest creation and release events are hidden unless --all is set.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		follow, _ := cmd.Flags().GetBool("follow")
		limit, _ := cmd.Flags().GetInt("limit")
		all, _ := cmd.Flags().GetBool("all")

		filter, err := eventFilterFromFlags(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		filter.Limit = limit

		ctx := context.Background()
		s := openStore(ctx)

		if follow {
			runEventsFollow(ctx, s, filter, all)
		} else {
			runEventsOnce(ctx, s, filter, all)
		}
	},
}

func init() {
	eventsCmd.Flags().BoolP("follow", "f", false, "Follow mode - watch for live updates (Ctrl+C to stop)")
	eventsCmd.Flags().StringP("build", "b", "", "Filter events by build ID")
	eventsCmd.Flags().StringP("plugin", "p", "", "Filter events by plugin name")
	eventsCmd.Flags().StringP("type", "t", "", "Filter events by type (e.g. patch_failed)")
	eventsCmd.Flags().StringP("severity", "s", "", "Filter events by severity (info, warning, error, critical)")
	eventsCmd.Flags().IntP("limit", "n", 20, "Number of recent events to show initially")
	eventsCmd.Flags().Bool("all", false, "Include interest lifecycle events")
	rootCmd.AddCommand(eventsCmd)
}

// eventFilterFromFlags builds an EventFilter from the command's filter flags.
func eventFilterFromFlags(cmd *cobra.Command) (events.EventFilter, error) {
	buildID, _ := cmd.Flags().GetString("build")
	plugin, _ := cmd.Flags().GetString("plugin")
	eventType, _ := cmd.Flags().GetString("type")
	severity, _ := cmd.Flags().GetString("severity")

	if severity != "" && !events.IsValidSeverity(severity) {
		return events.EventFilter{}, fmt.Errorf("invalid severity %q", severity)
	}
	return events.EventFilter{
		BuildID:  buildID,
		Plugin:   plugin,
		Type:     events.EventType(eventType),
		Severity: events.EventSeverity(severity),
	}, nil
}

// runEventsOnce shows recent events and exits
func runEventsOnce(ctx context.Context, s storage.Storage, filter events.EventFilter, all bool) {
	evts, err := s.GetEvents(ctx, filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching events: %v\n", err)
		os.Exit(1)
	}

	if len(evts) == 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		if filter.BuildID != "" {
			fmt.Printf("\n%s No events found for build %s\n\n", yellow("✨"), filter.BuildID)
		} else {
			fmt.Printf("\n%s No events found\n\n", yellow("✨"))
		}
		return
	}

	// Newest last
	for i := len(evts) - 1; i >= 0; i-- {
		if !all && shouldSkipEvent(evts[i]) {
			continue
		}
		displayEvent(os.Stdout, evts[i])
	}
}

// runEventsFollow shows recent events and continues polling for new ones
func runEventsFollow(ctx context.Context, s storage.Storage, filter events.EventFilter, all bool) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cyan := color.New(color.FgCyan).SprintFunc()
	fmt.Printf("\n%s Following live updates (Ctrl+C to stop)...\n\n", cyan("👁️"))

	evts, err := s.GetEvents(ctx, filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching events: %v\n", err)
		os.Exit(1)
	}
	for i := len(evts) - 1; i >= 0; i-- {
		if !all && shouldSkipEvent(evts[i]) {
			continue
		}
		displayEvent(os.Stdout, evts[i])
	}

	var lastTimestamp time.Time
	if len(evts) > 0 {
		lastTimestamp = evts[0].Timestamp
	}

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-sigChan:
			fmt.Println("\n\nStopped following")
			return
		case <-ticker.C:
			next := filter
			next.AfterTime = lastTimestamp
			next.Limit = 100
			newEvents, err := s.GetEvents(ctx, next)
			if err != nil {
				fmt.Fprintf(os.Stderr, "\nError fetching new events: %v\n", err)
				continue
			}

			for i := len(newEvents) - 1; i >= 0; i-- {
				if newEvents[i].Timestamp.After(lastTimestamp) {
					lastTimestamp = newEvents[i].Timestamp
				}
				if !all && shouldSkipEvent(newEvents[i]) {
					continue
				}
				displayEvent(os.Stdout, newEvents[i])
			}
		}
	}
}
