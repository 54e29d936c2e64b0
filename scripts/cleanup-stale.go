// scripts/cleanup-stale.go - Manual stale ingest lock cleanup tool
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/steveyegge/modhook/internal/storage"
)

func main() {
	// Use default config to find database
	cfg := storage.DefaultConfig()

	// Allow override via environment variable
	if dbPath := os.Getenv("MODHOOK_DB"); dbPath != "" {
		cfg.Path = dbPath
	}

	fmt.Printf("Checking lock for database: %s\n", cfg.Path)

	holder, removed, err := storage.ClearStaleLock(cfg.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error during cleanup: %v\n", err)
		os.Exit(1)
	}

	switch {
	case holder == nil:
		fmt.Println("✓ No lock found")
	case removed:
		fmt.Printf("✓ Removed stale lock held by PID %d on %s\n", holder.PID, holder.Hostname)
	default:
		fmt.Printf("Lock is held by a running process (PID %d on %s, started %s)\n",
			holder.PID, holder.Hostname, holder.StartedAt.Format(time.RFC3339))
		os.Exit(1)
	}
}
