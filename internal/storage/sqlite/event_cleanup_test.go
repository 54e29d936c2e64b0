package sqlite

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/steveyegge/modhook/internal/events"
	"github.com/steveyegge/modhook/internal/modgraph"
)

func insertEvent(t *testing.T, store *SQLiteStorage, id string, sev events.EventSeverity, age time.Duration) {
	t.Helper()
	insertBuildEvent(t, store, "b", id, sev, age)
}

func insertBuildEvent(t *testing.T, store *SQLiteStorage, build, id string, sev events.EventSeverity, age time.Duration) {
	t.Helper()
	event := events.NewSimpleEvent(events.EventTypePatchChecked, sev, id)
	event.ID = id
	event.BuildID = build
	event.Timestamp = time.Now().Add(-age)
	if err := store.StoreEvent(context.Background(), event); err != nil {
		t.Fatalf("StoreEvent(%s) failed: %v", id, err)
	}
}

func TestCleanupEventsByAge(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	day := 24 * time.Hour

	insertEvent(t, store, "fresh-info", events.SeverityInfo, day)
	insertEvent(t, store, "old-info", events.SeverityInfo, 40*day)
	insertEvent(t, store, "old-error", events.SeverityError, 40*day)
	insertEvent(t, store, "ancient-error", events.SeverityError, 100*day)

	deleted, err := store.CleanupEventsByAge(ctx, 30, 90, 100)
	if err != nil {
		t.Fatalf("CleanupEventsByAge failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	left, err := store.GetEvents(ctx, events.EventFilter{})
	if err != nil {
		t.Fatalf("GetEvents failed: %v", err)
	}
	ids := map[string]bool{}
	for _, e := range left {
		ids[e.ID] = true
	}
	if !ids["fresh-info"] || !ids["old-error"] || len(ids) != 2 {
		t.Errorf("unexpected survivors: %v", ids)
	}
}

func TestCleanupEventsByAgeEqualRetention(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	insertEvent(t, store, "old-error", events.SeverityCritical, 40*24*time.Hour)

	deleted, err := store.CleanupEventsByAge(ctx, 30, 30, 100)
	if err != nil {
		t.Fatalf("CleanupEventsByAge failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
}

func TestCleanupEventsByAgeValidation(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.CleanupEventsByAge(context.Background(), -1, 30, 10); err == nil {
		t.Error("expected error for negative retention")
	}
	if _, err := store.CleanupEventsByAge(context.Background(), 1, 30, 0); err == nil {
		t.Error("expected error for zero batch size")
	}
}

func TestCleanupEventsByGlobalLimit(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for i := 0; i < 10; i++ {
		insertEvent(t, store, fmt.Sprintf("info-%d", i), events.SeverityInfo, time.Duration(10-i)*time.Minute)
	}
	insertEvent(t, store, "critical", events.SeverityCritical, time.Hour)

	deleted, err := store.CleanupEventsByGlobalLimit(ctx, 5, 2)
	if err != nil {
		t.Fatalf("CleanupEventsByGlobalLimit failed: %v", err)
	}
	if deleted != 6 {
		t.Errorf("deleted = %d, want 6", deleted)
	}

	counts, err := store.GetEventCounts(ctx)
	if err != nil {
		t.Fatalf("GetEventCounts failed: %v", err)
	}
	if counts.TotalEvents != 5 {
		t.Errorf("TotalEvents = %d, want 5", counts.TotalEvents)
	}
	if counts.EventsBySeverity["critical"] != 1 {
		t.Errorf("critical event should survive, counts = %v", counts.EventsBySeverity)
	}
	if counts.EventsByBuild["b"] != 5 {
		t.Errorf("EventsByBuild = %v", counts.EventsByBuild)
	}
	if counts.EventsByType[string(events.EventTypePatchChecked)] != 5 {
		t.Errorf("EventsByType = %v", counts.EventsByType)
	}
}

func remainingEventIDs(t *testing.T, store *SQLiteStorage) map[string]bool {
	t.Helper()
	left, err := store.GetEvents(context.Background(), events.EventFilter{})
	if err != nil {
		t.Fatalf("GetEvents failed: %v", err)
	}
	ids := map[string]bool{}
	for _, e := range left {
		ids[e.ID] = true
	}
	return ids
}

func TestCleanupOrphanedEvents(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, snap := range []*modgraph.Snapshot{testSnapshot("v1", "1.0.0"), testSnapshot("v2", "2.0.0")} {
		if _, err := store.SaveBuild(ctx, snap, "test"); err != nil {
			t.Fatalf("SaveBuild(%s) failed: %v", snap.Build, err)
		}
	}
	insertBuildEvent(t, store, "v1", "v1-check", events.SeverityInfo, time.Minute)
	insertBuildEvent(t, store, "v1", "v1-error", events.SeverityCritical, time.Minute)
	insertBuildEvent(t, store, "v2", "v2-check", events.SeverityInfo, time.Minute)
	insertBuildEvent(t, store, "", "unscoped", events.SeverityInfo, time.Minute)

	deleted, err := store.CleanupOrphanedEvents(ctx, 1)
	if err != nil {
		t.Fatalf("CleanupOrphanedEvents failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted = %d before pruning, want 0", deleted)
	}

	pruned, err := store.PruneBuilds(ctx, 1)
	if err != nil {
		t.Fatalf("PruneBuilds failed: %v", err)
	}
	if len(pruned) != 1 || pruned[0] != "v1" {
		t.Fatalf("pruned = %v, want [v1]", pruned)
	}

	deleted, err = store.CleanupOrphanedEvents(ctx, 1)
	if err != nil {
		t.Fatalf("CleanupOrphanedEvents failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2 (both events of the pruned build)", deleted)
	}

	ids := remainingEventIDs(t, store)
	if !ids["v2-check"] || !ids["unscoped"] || len(ids) != 2 {
		t.Errorf("unexpected survivors: %v", ids)
	}

	if _, err := store.CleanupOrphanedEvents(ctx, 0); err == nil {
		t.Error("expected error for zero batch size")
	}
}

func TestCleanupEventsByAgeKeepsLatestBuild(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	day := 24 * time.Hour

	for _, snap := range []*modgraph.Snapshot{testSnapshot("old", "1.9.0"), testSnapshot("new", "1.10.0")} {
		if _, err := store.SaveBuild(ctx, snap, "test"); err != nil {
			t.Fatalf("SaveBuild(%s) failed: %v", snap.Build, err)
		}
	}
	insertBuildEvent(t, store, "old", "old-info", events.SeverityInfo, 40*day)
	insertBuildEvent(t, store, "old", "old-error", events.SeverityError, 100*day)
	insertBuildEvent(t, store, "new", "new-info", events.SeverityInfo, 40*day)
	insertBuildEvent(t, store, "new", "new-error", events.SeverityError, 100*day)

	deleted, err := store.CleanupEventsByAge(ctx, 30, 90, 100)
	if err != nil {
		t.Fatalf("CleanupEventsByAge failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	ids := remainingEventIDs(t, store)
	if !ids["new-info"] || !ids["new-error"] || len(ids) != 2 {
		t.Errorf("events of the newest build (by version) must survive, got %v", ids)
	}
}

func TestCleanupEventsByGlobalLimitKeepsLatestBuild(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.SaveBuild(ctx, testSnapshot("new", "2.0.0"), "test"); err != nil {
		t.Fatalf("SaveBuild failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		insertBuildEvent(t, store, "new", fmt.Sprintf("new-%d", i), events.SeverityInfo, time.Duration(20-i)*time.Minute)
	}
	for i := 0; i < 3; i++ {
		insertBuildEvent(t, store, "", fmt.Sprintf("unscoped-%d", i), events.SeverityInfo, time.Duration(5-i)*time.Minute)
	}

	deleted, err := store.CleanupEventsByGlobalLimit(ctx, 4, 2)
	if err != nil {
		t.Fatalf("CleanupEventsByGlobalLimit failed: %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3 (only events outside the newest build)", deleted)
	}

	ids := remainingEventIDs(t, store)
	if len(ids) != 5 {
		t.Errorf("remaining = %v, want the 5 events of build new", ids)
	}
	for id := range ids {
		if !strings.HasPrefix(id, "new-") {
			t.Errorf("unexpected survivor %s", id)
		}
	}
}

func TestVacuumDatabase(t *testing.T) {
	store := newTestStore(t)
	if err := store.VacuumDatabase(context.Background()); err != nil {
		t.Errorf("VacuumDatabase failed: %v", err)
	}
}
