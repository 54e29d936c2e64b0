package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"golang.org/x/mod/semver"

	"github.com/steveyegge/modhook/internal/modgraph"
)

// ErrBuildNotFound is returned when no stored build has the requested ID.
var ErrBuildNotFound = errors.New("build not found")

// Build describes an ingested host bundle.
type Build struct {
	ID          string    `json:"id"`
	Version     string    `json:"version"`
	Source      string    `json:"source"`
	ModuleCount int       `json:"module_count"`
	IngestedAt  time.Time `json:"ingested_at"`
}

// SaveBuild stores every module of snap under a build row. A snapshot
// without a build ID gets a random one. Saving a build ID that already
// exists replaces its modules.
func (s *SQLiteStorage) SaveBuild(ctx context.Context, snap *modgraph.Snapshot, source string) (*Build, error) {
	build := &Build{
		ID:          snap.Build,
		Version:     snap.Version,
		Source:      source,
		ModuleCount: len(snap.Modules),
		IngestedAt:  time.Now(),
	}
	if build.ID == "" {
		build.ID = uuid.New().String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM builds WHERE id = ?`, build.ID); err != nil {
		return nil, fmt.Errorf("failed to replace build %s: %w", build.ID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO builds (id, version, source, module_count, ingested_at)
		VALUES (?, ?, ?, ?, ?)
	`, build.ID, build.Version, build.Source, build.ModuleCount, build.IngestedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to insert build %s: %w", build.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO modules (build_id, seq, module_id, source, exports)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare module insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, rec := range snap.Modules {
		exportsJSON := []byte("{}")
		if len(rec.Exports) > 0 {
			exportsJSON, err = json.Marshal(rec.Exports)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal exports of module %s: %w", rec.ID, err)
			}
		}
		if _, err := stmt.ExecContext(ctx, build.ID, i+1, rec.ID, rec.Source, string(exportsJSON)); err != nil {
			return nil, fmt.Errorf("failed to insert module %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit build %s: %w", build.ID, err)
	}
	return build, nil
}

// GetBuild returns the build with the given ID
func (s *SQLiteStorage) GetBuild(ctx context.Context, id string) (*Build, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, version, source, module_count, ingested_at
		FROM builds WHERE id = ?
	`, id)
	b, err := scanBuild(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrBuildNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get build %s: %w", id, err)
	}
	return b, nil
}

// ListBuilds returns every stored build, newest version first
func (s *SQLiteStorage) ListBuilds(ctx context.Context) ([]*Build, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, version, source, module_count, ingested_at
		FROM builds
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query builds: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var builds []*Build
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan build: %w", err)
		}
		builds = append(builds, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating build rows: %w", err)
	}

	SortBuilds(builds)
	return builds, nil
}

// LatestBuild returns the build with the highest version
func (s *SQLiteStorage) LatestBuild(ctx context.Context) (*Build, error) {
	builds, err := s.ListBuilds(ctx)
	if err != nil {
		return nil, err
	}
	if len(builds) == 0 {
		return nil, fmt.Errorf("%w: no builds ingested", ErrBuildNotFound)
	}
	return builds[0], nil
}

// LoadSnapshot reads a stored build back as a snapshot, modules in
// registration order.
func (s *SQLiteStorage) LoadSnapshot(ctx context.Context, buildID string) (*modgraph.Snapshot, error) {
	build, err := s.GetBuild(ctx, buildID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT module_id, source, exports
		FROM modules
		WHERE build_id = ?
		ORDER BY seq ASC
	`, buildID)
	if err != nil {
		return nil, fmt.Errorf("failed to query modules of build %s: %w", buildID, err)
	}
	defer func() { _ = rows.Close() }()

	snap := &modgraph.Snapshot{Build: build.ID, Version: build.Version}
	for rows.Next() {
		var rec modgraph.ModuleRecord
		var exportsJSON string
		if err := rows.Scan(&rec.ID, &rec.Source, &exportsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan module: %w", err)
		}
		if ex := gjson.Parse(exportsJSON); ex.IsObject() && len(ex.Map()) > 0 {
			rec.Exports = modgraph.DecodeExports(ex)
		}
		snap.Modules = append(snap.Modules, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating module rows: %w", err)
	}
	return snap, nil
}

// PruneBuilds deletes all but the newest keep builds together with their
// modules. keep = 0 disables pruning. Returns the deleted build IDs.
func (s *SQLiteStorage) PruneBuilds(ctx context.Context, keep int) ([]string, error) {
	if keep < 0 {
		return nil, fmt.Errorf("keep cannot be negative")
	}
	if keep == 0 {
		return nil, nil
	}

	builds, err := s.ListBuilds(ctx)
	if err != nil {
		return nil, err
	}
	if len(builds) <= keep {
		return nil, nil
	}

	var deleted []string
	for _, b := range builds[keep:] {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM builds WHERE id = ?`, b.ID); err != nil {
			return deleted, fmt.Errorf("failed to delete build %s: %w", b.ID, err)
		}
		deleted = append(deleted, b.ID)
	}
	return deleted, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBuild(row rowScanner) (*Build, error) {
	var b Build
	var ingested int64
	if err := row.Scan(&b.ID, &b.Version, &b.Source, &b.ModuleCount, &ingested); err != nil {
		return nil, err
	}
	b.IngestedAt = time.Unix(0, ingested)
	return &b, nil
}

// SortBuilds orders builds newest first: by semantic version, then by
// ingestion time. Versions that are not valid semver sort after valid
// ones. A missing "v" prefix is tolerated.
func SortBuilds(builds []*Build) {
	sort.SliceStable(builds, func(i, j int) bool {
		vi, vj := canonicalVersion(builds[i].Version), canonicalVersion(builds[j].Version)
		if c := semver.Compare(vi, vj); c != 0 {
			return c > 0
		}
		return builds[i].IngestedAt.After(builds[j].IngestedAt)
	})
}

func canonicalVersion(v string) string {
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return semver.Canonical(v)
}
