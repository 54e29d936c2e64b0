package reporter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/modhook/internal/canon"
	"github.com/steveyegge/modhook/internal/events"
	"github.com/steveyegge/modhook/internal/filters"
	"github.com/steveyegge/modhook/internal/finder"
	"github.com/steveyegge/modhook/internal/modgraph"
	"github.com/steveyegge/modhook/internal/patches"
)

// Status is the verdict for one patch.
type Status string

const (
	StatusOK              Status = "ok"
	StatusDisabled        Status = "disabled"
	StatusNoMatch         Status = "no_match"
	StatusMultipleMatches Status = "multiple_matches"
	StatusNoEffect        Status = "no_effect"
	StatusFailed          Status = "failed"
)

// Passed reports whether the status needs no attention.
func (s Status) Passed() bool {
	return s == StatusOK || s == StatusDisabled
}

// ReplacementReport is the outcome of one replacement in one target module.
type ReplacementReport struct {
	Module  string `json:"module"`
	Index   int    `json:"index"`
	Match   string `json:"match"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// PatchResult is the outcome of checking one patch
type PatchResult struct {
	Plugin       string              `json:"plugin"`
	Index        int                 `json:"index"`
	Find         string              `json:"find"`
	Status       Status              `json:"status"`
	Modules      []string            `json:"modules,omitempty"`
	Replacements []ReplacementReport `json:"replacements,omitempty"`
	Error        string              `json:"error,omitempty"`
}

// failingMatch returns the display form of the first replacement that did
// not apply.
func (r *PatchResult) failingMatch() string {
	for _, rr := range r.Replacements {
		if rr.Outcome == patches.NoEffect.String() || rr.Outcome == patches.Failed.String() {
			return rr.Match
		}
	}
	return ""
}

// FindResult is the outcome of one lazy find
type FindResult struct {
	Plugin   string `json:"plugin"`
	Name     string `json:"name"`
	Filter   string `json:"filter"`
	Resolved bool   `json:"resolved"`
	Module   string `json:"module,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Report is the outcome of checking a set of plugins against one build
type Report struct {
	ID       string         `json:"id"`
	BuildID  string         `json:"build_id"`
	Version  string         `json:"version"`
	Modules  int            `json:"modules"`
	Patches  []*PatchResult `json:"patches"`
	Finds    []*FindResult  `json:"finds"`
	Duration time.Duration  `json:"duration"`
}

// FailedPatches returns the patches whose status needs attention.
func (r *Report) FailedPatches() []*PatchResult {
	var out []*PatchResult
	for _, p := range r.Patches {
		if !p.Status.Passed() {
			out = append(out, p)
		}
	}
	return out
}

// UnresolvedFinds returns the finds that never resolved.
func (r *Report) UnresolvedFinds() []*FindResult {
	var out []*FindResult
	for _, f := range r.Finds {
		if !f.Resolved {
			out = append(out, f)
		}
	}
	return out
}

// Passed reports whether every patch applied and every find resolved.
func (r *Report) Passed() bool {
	return len(r.FailedPatches()) == 0 && len(r.UnresolvedFinds()) == 0
}

// Config holds reporter configuration
type Config struct {
	// Canonicalizer expands find and match templates. Nil means canon.Default.
	Canonicalizer *canon.Canonicalizer
	// Concurrency bounds parallel patch checks. Default: 4
	Concurrency int
	// Sink receives registry and report events. Nil discards them.
	Sink events.Sink
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Runner checks plugins against build snapshots
type Runner struct {
	canon       *canon.Canonicalizer
	concurrency int
	sink        events.Sink
	logger      *slog.Logger
}

// NewRunner creates a new reporter
func NewRunner(cfg *Config) (*Runner, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Concurrency < 0 {
		return nil, fmt.Errorf("concurrency cannot be negative (got %d)", cfg.Concurrency)
	}

	r := &Runner{
		canon:       cfg.Canonicalizer,
		concurrency: cfg.Concurrency,
		sink:        cfg.Sink,
		logger:      cfg.Logger,
	}
	if r.canon == nil {
		r.canon = canon.Default
	}
	if r.concurrency == 0 {
		r.concurrency = 4
	}
	if r.sink == nil {
		r.sink = events.Discard
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r, nil
}

type pendingFind struct {
	result *FindResult
	handle *finder.Handle
}

// Run replays snap and checks every plugin's finds and patches against it.
func (r *Runner) Run(ctx context.Context, snap *modgraph.Snapshot, plugins []*patches.Plugin) (*Report, error) {
	start := time.Now()
	report := &Report{
		ID:      uuid.New().String(),
		BuildID: snap.Build,
		Version: snap.Version,
		Modules: len(snap.Modules),
	}
	logger := r.logger.With("report", report.ID, "build", snap.Build)

	graph := modgraph.New()
	defer graph.Close()
	reg := finder.New(graph, finder.WithLogger(logger), finder.WithEventSink(r.stamp(snap.Build)))
	defer reg.Close()

	// Finds are declared before any module exists so they resolve from the
	// registration stream rather than a scan.
	var finds []pendingFind
	for _, plugin := range plugins {
		for _, f := range plugin.Finds {
			res := &FindResult{Plugin: plugin.Name, Name: f.Name, Filter: f.Filter.String()}
			report.Finds = append(report.Finds, res)

			filter := f.Filter
			if f.Name != "" {
				filter = filters.Named(f.Name, filter)
			}
			h, err := reg.FindLazy(filter)
			if err != nil {
				res.Error = err.Error()
				continue
			}
			finds = append(finds, pendingFind{result: res, handle: h})
		}
	}

	if err := modgraph.Replay(graph, snap); err != nil {
		return nil, err
	}

	for _, pf := range finds {
		if pf.handle.Ready() {
			pf.result.Resolved = true
			if m := pf.handle.Interest().Module(); m != nil {
				pf.result.Module = m.ID
			}
		}
		pf.handle.Release()
	}

	var err error
	report.Patches, err = r.checkPatches(ctx, graph.Modules(), plugins)
	if err != nil {
		return nil, err
	}

	report.Duration = time.Since(start)
	r.emitReport(report)
	logger.Info("report completed",
		"patches", len(report.Patches),
		"failed", len(report.FailedPatches()),
		"unresolved", len(report.UnresolvedFinds()),
		"duration", report.Duration)
	return report, nil
}

// checkPatches checks every patch in parallel. Results keep plugin order.
func (r *Runner) checkPatches(ctx context.Context, modules []*modgraph.Module, plugins []*patches.Plugin) ([]*PatchResult, error) {
	type job struct {
		plugin string
		index  int
		patch  *patches.Patch
	}
	var jobs []job
	for _, plugin := range plugins {
		for i, p := range plugin.Patches {
			jobs = append(jobs, job{plugin: plugin.Name, index: i, patch: p})
		}
	}

	results := make([]*PatchResult, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, j := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = r.checkPatch(j.plugin, j.index, j.patch, modules)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("checking patches: %w", err)
	}
	return results, nil
}

func (r *Runner) checkPatch(plugin string, index int, p *patches.Patch, modules []*modgraph.Module) *PatchResult {
	res := &PatchResult{Plugin: plugin, Index: index}

	pat, err := p.FindPattern(r.canon)
	if err != nil {
		res.Status, res.Error = StatusFailed, err.Error()
		return res
	}
	res.Find = pat.String()

	if !p.Enabled() {
		res.Status = StatusDisabled
		return res
	}

	var targets []*modgraph.Module
	for _, m := range modules {
		ok, err := pat.Match(m.Source)
		if err != nil {
			res.Status, res.Error = StatusFailed, fmt.Sprintf("module %s: %v", m.ID, err)
			return res
		}
		if ok {
			targets = append(targets, m)
			res.Modules = append(res.Modules, m.ID)
		}
	}

	switch {
	case len(targets) == 0:
		res.Status = StatusNoMatch
		return res
	case len(targets) > 1 && !p.All:
		res.Status = StatusMultipleMatches
		return res
	}

	res.Status = StatusOK
	for _, m := range targets {
		applied := patches.Apply(m.Source, p, r.canon)
		for _, rr := range applied.Replacements {
			rep := ReplacementReport{Module: m.ID, Index: rr.Index, Match: rr.Match, Outcome: rr.Outcome.String()}
			if rr.Err != nil {
				rep.Error = rr.Err.Error()
			}
			res.Replacements = append(res.Replacements, rep)

			switch {
			case rr.Outcome == patches.Failed:
				res.Status = StatusFailed
				if res.Error == "" && rr.Err != nil {
					res.Error = rr.Err.Error()
				}
			case rr.Outcome == patches.NoEffect && !p.NoWarn && res.Status == StatusOK:
				res.Status = StatusNoEffect
			}
		}
		if applied.Reverted && res.Status == StatusOK {
			// NoWarn does not cover a rolled back group.
			res.Status = StatusNoEffect
		}
	}
	return res
}

// stamp wraps the sink so registry events carry the build ID.
func (r *Runner) stamp(buildID string) events.Sink {
	return events.SinkFunc(func(e *events.RegistryEvent) {
		if e.BuildID == "" {
			e.BuildID = buildID
		}
		r.sink.Emit(e)
	})
}

func (r *Runner) emitReport(report *Report) {
	for _, p := range report.Patches {
		data := events.PatchFailedData{
			Find:    p.Find,
			Matches: len(p.Modules),
		}
		if !p.Status.Passed() {
			data.Reason = string(p.Status)
			data.Match = p.failingMatch()
		}
		r.emit(events.NewPatchEvent(report.BuildID, p.Plugin, data))
	}

	for _, f := range report.UnresolvedFinds() {
		r.emit(events.NewFindUnresolvedEvent(report.BuildID, f.Plugin, events.FindUnresolvedData{
			Name:   f.Name,
			Filter: f.Filter,
		}))
	}

	r.emit(events.NewReportCompletedEvent(report.BuildID, events.ReportCompletedData{
		ReportID:         report.ID,
		Modules:          report.Modules,
		Patches:          len(report.Patches),
		FailedPatches:    len(report.FailedPatches()),
		UnresolvedFinds:  len(report.UnresolvedFinds()),
		ProcessingTimeMs: report.Duration.Milliseconds(),
	}))
}

func (r *Runner) emit(event *events.RegistryEvent, err error) {
	if err != nil {
		r.logger.Warn("failed to build report event", "error", err)
		return
	}
	r.sink.Emit(event)
}
