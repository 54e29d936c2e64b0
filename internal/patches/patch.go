package patches

import (
	"fmt"

	"github.com/steveyegge/modhook/internal/canon"
)

// DefaultSelfPathFormat renders a plugin name into the path substituted for
// the $self placeholder.
const DefaultSelfPathFormat = "plugins/%s"

// SelfPath renders the $self path for plugin with format.
func SelfPath(format, plugin string) string {
	if format == "" {
		format = DefaultSelfPathFormat
	}
	return fmt.Sprintf(format, plugin)
}

// Patch is one host-code transformation.
type Patch struct {
	// Plugin names the plugin that owns the patch.
	Plugin string
	// Find selects the target module by its source.
	Find canon.Field[canon.Template]
	// Replacements are applied in order to the selected module's source.
	Replacements []Replacement
	// All lets the patch apply to every module Find selects.
	All bool
	// NoWarn silences "had no effect" diagnostics.
	NoWarn bool
	// Group makes the replacements all-or-nothing.
	Group bool
	// Predicate, when set, enables the patch only if it returns true.
	Predicate func() bool
}

// Replacement is one match/replace pair inside a Patch.
type Replacement struct {
	Match     canon.Field[canon.Template]
	Replace   canon.Field[canon.Replacement]
	Predicate func() bool
}

// Enabled reports whether the patch's predicate allows it.
func (p *Patch) Enabled() bool {
	return p.Predicate == nil || p.Predicate()
}

// Enabled reports whether the replacement's predicate allows it.
func (r *Replacement) Enabled() bool {
	return r.Predicate == nil || r.Predicate()
}

// CanonicalizeFind rewrites p.Find with c.
func CanonicalizeFind(p *Patch, c *canon.Canonicalizer) error {
	if err := canon.RewriteMatch(&p.Find, c); err != nil {
		return fmt.Errorf("find: %w", err)
	}
	return nil
}

// CanonicalizeReplacement rewrites both slots of r.
func CanonicalizeReplacement(r *Replacement, selfPath string, c *canon.Canonicalizer) error {
	if err := canon.RewriteMatch(&r.Match, c); err != nil {
		return fmt.Errorf("match: %w", err)
	}
	return canon.RewriteReplace(&r.Replace, selfPath)
}

// Canonicalize prepares every slot of p for the host build. Template errors
// in stored slots are returned here; computed slots report them when read.
func Canonicalize(p *Patch, selfPath string, c *canon.Canonicalizer) error {
	if err := CanonicalizeFind(p, c); err != nil {
		return fmt.Errorf("patch for %s: %w", p.Plugin, err)
	}
	for i := range p.Replacements {
		if err := CanonicalizeReplacement(&p.Replacements[i], selfPath, c); err != nil {
			return fmt.Errorf("patch for %s: replacement %d: %w", p.Plugin, i, err)
		}
	}
	return nil
}

// FindPattern reads p.Find as a canonical pattern.
func (p *Patch) FindPattern(c *canon.Canonicalizer) (*canon.Pattern, error) {
	return readPattern(p.Find, c)
}

// MatchPattern reads r.Match as a canonical pattern.
func (r *Replacement) MatchPattern(c *canon.Canonicalizer) (*canon.Pattern, error) {
	return readPattern(r.Match, c)
}

func readPattern(f canon.Field[canon.Template], c *canon.Canonicalizer) (*canon.Pattern, error) {
	if !f.IsSet() {
		return nil, fmt.Errorf("pattern not set")
	}
	t, err := f.Get()
	if err != nil {
		return nil, err
	}
	if c == nil {
		c = canon.Default
	}
	return c.Canonicalize(t)
}
