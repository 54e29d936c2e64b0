package patches

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/steveyegge/modhook/internal/canon"
)

// Outcome is what happened to one replacement.
type Outcome uint8

const (
	// Applied means the source changed.
	Applied Outcome = iota
	// NoEffect means the match was absent or the replacement left the source unchanged.
	NoEffect
	// Skipped means the replacement's predicate disabled it.
	Skipped
	// Failed means reading or running the replacement errored.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case NoEffect:
		return "no_effect"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// ReplacementResult records the outcome of one replacement.
type ReplacementResult struct {
	Index   int
	Match   string
	Outcome Outcome
	Err     error
}

// Result is the outcome of applying a patch to one module source.
type Result struct {
	Source       string
	Replacements []ReplacementResult
	// Reverted is set when a grouped patch was rolled back.
	Reverted bool
	// Disabled is set when the patch predicate turned the patch off.
	Disabled bool
}

// Changed reports whether the returned source differs from the input.
func (r *Result) Changed() bool {
	for _, rr := range r.Replacements {
		if rr.Outcome == Applied {
			return !r.Reverted
		}
	}
	return false
}

// Apply runs p's replacements against src in order. Each replacement sees the
// output of the previous one. A grouped patch is reverted as a whole when any
// replacement has no effect or fails. Apply reads computed slots, so it
// should be called on a canonicalized patch.
func Apply(src string, p *Patch, c *canon.Canonicalizer) *Result {
	res := &Result{Source: src}
	if !p.Enabled() {
		res.Disabled = true
		return res
	}

	cur := src
	for i := range p.Replacements {
		r := &p.Replacements[i]
		rr := ReplacementResult{Index: i}

		if !r.Enabled() {
			rr.Outcome = Skipped
			res.Replacements = append(res.Replacements, rr)
			continue
		}

		next, display, err := applyOne(cur, r, c)
		rr.Match = display
		switch {
		case err != nil:
			rr.Outcome, rr.Err = Failed, err
		case next == cur:
			rr.Outcome = NoEffect
		default:
			rr.Outcome = Applied
			cur = next
		}
		res.Replacements = append(res.Replacements, rr)

		if p.Group && (rr.Outcome == NoEffect || rr.Outcome == Failed) {
			res.Reverted = true
			res.Source = src
			return res
		}
	}

	res.Source = cur
	return res
}

func applyOne(src string, r *Replacement, c *canon.Canonicalizer) (string, string, error) {
	pat, err := r.MatchPattern(c)
	if err != nil {
		return src, "", fmt.Errorf("match: %w", err)
	}
	if !r.Replace.IsSet() {
		return src, pat.String(), fmt.Errorf("replace not set")
	}
	rep, err := r.Replace.Get()
	if err != nil {
		return src, pat.String(), fmt.Errorf("replace: %w", err)
	}
	out, err := Replace(pat, rep, src)
	return out, pat.String(), err
}

// Replace substitutes rep for matches of pat in src. Only the first match is
// replaced unless the pattern carries the g flag. Text replacements support
// $1, $<name>, ${name}, $&, $` and $' references, and $$ for a literal $.
func Replace(pat *canon.Pattern, rep canon.Replacement, src string) (string, error) {
	count := 1
	if strings.Contains(pat.Flags(), "g") {
		count = -1
	}
	re := pat.Regexp()

	if fn := rep.Func(); fn != nil {
		return re.ReplaceFunc(src, func(m regexp2.Match) string {
			groups := m.Groups()
			args := make([]string, 0, len(groups))
			for _, g := range groups[1:] {
				args = append(args, g.String())
			}
			return fn(m.String(), args...)
		}, -1, count)
	}

	text, _ := rep.Text()
	return re.Replace(src, substitutionSyntax(text), -1, count)
}

// substitutionSyntax rewrites $<name> group references to the ${name} form
// regexp2 expects, and escapes $_ and $+, which regexp2 would otherwise
// expand to the whole input and the last group.
func substitutionSyntax(text string) string {
	if !strings.Contains(text, "$") {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); i++ {
		if text[i] != '$' || i+1 == len(text) {
			b.WriteByte(text[i])
			continue
		}
		switch next := text[i+1]; next {
		case '$':
			b.WriteString("$$")
			i++
		case '_', '+':
			b.WriteString("$$")
		case '<':
			end := strings.IndexByte(text[i+2:], '>')
			if end <= 0 {
				b.WriteString("$$")
				continue
			}
			b.WriteString("${")
			b.WriteString(text[i+2 : i+2+end])
			b.WriteByte('}')
			i += 2 + end
		default:
			b.WriteByte('$')
		}
	}
	return b.String()
}
