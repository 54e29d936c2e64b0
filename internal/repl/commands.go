package repl

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/steveyegge/modhook/internal/canon"
	"github.com/steveyegge/modhook/internal/filters"
	"github.com/steveyegge/modhook/internal/intlhash"
	"github.com/steveyegge/modhook/internal/modgraph"
	"github.com/steveyegge/modhook/internal/patches"
)

// maxListed caps how many matches a search prints.
const maxListed = 20

// maxSource caps how much module source show prints.
const maxSource = 2000

// cmdHelp shows help information
func (r *REPL) cmdHelp(args []string) error {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	r.printf("\n%s\n\n", cyan("Available Commands:"))

	seen := make(map[string]bool)
	var usages []command
	for _, cmd := range r.commands {
		if seen[cmd.usage] {
			continue
		}
		seen[cmd.usage] = true
		usages = append(usages, cmd)
	}
	sort.Slice(usages, func(i, j int) bool { return usages[i].usage < usages[j].usage })

	for _, cmd := range usages {
		r.printf("  %-48s %s\n", green(cmd.usage), cmd.desc)
	}
	r.printf("\nArguments may be quoted: code '\"closeModal\"' \"#{intl::DONE}\"\n\n")
	return nil
}

// cmdExit exits the REPL
func (r *REPL) cmdExit(args []string) error {
	green := color.New(color.FgGreen).SprintFunc()
	r.printf("\n%s Goodbye!\n", green("✓"))
	if r.rl != nil {
		_ = r.rl.Close()
	}
	return io.EOF // Signal to exit the loop
}

func (r *REPL) cmdHash(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: hash <key>...")
	}
	for _, key := range args {
		h := intlhash.HashBoth(key)
		r.printf("%s  current=%s  legacy=%s\n", h.Key, h.Current, h.Legacy)
	}
	return nil
}

func (r *REPL) cmdCanon(args []string) error {
	regex := false
	flags := ""
	for len(args) > 1 && strings.HasPrefix(args[0], "-") {
		switch args[0] {
		case "-r":
			regex = true
			args = args[1:]
		case "-f":
			if len(args) < 3 {
				return fmt.Errorf("usage: canon [-r [-f flags]] <template>")
			}
			flags = args[1]
			args = args[2:]
		default:
			return fmt.Errorf("unknown option %s", args[0])
		}
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: canon [-r [-f flags]] <template>")
	}

	var t canon.Template = canon.Literal(args[0])
	if regex {
		t = canon.Regex{Source: args[0], Flags: flags}
	}
	p, err := r.canon.Canonicalize(t)
	if err != nil {
		return err
	}
	r.printf("%s\n", p.Canonical())
	if p.Flags() != "" {
		r.printf("flags: %s\n", p.Flags())
	}
	return nil
}

func (r *REPL) cmdModules(args []string) error {
	if len(args) == 0 {
		r.printf("%d modules\n", r.graph.Len())
		return nil
	}
	if len(args) != 2 || args[0] != "since" {
		return fmt.Errorf("usage: modules [since <seq>]")
	}
	seq, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid sequence number %q", args[1])
	}

	mods := r.graph.Since(seq)
	for i, m := range mods {
		if i == maxListed {
			r.printf("... %d modules total\n", len(mods))
			break
		}
		r.printf("  %d  %s  %s\n", m.Seq, m.ID, describeValue(m.Exports))
	}
	if len(mods) == 0 {
		r.printf("no modules after seq %d\n", seq)
	}
	return nil
}

func (r *REPL) cmdShow(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: show <id>")
	}
	m, ok := r.graph.Get(args[0])
	if !ok {
		return fmt.Errorf("no module %q", args[0])
	}
	src := m.Source
	if len(src) > maxSource {
		src = src[:maxSource] + "\n... (truncated)"
	}
	r.printf("%s\n", src)
	if keys := m.Exports.Keys(); len(keys) > 0 {
		r.printf("exports: %s\n", strings.Join(keys, ", "))
	}
	return nil
}

func (r *REPL) cmdCode(args []string) error {
	return r.search("code", args)
}

func (r *REPL) cmdProps(args []string) error {
	return r.search("props", args)
}

func (r *REPL) cmdComponent(args []string) error {
	return r.search("component", args)
}

func (r *REPL) cmdPattern(args []string) error {
	return r.search("pattern", args)
}

// search lists every module the filter matches, not only the first.
func (r *REPL) search(by string, args []string) error {
	f, err := r.filter(by, args)
	if err != nil {
		return err
	}

	found := 0
	for _, m := range r.graph.Modules() {
		v, ok, err := filters.Match(f, m)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		found++
		if found <= maxListed {
			r.printf("  %s  %s\n", m.ID, describeValue(v))
		}
	}

	switch {
	case found == 0:
		r.printf("no modules match %s\n", f)
	case found > maxListed:
		r.printf("... %d matches total\n", found)
	case found > 1:
		yellow := color.New(color.FgYellow).SprintFunc()
		r.printf("%s %d matches; a find should select exactly one module\n", yellow("Note:"), found)
	}
	return nil
}

func (r *REPL) filter(by string, args []string) (filters.Filter, error) {
	if len(args) == 0 {
		return filters.Filter{}, fmt.Errorf("usage: %s <arg>...", by)
	}
	return patches.BuildFilter(patches.FindConfig{By: by, Args: args}, r.canon)
}

func (r *REPL) cmdLazy(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: lazy <code|props|component|pattern> <arg>...")
	}
	f, err := r.filter(args[0], args[1:])
	if err != nil {
		return err
	}

	h, err := r.reg.FindLazy(f)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.handles = append(r.handles, h)
	r.mu.Unlock()

	id := h.Interest().ID()
	green := color.New(color.FgGreen).SprintFunc()
	h.Then(func(v any) {
		mod := "?"
		if m := h.Interest().Module(); m != nil {
			mod = m.ID
		}
		r.printf("%s %s resolved to module %s: %s\n", green("✓"), id, mod, describeValue(v))
	})
	if !h.Ready() {
		r.printf("%s pending: %s\n", id, f)
	}
	return nil
}

func (r *REPL) cmdRegister(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: register <id> <source>")
	}
	m, err := r.graph.Register(args[0], args[1], nil)
	if err != nil {
		return err
	}
	r.printf("registered module %s (seq %d)\n", m.ID, m.Seq)
	return nil
}

func (r *REPL) cmdPending(args []string) error {
	pending := r.reg.Pending()
	if len(pending) == 0 {
		r.printf("no pending finds\n")
		return nil
	}
	for _, in := range pending {
		r.printf("  %s  %s  tested=%d failures=%d since=%s\n",
			in.ID, in.Filter, in.Tested, in.Failures, in.Since.Format("15:04:05"))
	}
	return nil
}

// describeValue summarizes a matched value in one line.
func describeValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "(no exports)"
	case modgraph.Exports:
		if len(v) == 0 {
			return "(no exports)"
		}
		return "{" + strings.Join(v.Keys(), ", ") + "}"
	case modgraph.Function:
		name := v.Name
		if name == "" {
			name = "anonymous"
		}
		return "function " + name
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "mapped {" + strings.Join(keys, ", ") + "}"
	default:
		s := fmt.Sprint(v)
		if len(s) > 80 {
			s = s[:80] + "..."
		}
		return s
	}
}
