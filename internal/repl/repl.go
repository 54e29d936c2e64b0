package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/steveyegge/modhook/internal/canon"
	"github.com/steveyegge/modhook/internal/finder"
	"github.com/steveyegge/modhook/internal/modgraph"
)

// REPL is an interactive shell for trying finds and patterns against a
// replayed build
type REPL struct {
	graph    *modgraph.Graph
	reg      *finder.Registry
	canon    *canon.Canonicalizer
	build    string
	history  string
	out      io.Writer
	rl       *readline.Instance
	ctx      context.Context
	commands map[string]command

	// mu guards out and handles; lazy continuations print from whichever
	// goroutine registers the matching module.
	mu      sync.Mutex
	handles []*finder.Handle
}

// CommandHandler handles a specific command
type CommandHandler func(args []string) error

type command struct {
	handler CommandHandler
	usage   string
	desc    string
}

// Config holds REPL configuration
type Config struct {
	// Graph is the module graph to search. Required.
	Graph *modgraph.Graph
	// Build labels the prompt and welcome message.
	Build string
	// Canonicalizer expands templates. Nil means canon.Default.
	Canonicalizer *canon.Canonicalizer
	// HistoryFile persists input history when set.
	HistoryFile string
	// Out receives command output. Default: os.Stdout
	Out io.Writer
	// Logger is handed to the finder registry.
	Logger *slog.Logger
}

// New creates a new REPL instance
func New(cfg *Config) (*REPL, error) {
	if cfg.Graph == nil {
		return nil, fmt.Errorf("module graph is required")
	}

	r := &REPL{
		graph:    cfg.Graph,
		canon:    cfg.Canonicalizer,
		build:    cfg.Build,
		history:  cfg.HistoryFile,
		out:      cfg.Out,
		commands: make(map[string]command),
		ctx:      context.Background(),
	}
	if r.canon == nil {
		r.canon = canon.Default
	}
	if r.out == nil {
		r.out = os.Stdout
	}
	var opts []finder.Option
	if cfg.Logger != nil {
		opts = append(opts, finder.WithLogger(cfg.Logger))
	}
	r.reg = finder.New(cfg.Graph, opts...)

	// Register built-in commands
	r.registerCommands()

	return r, nil
}

// Close releases every lazy handle and detaches from the graph.
func (r *REPL) Close() {
	r.mu.Lock()
	handles := r.handles
	r.handles = nil
	r.mu.Unlock()

	for _, h := range handles {
		h.Release()
	}
	r.reg.Close()
}

// Run starts the REPL loop
func (r *REPL) Run(ctx context.Context) error {
	r.ctx = ctx

	// Create readline instance
	cyan := color.New(color.FgCyan).SprintFunc()
	prompt := cyan("modhook> ")
	if r.build != "" {
		prompt = cyan("modhook(" + r.build + ")> ")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            prompt,
		HistoryFile:       r.history,
		AutoComplete:      r.completer(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	r.rl = rl

	// Print welcome message
	r.printWelcome()

	// Main loop
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				// Ctrl+C - just show prompt again
				continue
			} else if errors.Is(err, io.EOF) {
				// Ctrl+D - exit
				r.printf("\nGoodbye!\n")
				return nil
			}
			return err
		}

		// Process the input
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := r.processInput(line); err != nil {
			if errors.Is(err, io.EOF) {
				// Exit command - graceful shutdown
				return nil
			}
			red := color.New(color.FgRed).SprintFunc()
			r.printf("%s %v\n", red("Error:"), err)
		}
	}
}

// processInput processes a single line of input
func (r *REPL) processInput(line string) error {
	parts, err := splitArgs(line)
	if err != nil {
		return err
	}
	if len(parts) == 0 {
		return nil
	}

	name := parts[0]
	args := parts[1:]

	if cmd, ok := r.commands[name]; ok {
		return cmd.handler(args)
	}

	yellow := color.New(color.FgYellow).SprintFunc()
	r.printf("%s Unknown command %q. Use 'help' for available commands.\n", yellow("Note:"), name)
	return nil
}

func (r *REPL) register(handler CommandHandler, usage, desc string, names ...string) {
	for _, name := range names {
		r.commands[name] = command{handler: handler, usage: usage, desc: desc}
	}
}

// registerCommands registers all built-in commands
func (r *REPL) registerCommands() {
	r.register(r.cmdHelp, "help", "Show this help message", "help", "?")
	r.register(r.cmdExit, "exit", "Exit the REPL", "exit", "quit")
	r.register(r.cmdHash, "hash <key>...", "Show current and legacy hashes of localization keys", "hash")
	r.register(r.cmdCanon, "canon [-r [-f flags]] <template>", "Canonicalize a literal or regex template", "canon")
	r.register(r.cmdModules, "modules [since <seq>]", "Show module count, or list modules registered after seq", "modules")
	r.register(r.cmdShow, "show <id>", "Print a module's source", "show")
	r.register(r.cmdCode, "code <code>...", "List modules whose source contains every code", "code")
	r.register(r.cmdProps, "props <name>...", "List modules exporting every property", "props")
	r.register(r.cmdComponent, "component <code>...", "List modules exporting a function containing every code", "component")
	r.register(r.cmdPattern, "pattern <regex>", "List modules whose source matches a regex template", "pattern")
	r.register(r.cmdLazy, "lazy <code|props|component|pattern> <arg>...", "Declare a lazy find and report when it resolves", "lazy")
	r.register(r.cmdRegister, "register <id> <source>", "Register a new module into the graph", "register")
	r.register(r.cmdPending, "pending", "List lazy finds that have not resolved", "pending")
}

// completer completes command names
func (r *REPL) completer() readline.AutoCompleter {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	items := make([]readline.PrefixCompleterInterface, 0, len(names))
	for _, name := range names {
		items = append(items, readline.PcItem(name))
	}
	return readline.NewPrefixCompleter(items...)
}

// printWelcome prints the welcome message
func (r *REPL) printWelcome() {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	r.printf("\n%s\n", cyan("modhook shell"))
	if r.build != "" {
		r.printf("Build %s, %d modules\n", r.build, r.graph.Len())
	}
	r.printf("\nType 'help' for available commands, 'exit' to quit\n\n")
}

func (r *REPL) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

// splitArgs splits a line on whitespace, keeping single- or double-quoted
// runs together. Backslashes are kept literally so regex sources survive.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		quote   rune
		started bool
	)
	for _, c := range line {
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
				continue
			}
			cur.WriteRune(c)
		case c == '"' || c == '\'':
			quote = c
			started = true
		case c == ' ' || c == '\t':
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(c)
			started = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if started {
		args = append(args, cur.String())
	}
	return args, nil
}
