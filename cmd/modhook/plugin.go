package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/steveyegge/modhook/internal/canon"
	"github.com/steveyegge/modhook/internal/patches"
)

var pluginCmd = &cobra.Command{
	Use:   "plugin",
	Short: "Manage plugin files",
}

var pluginNewCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Scaffold a plugin file with one patch",
	Long: `Write <name>.yaml to the plugin directory holding a single patch.

The find and match templates are literal unless --find-regex or
--match-regex is given. Placeholders such as #{intl::KEY} and \i are kept
as written and expanded when the plugin is loaded. An existing plugin file
is never overwritten.

Examples:
  modhook plugin new Tracker --find 'renderPopout:' --match 'track(' --replace '$self.track('
  modhook plugin new Tracker --find '#{intl::DONE}' \
      --match '(\i)\.track\(' --match-regex --flags g --replace '$self.track($1,'`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		find, _ := cmd.Flags().GetString("find")
		findRegex, _ := cmd.Flags().GetBool("find-regex")
		match, _ := cmd.Flags().GetString("match")
		matchRegex, _ := cmd.Flags().GetBool("match-regex")
		flags, _ := cmd.Flags().GetString("flags")
		replace, _ := cmd.Flags().GetString("replace")
		all, _ := cmd.Flags().GetBool("all")

		config, err := newPluginConfig(args[0], find, findRegex, match, matchRegex, flags, replace, all)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		path, err := patches.WritePlugin(cfg.PatchesDir, config)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("%s Wrote %s\n", green("✓"), path)
		fmt.Printf("%s\n", gray("Next: modhook check"))
	},
}

// newPluginConfig builds a one-patch plugin from command flags.
func newPluginConfig(name, find string, findRegex bool, match string, matchRegex bool, flags, replace string, all bool) (*patches.PluginConfig, error) {
	if find == "" || match == "" {
		return nil, fmt.Errorf("--find and --match are required")
	}
	if flags != "" && !matchRegex {
		return nil, fmt.Errorf("--flags requires --match-regex")
	}

	var findTmpl canon.Template = canon.Literal(find)
	if findRegex {
		findTmpl = canon.Regex{Source: find}
	}
	var matchTmpl canon.Template = canon.Literal(match)
	if matchRegex {
		matchTmpl = canon.Regex{Source: match, Flags: flags}
	}

	return &patches.PluginConfig{
		Name: name,
		Patches: []patches.PatchConfig{{
			Find: patches.TemplateConfig{Template: findTmpl},
			Replacement: []patches.ReplacementConfig{{
				Match:   patches.TemplateConfig{Template: matchTmpl},
				Replace: replace,
			}},
			All: all,
		}},
	}, nil
}

func init() {
	pluginNewCmd.Flags().String("find", "", "Find template selecting the module to patch")
	pluginNewCmd.Flags().Bool("find-regex", false, "Treat --find as a regular expression")
	pluginNewCmd.Flags().String("match", "", "Match template of the replacement")
	pluginNewCmd.Flags().Bool("match-regex", false, "Treat --match as a regular expression")
	pluginNewCmd.Flags().String("flags", "", "Regex flags for --match")
	pluginNewCmd.Flags().String("replace", "", "Replacement text ($self is the plugin's path)")
	pluginNewCmd.Flags().Bool("all", false, "Patch every matching module, not just one")

	pluginCmd.AddCommand(pluginNewCmd)
	rootCmd.AddCommand(pluginCmd)
}
