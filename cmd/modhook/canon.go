package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/steveyegge/modhook/internal/canon"
)

var canonCmd = &cobra.Command{
	Use:   "canon <template>",
	Short: "Expand a pattern template for the configured build",
	Long: `Expand placeholders in a find or match template and print the resulting
regular expression.

Literal templates are escaped; use --regex for regular expression source.
With --replace, the replacement text is also canonicalized for the plugin
named by --plugin. With --against, the pattern is matched against the given
text and the match is shown.

Examples:
  modhook canon 'n=t.#{intl::DONE}'
  modhook canon --regex --flags g '(\i)\.#{intl::SAVE}\('
  modhook canon 'x()' --replace '$self.hook()' --plugin Tracker
  modhook canon 'a.#{ident}' --against 'q=a.b0;'`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		isRegex, _ := cmd.Flags().GetBool("regex")
		flags, _ := cmd.Flags().GetString("flags")
		replace, _ := cmd.Flags().GetString("replace")
		plugin, _ := cmd.Flags().GetString("plugin")
		against, _ := cmd.Flags().GetString("against")

		var tmpl canon.Template = canon.Literal(args[0])
		if isRegex {
			tmpl = canon.Regex{Source: args[0], Flags: flags}
		} else if flags != "" {
			fmt.Fprintf(os.Stderr, "Error: --flags requires --regex\n")
			os.Exit(1)
		}

		p, err := cfg.Canonicalizer().Canonicalize(tmpl)
		if err != nil {
			var te *canon.TemplateError
			if errors.As(err, &te) {
				fmt.Fprintf(os.Stderr, "Error: %s\n", te.Reason)
				fmt.Fprintf(os.Stderr, "  %s\n  %*s\n", te.Template, te.Offset+1, "^")
			} else {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			os.Exit(1)
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("%s %s\n", gray("template: "), p)
		fmt.Printf("%s %s\n", gray("canonical:"), cyan(p.Canonical()))

		if cmd.Flags().Changed("replace") {
			self := fmt.Sprintf(cfg.SelfPathFormat, plugin)
			r := canon.CanonicalizeReplace(canon.Text(replace), self)
			fmt.Printf("%s %s\n", gray("replace:  "), r)
		}

		if cmd.Flags().Changed("against") {
			start, length, err := p.FindIndex(against)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if start < 0 {
				fmt.Printf("%s %s\n", gray("match:    "), color.YellowString("none"))
				os.Exit(1)
			}
			runes := []rune(against)
			matched := string(runes[start : start+length])
			fmt.Printf("%s %s %s\n", gray("match:    "), color.GreenString(matched), gray(fmt.Sprintf("at %d", start)))
		}
	},
}

func init() {
	canonCmd.Flags().BoolP("regex", "r", false, "Treat the template as regular expression source")
	canonCmd.Flags().StringP("flags", "f", "", "Regex flags (i, m, s; g, y, u are accepted)")
	canonCmd.Flags().String("replace", "", "Replacement text to canonicalize")
	canonCmd.Flags().String("plugin", "Plugin", "Plugin name used for $self")
	canonCmd.Flags().String("against", "", "Text to match the canonical pattern against")
	rootCmd.AddCommand(canonCmd)
}
