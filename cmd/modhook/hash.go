package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/steveyegge/modhook/internal/intlhash"
)

var hashCmd = &cobra.Command{
	Use:   "hash <key>...",
	Short: "Print the hashed forms of localization keys",
	Long: `Print the current and legacy hashed forms of each key, plus the fragment
a #{intl::KEY} placeholder expands to under the configured bracket rule.

With --scheme, print only that scheme's token, one line per key, for use
in scripts.

Examples:
  modhook hash DONE
  modhook hash --json SAVE CANCEL
  modhook hash --scheme legacy DONE`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		asJSON, _ := cmd.Flags().GetBool("json")
		schemeName, _ := cmd.Flags().GetString("scheme")

		if schemeName != "" {
			scheme, err := intlhash.ParseScheme(schemeName)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			printSchemeTokens(os.Stdout, scheme, args)
			return
		}

		hashed := make([]intlhash.Hashed, 0, len(args))
		for _, key := range args {
			hashed = append(hashed, intlhash.HashBoth(key))
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(hashed); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}

		c := cfg.Canonicalizer()
		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		for _, h := range hashed {
			fmt.Printf("%s\n", cyan(h.Key))
			fmt.Printf("  %s %s\n", gray("current:"), h.Current)
			fmt.Printf("  %s %s\n", gray("legacy: "), h.Legacy)
			fmt.Printf("  %s %s\n", gray("pattern:"), c.CompatFragment(h.Key))
		}
	},
}

func init() {
	hashCmd.Flags().Bool("json", false, "Print JSON instead of text")
	hashCmd.Flags().String("scheme", "", "Print only this scheme's token (current or legacy)")
	rootCmd.AddCommand(hashCmd)
}

// printSchemeTokens writes one token per key.
func printSchemeTokens(w io.Writer, scheme intlhash.Scheme, keys []string) {
	for _, key := range keys {
		fmt.Fprintln(w, intlhash.ForScheme(scheme, key))
	}
}
