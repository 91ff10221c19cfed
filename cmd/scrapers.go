package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/lead-verifier/internal/scraper"
)

var scrapersCmd = &cobra.Command{
	Use:         "scrapers",
	Short:       "List the registered scraper classes",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipConfig: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := scraper.DefaultRegistry()
		out := cmd.OutOrStdout()
		for _, key := range reg.Keys() {
			line := key
			if aliases := reg.Aliases(key); len(aliases) > 0 {
				line += "\t(aliases: " + strings.Join(aliases, ", ") + ")"
			}
			if _, err := fmt.Fprintln(out, line); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scrapersCmd)
}
