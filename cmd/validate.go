package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/lead-verifier/internal/config"
	"github.com/sells-group/lead-verifier/internal/scraper"
)

// plan is the resolved configuration printed by validate.
type plan struct {
	Orchestrator config.OrchestratorConfig `yaml:"orchestrator"`
	Scrapers     []planEntry               `yaml:"scrapers"`
	Skipped      []string                  `yaml:"skipped,omitempty"`
}

type planEntry struct {
	Class        string `yaml:"class"`
	scraper.Info `yaml:",inline"`
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and print the resolved scraper plan as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := orchestratorOptions(cfg, nil); err != nil {
			return err
		}
		reg := scraper.DefaultRegistry()
		built, err := scraper.Build(cfg.Scrapers, reg, scraper.BuildOptions{})
		if err != nil {
			return eris.Wrap(err, "build scrapers")
		}

		p := plan{Orchestrator: cfg.Orchestrator}
		enabled := cfg.EnabledScrapers()
		for i, s := range built {
			class, _ := reg.Resolve(enabled[i].Class)
			p.Scrapers = append(p.Scrapers, planEntry{Class: class, Info: scraper.Describe(s)})
		}
		for _, d := range cfg.Scrapers {
			if !d.IsEnabled() {
				p.Skipped = append(p.Skipped, d.DisplayName())
			}
		}

		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(p); err != nil {
			return eris.Wrap(err, "encode plan")
		}
		return enc.Close()
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
