package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-verifier/internal/config"
)

// skipConfig marks commands that run without a configuration file.
const skipConfig = "skip-config"

var (
	cfg *config.Config

	configPath         string
	logLevel           string
	mode               string
	maxWorkers         int
	raiseOnError       bool
	includeDiagnostics bool
)

var rootCmd = &cobra.Command{
	Use:   "lead-verifier INPUT OUTPUT",
	Short: "Verify leads against configured data sources",
	Long: "Reads leads from a CSV, TSV or XLSX file, queries every enabled scraper for each lead, " +
		"merges and deduplicates the contacts found, and writes one aggregated row per lead.",
	Args:          cobra.ExactArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[skipConfig] == "true" {
			return config.InitLogger(config.LogConfig{Level: levelOr("info"), Format: "console"})
		}

		c, err := config.Load(configPath)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		applyFlags(cmd, c)
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd)
		defer stop()
		return runVerify(ctx, cfg, args[0], args[1])
	},
}

// applyFlags lets explicitly set flags override the loaded configuration.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		c.Log.Level = logLevel
	}
	if flags.Changed("mode") {
		c.Orchestrator.Mode = mode
	}
	if flags.Changed("max-workers") {
		c.Orchestrator.MaxWorkers = maxWorkers
	}
	if flags.Changed("raise-on-error") {
		c.Orchestrator.RaiseOnError = raiseOnError
	}
	if flags.Changed("include-diagnostics") {
		c.Export.IncludeDiagnostics = includeDiagnostics
	}
}

func levelOr(def string) string {
	if logLevel != "" {
		return logLevel
	}
	return def
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "path to the JSON or YAML configuration file")
	pf.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides log.level")

	f := rootCmd.Flags()
	f.StringVar(&mode, "mode", "sequential", "fan-out mode: sequential or concurrent")
	f.IntVar(&maxWorkers, "max-workers", 0, "per-lead worker cap in concurrent mode (0 = one per scraper)")
	f.BoolVar(&raiseOnError, "raise-on-error", false, "abort the run on the first scraper failure")
	f.BoolVar(&includeDiagnostics, "include-diagnostics", false, "append a diagnostics column listing failed sources")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		zap.L().Error("lead-verifier failed", zap.Error(err))
		rootCmd.PrintErrln("Error:", err)
		os.Exit(1)
	}
}
