package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-verifier/internal/config"
	"github.com/sells-group/lead-verifier/internal/leadio"
	"github.com/sells-group/lead-verifier/internal/metrics"
	"github.com/sells-group/lead-verifier/internal/model"
	"github.com/sells-group/lead-verifier/internal/orchestrator"
	"github.com/sells-group/lead-verifier/internal/scraper"
)

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
}

// orchestratorOptions maps the orchestrator config section onto Options.
func orchestratorOptions(c *config.Config, m *metrics.Metrics) (orchestrator.Options, error) {
	mode, err := orchestrator.ParseMode(c.Orchestrator.Mode)
	if err != nil {
		return orchestrator.Options{}, eris.Wrapf(config.ErrConfiguration, "%v", err)
	}
	return orchestrator.Options{
		Mode:           mode,
		MaxWorkers:     c.Orchestrator.MaxWorkers,
		RaiseOnError:   c.Orchestrator.RaiseOnError,
		ScraperTimeout: time.Duration(c.Orchestrator.ScraperTimeoutSecs) * time.Second,
		Metrics:        m,
	}, nil
}

// runVerify executes one batch: ingest, fan out, merge, export.
func runVerify(ctx context.Context, c *config.Config, input, output string) error {
	log := zap.L().With(zap.String("run_id", uuid.New().String()))

	if len(c.EnabledScrapers()) == 0 {
		log.Warn("no scrapers enabled; nothing to do", zap.String("input", input))
		return nil
	}

	m := metrics.New()
	opts, err := orchestratorOptions(c, m)
	if err != nil {
		return err
	}
	scrapers, err := scraper.Build(c.Scrapers, scraper.DefaultRegistry(), scraper.BuildOptions{Metrics: m})
	if err != nil {
		return eris.Wrap(err, "build scrapers")
	}

	leads, err := leadio.ReadLeads(ctx, input, leadio.IngestOptions{
		SheetIndex:    c.Ingest.SheetIndex,
		ColumnMapping: c.Ingest.ColumnMapping,
	})
	if err != nil {
		return err
	}

	opts.OnResult = func(index, total int, r *model.AggregatedLeadResult) {
		log.Info("lead verified",
			zap.Int("lead", index+1),
			zap.Int("total", total),
			zap.String("name", r.Lead.DisplayName()),
			zap.Int("contacts", len(r.Contacts)),
			zap.Int("failures", len(r.Failures())),
		)
	}

	start := time.Now()
	results, err := orchestrator.New(scrapers, opts).Verify(ctx, leads)
	if err != nil {
		return eris.Wrap(err, "verify leads")
	}

	if err := leadio.WriteResults(output, results, leadio.ExportOptions{
		SheetName:          c.Export.SheetName,
		IncludeDiagnostics: c.Export.IncludeDiagnostics,
	}); err != nil {
		return err
	}

	log.Info("run complete",
		zap.String("input", input),
		zap.String("output", output),
		zap.Int("leads", len(leads)),
		zap.Int("results", len(results)),
		zap.Int("scrapers", len(scrapers)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}
