package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-verifier/internal/metrics"
	"github.com/sells-group/lead-verifier/internal/scraper"
	"github.com/sells-group/lead-verifier/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the verification HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd)
		defer stop()

		m := metrics.New()
		opts, err := orchestratorOptions(cfg, m)
		if err != nil {
			return err
		}
		scrapers, err := scraper.Build(cfg.Scrapers, scraper.DefaultRegistry(), scraper.BuildOptions{Metrics: m})
		if err != nil {
			return eris.Wrap(err, "build scrapers")
		}
		if len(scrapers) == 0 {
			zap.L().Warn("serving with no scrapers enabled")
		}

		api := server.New(server.Options{
			Scrapers:       scrapers,
			Orchestrator:   opts,
			Metrics:        m,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			MaxLeads:       cfg.Server.MaxLeads,
			JobRetention:   cfg.Server.JobRetention,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := api.Jobs().Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("jobs did not stop in time", zap.Error(err))
			}
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port), zap.Int("scrapers", len(scrapers)))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
