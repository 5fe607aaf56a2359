package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/kramelec/eRPC/internal/logger"
	"github.com/kramelec/eRPC/pkg/config"
	"github.com/kramelec/eRPC/pkg/metrics"
	promexp "github.com/kramelec/eRPC/pkg/metrics/prometheus"
	"github.com/kramelec/eRPC/pkg/nexus"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the eRPC daemon",
	Long: `Start the eRPC daemon: create the process-wide Nexus, bind the
management UDP port, spawn the session-management thread and the background
worker pool, and (when enabled) serve Prometheus metrics.

Examples:
  # Start with the default config location
  erpcd start

  # Start with a custom config file
  erpcd start --config /etc/erpc/config.yaml

  # Override settings through the environment
  ERPC_LOGGING_LEVEL=DEBUG erpcd start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return err
	}

	logger.Info("starting erpcd", "version", Version,
		logger.KeyHostname, cfg.Nexus.Hostname,
		logger.KeyUDPPort, cfg.Nexus.MgmtUDPPort)

	var nexusMetrics metrics.NexusMetrics
	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		nexusMetrics = promexp.NewNexusMetrics(prometheus.DefaultRegisterer)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			logger.Info("metrics server listening", "port", cfg.Metrics.Port)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", logger.KeyError, err.Error())
			}
		}()
	}

	opts := []nexus.Option{
		nexus.WithSMThreadCore(cfg.Nexus.SMThreadCore),
		nexus.WithSMPollInterval(cfg.Nexus.SMPollInterval),
	}
	if nexusMetrics != nil {
		opts = append(opts, nexus.WithMetrics(nexusMetrics))
	}

	nx, err := nexus.New(cfg.Nexus.Hostname, cfg.Nexus.MgmtUDPPort,
		cfg.Nexus.NumBgThreads, opts...)
	if err != nil {
		return fmt.Errorf("failed to create nexus: %w", err)
	}

	// Block until asked to stop.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	nx.Close()

	if metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown", logger.KeyError, err.Error())
		}
	}
	return nil
}
