// Command process-pilot is the supervisor entry point (spec.md §6 "CLI
// surface (supervisor entry)"): it loads a manifest, builds a Supervisor,
// registers the built-in metrics plugin plus any discovered via
// --plugins, and blocks until the fleet is torn down.
package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/engineerjames/process-pilot/internal/errs"
	"github.com/engineerjames/process-pilot/internal/manifest"
	"github.com/engineerjames/process-pilot/internal/metrics"
	"github.com/engineerjames/process-pilot/internal/pluginload"
	"github.com/engineerjames/process-pilot/internal/supervisor"
)

// Exit codes per spec.md §6.
const (
	exitOK              = 0
	exitManifestInvalid = 1
	exitStartupFailure  = 2
	exitInternalError   = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var (
		pluginsDir   string
		metricsAddr  string
		logLevel     string
		tickMS       int
		pollMS       int
	)

	exitCode := exitOK
	cmd := &cobra.Command{
		Use:   "process-pilot <manifest-path>",
		Short: "Supervise a fleet of OS processes described by a manifest",
		Args:  cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, posArgs []string) error {
			code, err := runSupervisor(posArgs[0], pluginsDir, metricsAddr, logLevel, tickMS, pollMS)
			exitCode = code
			return err
		},
	}

	cmd.Flags().StringVar(&pluginsDir, "plugins", "", "directory of compiled plugin .so files to load")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "if set, serve Prometheus /metrics on this address")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "hclog level: trace, debug, info, warn, error")
	cmd.Flags().IntVar(&tickMS, "tick-ms", 0, "monitor loop tick interval in milliseconds (0 = default)")
	cmd.Flags().IntVar(&pollMS, "poll-ms", 0, "readiness poll interval in milliseconds (0 = default)")

	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "process-pilot:", err)
		if exitCode == exitOK {
			exitCode = exitInternalError
		}
		return exitCode
	}
	return exitCode
}

func runSupervisor(manifestPath, pluginsDir, metricsAddr, logLevel string, tickMS, pollMS int) (int, error) {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "process-pilot",
		Level: hclog.LevelFromString(logLevel),
	})

	m, err := manifest.Load(manifestPath)
	if err != nil {
		logger.Error("failed to load manifest", "error", err)
		return exitManifestInvalid, err
	}

	promReg := prometheus.NewRegistry()
	metricsPlugin := metrics.New(promReg)
	if metricsAddr != "" {
		serveMetrics(logger, metricsAddr, promReg)
	}

	opts := supervisor.Options{
		Logger:       logger,
		TickInterval: time.Duration(tickMS) * time.Millisecond,
		PollInterval: time.Duration(pollMS) * time.Millisecond,
	}

	sup, err := supervisor.New(m, opts)
	if err != nil {
		var manifestErr *errs.ManifestError
		if errors.As(err, &manifestErr) {
			logger.Error("manifest invalid", "error", err)
			return exitManifestInvalid, err
		}
		logger.Error("failed to build supervisor", "error", err)
		return exitInternalError, err
	}

	plugins, err := pluginload.Load(pluginsDir)
	if err != nil {
		logger.Error("failed to load plugins", "error", err)
		return exitInternalError, err
	}

	if err := sup.RegisterPlugins(metricsPlugin); err != nil {
		logger.Error("failed to register built-in plugins", "error", err)
		return exitInternalError, err
	}
	if err := sup.RegisterPlugins(plugins...); err != nil {
		logger.Error("failed to register plugins", "error", err)
		return exitInternalError, err
	}

	if err := sup.Start(); err != nil {
		var startupErr *errs.StartupFailure
		if errors.As(err, &startupErr) {
			logger.Error("startup failed", "error", err)
			return exitStartupFailure, err
		}
		var manifestErr *errs.ManifestError
		if errors.As(err, &manifestErr) {
			logger.Error("manifest invalid", "error", err)
			return exitManifestInvalid, err
		}
		logger.Error("unexpected error starting supervisor", "error", err)
		return exitInternalError, err
	}

	logger.Info("fleet started", "processes", len(m.Processes))
	sup.Wait()
	logger.Info("fleet stopped cleanly")
	return exitOK, nil
}

func serveMetrics(logger hclog.Logger, addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()
}
