package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yairfalse/kartta/config"
	"github.com/yairfalse/kartta/mapsvc"
	"github.com/yairfalse/kartta/newrelic"
	"github.com/yairfalse/kartta/pipeline"
	"github.com/yairfalse/kartta/runlog"
	"github.com/yairfalse/kartta/telemetry"
)

var (
	runConfigPath string
	runAppCode    string
	runSegment    string
	runMonth      string
	runOutput     string
	runBaseURL    string
	runDebug      bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one fetch-join-report cycle",
	Long: `Fetch the applications, apps, and mappings datasets, join
services onto resources, enrich each resource with its New Relic
account classification, and write the two CSV reports.

A failed source fetch degrades that dataset to empty and the run
continues with partial data.`,
	Example: `  kartta run --app-code APP1                  # current month, segment from config
  kartta run --app-code APP1 --month 2026-07  # specific month
  kartta run --config kartta.yaml --debug     # verbose logging`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "", "Config file (YAML)")
	runCmd.Flags().StringVarP(&runAppCode, "app-code", "a", "", "Application code to report on")
	runCmd.Flags().StringVarP(&runSegment, "segment", "s", "", "Business segment")
	runCmd.Flags().StringVarP(&runMonth, "month", "m", "", "Report month (YYYY-MM, default current)")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "Output root directory")
	runCmd.Flags().StringVar(&runBaseURL, "base-url", "", "Mapping service base URL")
	runCmd.Flags().BoolVar(&runDebug, "debug", false, "Enable debug logging")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}
	params, err := mergeRunParams(cfg)
	if err != nil {
		return err
	}

	level := cfg.Log.Level
	if runDebug {
		level = "debug"
	}
	logCloser, logPath, err := telemetry.SetupLogging(level, cfg.Output.LogDir)
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	otelShutdown, err := telemetry.InitOTEL(ctx, telemetry.Config{
		ServiceName:    cfg.OTEL.ServiceName,
		ServiceVersion: version,
		OTELEndpoint:   cfg.OTEL.Endpoint,
		Insecure:       cfg.OTEL.Insecure,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	p, history, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	if history != nil {
		defer func() { _ = history.Close() }()
	}

	log.Info().
		Str("app_code", params.AppCode).
		Str("segment", params.Segment).
		Str("month", params.Month).
		Str("log_file", logPath).
		Msg("kartta starting")

	var g run.Group
	g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))
	g.Add(func() error {
		defer cancel()
		result, err := p.Run(ctx, params)
		if err != nil {
			return err
		}
		log.Info().
			Int("resource_rows", result.ResourceRows).
			Int("service_rows", result.ServiceRows).
			Int("lookup_matches", result.LookupMatches).
			Strs("degraded", result.DegradedFetches).
			Str("dir", result.Paths.Dir).
			Msg("run complete")
		return nil
	}, func(error) {
		cancel()
	})

	runErr := g.Run()

	metricsPath := cfg.Output.MetricsFile
	if metricsPath == "" {
		metricsPath = filepath.Join(cfg.Output.Dir, "kartta_metrics.prom")
	}
	if err := telemetry.FlushMetrics(metricsPath); err != nil {
		log.Warn().Err(err).Msg("metrics flush failed")
	}

	var sig run.SignalError
	if errors.As(runErr, &sig) {
		log.Info().Str("signal", sig.Signal.String()).Msg("interrupted")
		return runErr
	}
	return runErr
}

func loadRunConfig() (*config.Config, error) {
	if runConfigPath != "" {
		return config.Load(runConfigPath)
	}

	cfg := config.Default()
	if runBaseURL != "" {
		cfg.API.BaseURL = runBaseURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w (use --config or --base-url)", err)
	}
	return cfg, nil
}

func mergeRunParams(cfg *config.Config) (pipeline.Params, error) {
	params := pipeline.Params{
		AppCode:    cfg.Run.AppCode,
		Segment:    cfg.Run.Segment,
		Month:      cfg.Run.Month,
		OutputRoot: cfg.Output.Dir,
	}
	if runAppCode != "" {
		params.AppCode = runAppCode
	}
	if runSegment != "" {
		params.Segment = runSegment
	}
	if runMonth != "" {
		params.Month = runMonth
	}
	if runOutput != "" {
		params.OutputRoot = runOutput
	}
	if params.Month == "" {
		params.Month = time.Now().Format("2006-01")
	}

	if params.AppCode == "" {
		return pipeline.Params{}, fmt.Errorf("app code is required (--app-code or run.app_code in config)")
	}
	return params, nil
}

func buildPipeline(cfg *config.Config) (*pipeline.Pipeline, *runlog.Store, error) {
	source := mapsvc.New(mapsvc.Config{
		BaseURL:            cfg.API.BaseURL,
		Timeout:            cfg.API.Timeout,
		InsecureSkipVerify: cfg.API.InsecureSkipVerify,
	})

	var accounts newrelic.AccountLookup
	if key := cfg.APIKey(); key != "" {
		accounts = newrelic.NewClient(newrelic.Config{
			URL:                cfg.NewRelic.URL,
			APIKey:             key,
			Timeout:            cfg.NewRelic.Timeout,
			InsecureSkipVerify: cfg.API.InsecureSkipVerify,
		})
	}
	resolver := newrelic.NewResolver(accounts, cfg.NewRelic.DisabledSentinel)

	history, err := openHistory(cfg)
	if err != nil {
		// audit-only; a locked or unwritable history must not block the run
		log.Warn().Err(err).Msg("run history unavailable")
		history = nil
	}

	return pipeline.New(source, resolver, history), history, nil
}

func openHistory(cfg *config.Config) (*runlog.Store, error) {
	if err := ensureDir(cfg.Output.RunLogDir); err != nil {
		return nil, err
	}
	return runlog.Open(cfg.Output.RunLogDir)
}
