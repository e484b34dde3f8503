package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/soundbench/soundbench/internal/config"
	"github.com/soundbench/soundbench/internal/db"
	"github.com/soundbench/soundbench/internal/engine"
	"github.com/soundbench/soundbench/internal/logbuffer"
	"github.com/soundbench/soundbench/internal/logging"
	"github.com/soundbench/soundbench/internal/media"
	"github.com/soundbench/soundbench/internal/prefs"
	"github.com/soundbench/soundbench/internal/render"
	"github.com/soundbench/soundbench/internal/server"
	"github.com/soundbench/soundbench/internal/session"
	"github.com/soundbench/soundbench/internal/telemetry"
	"github.com/soundbench/soundbench/internal/version"
)

var (
	logger zerolog.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "soundbench",
	Short: "Soundbench - blind ABX listening test bench",
	Long:  "Soundbench runs blind ABX listening tests with gapless, single-audible-source playback and sample-accurate track switching.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Soundbench server",
	Long:  "Start the audio renderer, playback engine and HTTP control API",
	RunE:  runServe,
}

var validateCmd = &cobra.Command{
	Use:   "validate [plan files...]",
	Short: "Validate test plan files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it).
func loadConfig(logBuf *logbuffer.Buffer) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if logBuf != nil {
		logger = logging.SetupWithWriter(cfg.Environment, logbuffer.NewWriter(logBuf, nil))
	} else {
		logger = logging.Setup(cfg.Environment)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	logBuf := logbuffer.New(10000)
	if err := loadConfig(logBuf); err != nil {
		return err
	}

	logger.Info().Str("version", version.Version).Msg("Soundbench starting")

	tracerProvider, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
		ServiceName:    "soundbench",
		ServiceVersion: version.Version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	database, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := db.Close(database); err != nil {
			logger.Error().Err(err).Msg("close database")
		}
	}()
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	store := prefs.NewStore(database, logger)
	volumeWriter := prefs.NewDebouncedVolume(store, cfg.VolumeDebounce(), logger)
	defer volumeWriter.Flush()

	renderer, err := render.New(render.Config{
		SampleRate: cfg.SampleRate,
		Channels:   2,
	}, logger)
	if err != nil {
		return fmt.Errorf("open audio output: %w", err)
	}
	defer renderer.Close()

	eng, err := engine.New(renderer, engineConfig(cfg), volumeWriter, logger)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	eng.SetVolume(store.Volume(1.0))

	mediaSvc := media.NewService(cfg.MediaRoot, logger)
	sessions := session.NewService(database, mediaSvc, eng, logger)

	updates := version.NewChecker(logger)
	updates.Start(context.Background())
	defer updates.Stop()

	srv, err := server.New(cfg, eng, renderer, sessions, logBuf, updates, logger)
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	go serveMetrics(cfg.MetricsBind)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down gracefully...")

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	eng.Stop()
	if err := srv.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("Soundbench stopped")
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	failed := false
	for _, path := range args {
		p, err := session.LoadPlan(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed = true
			continue
		}
		fmt.Printf("%s: plan %q, %d comparison(s)\n", path, p.Name, len(p.Comparisons))
	}
	if failed {
		return fmt.Errorf("validation failed")
	}
	return nil
}

func engineConfig(cfg *config.Config) engine.Config {
	ms := func(v int) float64 { return float64(v) / 1000 }
	return engine.Config{
		Lookahead: ms(cfg.LookaheadMs),
		Crossfade: ms(cfg.CrossfadeMs),
		Duck:      ms(cfg.DuckMs),
		SeekFade:  ms(cfg.SeekFadeMs),
		StopFade:  ms(cfg.StopFadeMs),
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info().Str("addr", addr).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
