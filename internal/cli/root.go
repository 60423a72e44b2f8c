package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/absenta/internal/control"
	"github.com/vietddude/absenta/internal/core/config"
)

var (
	cfgPath string
	isDebug bool
	offline bool
)

var rootCmd = &cobra.Command{
	Use:   "absenta",
	Short: "ABSENTA resilience agent",
	Long: `absenta keeps ABSENTA attendance data flowing over unreliable links: it retries
backend calls with backoff, queues them while offline, caches data durably and
exposes health and Prometheus metrics.`,
	Run: runAgent,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "force offline mode and skip connectivity probing")
}

// loadConfig reads .env and the config file and sets up logging. A missing
// config file falls back to defaults.
func loadConfig(cmd *cobra.Command) *config.AppConfig {
	_ = godotenv.Load()

	var cfg *config.AppConfig
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) && !cmd.Flags().Changed("config") {
		cfg = config.Default()
	} else {
		cfg, err = config.Load(cfgPath)
		if err != nil {
			stylelog.InitDefault()
			slog.Error("Failed to load config", "error", err)
			os.Exit(1)
		}
	}

	// Setup logging
	slogLevel := slog.LevelInfo
	if isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})

	return cfg
}

// newOneShotAgent builds an agent for a single command without the health
// server. With probe set, connectivity is checked once up front.
func newOneShotAgent(ctx context.Context, cfg *config.AppConfig, probe bool) *control.Agent {
	app, err := control.NewAgent(ctx, control.Config{
		App:                 cfg,
		Offline:             offline,
		DisableHealthServer: true,
	})
	if err != nil {
		slog.Error("Failed to initialize agent", "error", err)
		os.Exit(1)
	}
	if !probe {
		return app
	}
	if err := app.CheckConnectivity(ctx); err != nil {
		slog.Warn("Backend unreachable", "error", err)
	}
	return app
}

func stopAgent(app *control.Agent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Stop(ctx); err != nil {
		slog.Warn("Error during shutdown", "error", err)
	}
}

func runAgent(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)

	app, err := control.NewAgent(context.Background(), control.Config{
		App:     cfg,
		Offline: offline,
	})
	if err != nil {
		slog.Error("Failed to initialize agent", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start agent", "error", err)
		os.Exit(1)
	}

	slog.Info("Agent started", "config", cfgPath, "port", cfg.Server.Port)

	sig := <-sigChan
	slog.Info("Received signal, shutting down...", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}
}
