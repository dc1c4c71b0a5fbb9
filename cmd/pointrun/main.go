package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/pointrun/internal/config"
	plog "github.com/sawpanic/pointrun/internal/log"
	"github.com/sawpanic/pointrun/internal/telemetry"
)

const (
	appName = "pointrun"
	version = "v0.4.0"
)

// app carries what every subcommand needs once flags are parsed
type app struct {
	configPath string
	envFile    string
	logLevel   string
	logFormat  string

	cfg     *config.Config
	metrics *telemetry.MetricsRegistry
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           appName,
		Short:         "Points-based signal backtester and grid optimizer",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `pointrun scores OHLCV bars with multiplicative indicator crossover points,
turns the points into long/short signals, simulates one position per instrument
and searches threshold/weight grids for the fittest parameter set.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "YAML config file (defaults apply when empty)")
	flags.StringVar(&a.envFile, "env-file", "", "Env file loaded before overrides (default .env when present)")
	flags.StringVar(&a.logLevel, "log-level", "info", "Log level (trace|debug|info|warn|error)")
	flags.StringVar(&a.logFormat, "log-format", plog.FormatAuto, "Log format (auto|console|json)")

	rootCmd.AddCommand(
		newBacktestCmd(a),
		newOptimizeCmd(a),
		newScanCmd(a),
		newMonitorCmd(a),
	)
	return rootCmd
}

func (a *app) init() error {
	if err := plog.Setup(a.logLevel, a.logFormat); err != nil {
		return err
	}
	if err := config.LoadEnv(a.envFile); err != nil {
		return err
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv(os.LookupEnv)

	a.cfg = cfg
	a.metrics = telemetry.NewMetricsRegistry()

	log.Debug().
		Str("config", a.configPath).
		Str("source", cfg.Data.Source).
		Strs("symbols", cfg.Data.Symbols).
		Str("interval", cfg.Data.Interval).
		Msg("Configuration loaded")
	return nil
}
