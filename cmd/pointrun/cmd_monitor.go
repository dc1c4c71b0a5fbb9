package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	monitor "github.com/sawpanic/pointrun/internal/interfaces/http"
)

func newMonitorCmd(a *app) *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Start the monitoring HTTP server",
		Long:  "Serves /health, /metrics and /runs/{id} from the configured run store until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("host") {
				a.cfg.Monitor.Host = host
			}
			if cmd.Flags().Changed("port") {
				a.cfg.Monitor.Port = port
			}
			return a.runMonitor(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Listen host (overrides monitor.host)")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides monitor.port)")
	return cmd
}

func (a *app) runMonitor(ctx context.Context) error {
	if a.cfg.Monitor.Port <= 0 || a.cfg.Monitor.Port > 65535 {
		return fmt.Errorf("invalid port: %d", a.cfg.Monitor.Port)
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	server, err := monitor.NewServer(a.cfg.Monitor, monitor.Dependencies{
		Runs:    store.Runs(),
		Metrics: a.metrics.MetricsHandler(),
		Checks:  map[string]monitor.Checker{"database": store},
		Version: version,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	log.Info().Msg("Monitor server stopped")
	return nil
}
