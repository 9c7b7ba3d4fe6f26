package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/twinplan/api/simulate"
	"github.com/kilianp07/twinplan/app"
	"github.com/kilianp07/twinplan/config"
	"github.com/kilianp07/twinplan/core/monitoring"
	"github.com/kilianp07/twinplan/core/planning"
	"github.com/kilianp07/twinplan/infra/logger"
	"github.com/kilianp07/twinplan/infra/metrics"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:          "twinplan",
	Short:        "Appliance load planning for twin world households",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New("main")
	rt, err := app.Build(ctx, *cfg, logger.New("planner"))
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.Errorf("service close: %v", err)
		}
		monitoring.Flush(2 * time.Second)
	}()

	if port := cfg.Metrics.PrometheusPort; port != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, ":"+port, log); err != nil {
				log.Errorf("prom server: %v", err)
			}
		}()
	}
	cancel, _ := rt.Progress.SubscribeFunc(func(p planning.Progress) {
		log.Debugw("planning phase done", map[string]any{
			"phase":       p.Phase,
			"cost":        p.Cost,
			"unscheduled": p.Unscheduled,
			"iterations":  p.Iterations,
		})
	})
	defer cancel()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           simulate.NewHandler(rt.Service, cfg.Server.Token, logger.New("api")),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", srv.Addr)
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	log.Infof("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownSeconds)*time.Second)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}
