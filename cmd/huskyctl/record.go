package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/banshee-data/huskylens/internal/config"
	"github.com/banshee-data/huskylens/internal/db"
	"github.com/banshee-data/huskylens/internal/huskylens"
	"github.com/banshee-data/huskylens/internal/monitoring"
	"github.com/banshee-data/huskylens/internal/recorder"
	"github.com/banshee-data/huskylens/internal/report"
	"github.com/banshee-data/huskylens/internal/timeutil"
)

func recordCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Poll the device and store every snapshot in sqlite",
		Long: `record polls the device for blocks or arrows on a fixed interval and
stores each response in a sqlite database until interrupted.

When --listen is set, /metrics serves prometheus metrics and /debug/
serves snapshot inspection and a SQL console (loopback callers only).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.record(ctx)
		},
	}
	f := cmd.Flags()
	f.String("db", "huskylens.db", "sqlite database path")
	f.Duration("interval", time.Second, "poll interval")
	f.String("kind", config.KindBlocks, "record kind: blocks or arrows")
	f.Bool("learned", false, "only record learned ids")
	f.String("algorithm", "", "switch to this algorithm before recording")
	f.String("listen", "localhost:8081", "debug and metrics listen address, empty to disable")
	return cmd
}

func (a *app) record(ctx context.Context) error {
	store, err := db.NewDB(a.cfg.Recorder.Database, a.logger)
	if err != nil {
		return fmt.Errorf("open database %s: %w", a.cfg.Recorder.Database, err)
	}
	defer store.Close()

	a.metrics = monitoring.NewMetrics()

	if a.cfg.Debug.Listen != "" {
		shutdown, err := a.serveDebug(store)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	alg, setAlg := a.cfg.RecorderAlgorithm()
	return a.withClient(func(c *huskylens.Client) error {
		rec := &recorder.Recorder{
			Source:       c,
			Store:        store,
			Clock:        timeutil.RealClock{},
			Interval:     a.cfg.Recorder.Interval,
			Kind:         a.cfg.Recorder.Kind,
			Learned:      a.cfg.Recorder.Learned,
			Algorithm:    alg,
			SetAlgorithm: setAlg,
			Logger:       a.logger,
			Metrics:      a.metrics,
		}
		return rec.Run(ctx)
	})
}

// serveDebug starts the metrics and debug listener and returns a function
// that shuts it down.
func (a *app) serveDebug(store *db.DB) (func(), error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	debug, err := store.AttachAdminRoutes(mux, a.cfg.Recorder.Database)
	if err != nil {
		return nil, err
	}
	debug.Handle("positions", "Scatter chart of recent positions (?kind=blocks|arrows&limit=n)", report.ChartHandler(store))

	ln, err := net.Listen("tcp", a.cfg.Debug.Listen)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", a.cfg.Debug.Listen, err)
	}
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	log := a.logger.Named("http")
	log.Info("debug server listening", zap.String("addr", ln.Addr().String()))

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("debug server failed", zap.Error(err))
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("debug server shutdown", zap.Error(err))
			_ = server.Close()
		}
	}, nil
}
