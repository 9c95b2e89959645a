package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/invertedv/rca"
	"github.com/invertedv/rca/batch"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

type EstimateCmd struct{}

func NewEstimateCmd() *EstimateCmd {
	return &EstimateCmd{}
}

func (c *EstimateCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "estimate [manager-code...]",
		Short: "Run the RCA for many managers and report who has significant relationships",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := cmd.Flags().GetInt("limit")
			if err != nil {
				return fmt.Errorf("failed to get limit flag: %w", err)
			}
			workers, err := cmd.Flags().GetInt("workers")
			if err != nil {
				return fmt.Errorf("failed to get workers flag: %w", err)
			}
			maxLag, err := cmd.Flags().GetInt("max-lag")
			if err != nil {
				return fmt.Errorf("failed to get max-lag flag: %w", err)
			}
			output, err := cmd.Flags().GetString("output")
			if err != nil {
				return fmt.Errorf("failed to get output flag: %w", err)
			}
			all, err := cmd.Flags().GetBool("include-non-managers")
			if err != nil {
				return fmt.Errorf("failed to get include-non-managers flag: %w", err)
			}
			metricsAddr, err := cmd.Flags().GetString("metrics-addr")
			if err != nil {
				return fmt.Errorf("failed to get metrics-addr flag: %w", err)
			}

			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}
			if maxLag > 0 {
				cfg.MaxLag = maxLag
			}
			if workers > 0 {
				cfg.Workers = workers
			}

			engine, err := newEngine(cfg, log)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			managers := args
			if len(managers) == 0 {
				if managers, err = listManagers(ctx, cfg, log, limit, !all); err != nil {
					return err
				}
			}

			var metrics *batch.Metrics
			if metricsAddr != "" {
				reg := prometheus.NewRegistry()
				metrics = batch.NewMetrics(reg)
				if err := serveMetrics(ctx, log, metricsAddr, reg); err != nil {
					return err
				}
			}

			est, err := batch.New(&batch.Config{
				Logger:  log,
				Engine:  engine,
				Metrics: metrics,
				Workers: cfg.Workers,
				Output:  output,
				Connector: func(context.Context) (batch.Conn, error) {
					store, err := openStore(cfg, log)
					if err != nil {
						return nil, err
					}
					return store, nil
				},
			})
			if err != nil {
				return err
			}

			rep, err := est.Run(ctx, managers)
			if rep != nil {
				fmt.Println()
				rep.Summary.Render(os.Stdout, rep.Records)
				log.Info("batch finished", "run", rep.RunID, "processed", rep.Processed, "resumed", rep.Resumed, "elapsed", rep.Elapsed.Round(time.Second))
			}
			if errors.Is(err, context.Canceled) {
				log.Warn("interrupted; rerun with the same --output to resume")
				return nil
			}

			return err
		},
	}

	cmd.Flags().Int("limit", 0, "process at most this many managers from the latest snapshot, 0 for all")
	cmd.Flags().Int("workers", 0, "number of managers processed in parallel (default from config, 4)")
	cmd.Flags().Int("max-lag", 0, "maximum lag in months (default from config, 6)")
	cmd.Flags().StringP("output", "o", "", "CSV report; an existing file is resumed")
	cmd.Flags().Bool("include-non-managers", false, "also process employees with no reports")
	cmd.Flags().String("metrics-addr", "", "serve prometheus metrics on this address while running")

	return cmd
}

func listManagers(ctx context.Context, cfg *rca.Config, log *slog.Logger, limit int, managersOnly bool) ([]string, error) {
	store, err := openStore(cfg, log)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	return store.Managers(ctx, limit, managersOnly)
}

func serveMetrics(ctx context.Context, log *slog.Logger, addr string, reg *prometheus.Registry) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	log.Info("prometheus metrics server listening", "address", listener.Addr().String())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	httpSrv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(sctx)
	}()

	go func() {
		if err := httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "error", err)
		}
	}()

	return nil
}
