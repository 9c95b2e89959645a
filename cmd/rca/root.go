package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/invertedv/rca"
	"github.com/invertedv/rca/causal"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

type ExitCode int

const (
	exitCodeSuccess = 0
	exitCodeError   = 1
)

func Run() ExitCode {
	rootCmd := &cobra.Command{
		Use:           "rca",
		Short:         "Root-cause analysis of people KPIs against business KPIs.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := cmd.Help()
			if err != nil {
				return fmt.Errorf("failed to show help: %w", err)
			}
			return nil
		},
	}

	var verbose bool
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "set debug logging level")

	var configFile string
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file; RCA_DB_* environment variables override it")

	rootCmd.AddCommand(
		NewKPIsCmd().Command(),
		NewCorrelateCmd().Command(),
		NewEstimateCmd().Command(),
		NewManagersCmd().Command(),
	)

	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "error:", err)
		return exitCodeError
	}

	return exitCodeSuccess
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

// setup reads the persistent flags and loads the config.
func setup(cmd *cobra.Command) (*rca.Config, *slog.Logger, error) {
	verbose, err := cmd.Root().PersistentFlags().GetBool("verbose")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get verbose flag: %w", err)
	}
	configFile, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get config flag: %w", err)
	}

	log := newLogger(verbose)
	slog.SetDefault(log)

	cfg, err := rca.LoadConfig(configFile)
	if err != nil {
		return nil, nil, err
	}

	return cfg, log, nil
}

func openStore(cfg *rca.Config, log *slog.Logger) (*rca.Store, error) {
	d, err := rca.Connect(cfg, log)
	if err != nil {
		return nil, err
	}

	return rca.NewStore(d, cfg, log), nil
}

func newEngine(cfg *rca.Config, log *slog.Logger) (*causal.Engine, error) {
	return causal.New(
		causal.MaxLag(cfg.MaxLag),
		causal.Alpha(cfg.Alpha),
		causal.MinExplainedEntropy(*cfg.MinExplainedEntropy),
		causal.Bins(cfg.Bins),
		causal.Logger(log),
	)
}

// managerData is what both kpis and correlate load for a manager.
type managerData struct {
	profile *rca.Profile
	team    []rca.TeamRecord
	domain  []rca.DomainRecord
}

// loadManager loads the profile and team KPIs, and the domain KPIs when withDomain is set.
func loadManager(ctx context.Context, store *rca.Store, manager string, withDomain bool) (*managerData, error) {
	profile, err := store.Profile(ctx, manager)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, fmt.Errorf("manager %s not found", rca.Short(manager))
	}

	team, err := store.TeamKPIs(ctx, manager)
	if err != nil {
		return nil, err
	}

	md := &managerData{profile: profile, team: team}
	if !withDomain {
		return md, nil
	}

	if profile.KPIMapping == "" {
		return nil, fmt.Errorf("no kpi mapping for manager %s (searched %q)", rca.Short(manager), profile.SearchText)
	}

	if md.domain, err = store.DomainKPIs(ctx, profile.KPIMapping, profile.GeoCodes); err != nil {
		return nil, err
	}

	return md, nil
}
