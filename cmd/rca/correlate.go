package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/invertedv/rca"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

type CorrelateCmd struct{}

func NewCorrelateCmd() *CorrelateCmd {
	return &CorrelateCmd{}
}

func (c *CorrelateCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "correlate <manager-code>",
		Short: "Run the RCA for one manager: which team KPIs lead the business KPIs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			maxLag, err := cmd.Flags().GetInt("max-lag")
			if err != nil {
				return fmt.Errorf("failed to get max-lag flag: %w", err)
			}
			kpis, err := cmd.Flags().GetStringSlice("kpi")
			if err != nil {
				return fmt.Errorf("failed to get kpi flag: %w", err)
			}
			csvPath, err := cmd.Flags().GetString("csv")
			if err != nil {
				return fmt.Errorf("failed to get csv flag: %w", err)
			}

			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}
			if maxLag > 0 {
				cfg.MaxLag = maxLag
			}

			engine, err := newEngine(cfg, log)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			store, err := openStore(cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			md, err := loadManager(ctx, store, args[0], true)
			if err != nil {
				return err
			}

			prepared := rca.PrepareRCA(md.team, md.domain)
			if prepared.Empty() {
				log.Warn("nothing to correlate", "manager", rca.Short(args[0]), "team_rows", len(md.team), "domain_rows", len(md.domain))
				return nil
			}

			if len(kpis) > 0 {
				if err := prepared.Restrict(kpis...); err != nil {
					return err
				}
			}

			results, err := engine.RunPrepared(ctx, prepared)
			if err != nil {
				return err
			}

			printProfile(md.profile, rca.SummarizeTeams(md.team))
			if ds := rca.SummarizeDomain(md.domain); ds != nil {
				fmt.Printf("business unit: %s  effect kpis: %d  causes tested: %d\n\n", ds.BusinessUnit, len(prepared.Mother.IDs()), len(prepared.Nodes))
			}

			renderResults(os.Stdout, results)

			if csvPath != "" {
				if err := results.WriteCSV(csvPath); err != nil {
					return fmt.Errorf("failed to write %s: %w", csvPath, err)
				}
				log.Info("results written", "file", csvPath, "rows", len(results))
			}

			return nil
		},
	}

	cmd.Flags().Int("max-lag", 0, "maximum lag in months (default from config, 6)")
	cmd.Flags().StringSlice("kpi", nil, "restrict the effects to these business KPI codes")
	cmd.Flags().String("csv", "", "also write the results to this CSV file")

	return cmd
}

func renderResults(w io.Writer, results rca.Results) {
	if len(results) == 0 {
		fmt.Fprintln(w, "no significant correlations found")
		return
	}

	weak, moderate, strong := results.Counts()
	fmt.Fprintf(w, "%d significant pairs: * %d  ** %d  *** %d\n\n", len(results), weak, moderate, strong)

	codes, groups := results.ByEffect()
	for _, code := range codes {
		fmt.Fprintln(w, code)
		table := tablewriter.NewWriter(w)
		table.SetAutoWrapText(false)
		table.SetAutoFormatHeaders(false)
		table.SetHeader([]string{"cause", "lag", "p-value", "TE", "EE", "signal"})
		for _, res := range groups[code] {
			table.Append([]string{res.CauseKPI, strconv.Itoa(res.Lag), formatFloat(res.MinPValue),
				formatFloat(res.TransferEntropy), formatFloat(res.ExplainedEntropy), string(res.Signal())})
		}
		table.Render()
		fmt.Fprintln(w)
	}
}
