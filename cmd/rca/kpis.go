package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/invertedv/rca"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// columns shown by kpis, besides month and team
var kpiColumns = []string{rca.ColHeadcount, rca.ColTotalFTE, rca.ColAttritionRate, rca.ColAvgTenure, rca.ColTeamHealth, rca.ColHighRetentionRisk}

type KPIsCmd struct{}

func NewKPIsCmd() *KPIsCmd {
	return &KPIsCmd{}
}

func (c *KPIsCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kpis <manager-code>",
		Short: "Show a manager's monthly team KPIs, aggregated and per visible team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			teams, err := cmd.Flags().GetBool("teams")
			if err != nil {
				return fmt.Errorf("failed to get teams flag: %w", err)
			}
			months, err := cmd.Flags().GetInt("months")
			if err != nil {
				return fmt.Errorf("failed to get months flag: %w", err)
			}

			cfg, log, err := setup(cmd)
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

			md, err := loadManager(ctx, store, args[0], false)
			if err != nil {
				return err
			}

			if len(md.team) == 0 {
				log.Warn("no team kpis", "manager", rca.Short(args[0]))
				return nil
			}

			filtered := rca.ApplyTeamSizeFilter(md.team, cfg.MinTeamHeadcount)
			printProfile(md.profile, rca.SummarizeTeams(md.team))

			var show []rca.TeamRecord
			for _, rec := range filtered {
				if teams || rec.TeamLabel() == rca.AllTeams {
					show = append(show, rec)
				}
			}

			renderTeamKPIs(lastMonths(show, months))
			fmt.Printf("\nvisible teams: %s\n", strings.Join(rca.VisibleTeams(filtered), ", "))

			return nil
		},
	}

	cmd.Flags().Bool("teams", false, "also show each team with at least the minimum headcount")
	cmd.Flags().Int("months", 12, "number of most recent months to show, 0 for all")

	return cmd
}

func printProfile(p *rca.Profile, s *rca.TeamSummary) {
	fmt.Printf("manager:     %s\n", p.Code)
	fmt.Printf("level:       %s  function: %s  geo: %s\n", p.ManagementLevel, p.PrimaryFunction, p.GeoCode)
	fmt.Printf("kpi mapping: %s %s\n", p.KPIMapping, p.KPIMappingLabel)
	fmt.Printf("geos:        %s\n", strings.Join(p.GeoCodes, ", "))
	if s != nil {
		fmt.Printf("teams:       %d  headcount: %.0f  fte: %.1f  months: %s to %s\n", s.Teams, s.TotalHeadcount, s.TotalFTE,
			s.FirstMonth.Format("2006-01"), s.LatestMonth.Format("2006-01"))
	}
	fmt.Println()
}

// lastMonths keeps the rows of the n most recent months (all if n <= 0).
func lastMonths(recs []rca.TeamRecord, n int) []rca.TeamRecord {
	if n <= 0 {
		return recs
	}

	months := make(map[string]bool)
	for _, rec := range recs {
		months[rec.Month.Format("2006-01")] = true
	}

	var keys []string
	for k := range months {
		keys = append(keys, k)
	}
	if len(keys) <= n {
		return recs
	}

	sort.Strings(keys)
	cut := keys[len(keys)-n]
	var out []rca.TeamRecord
	for _, rec := range recs {
		if rec.Month.Format("2006-01") >= cut {
			out = append(out, rec)
		}
	}

	return out
}

func renderTeamKPIs(recs []rca.TeamRecord) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeader(append([]string{"month", "team"}, kpiColumns...))
	for _, rec := range recs {
		row := []string{rec.Month.Format("2006-01"), rec.TeamLabel()}
		for _, col := range kpiColumns {
			row = append(row, formatFloat(rec.Metric(col)))
		}
		table.Append(row)
	}
	table.Render()
}

func formatFloat(x float64) string {
	if math.IsNaN(x) {
		return "-"
	}

	return fmt.Sprintf("%.2f", x)
}
