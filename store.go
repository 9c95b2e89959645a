package rca

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
)

// maxManagers stands in for "no limit" in the managers query.
const maxManagers = 1_000_000_000

// Profile is a manager's own record from the latest snapshot, plus context from direct reports.
type Profile struct {
	Code             string
	ManagementLevel  string
	GeoCode          string
	Location         string
	GBULevel1        string
	Level02          string
	Level03          string
	PrimaryFunction  string
	IsManager        bool
	EmployeesManaged int
	DirectReports    int

	ReportsGBULevel1 string
	ReportsLevel02   string
	ReportsLevel03   string

	// GeoCodes are the distinct geographies of the manager's reports, sorted.
	GeoCodes []string

	KPIMapping      string // "" if no rule matched
	KPIMappingLabel string
	SearchText      string
}

// Store loads the team and domain KPI sources through a Dialect.
type Store struct {
	d *Dialect

	rules         MappingRules
	lookbackYears int

	log *slog.Logger
	now func() time.Time
}

// NewStore takes ownership of d: closing the Store closes d.
func NewStore(d *Dialect, cfg *Config, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}

	s := &Store{d: d, rules: DefaultMappingRules, lookbackYears: DefaultLookbackYears, log: log, now: time.Now}
	if cfg != nil {
		if len(cfg.MappingRules) > 0 {
			s.rules = cfg.MappingRules
		}
		s.lookbackYears = cfg.LookbackYears
	}

	return s
}

func (s *Store) Close() error {
	return s.d.Close()
}

func (s *Store) Dialect() *Dialect {
	return s.d
}

// Profile returns nil, nil if the manager is not in the latest snapshot.
func (s *Store) Profile(ctx context.Context, manager string) (*Profile, error) {
	var (
		rows []map[string]any
		e    error
	)
	if rows, e = s.d.Query(ctx, "profile", map[string]string{"Manager": s.d.Quote(manager)}); e != nil {
		return nil, fmt.Errorf("profile of %s: %w", Short(manager), e)
	}

	if len(rows) == 0 || toString(rows[0]["employee_code"]) == "" {
		s.log.Warn("manager not found in latest snapshot", "manager", Short(manager))
		return nil, nil
	}

	row := rows[0]
	p := &Profile{
		Code:             toString(row["employee_code"]),
		ManagementLevel:  toString(row["management_level_code"]),
		GeoCode:          toString(row["geo_code"]),
		Location:         toString(row["location"]),
		GBULevel1:        toString(row["gbu_level_1"]),
		Level02:          toString(row["level_02_from_top"]),
		Level03:          toString(row["level_03_from_top"]),
		PrimaryFunction:  toString(row["primary_function"]),
		IsManager:        toBool(row["is_manager"]),
		ReportsGBULevel1: toString(row["reports_gbu_level_1"]),
		ReportsLevel02:   toString(row["reports_level_02"]),
		ReportsLevel03:   toString(row["reports_level_03"]),
	}
	p.EmployeesManaged, _ = toInt(row["employees_managed"])
	p.DirectReports, _ = toInt(row["direct_report_count"])
	p.GeoCodes = splitGeos(toString(row["report_geos"]), p.GeoCode)

	p.KPIMapping, p.SearchText = s.rules.Suggest(p.GBULevel1, p.ReportsGBULevel1, p.Level02, p.Level03,
		p.ReportsLevel02, p.ReportsLevel03, p.PrimaryFunction)
	if p.KPIMapping != "" {
		p.KPIMappingLabel, _ = ResolveBusinessUnit(p.KPIMapping)
	}

	return p, nil
}

// splitGeos dedupes and sorts the '|'-joined report geographies, falling back to the
// manager's own geography when there are no reports.
func splitGeos(joined, own string) []string {
	seen := make(map[string]bool)
	for _, g := range strings.Split(joined, "|") {
		if g = strings.TrimSpace(g); g != "" {
			seen[g] = true
		}
	}

	if len(seen) == 0 && own != "" {
		seen[own] = true
	}

	return sortedKeys(seen)
}

// TeamKPIs loads the manager's per-team monthly KPIs. Rows whose org level is not yet resolved
// are dropped.
func (s *Store) TeamKPIs(ctx context.Context, manager string) ([]TeamRecord, error) {
	var (
		rows []map[string]any
		e    error
	)
	if rows, e = s.d.Query(ctx, "team_kpis", map[string]string{"Manager": s.d.Quote(manager)}); e != nil {
		return nil, fmt.Errorf("team kpis of %s: %w", Short(manager), e)
	}

	return teamRecords(rows, s.log)
}

func teamRecords(rows []map[string]any, log *slog.Logger) ([]TeamRecord, error) {
	numeric := append(append([]string{}, SumColumns...), WeightedColumns...)

	var (
		out     []TeamRecord
		dropped int
	)
	for _, row := range rows {
		org := toString(row[ColOrgLevel])
		if org == "" {
			dropped++
			continue
		}

		month, ok := toDate(row[ColMonth])
		if !ok {
			return nil, fmt.Errorf("cannot convert %v to a month", row[ColMonth])
		}

		rec := TeamRecord{
			Month:    MonthStart(month),
			OrgLevel: org,
			GeoCode:  toString(row[ColGeoCode]),
			Metrics:  make(map[string]float64),
			Labels:   make(map[string]string),
		}

		for _, col := range numeric {
			val, present := row[col]
			if !present {
				continue
			}

			var x float64
			if x, ok = toFloat(val); !ok {
				return nil, fmt.Errorf("cannot convert %v to float for %s", val, col)
			}

			rec.Metrics[col] = x
		}

		for _, col := range LabelColumns {
			if v := toString(row[col]); v != "" {
				rec.Labels[col] = v
			}
		}

		out = append(out, rec)
	}

	if dropped > 0 {
		log.Info("dropped rows with no organization level", "rows", dropped)
	}

	return out, nil
}

// DomainKPIs loads the business unit's per-cluster and aggregate KPIs plus the country
// organisation KPIs of geos.
func (s *Store) DomainKPIs(ctx context.Context, kpiMapping string, geos []string) ([]DomainRecord, error) {
	bu, known := ResolveBusinessUnit(kpiMapping)
	if !known {
		s.log.Debug("unknown kpi mapping, derived business unit", "kpi_mapping", kpiMapping, "business_unit", bu)
	}

	since := time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	if s.lookbackYears > 0 {
		since = s.now().UTC().AddDate(-s.lookbackYears, 0, 0)
	}

	params := map[string]string{
		"BusinessUnit": s.d.Quote(bu),
		"GeoList":      s.d.QuoteList(geos),
		"Since":        s.d.Quote(since.Format("2006-01-02")),
	}

	var (
		rows []map[string]any
		e    error
	)
	if rows, e = s.d.Query(ctx, "domain_kpis", params); e != nil {
		return nil, fmt.Errorf("domain kpis for %s: %w", bu, e)
	}

	var recs []DomainRecord
	if recs, e = domainRecords(rows); e != nil {
		return nil, e
	}

	s.log.Debug("loaded domain kpis", "business_unit", bu, "geos", len(geos), "rows", len(recs))

	return recs, nil
}

func domainRecords(rows []map[string]any) ([]DomainRecord, error) {
	out := make([]DomainRecord, 0, len(rows))
	for _, row := range rows {
		dt, ok := toDate(row["kpi_facts_date"])
		if !ok {
			return nil, fmt.Errorf("cannot convert %v to a date", row["kpi_facts_date"])
		}

		rec := DomainRecord{
			KPICode:      toString(row["kpi_code"]),
			BusinessUnit: toString(row["business_unit_label"]),
			Cluster:      toString(row["cluster_label"]),
			Date:         dt,
			Source:       Source(toString(row["source"])),
		}

		if !rec.Source.Known() {
			return nil, fmt.Errorf("unknown domain kpi source %q for %s", rec.Source, rec.KPICode)
		}

		if rec.Value, ok = toFloat(row["kpi_value"]); !ok {
			return nil, fmt.Errorf("cannot convert %v to float for kpi_value", row["kpi_value"])
		}

		if rec.Target, ok = toFloat(row["target_value"]); !ok {
			return nil, fmt.Errorf("cannot convert %v to float for target_value", row["target_value"])
		}

		out = append(out, rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.Source != b.Source:
			return a.Source < b.Source
		case a.BusinessUnit != b.BusinessUnit:
			return a.BusinessUnit < b.BusinessUnit
		case a.KPICode != b.KPICode:
			return a.KPICode < b.KPICode
		case a.Cluster != b.Cluster:
			return a.Cluster < b.Cluster
		}

		return a.Date.Before(b.Date)
	})

	return out, nil
}

// Managers lists employee codes of the latest snapshot. limit <= 0 means all.
func (s *Store) Managers(ctx context.Context, limit int, managersOnly bool) ([]string, error) {
	if limit <= 0 {
		limit = maxManagers
	}

	only := "0"
	if managersOnly {
		only = "1"
	}

	rows, e := s.d.Query(ctx, "managers", map[string]string{"Limit": strconv.Itoa(limit), "OnlyManagers": only})
	if e != nil {
		return nil, fmt.Errorf("managers: %w", e)
	}

	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if code := toString(row["employee_code"]); code != "" {
			out = append(out, code)
		}
	}

	return out, nil
}

// Short abbreviates a manager code for logs and reports.
func Short(code string) string {
	const n = 20
	if len([]rune(code)) <= n {
		return code
	}

	return string([]rune(code)[:n]) + "…"
}
