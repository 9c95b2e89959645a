package batch

import (
	"fmt"
	"sort"
	"strconv"

	r "github.com/invertedv/rca"
)

// Status is the outcome of one manager.
type Status string

const (
	StatusNoProfile    Status = "no_profile"
	StatusNoKPIMapping Status = "no_kpi_mapping"
	StatusNoPPLData    Status = "no_ppl_data"
	StatusNoDomainData Status = "no_domain_data"
	StatusOK           Status = "ok"
	StatusError        Status = "error"
)

// Statuses in report order.
var Statuses = []Status{StatusOK, StatusNoProfile, StatusNoKPIMapping, StatusNoPPLData, StatusNoDomainData, StatusError}

// Skipped reports whether s means the RCA was not run for lack of data.
func (s Status) Skipped() bool {
	return s == StatusNoProfile || s == StatusNoKPIMapping || s == StatusNoPPLData || s == StatusNoDomainData
}

// Record is one line of the batch report.
type Record struct {
	ManagerShort string
	Manager      string
	KPIMapping   string
	SearchText   string
	GeoCount     int
	Weak         int
	Moderate     int
	Strong       int
	Correlations int
	Status       Status
	Error        string
}

// Columns of the batch CSV.
var Columns = []string{
	"manager_code_short", "manager_code_full", "kpi_mapping", "kpi_mapping_search_text", "geo_count",
	"n_star1", "n_star2", "n_star3", "n_correlations", "status", "error",
}

func newRecord(manager string) Record {
	return Record{ManagerShort: r.Short(manager), Manager: manager, Status: StatusOK}
}

// HasSignal reports whether the manager has at least one significant pair.
func (rec Record) HasSignal() bool {
	return rec.Correlations > 0
}

func (rec Record) values() []any {
	return []any{rec.ManagerShort, rec.Manager, rec.KPIMapping, rec.SearchText, rec.GeoCount,
		rec.Weak, rec.Moderate, rec.Strong, rec.Correlations, string(rec.Status), rec.Error}
}

// WriteRecords writes recs to fileName with a header line.
func WriteRecords(fileName string, recs []Record) (err error) {
	f := r.NewFiles(Columns...)
	if e := f.Create(fileName); e != nil {
		return fmt.Errorf("failed to create %s: %w", fileName, e)
	}
	defer func() {
		if e := f.Close(); err == nil {
			err = e
		}
	}()

	if e := f.WriteHeader(); e != nil {
		return e
	}

	for _, rec := range recs {
		if e := f.WriteLine(rec.values()); e != nil {
			return e
		}
	}

	return nil
}

// ReadRecords loads a batch CSV. A missing file yields no records. Unparseable counts read as 0.
func ReadRecords(fileName string) ([]Record, error) {
	rows, e := r.ReadCSV(fileName)
	if e != nil {
		return nil, e
	}

	recs := make([]Record, 0, len(rows))
	for _, row := range rows {
		if row["manager_code_full"] == "" {
			continue
		}

		recs = append(recs, Record{
			ManagerShort: row["manager_code_short"],
			Manager:      row["manager_code_full"],
			KPIMapping:   row["kpi_mapping"],
			SearchText:   row["kpi_mapping_search_text"],
			GeoCount:     atoi(row["geo_count"]),
			Weak:         atoi(row["n_star1"]),
			Moderate:     atoi(row["n_star2"]),
			Strong:       atoi(row["n_star3"]),
			Correlations: atoi(row["n_correlations"]),
			Status:       Status(row["status"]),
			Error:        row["error"],
		})
	}

	return recs, nil
}

func atoi(s string) int {
	n, e := strconv.Atoi(s)
	if e != nil {
		return 0
	}

	return n
}

// merge combines previous and new records, new ones winning on the same manager, sorted by
// full manager code.
func merge(prev, recs []Record) []Record {
	byManager := make(map[string]Record, len(prev)+len(recs))
	for _, rec := range prev {
		byManager[rec.Manager] = rec
	}
	for _, rec := range recs {
		byManager[rec.Manager] = rec
	}

	out := make([]Record, 0, len(byManager))
	for _, rec := range byManager {
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Manager < out[j].Manager })

	return out
}
