package batch

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// Summary totals a batch report.
type Summary struct {
	Total           int
	RCAExecuted     int // status ok
	WithSignificant int
	Weak            int
	Moderate        int
	Strong          int
	Skipped         map[Status]int
	Errors          int
	CacheKeys       int
}

func Summarize(recs []Record, cacheKeys int) Summary {
	s := Summary{Total: len(recs), Skipped: make(map[Status]int), CacheKeys: cacheKeys}
	for _, rec := range recs {
		switch {
		case rec.Status == StatusOK:
			s.RCAExecuted++
		case rec.Status == StatusError:
			s.Errors++
		case rec.Status.Skipped():
			s.Skipped[rec.Status]++
		}

		if rec.HasSignal() {
			s.WithSignificant++
		}

		s.Weak += rec.Weak
		s.Moderate += rec.Moderate
		s.Strong += rec.Strong
	}

	return s
}

// SignificantPct is the share of managers with at least one significant pair.
func (s Summary) SignificantPct() float64 {
	if s.Total == 0 {
		return 0
	}

	return 100 * float64(s.WithSignificant) / float64(s.Total)
}

// Render writes the summary followed by one line per record.
func (s Summary) Render(w io.Writer, recs []Record) {
	table := tablewriter.NewWriter(w)
	table.SetBorder(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"", ""})
	table.Append([]string{"managers", strconv.Itoa(s.Total)})
	table.Append([]string{"rca executed", strconv.Itoa(s.RCAExecuted)})
	table.Append([]string{"with significant pairs", fmt.Sprintf("%d (%.1f%%)", s.WithSignificant, s.SignificantPct())})
	table.Append([]string{"pairs * / ** / ***", fmt.Sprintf("%d / %d / %d", s.Weak, s.Moderate, s.Strong)})
	for _, st := range Statuses {
		if st.Skipped() {
			table.Append([]string{"skipped " + string(st), strconv.Itoa(s.Skipped[st])})
		}
	}
	table.Append([]string{"errors", strconv.Itoa(s.Errors)})
	table.Append([]string{"domain cache keys", strconv.Itoa(s.CacheKeys)})
	table.Render()

	if len(recs) == 0 {
		return
	}

	_, _ = fmt.Fprintln(w)
	rows := tablewriter.NewWriter(w)
	rows.SetAutoWrapText(false)
	rows.SetAutoFormatHeaders(false)
	rows.SetHeader([]string{"manager", "kpi_mapping", "geos", "*", "**", "***", "pairs", "status"})
	for _, rec := range recs {
		rows.Append([]string{rec.ManagerShort, rec.KPIMapping, strconv.Itoa(rec.GeoCount),
			strconv.Itoa(rec.Weak), strconv.Itoa(rec.Moderate), strconv.Itoa(rec.Strong),
			strconv.Itoa(rec.Correlations), string(rec.Status)})
	}
	rows.Render()
}
