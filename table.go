package rca

import (
	"sort"
	"time"
)

// LinkAll is the constant linking key carried by every prepared row, so a join between the
// mother table and a node table always has exactly one group.
const LinkAll = "ALL"

// Row is one observation of an aligned series.
type Row struct {
	ID    string
	Link  string
	Date  time.Time
	Value float64
}

// Table is a set of aligned series. The mother table may mix several IDs (KPI codes);
// node tables hold a single cause series.
type Table []Row

// IDs returns the distinct series IDs in ascending order.
func (t Table) IDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, r := range t {
		if !seen[r.ID] {
			seen[r.ID] = true
			ids = append(ids, r.ID)
		}
	}

	sort.Strings(ids)

	return ids
}

// Filter returns the rows with the given ID.
func (t Table) Filter(id string) Table {
	var out Table
	for _, r := range t {
		if r.ID == id {
			out = append(out, r)
		}
	}

	return out
}

// Months returns the number of distinct dates.
func (t Table) Months() int {
	seen := make(map[time.Time]bool)
	for _, r := range t {
		seen[r.Date] = true
	}

	return len(seen)
}

func (t Table) sortByIDDate() {
	sort.SliceStable(t, func(i, j int) bool {
		if t[i].ID != t[j].ID {
			return t[i].ID < t[j].ID
		}

		return t[i].Date.Before(t[j].Date)
	})
}

// Join inner-joins an effect series and a cause series on (Link, Date). The returned slices
// are date-ascending and of equal length.
func Join(effect, cause Table) (dates []time.Time, y, x []float64) {
	type key struct {
		link string
		date time.Time
	}

	causeAt := make(map[key]float64, len(cause))
	for _, r := range cause {
		k := key{link: r.Link, date: r.Date}
		if _, ok := causeAt[k]; !ok {
			causeAt[k] = r.Value
		}
	}

	sorted := make(Table, len(effect))
	copy(sorted, effect)
	sorted.sortByIDDate()

	seen := make(map[key]bool)
	for _, r := range sorted {
		k := key{link: r.Link, date: r.Date}
		cv, ok := causeAt[k]
		if !ok || seen[k] {
			continue
		}

		seen[k] = true
		dates = append(dates, r.Date)
		y = append(y, r.Value)
		x = append(x, cv)
	}

	return dates, y, x
}
