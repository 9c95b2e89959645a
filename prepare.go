package rca

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// MinObservations is the fewest monthly points a cause series needs to enter an RCA run.
const MinObservations = 7

var (
	ErrEmptyEffect = errors.New("empty effect table")
	ErrUnknownKPI  = errors.New("kpi code not available")
)

// Prepared is the input of an RCA run: the effect ("mother") table and one node table per cause.
type Prepared struct {
	Mother Table
	Nodes  map[string]Table
}

// Empty reports whether there is nothing to analyze.
func (p *Prepared) Empty() bool {
	return p == nil || len(p.Mother) == 0 || len(p.Nodes) == 0
}

// NodeNames returns the cause series names in ascending order.
func (p *Prepared) NodeNames() []string {
	names := make([]string, 0, len(p.Nodes))
	for n := range p.Nodes {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}

// Restrict keeps only the requested effect KPI codes. Asking for a code that isn't in the
// mother table is an error.
func (p *Prepared) Restrict(codes ...string) error {
	if len(codes) == 0 {
		return nil
	}

	have := make(map[string]bool)
	for _, id := range p.Mother.IDs() {
		have[id] = true
	}

	var mother Table
	for _, c := range codes {
		if !have[c] {
			return fmt.Errorf("%w: %s", ErrUnknownKPI, c)
		}

		mother = append(mother, p.Mother.Filter(c)...)
	}

	mother.sortByIDDate()
	p.Mother = mother

	return nil
}

// SelectEffectRecords picks the effect rows: business-unit aggregates when there are any,
// otherwise the per-cluster business-unit rows. Country organization rows never qualify.
func SelectEffectRecords(domain []DomainRecord) []DomainRecord {
	var agg, perCluster []DomainRecord
	for _, d := range domain {
		switch d.Source {
		case SourceBUAggregate:
			agg = append(agg, d)
		case SourceDomain:
			perCluster = append(perCluster, d)
		}
	}

	if len(agg) > 0 {
		return agg
	}

	return perCluster
}

// EffectTable builds the mother table: month-truncated, NaN values dropped, deduplicated
// on (kpi code, month) keeping the first row, sorted by (kpi code, month).
func EffectTable(effect []DomainRecord) Table {
	type key struct {
		id   string
		date time.Time
	}

	seen := make(map[key]bool)
	var t Table
	for _, d := range effect {
		if math.IsNaN(d.Value) {
			continue
		}

		k := key{id: d.KPICode, date: MonthStart(d.Date)}
		if seen[k] {
			continue
		}

		seen[k] = true
		t = append(t, Row{ID: d.KPICode, Link: LinkAll, Date: k.date, Value: d.Value})
	}

	t.sortByIDDate()

	return t
}

// NodeTables builds one cause table per allow-listed KPI from the all-teams aggregate.
// Series with fewer than MinObservations non-NaN months are left out.
func NodeTables(agg []TeamRecord) map[string]Table {
	nodes := make(map[string]Table)
	for _, kpi := range CorrelatableKPIs {
		var t Table
		for _, rec := range agg {
			v, ok := rec.Metrics[kpi]
			if !ok || math.IsNaN(v) {
				continue
			}

			t = append(t, Row{ID: kpi, Link: LinkAll, Date: MonthStart(rec.Month), Value: v})
		}

		if len(t) < MinObservations {
			continue
		}

		t.sortByIDDate()
		nodes[kpi] = t
	}

	return nodes
}

// PrepareRCA reshapes raw team and domain KPIs into the tables an RCA run consumes. Missing
// data is not an error: the result is simply empty.
func PrepareRCA(team []TeamRecord, domain []DomainRecord) *Prepared {
	empty := &Prepared{Nodes: map[string]Table{}}

	mother := EffectTable(SelectEffectRecords(domain))
	if len(mother) == 0 {
		return empty
	}

	agg := AggregateTeamKPIs(team)
	if len(agg) == 0 {
		return empty
	}

	nodes := NodeTables(agg)
	if len(nodes) == 0 {
		return empty
	}

	return &Prepared{Mother: mother, Nodes: nodes}
}

// PrepareTables validates hand-built tables and stamps the linking key on rows that lack it.
// An empty mother table here is a caller error, unlike PrepareRCA.
func PrepareTables(mother Table, nodes map[string]Table) (*Prepared, error) {
	if len(mother) == 0 {
		return nil, ErrEmptyEffect
	}

	m := stampLink(mother)
	m.sortByIDDate()

	out := &Prepared{Mother: m, Nodes: make(map[string]Table)}
	for name, t := range nodes {
		if len(t) == 0 {
			continue
		}

		n := stampLink(t)
		n.sortByIDDate()
		out.Nodes[name] = n
	}

	return out, nil
}

func stampLink(t Table) Table {
	out := make(Table, len(t))
	for ind, r := range t {
		if r.Link == "" {
			r.Link = LinkAll
		}
		r.Date = MonthStart(r.Date)
		out[ind] = r
	}

	return out
}
