package rca

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// All code interacting with a database is here

//go:embed skeletons
var skeletons embed.FS

const (
	ch = "clickhouse"
	pg = "postgres"

	defaultQueryTimeout = 5 * time.Minute
	defaultRetries      = 3
)

// Dialect runs the embedded query skeletons against ClickHouse or Postgres.
type Dialect struct {
	db      *sql.DB
	dialect string

	timeout time.Duration
	retries int

	log *slog.Logger
}

type DialectOpt func(d *Dialect) error

// QueryTimeout caps each call to the database.
func QueryTimeout(timeout time.Duration) DialectOpt {
	return func(d *Dialect) error {
		if timeout <= 0 {
			return fmt.Errorf("query timeout must be positive, got %v", timeout)
		}

		d.timeout = timeout
		return nil
	}
}

// Retries is the number of retries on connection-level failures.
func Retries(n int) DialectOpt {
	return func(d *Dialect) error {
		if n < 0 {
			return fmt.Errorf("retries must be >= 0, got %d", n)
		}

		d.retries = n
		return nil
	}
}

func DialectLogger(log *slog.Logger) DialectOpt {
	return func(d *Dialect) error {
		d.log = log
		return nil
	}
}

func NewDialect(dialect string, db *sql.DB, opts ...DialectOpt) (*Dialect, error) {
	dialect = strings.ToLower(dialect)
	if dialect != ch && dialect != pg {
		return nil, fmt.Errorf("no skeletons for database %s", dialect)
	}

	d := &Dialect{
		db:      db,
		dialect: dialect,
		timeout: defaultQueryTimeout,
		retries: defaultRetries,
		log:     slog.Default(),
	}

	for _, opt := range opts {
		if e := opt(d); e != nil {
			return nil, e
		}
	}

	return d, nil
}

// ***************** Methods *****************

func (d *Dialect) Close() error {
	return d.db.Close()
}

func (d *Dialect) DB() *sql.DB {
	return d.db
}

func (d *Dialect) DialectName() string {
	return d.dialect
}

// Skeleton returns the named query skeleton for this dialect.
func (d *Dialect) Skeleton(name string) (string, error) {
	b, e := skeletons.ReadFile(fmt.Sprintf("skeletons/%s/%s.sql", d.dialect, name))
	if e != nil {
		return "", fmt.Errorf("no skeleton %s for %s: %w", name, d.dialect, e)
	}

	return string(b), nil
}

var placeholder = regexp.MustCompile(`\?([A-Za-z][A-Za-z0-9_]*)`)

// Fill replaces the ?Name placeholders of a skeleton in one pass, so inserted values are never
// rescanned. Values are inserted verbatim: callers quote them with Quote or QuoteList.
func (d *Dialect) Fill(skeleton string, params map[string]string) (string, error) {
	missing := make(map[string]bool)
	for _, m := range placeholder.FindAllStringSubmatch(skeleton, -1) {
		if _, ok := params[m[1]]; !ok {
			missing[m[1]] = true
		}
	}

	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for name := range missing {
			names = append(names, "?"+name)
		}
		sort.Strings(names)

		return "", fmt.Errorf("no value for placeholders %s", strings.Join(names, ", "))
	}

	return placeholder.ReplaceAllStringFunc(skeleton, func(tok string) string {
		return params[tok[1:]]
	}), nil
}

// Quote makes a SQL string literal.
func (d *Dialect) Quote(val string) string {
	return "'" + strings.ReplaceAll(val, "'", "''") + "'"
}

// QuoteList makes a comma-separated list of literals. An empty list yields a literal that
// matches nothing, so IN () stays valid.
func (d *Dialect) QuoteList(vals []string) string {
	if len(vals) == 0 {
		return d.Quote("__NONE__")
	}

	q := make([]string, len(vals))
	for ind, v := range vals {
		q[ind] = d.Quote(v)
	}

	return strings.Join(q, ", ")
}

// Query fills the named skeleton and loads the result.
func (d *Dialect) Query(ctx context.Context, name string, params map[string]string) ([]map[string]any, error) {
	var (
		skel, qry string
		e         error
	)

	if skel, e = d.Skeleton(name); e != nil {
		return nil, e
	}

	if qry, e = d.Fill(skel, params); e != nil {
		return nil, e
	}

	return d.Load(ctx, qry)
}

// Load runs qry and returns each row keyed by column name. Each attempt is bounded by the
// dialect's timeout; connection-level failures are retried with exponential backoff.
func (d *Dialect) Load(ctx context.Context, qry string) ([]map[string]any, error) {
	var rows []map[string]any

	op := func() error {
		var e error
		rows, e = d.load(ctx, qry)
		if e != nil && !transient(e) {
			return backoff.Permanent(e)
		}

		return e
	}

	notify := func(e error, wait time.Duration) {
		d.log.Warn("query failed, retrying", "dialect", d.dialect, "wait", wait, "error", e)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(d.retries)), ctx)
	if e := backoff.RetryNotify(op, b, notify); e != nil {
		return nil, e
	}

	return rows, nil
}

func (d *Dialect) load(ctx context.Context, qry string) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var (
		res  *sql.Rows
		cols []string
		e    error
	)

	if res, e = d.db.QueryContext(ctx, qry); e != nil {
		return nil, e
	}
	defer func() { _ = res.Close() }()

	if cols, e = res.Columns(); e != nil {
		return nil, e
	}

	var out []map[string]any
	for res.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for ind := range vals {
			ptrs[ind] = &vals[ind]
		}

		if e := res.Scan(ptrs...); e != nil {
			return nil, e
		}

		row := make(map[string]any, len(cols))
		for ind, c := range cols {
			row[strings.ToLower(c)] = vals[ind]
		}

		out = append(out, row)
	}

	return out, res.Err()
}

func transient(e error) bool {
	if errors.Is(e, driver.ErrBadConn) {
		return true
	}

	var ne net.Error
	return errors.As(e, &ne)
}
