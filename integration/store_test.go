// Package integration runs the store and the batch estimator against real ClickHouse and
// Postgres containers seeded from testdata.
package integration

import (
	"context"
	"io"
	"log/slog"
	"math"
	"net"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/invertedv/rca"
	"github.com/invertedv/rca/batch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/clickhouse"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const (
	dbUser     = "rca"
	dbPassword = "rca_password"
	dbName     = "rca"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func startPostgres(t *testing.T) *rca.Config {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		postgres.WithInitScripts(filepath.Join("testdata", "postgres.sql")),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := &rca.Config{DB: rca.DBConfig{
		Dialect:  "postgres",
		Host:     host,
		Port:     port.Int(),
		User:     dbUser,
		Password: dbPassword,
		Name:     dbName,
		SSLMode:  "disable",
	}}
	require.NoError(t, cfg.Validate())

	return cfg
}

func startClickHouse(t *testing.T) *rca.Config {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	ctr, err := clickhouse.Run(ctx,
		"clickhouse/clickhouse-server:23.3.8.21-alpine",
		clickhouse.WithUsername(dbUser),
		clickhouse.WithPassword(dbPassword),
		clickhouse.WithDatabase(dbName),
		clickhouse.WithInitScripts(filepath.Join("testdata", "clickhouse.sql")),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	addr, err := ctr.ConnectionHost(ctx)
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port)
	require.NoError(t, err)

	cfg := &rca.Config{DB: rca.DBConfig{
		Dialect:  "clickhouse",
		Host:     host,
		Port:     portNum,
		User:     dbUser,
		Password: dbPassword,
		Name:     dbName,
	}}
	require.NoError(t, cfg.Validate())

	return cfg
}

func TestStore_Postgres(t *testing.T) {
	cfg := startPostgres(t)
	exerciseStore(t, cfg)
	exerciseBatch(t, cfg)
}

func TestStore_ClickHouse(t *testing.T) {
	cfg := startClickHouse(t)
	exerciseStore(t, cfg)
	exerciseBatch(t, cfg)
}

func openStore(cfg *rca.Config) (*rca.Store, error) {
	d, err := rca.Connect(cfg, discard)
	if err != nil {
		return nil, err
	}

	return rca.NewStore(d, cfg, discard), nil
}

func exerciseStore(t *testing.T, cfg *rca.Config) {
	ctx := context.Background()

	store, err := openStore(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	t.Run("profile", func(t *testing.T) {
		p, err := store.Profile(ctx, "MGR001")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "MGR001", p.Code)
		assert.True(t, p.IsManager)
		assert.Equal(t, 2, p.EmployeesManaged)
		assert.Equal(t, 2, p.DirectReports)
		assert.Equal(t, []string{"France", "Spain"}, p.GeoCodes)
		assert.Equal(t, "MSLT_VACCINES", p.KPIMapping)
		assert.Equal(t, "Vaccines", p.KPIMappingLabel)
		assert.Contains(t, p.SearchText, "vaccines europe")

		p, err = store.Profile(ctx, "MGR002")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, 0, p.DirectReports)
		assert.Equal(t, []string{"Germany"}, p.GeoCodes)
		assert.Empty(t, p.KPIMapping)

		p, err = store.Profile(ctx, "NOBODY")
		require.NoError(t, err)
		assert.Nil(t, p)

		// quoting keeps the literal intact
		p, err = store.Profile(ctx, "O'Brien")
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("team kpis", func(t *testing.T) {
		recs, err := store.TeamKPIs(ctx, "MGR001")
		require.NoError(t, err)
		require.Len(t, recs, 48)
		for _, rec := range recs {
			assert.Equal(t, "L3", rec.OrgLevel)
			assert.Equal(t, 1, rec.Month.Day())
			assert.False(t, math.IsNaN(rec.Headcount()))
		}

		s := rca.SummarizeTeams(recs)
		assert.Equal(t, 2, s.Teams)
		assert.Equal(t, []string{"France", "Spain"}, s.Geos)
		assert.Equal(t, []string{"Sales"}, s.Functions)

		agg := rca.ApplyTeamSizeFilter(recs, rca.DefaultMinTeamHeadcount)
		assert.NotEmpty(t, agg)
		assert.Equal(t, rca.AllTeams, agg[0].OrgLevel)
		assert.Equal(t, []string{"L3 · France", "L3 · Spain"}, rca.VisibleTeams(agg))

		recs, err = store.TeamKPIs(ctx, "MGR002")
		require.NoError(t, err)
		assert.Empty(t, recs)
	})

	t.Run("domain kpis", func(t *testing.T) {
		recs, err := store.DomainKPIs(ctx, "MSLT_VACCINES", []string{"France", "Spain"})
		require.NoError(t, err)

		s := rca.SummarizeDomain(recs)
		require.NotNil(t, s)
		assert.Equal(t, "Vaccines", s.BusinessUnit)
		assert.Equal(t, 48, s.DomainRows)
		assert.Equal(t, 24, s.CountryRows)
		assert.Equal(t, 24, s.AggregateRows)
		assert.Equal(t, []string{"Flu", "Meningitis"}, s.Clusters)
		assert.Equal(t, []string{"France"}, s.Countries)
		assert.False(t, s.EffectFromClusters)

		for _, rec := range recs {
			if rec.Source == rca.SourceBUAggregate {
				assert.Empty(t, rec.Cluster)
				assert.InDelta(t, 150, rec.Target, 1e-9)
			}
		}

		recs, err = store.DomainKPIs(ctx, "MSLT_VACCINES", nil)
		require.NoError(t, err)
		assert.Equal(t, 0, rca.SummarizeDomain(recs).CountryRows)

		recs, err = store.DomainKPIs(ctx, "MSLT_SPECIALTY_CARE", []string{"France"})
		require.NoError(t, err)
		assert.Equal(t, 24, len(recs))
	})

	t.Run("managers", func(t *testing.T) {
		managers, err := store.Managers(ctx, 0, true)
		require.NoError(t, err)
		assert.Equal(t, []string{"MGR001", "MGR002"}, managers)

		all, err := store.Managers(ctx, 0, false)
		require.NoError(t, err)
		assert.Equal(t, []string{"EMP001", "EMP002", "MGR001", "MGR002"}, all)

		one, err := store.Managers(ctx, 1, false)
		require.NoError(t, err)
		assert.Equal(t, []string{"EMP001"}, one)
	})
}

func exerciseBatch(t *testing.T, cfg *rca.Config) {
	out := filepath.Join(t.TempDir(), "batch.csv")

	est, err := batch.New(&batch.Config{
		Logger: discard,
		Connector: func(context.Context) (batch.Conn, error) {
			store, err := openStore(cfg)
			if err != nil {
				return nil, err
			}
			return store, nil
		},
		Workers: 2,
		Output:  out,
	})
	require.NoError(t, err)

	rep, err := est.Run(context.Background(), []string{"MGR001", "MGR002", "NOBODY"})
	require.NoError(t, err)
	require.Len(t, rep.Records, 3)

	statuses := make(map[string]batch.Status)
	for _, rec := range rep.Records {
		statuses[rec.Manager] = rec.Status
	}
	assert.Equal(t, batch.StatusOK, statuses["MGR001"])
	assert.Equal(t, batch.StatusNoKPIMapping, statuses["MGR002"])
	assert.Equal(t, batch.StatusNoProfile, statuses["NOBODY"])

	recs, err := batch.ReadRecords(out)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}
