//go:build integration

// Package integration holds tests that exercise real infrastructure
// (Postgres, Redis) via testcontainers instead of fakes. Run with
// `go test -tags integration ./internal/integration/...`; skipped by
// default so CI's unit test run stays fast and daemon-free.
package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/therealityreport/socializer/internal/adapter/repo/postgres"
	"github.com/therealityreport/socializer/internal/domain"
)

func startPostgres(t *testing.T) postgres.PgxPool {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "socializer",
			"POSTGRES_PASSWORD": "socializer",
			"POSTGRES_DB":       "socializer",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://socializer:socializer@%s:%s/socializer?sslmode=disable", host, port.Port())

	var pool postgres.PgxPool
	require.Eventually(t, func() bool {
		p, err := postgres.NewPool(ctx, dsn)
		if err != nil {
			return false
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return false
		}
		pool = p
		return true
	}, 30*time.Second, time.Second, "postgres never became reachable")

	require.NoError(t, postgres.Migrate(ctx, pool, 1))
	return pool
}

func TestThreadRepo_UpsertThenGet_RoundTripsThroughRealPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	pool := startPostgres(t)

	repo := postgres.NewThreadRepo(pool)
	created := time.Now().UTC().Truncate(time.Second)

	thread, err := repo.Upsert(context.Background(), domain.Thread{
		RedditID:  "abc123",
		Subreddit: "RealHousewives",
		Title:     "Season finale discussion",
		Status:    domain.ThreadLive,
		Created:   created,
	})
	require.NoError(t, err)
	require.NotEmpty(t, thread.ID)

	fetched, err := repo.Get(context.Background(), thread.ID)
	require.NoError(t, err)
	require.Equal(t, "abc123", fetched.RedditID)
	require.Equal(t, domain.ThreadLive, fetched.Status)

	byReddit, err := repo.GetByRedditID(context.Background(), "abc123")
	require.NoError(t, err)
	require.Equal(t, thread.ID, byReddit.ID)
}
