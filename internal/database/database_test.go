package database

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/osse101/adlink/internal/testing/leaktest"
)

var testDBConnString string

func TestMain(m *testing.M) {
	flag.Parse()

	var terminate func()
	if !testing.Short() {
		testDBConnString, terminate = setupContainer(context.Background())
	}

	code := m.Run()

	if terminate != nil {
		terminate()
	}
	os.Exit(code)
}

func setupContainer(ctx context.Context) (connStr string, terminate func()) {
	terminate = func() {}
	// testcontainers panics when no Docker daemon is reachable
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("Recovered from panic in setupContainer: %v\n", r)
		}
	}()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("adlink_test"),
		postgres.WithUsername("adlink"),
		postgres.WithPassword("adlink"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		fmt.Printf("WARNING: Failed to start postgres container: %v\n", err)
		return "", terminate
	}

	connStr, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fmt.Printf("WARNING: Failed to get connection string: %v\n", err)
		_ = pgContainer.Terminate(ctx)
		return "", terminate
	}

	return connStr, func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			fmt.Printf("Failed to terminate container: %v\n", err)
		}
	}
}

func requireDatabase(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if testDBConnString == "" {
		t.Skip("Skipping integration test: database not available")
	}
}

func TestNewPool_InvalidConnString(t *testing.T) {
	_, err := NewPool(context.Background(), "postgres://%zz", 5, time.Minute, time.Minute)

	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrMsgFailedToParseConnString)
}

func TestMigrate_UnknownDirection(t *testing.T) {
	requireDatabase(t)

	err := Migrate(context.Background(), testDBConnString, "sideways")

	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrMsgUnknownDirection)
}

func TestMigrator_UpStatusDown(t *testing.T) {
	requireDatabase(t)
	ctx := context.Background()

	m, err := NewMigrator(testDBConnString)
	require.NoError(t, err)
	defer m.Close()

	_, err = m.Up(ctx)
	require.NoError(t, err)

	statuses, err := m.Status(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, statuses)
	for _, s := range statuses {
		assert.Equal(t, goose.StateApplied, s.State, "migration %d", s.Source.Version)
	}

	again, err := m.Up(ctx)
	require.NoError(t, err)
	assert.Empty(t, again, "second run has nothing to apply")

	down, err := m.Down(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), down.Source.Version)

	require.NoError(t, Migrate(ctx, testDBConnString, DirectionUp))
}

func TestPool_ConnectionsReleased(t *testing.T) {
	requireDatabase(t)

	pool, err := NewPool(context.Background(), testDBConnString, 5, time.Minute, 5*time.Minute)
	require.NoError(t, err)
	defer pool.Close()

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		conn, err := pool.Acquire(ctx)
		require.NoError(t, err, "acquire on iteration %d", i)

		var result int
		require.NoError(t, conn.QueryRow(ctx, "SELECT 1").Scan(&result))
		assert.Equal(t, 1, result)
		conn.Release()
	}

	assert.Equal(t, int32(0), pool.Stat().AcquiredConns())
}

func TestPool_ConcurrentAccess(t *testing.T) {
	requireDatabase(t)

	pool, err := NewPool(context.Background(), testDBConnString, 10, time.Minute, 5*time.Minute)
	require.NoError(t, err)
	defer pool.Close()

	checker := leaktest.NewGoroutineChecker(t, leaktest.Tracking("github.com/jackc/pgx/v5"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			var result int
			if err := pool.QueryRow(context.Background(), "SELECT $1::int", id).Scan(&result); err != nil {
				t.Errorf("worker %d query failed: %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(0), pool.Stat().AcquiredConns())
	checker.Check(2)
}
