// Package testutil holds helpers shared by the package tests: containers and a fake identity provider.
package testutil

import (
	"context"
	"path/filepath"
	"runtime"
	"sort"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// upMigrations возвращает все *.up.sql из migrations/ в порядке номеров.
func upMigrations(t *testing.T) []string {
	t.Helper()

	_, filename, _, _ := runtime.Caller(0)
	root := filepath.Dir(filepath.Dir(filepath.Dir(filename)))
	files, err := filepath.Glob(filepath.Join(root, "migrations", "*.up.sql"))
	if err != nil || len(files) == 0 {
		t.Fatalf("No migrations found under %s: %v", root, err)
	}
	sort.Strings(files)
	return files
}

// SetupTestDB starts Postgres with the schema and RLS policies applied.
// The container is terminated when the test ends; integration tests are skipped with -short.
func SetupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("todos"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.WithInitScripts(upMigrations(t)...),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(context.Background()); err != nil {
			t.Errorf("Failed to terminate postgres container: %v", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to connect to postgres: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("Failed to ping postgres: %v", err)
	}
	return pool
}

// ResetTodos удаляет все строки, включая мягко удаленные, и сбрасывает счетчик id.
func ResetTodos(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	if _, err := pool.Exec(context.Background(), "TRUNCATE todos RESTART IDENTITY"); err != nil {
		t.Fatalf("Failed to truncate todos: %v", err)
	}
}

// RawTodo reads a row as the superuser, bypassing RLS and the soft-delete filter.
// found is false when the row does not exist at all.
func RawTodo(t *testing.T, pool *pgxpool.Pool, id int64) (ownerID string, isDeleted bool, found bool) {
	t.Helper()
	err := pool.QueryRow(context.Background(),
		"SELECT owner_id::text, is_deleted FROM todos WHERE id = $1", id).Scan(&ownerID, &isDeleted)
	if err != nil {
		return "", false, false
	}
	return ownerID, isDeleted, true
}
