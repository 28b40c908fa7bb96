package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dimitrije/teamjoin/internal/database"
	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// auditTables are truncated children first.
var auditTables = []string{"join_session_events", "join_sessions"}

// startContainer runs req for the lifetime of t and returns the host:port
// mapped to exposed.
func startContainer(t *testing.T, req testcontainers.ContainerRequest, exposed nat.Port) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start %s: %v", req.Image, err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate %s: %v", req.Image, err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get %s host: %v", req.Image, err)
	}
	port, err := container.MappedPort(ctx, exposed)
	if err != nil {
		t.Fatalf("failed to get %s port: %v", req.Image, err)
	}
	return fmt.Sprintf("%s:%s", host, port.Port())
}

// TestDB is a migrated join-session audit store in a throwaway Postgres.
type TestDB struct {
	DB *database.DB
}

// SetupTestDB starts Postgres, connects through database.New and applies
// the audit migrations.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	addr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "teamjoin",
			"POSTGRES_PASSWORD": "teamjoin",
			"POSTGRES_DB":       "teamjoin_test",
		},
		// Postgres logs readiness once for the init server and once for the real one.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}, "5432")

	ctx := context.Background()
	db, err := database.New(ctx, "postgres://teamjoin:teamjoin@"+addr+"/teamjoin_test?sslmode=disable")
	if err != nil {
		t.Fatalf("failed to connect to audit store: %v", err)
	}
	t.Cleanup(db.Close)

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate audit store: %v", err)
	}
	return &TestDB{DB: db}
}

// CleanTables empties the audit tables.
func (tdb *TestDB) CleanTables(t *testing.T) {
	t.Helper()
	for _, table := range auditTables {
		if _, err := tdb.DB.Pool.Exec(context.Background(), "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			t.Fatalf("failed to truncate %s: %v", table, err)
		}
	}
}

// RedisContainer is a throwaway Redis for the distributed redemption lock.
type RedisContainer struct {
	Addr string
}

func SetupTestRedis(t *testing.T) *RedisContainer {
	t.Helper()
	addr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
	}, "6379")
	return &RedisContainer{Addr: addr}
}
