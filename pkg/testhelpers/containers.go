package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/database"
)

const (
	// PgvectorImage is PostgreSQL with the vector extension available.
	PgvectorImage = "pgvector/pgvector:pg16"
	// PlainPostgresImage ships without the vector extension.
	PlainPostgresImage = "postgres:16-alpine"
)

// EngineDB holds the engine database connection with migrations applied.
// Use this for testing repositories and the vector store against a real database.
type EngineDB struct {
	Container testcontainers.Container
	DB        *database.DB
	ConnStr   string
}

var (
	sharedEngineDB     *EngineDB
	sharedEngineDBOnce sync.Once
	sharedEngineDBErr  error

	sharedPlainDB     *EngineDB
	sharedPlainDBOnce sync.Once
	sharedPlainDBErr  error
)

// GetEngineDB returns a shared engine database for integration tests.
// The container is created once and reused across all tests in the run.
func GetEngineDB(t *testing.T) *EngineDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedEngineDBOnce.Do(func() {
		sharedEngineDB, sharedEngineDBErr = setupEngineDB(PgvectorImage)
	})

	if sharedEngineDBErr != nil {
		t.Fatalf("Failed to setup engine database: %v", sharedEngineDBErr)
	}

	return sharedEngineDB
}

// GetPlainEngineDB is GetEngineDB on a PostgreSQL without the vector
// extension, for exercising the degraded vector-index path.
func GetPlainEngineDB(t *testing.T) *EngineDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedPlainDBOnce.Do(func() {
		sharedPlainDB, sharedPlainDBErr = setupEngineDB(PlainPostgresImage)
	})

	if sharedPlainDBErr != nil {
		t.Fatalf("Failed to setup plain database: %v", sharedPlainDBErr)
	}

	return sharedPlainDB
}

func setupEngineDB(image string) (*EngineDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        image,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "ekaya_sqlgen_test",
			"POSTGRES_USER":     "ekaya",
			"POSTGRES_PASSWORD": "test_password",
		},
		// The entrypoint restarts postgres once after init; wait for the second ready line.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(90 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://ekaya:test_password@%s:%s/ekaya_sqlgen_test?sslmode=disable",
		host, port.Port())

	var db *database.DB
	for i := 0; i < 10; i++ {
		db, err = database.Connect(ctx, connStr, database.PoolOptions{MaxConnections: 5})
		if err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to engine database: %w", err)
	}

	if err := database.Migrate(connStr, zap.NewNop()); err != nil {
		db.Close()
		return nil, err
	}

	return &EngineDB{
		Container: container,
		DB:        db,
		ConnStr:   connStr,
	}, nil
}

// Truncate clears the given tables between tests sharing the container.
func (e *EngineDB) Truncate(t *testing.T, tables ...string) {
	t.Helper()
	for _, table := range tables {
		if _, err := e.DB.Exec(context.Background(), "TRUNCATE "+table+" RESTART IDENTITY CASCADE"); err != nil {
			t.Fatalf("failed to truncate %s: %v", table, err)
		}
	}
}
