//go:build integration

package testhelpers

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/database"
)

func TestEngineDB_MigrationsApplied(t *testing.T) {
	engineDB := GetEngineDB(t)
	ctx := context.Background()

	for _, table := range []string{
		"engine_data_sources",
		"engine_data_tables",
		"engine_table_columns",
		"engine_metadata_sync_summaries",
		"engine_llm_calls",
	} {
		var exists bool
		err := engineDB.DB.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)",
			table).Scan(&exists)
		if err != nil {
			t.Fatalf("failed to check table %s: %v", table, err)
		}
		if !exists {
			t.Errorf("expected table %s to exist", table)
		}
	}

	var extExists bool
	if err := engineDB.DB.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')").Scan(&extExists); err != nil {
		t.Fatalf("failed to check vector extension: %v", err)
	}
	if !extExists {
		t.Error("expected vector extension to be installed")
	}
}

func TestEngineDB_MigrationsIdempotent(t *testing.T) {
	engineDB := GetEngineDB(t)

	if err := database.Migrate(engineDB.ConnStr, zap.NewNop()); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
}

func TestPlainEngineDB_MigrationsSucceedWithoutVector(t *testing.T) {
	engineDB := GetPlainEngineDB(t)
	ctx := context.Background()

	var version int64
	var dirty bool
	if err := engineDB.DB.QueryRow(ctx, "SELECT version, dirty FROM schema_migrations").Scan(&version, &dirty); err != nil {
		t.Fatalf("failed to read migration version: %v", err)
	}
	if dirty {
		t.Errorf("expected clean migration state at version %d", version)
	}
	if version < 3 {
		t.Errorf("expected all migrations applied, got version %d", version)
	}

	var extExists bool
	if err := engineDB.DB.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')").Scan(&extExists); err != nil {
		t.Fatalf("failed to check vector extension: %v", err)
	}
	if extExists {
		t.Error("expected no vector extension on plain postgres")
	}
}
