package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntityID(t *testing.T) {
	assert.Equal(t, "source:1", EntityID(EntityTypeSource, 1))
	assert.Equal(t, "table:42", EntityID(EntityTypeTable, 42))
	assert.Equal(t, "column:9000000000", EntityID(EntityTypeColumn, 9000000000))
}

func TestSyncSummary_PerTypeMaps(t *testing.T) {
	s := &SyncSummary{
		SourcesTotal: 1, TablesTotal: 2, ColumnsTotal: 5,
		SourcesDeleted: 0, TablesDeleted: 1, ColumnsDeleted: 3,
		SourcesUpserted: 1, TablesUpserted: 2, ColumnsUpserted: 5,
	}

	assert.Equal(t, map[EntityType]int{EntityTypeSource: 1, EntityTypeTable: 2, EntityTypeColumn: 5}, s.Totals())
	assert.Equal(t, map[EntityType]int{EntityTypeSource: 0, EntityTypeTable: 1, EntityTypeColumn: 3}, s.Deleted())
	assert.Equal(t, s.Totals(), s.Upserted())
}
