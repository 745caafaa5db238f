package entities

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/heraerp/hera-api/pkg/db/models"
	"github.com/heraerp/hera-api/pkg/enums"
)

func setupEntitiesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	entities := `
CREATE TABLE IF NOT EXISTS core_entities (
  id TEXT PRIMARY KEY,
  organization_id TEXT NOT NULL,
  entity_type TEXT NOT NULL,
  entity_name TEXT NOT NULL,
  entity_code TEXT,
  smart_code TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  metadata TEXT,
  created_by TEXT,
  updated_by TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	dynamic := `
CREATE TABLE IF NOT EXISTS core_dynamic_data (
  id TEXT PRIMARY KEY,
  organization_id TEXT NOT NULL,
  entity_id TEXT NOT NULL,
  field_name TEXT NOT NULL,
  field_type TEXT NOT NULL,
  field_value_text TEXT,
  field_value_number TEXT,
  field_value_boolean INTEGER,
  field_value_date DATETIME,
  field_value_json TEXT,
  smart_code TEXT NOT NULL,
  created_by TEXT,
  updated_by TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (organization_id, entity_id, field_name)
);`
	require.NoError(t, db.Exec(entities).Error)
	require.NoError(t, db.Exec(dynamic).Error)
	return db
}

func seedEntity(t *testing.T, db *gorm.DB, orgID uuid.UUID, entityType string, createdAt time.Time) models.Entity {
	t.Helper()
	entity := models.Entity{
		ID:             uuid.New(),
		OrganizationID: orgID,
		EntityType:     entityType,
		EntityName:     entityType + " " + createdAt.Format("15:04"),
		SmartCode:      customerCode,
		Status:         enums.EntityStatusActive,
		Metadata:       emptyObject,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
	require.NoError(t, db.Create(&entity).Error)
	return entity
}

func TestRepositoryFindEntityIsTenantScoped(t *testing.T) {
	db := setupEntitiesTestDB(t)
	repo := NewRepository(db)
	orgID := uuid.New()
	entity := seedEntity(t, db, orgID, "customer", time.Now().UTC())

	found, err := repo.FindEntity(context.Background(), orgID, entity.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.EntityName, found.EntityName)

	_, err = repo.FindEntity(context.Background(), uuid.New(), entity.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryUpdateEntityIsTenantScoped(t *testing.T) {
	db := setupEntitiesTestDB(t)
	repo := NewRepository(db)
	orgID := uuid.New()
	entity := seedEntity(t, db, orgID, "customer", time.Now().UTC())

	err := repo.UpdateEntity(context.Background(), uuid.New(), entity.ID, map[string]any{"entity_name": "stolen"})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.NoError(t, repo.UpdateEntity(context.Background(), orgID, entity.ID, map[string]any{"entity_name": "renamed"}))
	found, err := repo.FindEntity(context.Background(), orgID, entity.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", found.EntityName)
}

func TestRepositoryListEntitiesPaginates(t *testing.T) {
	db := setupEntitiesTestDB(t)
	repo := NewRepository(db)
	orgID := uuid.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	oldest := seedEntity(t, db, orgID, "customer", base)
	middle := seedEntity(t, db, orgID, "customer", base.Add(time.Hour))
	newest := seedEntity(t, db, orgID, "customer", base.Add(2*time.Hour))
	seedEntity(t, db, orgID, "product", base.Add(3*time.Hour))
	seedEntity(t, db, uuid.New(), "customer", base.Add(4*time.Hour))

	page, next, err := repo.ListEntities(context.Background(), orgID, ListFilter{EntityType: "customer", Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, newest.ID, page[0].ID)
	assert.Equal(t, middle.ID, page[1].ID)
	require.NotEmpty(t, next)

	page, next, err = repo.ListEntities(context.Background(), orgID, ListFilter{EntityType: "customer", Limit: 2, Cursor: next})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, oldest.ID, page[0].ID)
	assert.Empty(t, next)
}

func TestRepositoryUpsertDynamicFieldReplacesValue(t *testing.T) {
	db := setupEntitiesTestDB(t)
	repo := NewRepository(db)
	orgID := uuid.New()
	entity := seedEntity(t, db, orgID, "customer", time.Now().UTC())
	ctx := context.Background()

	tier := "silver"
	require.NoError(t, repo.UpsertDynamicField(ctx, &models.DynamicData{
		ID:             uuid.New(),
		OrganizationID: orgID,
		EntityID:       entity.ID,
		FieldName:      "tier",
		FieldType:      enums.FieldTypeText,
		FieldValueText: &tier,
		SmartCode:      "HERA.CRM.CUSTOMER.DYN.TIER.v1",
	}))

	limit := decimal.RequireFromString("500")
	require.NoError(t, repo.UpsertDynamicField(ctx, &models.DynamicData{
		ID:               uuid.New(),
		OrganizationID:   orgID,
		EntityID:         entity.ID,
		FieldName:        "tier",
		FieldType:        enums.FieldTypeNumber,
		FieldValueNumber: &decimal.NullDecimal{Decimal: limit, Valid: true},
		SmartCode:        "HERA.CRM.CUSTOMER.DYN.TIER.v2",
	}))

	fields, err := repo.ListDynamicFields(ctx, orgID, entity.ID)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, enums.FieldTypeNumber, fields[0].FieldType)
	assert.Nil(t, fields[0].FieldValueText)
	require.NotNil(t, fields[0].FieldValueNumber)
	assert.True(t, limit.Equal(fields[0].FieldValueNumber.Decimal))
	assert.Equal(t, "HERA.CRM.CUSTOMER.DYN.TIER.v2", fields[0].SmartCode)

	empty, err := repo.ListDynamicFields(ctx, uuid.New(), entity.ID)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
