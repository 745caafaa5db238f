package entities

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/heraerp/hera-api/internal/repo"
	"github.com/heraerp/hera-api/pkg/db/models"
	"github.com/heraerp/hera-api/pkg/pagination"
)

// Repository persists core_entities and core_dynamic_data. Every query is
// scoped by organization_id.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateEntity(ctx context.Context, entity *models.Entity) error
	FindEntity(ctx context.Context, orgID, id uuid.UUID) (*models.Entity, error)
	UpdateEntity(ctx context.Context, orgID, id uuid.UUID, updates map[string]any) error
	ListEntities(ctx context.Context, orgID uuid.UUID, filter ListFilter) ([]models.Entity, string, error)
	UpsertDynamicField(ctx context.Context, field *models.DynamicData) error
	FindDynamicField(ctx context.Context, orgID, entityID uuid.UUID, fieldName string) (*models.DynamicData, error)
	ListDynamicFields(ctx context.Context, orgID, entityID uuid.UUID) ([]models.DynamicData, error)
}

type repository struct {
	repo.Base
}

// NewRepository builds an entities repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) CreateEntity(ctx context.Context, entity *models.Entity) error {
	return r.DB(ctx).Create(entity).Error
}

func (r *repository) FindEntity(ctx context.Context, orgID, id uuid.UUID) (*models.Entity, error) {
	var entity models.Entity
	err := r.Tenant(ctx, orgID).Where("id = ?", id).First(&entity).Error
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

func (r *repository) UpdateEntity(ctx context.Context, orgID, id uuid.UUID, updates map[string]any) error {
	res := r.Tenant(ctx, orgID).
		Model(&models.Entity{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) ListEntities(ctx context.Context, orgID uuid.UUID, filter ListFilter) ([]models.Entity, string, error) {
	cursor, err := pagination.ParseCursor(filter.Cursor)
	if err != nil {
		return nil, "", err
	}

	query := r.Tenant(ctx, orgID)
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.SmartCode != "" {
		query = query.Where("smart_code = ?", filter.SmartCode)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var rows []models.Entity
	if err := repo.Keyset(query, cursor, filter.Limit).Find(&rows).Error; err != nil {
		return nil, "", err
	}
	rows, next := pagination.Trim(rows, filter.Limit, func(e models.Entity) pagination.Cursor {
		return pagination.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
	})
	return rows, next, nil
}

// UpsertDynamicField writes by (organization_id, entity_id, field_name),
// replacing every value column so a type change clears the old value.
func (r *repository) UpsertDynamicField(ctx context.Context, field *models.DynamicData) error {
	return r.DB(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "organization_id"}, {Name: "entity_id"}, {Name: "field_name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"field_type",
				"field_value_text",
				"field_value_number",
				"field_value_boolean",
				"field_value_date",
				"field_value_json",
				"smart_code",
				"updated_by",
				"updated_at",
			}),
		}).
		Create(field).Error
}

func (r *repository) FindDynamicField(ctx context.Context, orgID, entityID uuid.UUID, fieldName string) (*models.DynamicData, error) {
	var field models.DynamicData
	err := r.Tenant(ctx, orgID).
		Where("entity_id = ? AND field_name = ?", entityID, fieldName).
		First(&field).Error
	if err != nil {
		return nil, err
	}
	return &field, nil
}

func (r *repository) ListDynamicFields(ctx context.Context, orgID, entityID uuid.UUID) ([]models.DynamicData, error) {
	var fields []models.DynamicData
	if err := r.Tenant(ctx, orgID).
		Where("entity_id = ?", entityID).
		Order("field_name ASC").
		Find(&fields).Error; err != nil {
		return nil, err
	}
	return fields, nil
}
