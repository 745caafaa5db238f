package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/heraerp/hera-api/pkg/pagination"
)

// Base is embedded by every sacred-table repository. Tenant is the only
// entry point domain queries should use so organization_id is never dropped.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection bound to ctx. Inserts use it directly because the
// row itself carries organization_id.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Tenant scopes a query to one organization.
func (b Base) Tenant(ctx context.Context, orgID uuid.UUID) *gorm.DB {
	return b.DB(ctx).Where("organization_id = ?", orgID)
}

// CountIn counts how many of ids exist for model inside the organization.
func (b Base) CountIn(ctx context.Context, model any, orgID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var count int64
	err := b.Tenant(ctx, orgID).Model(model).Where("id IN ?", ids).Count(&count).Error
	return count, err
}

// Keyset applies newest-first (created_at, id) ordering after cursor and
// fetches one row past limit so pagination.Trim can detect a next page.
func Keyset(query *gorm.DB, cursor *pagination.Cursor, limit int) *gorm.DB {
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	return query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(limit))
}
