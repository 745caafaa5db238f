package transactions

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/heraerp/hera-api/internal/repo"
	"github.com/heraerp/hera-api/pkg/db/models"
	"github.com/heraerp/hera-api/pkg/pagination"
)

// Repository persists universal_transactions and universal_transaction_lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CountEntities(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) (int64, error)
	CreateHeader(ctx context.Context, txn *models.UniversalTransaction) error
	CreateLines(ctx context.Context, lines []models.UniversalTransactionLine) error
	FindTransaction(ctx context.Context, orgID, id uuid.UUID) (*models.UniversalTransaction, error)
	FindLines(ctx context.Context, orgID, transactionID uuid.UUID) ([]models.UniversalTransactionLine, error)
	ListTransactions(ctx context.Context, orgID uuid.UUID, filter ListFilter) ([]models.UniversalTransaction, string, error)
}

type repository struct {
	repo.Base
}

// NewRepository builds a transactions repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) CountEntities(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) (int64, error) {
	return r.CountIn(ctx, &models.Entity{}, orgID, ids)
}

func (r *repository) CreateHeader(ctx context.Context, txn *models.UniversalTransaction) error {
	return r.DB(ctx).Create(txn).Error
}

func (r *repository) CreateLines(ctx context.Context, lines []models.UniversalTransactionLine) error {
	if len(lines) == 0 {
		return nil
	}
	return r.DB(ctx).Create(&lines).Error
}

func (r *repository) FindTransaction(ctx context.Context, orgID, id uuid.UUID) (*models.UniversalTransaction, error) {
	var txn models.UniversalTransaction
	err := r.Tenant(ctx, orgID).Where("id = ?", id).First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindLines(ctx context.Context, orgID, transactionID uuid.UUID) ([]models.UniversalTransactionLine, error) {
	var lines []models.UniversalTransactionLine
	if err := r.Tenant(ctx, orgID).
		Where("transaction_id = ?", transactionID).
		Order("line_number ASC").
		Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *repository) ListTransactions(ctx context.Context, orgID uuid.UUID, filter ListFilter) ([]models.UniversalTransaction, string, error) {
	cursor, err := pagination.ParseCursor(filter.Cursor)
	if err != nil {
		return nil, "", err
	}

	query := r.Tenant(ctx, orgID)
	if filter.TransactionType != "" {
		query = query.Where("transaction_type = ?", filter.TransactionType)
	}
	if filter.SmartCode != "" {
		query = query.Where("smart_code = ?", filter.SmartCode)
	}
	if filter.Status != nil {
		query = query.Where("transaction_status = ?", *filter.Status)
	}
	if filter.From != nil {
		query = query.Where("transaction_date >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		query = query.Where("transaction_date < ?", filter.To.UTC())
	}

	var rows []models.UniversalTransaction
	if err := repo.Keyset(query, cursor, filter.Limit).Find(&rows).Error; err != nil {
		return nil, "", err
	}
	rows, next := pagination.Trim(rows, filter.Limit, func(t models.UniversalTransaction) pagination.Cursor {
		return pagination.Cursor{CreatedAt: t.CreatedAt, ID: t.ID}
	})
	return rows, next, nil
}
