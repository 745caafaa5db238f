// Package relationships links core entities of one organization.
package relationships

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/heraerp/hera-api/internal/guard"
	"github.com/heraerp/hera-api/internal/repo"
	"github.com/heraerp/hera-api/pkg/db/models"
	"github.com/heraerp/hera-api/pkg/enums"
	pkgerrors "github.com/heraerp/hera-api/pkg/errors"
	"github.com/heraerp/hera-api/pkg/guardrails"
	"github.com/heraerp/hera-api/pkg/logger"
	"github.com/heraerp/hera-api/pkg/outbox"
	"github.com/heraerp/hera-api/pkg/outbox/payloads"
)

const opCreate = "relationships.create"

// CreateInput links FromEntityID to ToEntityID.
type CreateInput struct {
	OrganizationID   string
	FromEntityID     uuid.UUID
	ToEntityID       uuid.UUID
	RelationshipType string
	SmartCode        string
	RelationshipData json.RawMessage
}

type RelationshipDTO struct {
	ID               uuid.UUID       `json:"id"`
	OrganizationID   uuid.UUID       `json:"organization_id"`
	FromEntityID     uuid.UUID       `json:"from_entity_id"`
	ToEntityID       uuid.UUID       `json:"to_entity_id"`
	RelationshipType string          `json:"relationship_type"`
	RelationshipData json.RawMessage `json:"relationship_data,omitempty"`
	SmartCode        string          `json:"smart_code"`
	IsActive         bool            `json:"is_active"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Repository persists core_relationships.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CountEntities(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) (int64, error)
	Create(ctx context.Context, rel *models.Relationship) error
	ListForEntity(ctx context.Context, orgID, entityID uuid.UUID) ([]models.Relationship, error)
}

type repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

// CountEntities counts how many of ids exist in the organization.
func (r *repository) CountEntities(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) (int64, error) {
	return r.CountIn(ctx, &models.Entity{}, orgID, ids)
}

func (r *repository) Create(ctx context.Context, rel *models.Relationship) error {
	return r.DB(ctx).Create(rel).Error
}

func (r *repository) ListForEntity(ctx context.Context, orgID, entityID uuid.UUID) ([]models.Relationship, error) {
	var rels []models.Relationship
	if err := r.Tenant(ctx, orgID).
		Where("is_active = ?", true).
		Where("from_entity_id = ? OR to_entity_id = ?", entityID, entityID).
		Order("created_at ASC").
		Find(&rels).Error; err != nil {
		return nil, err
	}
	return rels, nil
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type Service struct {
	repo   Repository
	tx     txRunner
	guard  guard.Checker
	outbox outbox.Emitter
	logg   *logger.Logger
}

func NewService(repo Repository, tx txRunner, checker guard.Checker, emitter outbox.Emitter, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("relationships repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if checker == nil {
		return nil, fmt.Errorf("guard required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &Service{repo: repo, tx: tx, guard: checker, outbox: emitter, logg: logg}, nil
}

// Create validates the relationship, confirms both ends belong to the
// caller's organization and records it with a relationship_created event.
func (s *Service) Create(ctx context.Context, gctx guardrails.Context, input CreateInput) (*RelationshipDTO, error) {
	gctx.SmartCode = input.SmartCode
	if err := s.guard.Check(ctx, guard.Request{
		Operation:        opCreate,
		Context:          gctx,
		Payload:          guardrails.Payload{OrganizationID: input.OrganizationID},
		RequireSmartCode: true,
	}); err != nil {
		return nil, err
	}
	scope, err := guard.ScopeFrom(gctx)
	if err != nil {
		return nil, err
	}

	relType := strings.TrimSpace(input.RelationshipType)
	if relType == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "relationship_type is required")
	}
	if input.FromEntityID == uuid.Nil || input.ToEntityID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "from_entity_id and to_entity_id are required")
	}
	if input.FromEntityID == input.ToEntityID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "an entity cannot be related to itself")
	}
	data := input.RelationshipData
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}

	rel := &models.Relationship{
		ID:               uuid.New(),
		OrganizationID:   scope.OrganizationID,
		FromEntityID:     input.FromEntityID,
		ToEntityID:       input.ToEntityID,
		RelationshipType: relType,
		RelationshipData: data,
		SmartCode:        input.SmartCode,
		IsActive:         true,
		CreatedBy:        scope.CreatedBy(),
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		count, err := repo.CountEntities(ctx, scope.OrganizationID, []uuid.UUID{rel.FromEntityID, rel.ToEntityID})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load related entities")
		}
		if count != 2 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "related entity not found")
		}
		if err := repo.Create(ctx, rel); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert relationship")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:      enums.EventRelationshipCreated,
			AggregateType:  enums.AggregateRelationship,
			AggregateID:    rel.ID,
			OrganizationID: scope.OrganizationID,
			SmartCode:      rel.SmartCode,
			Actor:          scope.Actor(),
			Data: payloads.RelationshipCreatedEvent{
				RelationshipID:   rel.ID,
				OrganizationID:   rel.OrganizationID,
				FromEntityID:     rel.FromEntityID,
				ToEntityID:       rel.ToEntityID,
				RelationshipType: rel.RelationshipType,
				SmartCode:        rel.SmartCode,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	dto := toDTO(rel)
	return &dto, nil
}

func (s *Service) ListForEntity(ctx context.Context, orgID, entityID uuid.UUID) ([]RelationshipDTO, error) {
	if orgID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "organization context missing")
	}
	rels, err := s.repo.ListForEntity(ctx, orgID, entityID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list relationships")
	}
	out := make([]RelationshipDTO, 0, len(rels))
	for i := range rels {
		out = append(out, toDTO(&rels[i]))
	}
	return out, nil
}

func toDTO(rel *models.Relationship) RelationshipDTO {
	return RelationshipDTO{
		ID:               rel.ID,
		OrganizationID:   rel.OrganizationID,
		FromEntityID:     rel.FromEntityID,
		ToEntityID:       rel.ToEntityID,
		RelationshipType: rel.RelationshipType,
		RelationshipData: rel.RelationshipData,
		SmartCode:        rel.SmartCode,
		IsActive:         rel.IsActive,
		CreatedAt:        rel.CreatedAt,
	}
}
