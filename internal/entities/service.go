package entities

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/heraerp/hera-api/internal/guard"
	pkgdb "github.com/heraerp/hera-api/pkg/db"
	"github.com/heraerp/hera-api/pkg/db/models"
	"github.com/heraerp/hera-api/pkg/enums"
	pkgerrors "github.com/heraerp/hera-api/pkg/errors"
	"github.com/heraerp/hera-api/pkg/guardrails"
	"github.com/heraerp/hera-api/pkg/logger"
	"github.com/heraerp/hera-api/pkg/outbox"
	"github.com/heraerp/hera-api/pkg/outbox/payloads"
	"github.com/heraerp/hera-api/pkg/pagination"
)

const (
	opCreate          = "entities.create"
	opUpdate          = "entities.update"
	opSetDynamicField = "entities.set_dynamic_field"
)

var emptyObject = json.RawMessage(`{}`)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes universal entity operations.
type Service interface {
	Create(ctx context.Context, gctx guardrails.Context, input CreateEntityInput) (*EntityDTO, error)
	Update(ctx context.Context, gctx guardrails.Context, id uuid.UUID, input UpdateEntityInput) (*EntityDTO, error)
	Get(ctx context.Context, orgID, id uuid.UUID) (*EntityDTO, error)
	List(ctx context.Context, orgID uuid.UUID, filter ListFilter) (*EntityList, error)
	SetDynamicField(ctx context.Context, gctx guardrails.Context, entityID uuid.UUID, input SetDynamicFieldInput) (*DynamicFieldDTO, error)
	ListDynamicFields(ctx context.Context, orgID, entityID uuid.UUID) ([]DynamicFieldDTO, error)
}

type ServiceParams struct {
	Repo   Repository
	Tx     txRunner
	Guard  guard.Checker
	Outbox outbox.Emitter
	Logger *logger.Logger
}

type service struct {
	repo   Repository
	tx     txRunner
	guard  guard.Checker
	outbox outbox.Emitter
	logg   *logger.Logger
}

// NewService builds the entity service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("entities repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Guard == nil {
		return nil, fmt.Errorf("guard required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		repo:   params.Repo,
		tx:     params.Tx,
		guard:  params.Guard,
		outbox: params.Outbox,
		logg:   params.Logger,
	}, nil
}

func (s *service) Create(ctx context.Context, gctx guardrails.Context, input CreateEntityInput) (*EntityDTO, error) {
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

	entityType := strings.TrimSpace(input.EntityType)
	name := strings.TrimSpace(input.EntityName)
	if entityType == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "entity_type is required")
	}
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "entity_name is required")
	}
	status := input.Status
	if status == "" {
		status = enums.EntityStatusActive
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid entity status")
	}

	entity := &models.Entity{
		ID:             uuid.New(),
		OrganizationID: scope.OrganizationID,
		EntityType:     entityType,
		EntityName:     name,
		EntityCode:     trimmedOrNil(input.EntityCode),
		SmartCode:      input.SmartCode,
		Status:         status,
		Metadata:       objectOrEmpty(input.Metadata),
		CreatedBy:      scope.CreatedBy(),
		UpdatedBy:      scope.CreatedBy(),
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreateEntity(ctx, entity); err != nil {
			if pkgdb.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "entity_code already used for this entity_type")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert entity")
		}
		return s.emitEntity(ctx, tx, enums.EventEntityCreated, scope, entity)
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"entity_id":   entity.ID.String(),
			"entity_type": entity.EntityType,
			"smart_code":  entity.SmartCode,
		})
		s.logg.Info(logCtx, "entity created")
	}

	dto := entityToDTO(entity)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, gctx guardrails.Context, id uuid.UUID, input UpdateEntityInput) (*EntityDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "entity id required")
	}
	gctx.SmartCode = ""
	if input.SmartCode != nil {
		gctx.SmartCode = *input.SmartCode
	}
	if err := s.guard.Check(ctx, guard.Request{
		Operation:        opUpdate,
		Context:          gctx,
		Payload:          guardrails.Payload{OrganizationID: input.OrganizationID},
		RequireSmartCode: input.SmartCode != nil,
	}); err != nil {
		return nil, err
	}
	scope, err := guard.ScopeFrom(gctx)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if input.EntityName != nil {
		name := strings.TrimSpace(*input.EntityName)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "entity_name cannot be empty")
		}
		updates["entity_name"] = name
	}
	if input.EntityCode != nil {
		updates["entity_code"] = trimmedOrNil(input.EntityCode)
	}
	if input.SmartCode != nil {
		updates["smart_code"] = *input.SmartCode
	}
	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid entity status")
		}
		updates["status"] = *input.Status
	}
	if len(input.Metadata) > 0 {
		updates["metadata"] = input.Metadata
	}
	if by := scope.CreatedBy(); by != nil {
		updates["updated_by"] = *by
	}

	var updated *models.Entity
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdateEntity(ctx, scope.OrganizationID, id, updates); err != nil {
			return mapEntityErr(err, "update entity")
		}
		entity, err := repo.FindEntity(ctx, scope.OrganizationID, id)
		if err != nil {
			return mapEntityErr(err, "load entity")
		}
		updated = entity
		return s.emitEntity(ctx, tx, enums.EventEntityUpdated, scope, entity)
	})
	if err != nil {
		return nil, err
	}

	dto := entityToDTO(updated)
	return &dto, nil
}

func (s *service) Get(ctx context.Context, orgID, id uuid.UUID) (*EntityDTO, error) {
	if orgID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "organization context missing")
	}
	entity, err := s.repo.FindEntity(ctx, orgID, id)
	if err != nil {
		return nil, mapEntityErr(err, "load entity")
	}
	dto := entityToDTO(entity)
	return &dto, nil
}

func (s *service) List(ctx context.Context, orgID uuid.UUID, filter ListFilter) (*EntityList, error) {
	if orgID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "organization context missing")
	}
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid entity status")
	}
	if _, err := pagination.ParseCursor(filter.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.ListEntities(ctx, orgID, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list entities")
	}
	list := &EntityList{Entities: make([]EntityDTO, 0, len(rows)), NextCursor: next}
	for i := range rows {
		list.Entities = append(list.Entities, entityToDTO(&rows[i]))
	}
	return list, nil
}

func (s *service) SetDynamicField(ctx context.Context, gctx guardrails.Context, entityID uuid.UUID, input SetDynamicFieldInput) (*DynamicFieldDTO, error) {
	if entityID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "entity id required")
	}
	gctx.SmartCode = input.SmartCode
	if err := s.guard.Check(ctx, guard.Request{
		Operation:        opSetDynamicField,
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

	field, err := buildDynamicField(scope, entityID, input)
	if err != nil {
		return nil, err
	}

	var stored *models.DynamicData
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindEntity(ctx, scope.OrganizationID, entityID); err != nil {
			return mapEntityErr(err, "load entity")
		}
		if err := repo.UpsertDynamicField(ctx, field); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert dynamic field")
		}
		row, err := repo.FindDynamicField(ctx, scope.OrganizationID, entityID, field.FieldName)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dynamic field")
		}
		stored = row
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:      enums.EventDynamicFieldSet,
			AggregateType:  enums.AggregateEntity,
			AggregateID:    entityID,
			OrganizationID: scope.OrganizationID,
			SmartCode:      row.SmartCode,
			Actor:          scope.Actor(),
			Data: payloads.DynamicFieldSetEvent{
				EntityID:       entityID,
				OrganizationID: scope.OrganizationID,
				FieldName:      row.FieldName,
				FieldType:      row.FieldType,
				SmartCode:      row.SmartCode,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	dto := dynamicFieldToDTO(stored)
	return &dto, nil
}

func (s *service) ListDynamicFields(ctx context.Context, orgID, entityID uuid.UUID) ([]DynamicFieldDTO, error) {
	if orgID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "organization context missing")
	}
	if _, err := s.repo.FindEntity(ctx, orgID, entityID); err != nil {
		return nil, mapEntityErr(err, "load entity")
	}
	rows, err := s.repo.ListDynamicFields(ctx, orgID, entityID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list dynamic fields")
	}
	out := make([]DynamicFieldDTO, 0, len(rows))
	for i := range rows {
		out = append(out, dynamicFieldToDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) emitEntity(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, scope guard.Scope, entity *models.Entity) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:      eventType,
		AggregateType:  enums.AggregateEntity,
		AggregateID:    entity.ID,
		OrganizationID: scope.OrganizationID,
		SmartCode:      entity.SmartCode,
		Actor:          scope.Actor(),
		Data: payloads.EntityChangedEvent{
			EntityID:       entity.ID,
			OrganizationID: entity.OrganizationID,
			EntityType:     entity.EntityType,
			EntityName:     entity.EntityName,
			EntityCode:     entity.EntityCode,
			SmartCode:      entity.SmartCode,
			Status:         entity.Status,
		},
	})
}

func buildDynamicField(scope guard.Scope, entityID uuid.UUID, input SetDynamicFieldInput) (*models.DynamicData, error) {
	name := strings.TrimSpace(input.FieldName)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "field_name is required")
	}
	if !input.FieldType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid field_type")
	}

	set := 0
	for _, present := range []bool{
		input.Text != nil,
		input.Number != nil,
		input.Boolean != nil,
		input.Date != nil,
		len(input.JSON) > 0,
	} {
		if present {
			set++
		}
	}
	if set != 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "exactly one field value must be provided")
	}

	field := &models.DynamicData{
		ID:             uuid.New(),
		OrganizationID: scope.OrganizationID,
		EntityID:       entityID,
		FieldName:      name,
		FieldType:      input.FieldType,
		SmartCode:      input.SmartCode,
		CreatedBy:      scope.CreatedBy(),
		UpdatedBy:      scope.CreatedBy(),
		UpdatedAt:      time.Now().UTC(),
	}

	mismatch := pkgerrors.New(pkgerrors.CodeValidation, "field value does not match field_type").
		WithDetails(map[string]any{"field_type": string(input.FieldType)})
	switch input.FieldType {
	case enums.FieldTypeText:
		if input.Text == nil {
			return nil, mismatch
		}
		field.FieldValueText = input.Text
	case enums.FieldTypeNumber:
		if input.Number == nil {
			return nil, mismatch
		}
		field.FieldValueNumber = &decimal.NullDecimal{Decimal: *input.Number, Valid: true}
	case enums.FieldTypeBoolean:
		if input.Boolean == nil {
			return nil, mismatch
		}
		field.FieldValueBoolean = input.Boolean
	case enums.FieldTypeDate:
		if input.Date == nil {
			return nil, mismatch
		}
		d := input.Date.UTC()
		field.FieldValueDate = &d
	case enums.FieldTypeJSON:
		if len(input.JSON) == 0 {
			return nil, mismatch
		}
		if !json.Valid(input.JSON) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "field value is not valid json")
		}
		field.FieldValueJSON = input.JSON
	}
	return field, nil
}

func mapEntityErr(err error, step string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "entity not found")
	}
	if pkgdb.IsUniqueViolation(err, "") {
		return pkgerrors.New(pkgerrors.CodeConflict, "entity_code already used for this entity_type")
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, step)
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func objectOrEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return emptyObject
	}
	return raw
}
