package entities

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/heraerp/hera-api/internal/guard"
	"github.com/heraerp/hera-api/pkg/db/models"
	"github.com/heraerp/hera-api/pkg/enums"
	pkgerrors "github.com/heraerp/hera-api/pkg/errors"
	"github.com/heraerp/hera-api/pkg/guardrails"
	"github.com/heraerp/hera-api/pkg/outbox"
	"github.com/heraerp/hera-api/pkg/outbox/payloads"
)

const customerCode = "HERA.CRM.CUSTOMER.ENTITY.PROFILE.v1"

type stubRepo struct {
	entities map[uuid.UUID]*models.Entity
	fields   map[string]*models.DynamicData
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		entities: map[uuid.UUID]*models.Entity{},
		fields:   map[string]*models.DynamicData{},
	}
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) CreateEntity(ctx context.Context, entity *models.Entity) error {
	copied := *entity
	s.entities[entity.ID] = &copied
	return nil
}

func (s *stubRepo) FindEntity(ctx context.Context, orgID, id uuid.UUID) (*models.Entity, error) {
	e, ok := s.entities[id]
	if !ok || e.OrganizationID != orgID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *e
	return &copied, nil
}

func (s *stubRepo) UpdateEntity(ctx context.Context, orgID, id uuid.UUID, updates map[string]any) error {
	e, ok := s.entities[id]
	if !ok || e.OrganizationID != orgID {
		return gorm.ErrRecordNotFound
	}
	if v, ok := updates["entity_name"].(string); ok {
		e.EntityName = v
	}
	if v, ok := updates["smart_code"].(string); ok {
		e.SmartCode = v
	}
	if v, ok := updates["status"].(enums.EntityStatus); ok {
		e.Status = v
	}
	return nil
}

func (s *stubRepo) ListEntities(ctx context.Context, orgID uuid.UUID, filter ListFilter) ([]models.Entity, string, error) {
	var out []models.Entity
	for _, e := range s.entities {
		if e.OrganizationID == orgID {
			out = append(out, *e)
		}
	}
	return out, "", nil
}

func (s *stubRepo) UpsertDynamicField(ctx context.Context, field *models.DynamicData) error {
	copied := *field
	s.fields[field.EntityID.String()+"/"+field.FieldName] = &copied
	return nil
}

func (s *stubRepo) FindDynamicField(ctx context.Context, orgID, entityID uuid.UUID, fieldName string) (*models.DynamicData, error) {
	f, ok := s.fields[entityID.String()+"/"+fieldName]
	if !ok || f.OrganizationID != orgID {
		return nil, gorm.ErrRecordNotFound
	}
	return f, nil
}

func (s *stubRepo) ListDynamicFields(ctx context.Context, orgID, entityID uuid.UUID) ([]models.DynamicData, error) {
	var out []models.DynamicData
	for _, f := range s.fields {
		if f.OrganizationID == orgID && f.EntityID == entityID {
			out = append(out, *f)
		}
	}
	return out, nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type recordingEmitter struct {
	events []outbox.DomainEvent
}

func (r *recordingEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	r.events = append(r.events, event)
	return nil
}

type fixture struct {
	svc    Service
	repo   *stubRepo
	events *recordingEmitter
	orgID  uuid.UUID
	actor  uuid.UUID
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo := newStubRepo()
	events := &recordingEmitter{}
	svc, err := NewService(ServiceParams{
		Repo:   repo,
		Tx:     stubTx{},
		Guard:  guard.New(guard.Options{}),
		Outbox: events,
	})
	require.NoError(t, err)
	return fixture{svc: svc, repo: repo, events: events, orgID: uuid.New(), actor: uuid.New()}
}

func (f fixture) gctx() guardrails.Context {
	return guardrails.Context{OrganizationID: f.orgID.String(), ActorID: f.actor.String()}
}

func (f fixture) create(t *testing.T) *EntityDTO {
	t.Helper()
	dto, err := f.svc.Create(context.Background(), f.gctx(), CreateEntityInput{
		OrganizationID: f.orgID.String(),
		EntityType:     "customer",
		EntityName:     "Ada Lovelace",
		SmartCode:      customerCode,
	})
	require.NoError(t, err)
	return dto
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestCreateEntityPersistsAndEmits(t *testing.T) {
	f := newFixture(t)
	dto := f.create(t)

	assert.Equal(t, f.orgID, dto.OrganizationID)
	assert.Equal(t, enums.EntityStatusActive, dto.Status)
	assert.JSONEq(t, `{}`, string(dto.Metadata))
	require.NotNil(t, dto.CreatedBy)
	assert.Equal(t, f.actor, *dto.CreatedBy)

	require.Len(t, f.events.events, 1)
	event := f.events.events[0]
	assert.Equal(t, enums.EventEntityCreated, event.EventType)
	assert.Equal(t, enums.AggregateEntity, event.AggregateType)
	assert.Equal(t, f.orgID, event.OrganizationID)
	assert.Equal(t, customerCode, event.SmartCode)
	data, ok := event.Data.(payloads.EntityChangedEvent)
	require.True(t, ok)
	assert.Equal(t, dto.ID, data.EntityID)
}

func TestCreateEntityGuardrailFailures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CreateEntityInput)
		code   pkgerrors.Code
		reason guardrails.Reason
	}{
		{"missing smart code", func(in *CreateEntityInput) { in.SmartCode = "" }, pkgerrors.CodeGuardrail, guardrails.ReasonSmartCodeMissing},
		{"lowercase version", func(in *CreateEntityInput) { in.SmartCode = "HERA.CRM.CUSTOMER.ENTITY.PROFILE.V1" }, pkgerrors.CodeGuardrail, guardrails.ReasonSmartCodeRegexFail},
		{"missing org", func(in *CreateEntityInput) { in.OrganizationID = "" }, pkgerrors.CodeForbidden, guardrails.ReasonOrgFilterMissing},
		{"foreign org", func(in *CreateEntityInput) { in.OrganizationID = uuid.NewString() }, pkgerrors.CodeForbidden, guardrails.ReasonOrgFilterMismatch},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			input := CreateEntityInput{
				OrganizationID: f.orgID.String(),
				EntityType:     "customer",
				EntityName:     "Ada",
				SmartCode:      customerCode,
			}
			tc.mutate(&input)

			_, err := f.svc.Create(context.Background(), f.gctx(), input)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, tc.code, typed.Code())
			assert.Equal(t, string(tc.reason), typed.Details().(map[string]any)["reason"])
			assert.Empty(t, f.repo.entities)
			assert.Empty(t, f.events.events)
		})
	}
}

func TestCreateEntityValidatesFields(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), f.gctx(), CreateEntityInput{
		OrganizationID: f.orgID.String(),
		EntityType:     " ",
		EntityName:     "Ada",
		SmartCode:      customerCode,
	})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = f.svc.Create(context.Background(), f.gctx(), CreateEntityInput{
		OrganizationID: f.orgID.String(),
		EntityType:     "customer",
		EntityName:     "Ada",
		SmartCode:      customerCode,
		Status:         enums.EntityStatus("deleted"),
	})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestUpdateEntity(t *testing.T) {
	f := newFixture(t)
	created := f.create(t)

	name := "Ada King"
	status := enums.EntityStatusInactive
	updated, err := f.svc.Update(context.Background(), f.gctx(), created.ID, UpdateEntityInput{
		OrganizationID: f.orgID.String(),
		EntityName:     &name,
		Status:         &status,
	})
	require.NoError(t, err)
	assert.Equal(t, name, updated.EntityName)
	assert.Equal(t, status, updated.Status)
	assert.Equal(t, enums.EventEntityUpdated, f.events.events[len(f.events.events)-1].EventType)
}

func TestUpdateEntityRejectsBadSmartCode(t *testing.T) {
	f := newFixture(t)
	created := f.create(t)

	bad := "HERA.CRM"
	_, err := f.svc.Update(context.Background(), f.gctx(), created.ID, UpdateEntityInput{
		OrganizationID: f.orgID.String(),
		SmartCode:      &bad,
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeGuardrail, typed.Code())
}

func TestUpdateEntityFromOtherOrganizationIsNotFound(t *testing.T) {
	f := newFixture(t)
	created := f.create(t)

	other := uuid.New()
	name := "hijack"
	_, err := f.svc.Update(context.Background(), guardrails.Context{OrganizationID: other.String()}, created.ID, UpdateEntityInput{
		OrganizationID: other.String(),
		EntityName:     &name,
	})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())

	_, err = f.svc.Get(context.Background(), other, created.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestListRejectsBadCursor(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.List(context.Background(), f.orgID, ListFilter{Cursor: "%%%"})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = f.svc.List(context.Background(), uuid.Nil, ListFilter{})
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())
}

func TestSetDynamicField(t *testing.T) {
	f := newFixture(t)
	created := f.create(t)

	amount := decimal.RequireFromString("1250.50")
	dto, err := f.svc.SetDynamicField(context.Background(), f.gctx(), created.ID, SetDynamicFieldInput{
		OrganizationID: f.orgID.String(),
		FieldName:      "credit_limit",
		FieldType:      enums.FieldTypeNumber,
		SmartCode:      "HERA.CRM.CUSTOMER.DYN.CREDIT_LIMIT.v1",
		Number:         &amount,
	})
	require.NoError(t, err)
	assert.Equal(t, "credit_limit", dto.FieldName)
	assert.True(t, amount.Equal(dto.Value.(decimal.Decimal)))

	last := f.events.events[len(f.events.events)-1]
	assert.Equal(t, enums.EventDynamicFieldSet, last.EventType)
	assert.Equal(t, created.ID, last.AggregateID)

	fields, err := f.svc.ListDynamicFields(context.Background(), f.orgID, created.ID)
	require.NoError(t, err)
	require.Len(t, fields, 1)
}

func TestSetDynamicFieldValidation(t *testing.T) {
	f := newFixture(t)
	created := f.create(t)
	text := "gold"
	when := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		input SetDynamicFieldInput
		code  pkgerrors.Code
	}{
		{"type mismatch", SetDynamicFieldInput{FieldName: "tier", FieldType: enums.FieldTypeNumber, Text: &text}, pkgerrors.CodeValidation},
		{"two values", SetDynamicFieldInput{FieldName: "tier", FieldType: enums.FieldTypeText, Text: &text, Date: &when}, pkgerrors.CodeValidation},
		{"no value", SetDynamicFieldInput{FieldName: "tier", FieldType: enums.FieldTypeText}, pkgerrors.CodeValidation},
		{"unknown type", SetDynamicFieldInput{FieldName: "tier", FieldType: "blob", Text: &text}, pkgerrors.CodeValidation},
		{"bad json", SetDynamicFieldInput{FieldName: "prefs", FieldType: enums.FieldTypeJSON, JSON: json.RawMessage(`{nope`)}, pkgerrors.CodeValidation},
		{"malformed smart code", SetDynamicFieldInput{FieldName: "tier", FieldType: enums.FieldTypeText, Text: &text, SmartCode: "-"}, pkgerrors.CodeGuardrail},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.input.OrganizationID = f.orgID.String()
			if tc.input.SmartCode == "" {
				tc.input.SmartCode = "HERA.CRM.CUSTOMER.DYN.TIER.v1"
			}
			_, err := f.svc.SetDynamicField(context.Background(), f.gctx(), created.ID, tc.input)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, tc.code, typed.Code())
		})
	}
}

func TestSetDynamicFieldUnknownEntity(t *testing.T) {
	f := newFixture(t)
	text := "gold"
	_, err := f.svc.SetDynamicField(context.Background(), f.gctx(), uuid.New(), SetDynamicFieldInput{
		OrganizationID: f.orgID.String(),
		FieldName:      "tier",
		FieldType:      enums.FieldTypeText,
		SmartCode:      "HERA.CRM.CUSTOMER.DYN.TIER.v1",
		Text:           &text,
	})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
	assert.Len(t, f.events.events, 0)
}
