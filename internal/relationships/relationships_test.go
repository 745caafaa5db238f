package relationships

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/heraerp/hera-api/internal/guard"
	pkgdb "github.com/heraerp/hera-api/pkg/db"
	"github.com/heraerp/hera-api/pkg/db/models"
	"github.com/heraerp/hera-api/pkg/enums"
	pkgerrors "github.com/heraerp/hera-api/pkg/errors"
	"github.com/heraerp/hera-api/pkg/guardrails"
	"github.com/heraerp/hera-api/pkg/outbox"
)

const memberOfCode = "HERA.CRM.REL.CUSTOMER.MEMBER_OF.v1"

type recordingEmitter struct {
	events []outbox.DomainEvent
}

func (r *recordingEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	r.events = append(r.events, event)
	return nil
}

func setupRelationshipsTestDB(t *testing.T) *gorm.DB {
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
	relationships := `
CREATE TABLE IF NOT EXISTS core_relationships (
  id TEXT PRIMARY KEY,
  organization_id TEXT NOT NULL,
  from_entity_id TEXT NOT NULL,
  to_entity_id TEXT NOT NULL,
  relationship_type TEXT NOT NULL,
  relationship_data TEXT,
  smart_code TEXT NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_by TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(entities).Error)
	require.NoError(t, db.Exec(relationships).Error)
	return db
}

func seedEntity(t *testing.T, db *gorm.DB, orgID uuid.UUID) uuid.UUID {
	t.Helper()
	entity := models.Entity{
		ID:             uuid.New(),
		OrganizationID: orgID,
		EntityType:     "customer",
		EntityName:     "seed",
		SmartCode:      "HERA.CRM.CUSTOMER.ENTITY.PROFILE.v1",
		Status:         enums.EntityStatusActive,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, db.Create(&entity).Error)
	return entity.ID
}

func newTestService(t *testing.T, db *gorm.DB) (*Service, *recordingEmitter) {
	t.Helper()
	emitter := &recordingEmitter{}
	svc, err := NewService(NewRepository(db), pkgdb.FromGorm(db), guard.New(guard.Options{}), emitter, nil)
	require.NoError(t, err)
	return svc, emitter
}

func TestCreateRelationship(t *testing.T) {
	db := setupRelationshipsTestDB(t)
	svc, emitter := newTestService(t, db)
	orgID := uuid.New()
	from := seedEntity(t, db, orgID)
	to := seedEntity(t, db, orgID)

	rel, err := svc.Create(context.Background(), guardrails.Context{OrganizationID: orgID.String()}, CreateInput{
		OrganizationID:   orgID.String(),
		FromEntityID:     from,
		ToEntityID:       to,
		RelationshipType: "member_of",
		SmartCode:        memberOfCode,
	})
	require.NoError(t, err)
	assert.True(t, rel.IsActive)
	assert.Equal(t, orgID, rel.OrganizationID)

	require.Len(t, emitter.events, 1)
	assert.Equal(t, enums.EventRelationshipCreated, emitter.events[0].EventType)
	assert.Equal(t, enums.AggregateRelationship, emitter.events[0].AggregateType)

	fromSide, err := svc.ListForEntity(context.Background(), orgID, from)
	require.NoError(t, err)
	require.Len(t, fromSide, 1)
	toSide, err := svc.ListForEntity(context.Background(), orgID, to)
	require.NoError(t, err)
	require.Len(t, toSide, 1)
	assert.Equal(t, rel.ID, toSide[0].ID)

	foreign, err := svc.ListForEntity(context.Background(), uuid.New(), from)
	require.NoError(t, err)
	assert.Empty(t, foreign)
}

func TestCreateRelationshipAcrossOrganizationsIsNotFound(t *testing.T) {
	db := setupRelationshipsTestDB(t)
	svc, emitter := newTestService(t, db)
	orgID := uuid.New()
	from := seedEntity(t, db, orgID)
	foreign := seedEntity(t, db, uuid.New())

	_, err := svc.Create(context.Background(), guardrails.Context{OrganizationID: orgID.String()}, CreateInput{
		OrganizationID:   orgID.String(),
		FromEntityID:     from,
		ToEntityID:       foreign,
		RelationshipType: "member_of",
		SmartCode:        memberOfCode,
	})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
	assert.Empty(t, emitter.events)

	var count int64
	require.NoError(t, db.Model(&models.Relationship{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateRelationshipRejections(t *testing.T) {
	db := setupRelationshipsTestDB(t)
	svc, _ := newTestService(t, db)
	orgID := uuid.New()
	a := seedEntity(t, db, orgID)
	b := seedEntity(t, db, orgID)

	cases := []struct {
		name  string
		input CreateInput
		code  pkgerrors.Code
	}{
		{"missing smart code", CreateInput{OrganizationID: orgID.String(), FromEntityID: a, ToEntityID: b, RelationshipType: "x"}, pkgerrors.CodeGuardrail},
		{"org mismatch", CreateInput{OrganizationID: uuid.NewString(), FromEntityID: a, ToEntityID: b, RelationshipType: "x", SmartCode: memberOfCode}, pkgerrors.CodeForbidden},
		{"self link", CreateInput{OrganizationID: orgID.String(), FromEntityID: a, ToEntityID: a, RelationshipType: "x", SmartCode: memberOfCode}, pkgerrors.CodeValidation},
		{"no type", CreateInput{OrganizationID: orgID.String(), FromEntityID: a, ToEntityID: b, SmartCode: memberOfCode}, pkgerrors.CodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), guardrails.Context{OrganizationID: orgID.String()}, tc.input)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, tc.code, typed.Code())
		})
	}
}
