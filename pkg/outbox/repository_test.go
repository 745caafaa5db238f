package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/heraerp/hera-api/pkg/db/models"
	"github.com/heraerp/hera-api/pkg/enums"
	"github.com/heraerp/hera-api/pkg/logger"
	"github.com/heraerp/hera-api/pkg/pagination"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	events := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  organization_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  next_attempt_at DATETIME,
  last_error TEXT
);`
	dlq := `
CREATE TABLE IF NOT EXISTS outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  organization_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json TEXT NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(events).Error)
	require.NoError(t, db.Exec(dlq).Error)
	return db
}

func emitTestEvent(t *testing.T, db *gorm.DB, svc *Service, orgID uuid.UUID) {
	t.Helper()
	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:      enums.EventEntityCreated,
			AggregateType:  enums.AggregateEntity,
			AggregateID:    uuid.New(),
			OrganizationID: orgID,
			SmartCode:      "HERA.CRM.CUST.ENT.PROF.v1",
			Data:           map[string]string{"entity_name": "Acme"},
		})
	})
	require.NoError(t, err)
}

func TestServiceEmitWritesEnvelope(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc := NewService(NewRepository(db), logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	orgID := uuid.New()

	emitTestEvent(t, db, svc, orgID)

	var rows []models.OutboxEvent
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, orgID, rows[0].OrganizationID)
	assert.Equal(t, enums.EventEntityCreated, rows[0].EventType)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.Equal(t, orgID, envelope.OrganizationID)
	assert.Equal(t, "HERA.CRM.CUST.ENT.PROF.v1", envelope.SmartCode)
	assert.NotEmpty(t, envelope.EventID)
	assert.JSONEq(t, `{"entity_name":"Acme"}`, string(envelope.Data))
}

func TestServiceEmitRollsBackWithTransaction(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc := NewService(NewRepository(db), nil)

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:      enums.EventTransactionPosted,
			AggregateType:  enums.AggregateTransaction,
			AggregateID:    uuid.New(),
			OrganizationID: uuid.New(),
			Data:           map[string]int{"line_count": 2},
		}); err != nil {
			return err
		}
		return errors.New("insert lines failed")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestServiceEmitValidatesEvent(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc := NewService(NewRepository(db), nil)

	assert.Error(t, svc.Emit(context.Background(), nil, DomainEvent{}))
	assert.Error(t, svc.Emit(context.Background(), db, DomainEvent{
		EventType:      "order_created",
		AggregateType:  enums.AggregateEntity,
		OrganizationID: uuid.New(),
	}))
	assert.Error(t, svc.Emit(context.Background(), db, DomainEvent{
		EventType:     enums.EventEntityCreated,
		AggregateType: enums.AggregateEntity,
		AggregateID:   uuid.New(),
	}))
	assert.Error(t, svc.Emit(context.Background(), db, DomainEvent{
		EventType:      enums.EventTransactionPosted,
		AggregateType:  enums.AggregateEntity,
		AggregateID:    uuid.New(),
		OrganizationID: uuid.New(),
	}), "event type and aggregate must agree")
}

func TestServiceEmitDerivesAggregateType(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc := NewService(NewRepository(db), nil)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:      enums.EventRelationshipCreated,
			AggregateID:    uuid.New(),
			OrganizationID: uuid.New(),
			Data:           map[string]string{"relationship_type": "parent_of"},
		})
	}))

	var row models.OutboxEvent
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, enums.AggregateRelationship, row.AggregateType)

	env, err := DecodeEnvelope(row.Payload)
	require.NoError(t, err)
	assert.Equal(t, EnvelopeVersion, env.Version)
}

func TestDecodeEnvelopeRejectsFutureVersion(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`{"version":99,"eventId":"e","data":{}}`))
	assert.Error(t, err)
	_, err = DecodeEnvelope([]byte(`{"version":`))
	assert.Error(t, err)
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)
	orgID := uuid.New()

	emitTestEvent(t, db, svc, orgID)
	emitTestEvent(t, db, svc, orgID)

	var claimed []models.OutboxEvent
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		claimed, err = repo.FetchUnpublishedForPublish(tx, 10, 3)
		return err
	}))
	require.Len(t, claimed, 2)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		if err := repo.MarkPublishedTx(tx, claimed[0].ID); err != nil {
			return err
		}
		return repo.MarkFailedTx(tx, claimed[1].ID, errors.New("topic unavailable"), time.Now().Add(time.Hour))
	}))

	var pending []models.OutboxEvent
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		pending, err = repo.FetchUnpublishedForPublish(tx, 10, 3)
		return err
	}))
	assert.Empty(t, pending, "failed row is scheduled in the future and published row is done")

	var failed models.OutboxEvent
	require.NoError(t, db.First(&failed, "id = ?", claimed[1].ID).Error)
	assert.Equal(t, 1, failed.AttemptCount)
	require.NotNil(t, failed.LastError)
	assert.Equal(t, "topic unavailable", *failed.LastError)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return repo.MarkTerminalTx(tx, claimed[1].ID)
	}))
	var remaining int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Where("published_at IS NULL").Count(&remaining).Error)
	assert.Zero(t, remaining)
}

func TestRepositorySkipsExhaustedRows(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)

	emitTestEvent(t, db, svc, uuid.New())
	require.NoError(t, db.Model(&models.OutboxEvent{}).Where("1 = 1").Update("attempt_count", 5).Error)

	var rows []models.OutboxEvent
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		rows, err = repo.FetchUnpublishedForPublish(tx, 10, 5)
		return err
	}))
	assert.Empty(t, rows)
}

func TestDLQRepositoryInsertAndFind(t *testing.T) {
	db := setupOutboxTestDB(t)
	dlq := NewDLQRepository(db)
	orgID := uuid.New()
	eventID := uuid.New()

	long := make([]byte, maxDLQErrorLen+100)
	for i := range long {
		long[i] = 'x'
	}
	msg := string(long)

	entry := models.OutboxDLQ{
		ID:             uuid.New(),
		EventID:        eventID,
		OrganizationID: orgID,
		EventType:      enums.EventTransactionPosted,
		AggregateType:  enums.AggregateTransaction,
		AggregateID:    uuid.New(),
		Payload:        json.RawMessage(`{}`),
		ErrorReason:    enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage:   &msg,
		AttemptCount:   10,
	}
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return dlq.InsertTx(tx, entry)
	}))

	found, err := dlq.FindByEventID(context.Background(), eventID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.NotNil(t, found.ErrorMessage)
	assert.Len(t, *found.ErrorMessage, maxDLQErrorLen)

	missing, err := dlq.FindByEventID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	page, err := dlq.ListForOrganization(context.Background(), orgID, nil, 0)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Empty(t, page.NextCursor)

	other, err := dlq.ListForOrganization(context.Background(), uuid.New(), nil, 10)
	require.NoError(t, err)
	assert.Empty(t, other.Items)

	bad := entry
	bad.ID = uuid.New()
	bad.ErrorReason = "unknown"
	assert.Error(t, db.Transaction(func(tx *gorm.DB) error {
		return dlq.InsertTx(tx, bad)
	}))
}

func TestDLQRepositoryPagesNewestFirst(t *testing.T) {
	db := setupOutboxTestDB(t)
	dlq := NewDLQRepository(db)
	orgID := uuid.New()
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		entry := models.OutboxDLQ{
			ID:             uuid.New(),
			EventID:        uuid.New(),
			OrganizationID: orgID,
			EventType:      enums.EventTransactionPosted,
			AggregateType:  enums.AggregateTransaction,
			AggregateID:    uuid.New(),
			Payload:        json.RawMessage(`{}`),
			ErrorReason:    enums.OutboxDLQReasonUnroutable,
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
			return dlq.InsertTx(tx, entry)
		}))
	}

	first, err := dlq.ListForOrganization(context.Background(), orgID, nil, 2)
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)
	assert.True(t, first.Items[0].CreatedAt.After(first.Items[1].CreatedAt))

	cursor, err := pagination.ParseCursor(first.NextCursor)
	require.NoError(t, err)
	second, err := dlq.ListForOrganization(context.Background(), orgID, cursor, 2)
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Empty(t, second.NextCursor)
	assert.True(t, second.Items[0].CreatedAt.Equal(base))
}

func TestRepositoryDeferKeepsAttemptCount(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	emitTestEvent(t, db, NewService(repo, nil), uuid.New())

	var row models.OutboxEvent
	require.NoError(t, db.First(&row).Error)
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return repo.DeferTx(tx, row.ID, time.Now().Add(time.Hour))
	}))

	var due []models.OutboxEvent
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		due, err = repo.FetchUnpublishedForPublish(tx, 10, 5)
		return err
	}))
	assert.Empty(t, due)

	require.NoError(t, db.First(&row, "id = ?", row.ID).Error)
	assert.Zero(t, row.AttemptCount)
}

func TestClipMessageKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "ab", clipMessage("abc", 2))
	assert.Equal(t, "a", clipMessage("aé", 2))
	assert.Equal(t, "short", clipMessage("short", 10))
}
