package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderflow-backend/pkg/db/dbtest"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
)

func TestEmitWritesEnvelope(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, logger.Nop())

	orderID := uuid.New()
	actorID := uuid.New()
	require.NoError(t, svc.Emit(context.Background(), conn, DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Actor:         &ActorRef{UserID: &actorID, Role: "customer"},
		Data:          map[string]string{"order_number": "ORD-1"},
	}))

	rows, err := repo.ListByAggregate(enums.AggregateOrder, orderID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	var env PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &env))
	assert.Equal(t, 1, env.Version)
	assert.NotEmpty(t, env.EventID)
	require.NotNil(t, env.Actor)
	assert.Equal(t, actorID, *env.Actor.UserID)
	assert.JSONEq(t, `{"order_number":"ORD-1"}`, string(env.Data))
}

func TestEmitRequiresTransaction(t *testing.T) {
	svc := NewService(NewRepository(nil), logger.Nop())
	err := svc.Emit(context.Background(), nil, DomainEvent{})
	require.Error(t, err)
}

func TestEmitBatchKeepsOrderAndRejectsMalformed(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, logger.Nop())
	orderID := uuid.New()

	require.NoError(t, svc.Emit(context.Background(), conn,
		DomainEvent{EventType: enums.EventOrderStatusChanged, AggregateType: enums.AggregateOrder, AggregateID: orderID, Data: map[string]string{"to": "CONFIRMED"}},
		DomainEvent{EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder, AggregateID: orderID, Data: map[string]string{}},
	))

	rows, err := repo.ListByAggregate(enums.AggregateOrder, orderID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, enums.EventOrderStatusChanged, rows[0].EventType)
	assert.Equal(t, enums.EventOrderPaid, rows[1].EventType)

	var env PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &env))
	assert.Equal(t, rows[0].ID.String(), env.EventID)

	err = svc.Emit(context.Background(), conn,
		DomainEvent{EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder, AggregateID: orderID},
		DomainEvent{EventType: "order_teleported", AggregateType: enums.AggregateOrder, AggregateID: orderID},
	)
	require.Error(t, err)
	rows, err = repo.ListByAggregate(enums.AggregateOrder, orderID)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	require.Error(t, svc.Emit(context.Background(), conn, DomainEvent{EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder}))
}

func TestPublishLifecycle(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, logger.Nop())
	ctx := context.Background()

	first, second := uuid.New(), uuid.New()
	for _, id := range []uuid.UUID{first, second} {
		require.NoError(t, svc.Emit(ctx, conn, DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   id,
			Data:          map[string]string{},
		}))
	}

	pending, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	require.NoError(t, repo.MarkPublishedTx(conn, pending[0].ID))
	require.NoError(t, repo.MarkFailedTx(conn, pending[1].ID, errors.New("boom")))

	pending, err = repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].AttemptCount)
	require.NotNil(t, pending[0].LastError)
	assert.Equal(t, "boom", *pending[0].LastError)

	require.NoError(t, repo.MarkTerminalTx(conn, pending[0].ID, errors.New("dead"), 3))
	pending, err = repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDeletePublishedBeforeKeepsPending(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, logger.Nop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, svc.Emit(ctx, conn, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Data:          map[string]string{},
		}))
	}
	pending, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.NoError(t, repo.MarkPublishedTx(conn, pending[0].ID))

	deleted, err := repo.DeletePublishedBefore(ctx, conn, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	left, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, pending[1].ID, left[0].ID)
}

func TestDLQRepositoryStoresTruncatedCause(t *testing.T) {
	conn := dbtest.Open(t)
	dlq := NewDLQRepository(conn)

	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		AttemptCount:  4,
	}
	cause := errors.New(strings.Repeat("x", maxDLQErrorLen-1) + "é and more")
	require.NoError(t, dlq.InsertTx(conn, DeadLetter(event, enums.OutboxDLQReasonMaxAttempts, cause, time.Now())))

	var row models.OutboxDLQ
	require.NoError(t, conn.Where("event_id = ?", event.ID).First(&row).Error)
	require.NotNil(t, row.ErrorMessage)
	assert.Len(t, *row.ErrorMessage, maxDLQErrorLen-1)
	assert.True(t, utf8.ValidString(*row.ErrorMessage))
	assert.Equal(t, 4, row.AttemptCount)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, row.ErrorReason)
}
