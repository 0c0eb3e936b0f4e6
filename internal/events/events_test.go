package events

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiza/library-service/internal/config"
	"github.com/tiza/library-service/internal/models"
	"github.com/tiza/library-service/internal/worker"
)

var routes = config.RabbitMQConfig{
	Exchange:          "library_exchange",
	ChangedRoutingKey: "data.changed",
	OverdueRoutingKey: "lending.overdue",
}

type published struct {
	exchange, key string
	msg           amqp.Publishing
}

type fakeChannel struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (c *fakeChannel) Close() error { return nil }

func (c *fakeChannel) messages() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.sent...)
}

func TestPublisher_RoutesEventsByType(t *testing.T) {
	ch := &fakeChannel{}
	p := newPublisher(ch, routes, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, p.PublishDataChanged(ctx, &models.DataChangedEvent{
		Command:     "create_book",
		Invalidates: []string{"get_all_books"},
	}))
	require.NoError(t, p.PublishLendingOverdue(ctx, &models.LendingOverdueEvent{LendingID: "l1", DaysOverdue: 3}))

	sent := ch.messages()
	require.Len(t, sent, 2)

	assert.Equal(t, "library_exchange", sent[0].exchange)
	assert.Equal(t, "data.changed", sent[0].key)
	assert.Equal(t, "application/json", sent[0].msg.ContentType)
	assert.JSONEq(t, `{"command":"create_book","invalidates":["get_all_books"],"timestamp":0}`, string(sent[0].msg.Body))

	assert.Equal(t, "lending.overdue", sent[1].key)
	assert.Contains(t, string(sent[1].msg.Body), `"days_overdue":3`)
}

func TestPublisher_WrapsChannelErrors(t *testing.T) {
	boom := errors.New("boom")
	p := newPublisher(&fakeChannel{err: boom}, routes, zerolog.Nop())

	err := p.PublishDataChanged(context.Background(), &models.DataChangedEvent{Command: "x"})
	assert.ErrorIs(t, err, boom)
}

func TestAsyncPublisher_NeverFailsTheCaller(t *testing.T) {
	pool := worker.NewWorkerPool(2, zerolog.Nop())
	pool.Start(context.Background())

	ok := &fakeChannel{}
	async := NewAsyncPublisher(newPublisher(ok, routes, zerolog.Nop()), pool, zerolog.Nop())
	failing := NewAsyncPublisher(newPublisher(&fakeChannel{err: errors.New("down")}, routes, zerolog.Nop()), pool, zerolog.Nop())

	for i := 0; i < 5; i++ {
		assert.NoError(t, async.PublishDataChanged(context.Background(), &models.DataChangedEvent{Command: "refresh_app"}))
		assert.NoError(t, failing.PublishDataChanged(context.Background(), &models.DataChangedEvent{Command: "refresh_app"}))
	}

	pool.Stop()
	assert.Len(t, ok.messages(), 5)
}

func TestAsyncPublisher_LogsDroppedEvents(t *testing.T) {
	var logs bytes.Buffer
	// never started, so every submission is refused
	pool := worker.NewWorkerPool(1, zerolog.Nop())
	ch := &fakeChannel{}
	async := NewAsyncPublisher(newPublisher(ch, routes, zerolog.Nop()), pool, zerolog.New(&logs))

	require.NoError(t, async.PublishDataChanged(context.Background(), &models.DataChangedEvent{Command: "update_book"}))
	require.NoError(t, async.PublishLendingOverdue(context.Background(), &models.LendingOverdueEvent{LendingID: "l-7"}))

	assert.Empty(t, ch.messages())
	assert.Contains(t, logs.String(), `"command":"update_book"`)
	assert.Contains(t, logs.String(), `"lending_id":"l-7"`)
	assert.Contains(t, logs.String(), "event dropped")
}

type recordingHandler struct {
	changed []models.DataChangedEvent
	overdue []models.LendingOverdueEvent
}

func (h *recordingHandler) HandleDataChanged(_ context.Context, e models.DataChangedEvent) error {
	h.changed = append(h.changed, e)
	return nil
}

func (h *recordingHandler) HandleLendingOverdue(_ context.Context, e models.LendingOverdueEvent) error {
	h.overdue = append(h.overdue, e)
	return nil
}

func TestDispatch(t *testing.T) {
	h := &recordingHandler{}
	ctx := context.Background()

	require.NoError(t, dispatch(ctx, routes, "data.changed",
		[]byte(`{"command":"delete_book","invalidates":["get_all_books"],"timestamp":1}`), h))
	require.NoError(t, dispatch(ctx, routes, "lending.overdue",
		[]byte(`{"lending_id":"l1","due_date":"2026-01-01T00:00:00Z","days_overdue":2}`), h))

	require.Len(t, h.changed, 1)
	assert.Equal(t, "delete_book", h.changed[0].Command)
	require.Len(t, h.overdue, 1)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), h.overdue[0].DueDate)

	assert.ErrorIs(t, dispatch(ctx, routes, "other", []byte(`{}`), h), ErrUnknownRoutingKey)
	assert.Error(t, dispatch(ctx, routes, "data.changed", []byte(`{`), h))
}

func TestNopPublisher(t *testing.T) {
	p := NewNopPublisher()
	assert.NoError(t, p.PublishDataChanged(context.Background(), &models.DataChangedEvent{}))
	assert.NoError(t, p.PublishLendingOverdue(context.Background(), &models.LendingOverdueEvent{}))
	assert.NoError(t, p.Close())
}
