package database

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	added  []*redis.XAddArgs
	fail   bool
	closed bool
}

func (f *fakeRedis) XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	if f.fail {
		cmd.SetErr(errors.New("redis unavailable"))
		return cmd
	}
	f.added = append(f.added, args)
	cmd.SetVal("1-0")
	return cmd
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

type fakeOutbox struct {
	pending    []*OutboxEvent
	processed  []uuid.UUID
	failed     []uuid.UUID
	deadLetter int64
	counted    bool
}

func (f *fakeOutbox) GetPending(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeOutbox) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	f.processed = append(f.processed, id)
	return nil
}

func (f *fakeOutbox) MarkFailed(ctx context.Context, id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeOutbox) PendingCount(ctx context.Context) (int64, error) {
	f.counted = true
	return int64(len(f.pending) - len(f.processed)), nil
}

func (f *fakeOutbox) DeadLetterCount(ctx context.Context) (int64, error) {
	return f.deadLetter, nil
}

func testEvent(eventType string) *OutboxEvent {
	return &OutboxEvent{
		ID:            uuid.New(),
		AggregateType: "product",
		AggregateID:   "https://example.com/item/1",
		EventType:     eventType,
		Payload:       json.RawMessage(`{"brand":"Acme"}`),
		TargetStream:  DefaultStream,
		Status:        OutboxStatusPending,
		CreatedAt:     time.Now(),
	}
}

func TestRelayDeliversPendingEvents(t *testing.T) {
	redisClient := &fakeRedis{}
	outbox := &fakeOutbox{pending: []*OutboxEvent{
		testEvent("PRODUCT_SCRAPED"),
		testEvent("PRODUCT_SCRAPED"),
	}}

	relay := NewRelay(redisClient, outbox, RelayConfig{BatchSize: 10})
	err := relay.ProcessBatch(context.Background())

	require.NoError(t, err)
	assert.Len(t, redisClient.added, 2)
	assert.Len(t, outbox.processed, 2)
	assert.Empty(t, outbox.failed)

	args := redisClient.added[0]
	assert.Equal(t, DefaultStream, args.Stream)
	values := args.Values.(map[string]any)
	assert.Equal(t, "PRODUCT_SCRAPED", values["event_type"])
	assert.Equal(t, `{"brand":"Acme"}`, values["payload"])

	// Backlog depth is checked after every batch.
	assert.True(t, outbox.counted)
}

func TestRelayMarksFailedOnPublishError(t *testing.T) {
	redisClient := &fakeRedis{fail: true}
	event := testEvent("PRODUCT_SCRAPED")
	outbox := &fakeOutbox{pending: []*OutboxEvent{event}}

	relay := NewRelay(redisClient, outbox, RelayConfig{})
	err := relay.ProcessBatch(context.Background())

	// A failing event is recorded for retry, not bubbled up.
	require.NoError(t, err)
	assert.Empty(t, outbox.processed)
	require.Len(t, outbox.failed, 1)
	assert.Equal(t, event.ID, outbox.failed[0])
}

func TestRelayEmptyOutbox(t *testing.T) {
	redisClient := &fakeRedis{}
	relay := NewRelay(redisClient, &fakeOutbox{}, RelayConfig{})

	require.NoError(t, relay.ProcessBatch(context.Background()))
	assert.Empty(t, redisClient.added)
}

func TestRelayRespectsBatchSize(t *testing.T) {
	redisClient := &fakeRedis{}
	outbox := &fakeOutbox{}
	for i := 0; i < 5; i++ {
		outbox.pending = append(outbox.pending, testEvent("PRODUCT_SCRAPED"))
	}

	relay := NewRelay(redisClient, outbox, RelayConfig{BatchSize: 3})
	require.NoError(t, relay.ProcessBatch(context.Background()))

	assert.Len(t, redisClient.added, 3)
}

func TestNextRetryTimeBacksOff(t *testing.T) {
	first := time.Until(nextRetryTime(1))
	second := time.Until(nextRetryTime(3))
	capped := time.Until(nextRetryTime(20))

	assert.Less(t, first, second)
	assert.LessOrEqual(t, capped, 300*time.Second)
}
