// Package eventbus is the in-process publish/subscribe mechanism that
// decouples the wallet engine from its subscribers (chiefly the AML
// analyzer). New relative to the teacher, which publishes straight to an
// outbox row with no in-process bus; grounded on the teacher's
// internal/infra/kafka.go + internal/infra/outbox.go bridge shape for the
// durable half of the same idea, just one layer earlier — a bounded queue,
// a background dispatcher, at-least-once-within-process delivery.
package eventbus

import (
	"context"
	"hash/fnv"
	"log/slog"
	"time"

	"github.com/musig5344/ocasino/internal/domain"
)

// Handler reacts to a published event. A returned error is logged but
// never stops other handlers or other events from being processed.
type Handler func(ctx context.Context, event domain.OutboxDraft) error

// Bus routes events to per-topic handlers through a sharded set of bounded
// queues. Events for the same partition key (player-id) always land on the
// same shard, so a single-threaded worker preserves per-player ordering
// while cross-player events process in parallel.
type Bus struct {
	shards      []chan domain.OutboxDraft
	subs        map[domain.EventType][]Handler
	logger      *slog.Logger
	shardCount  int
	enqueueWait time.Duration
}

// NewBus builds a bus with shardCount worker shards, each with a queue of
// queueDepth. Call Start to begin dispatching.
func NewBus(shardCount, queueDepth int, logger *slog.Logger) *Bus {
	b := &Bus{
		shards:      make([]chan domain.OutboxDraft, shardCount),
		subs:        make(map[domain.EventType][]Handler),
		logger:      logger,
		shardCount:  shardCount,
		enqueueWait: 200 * time.Millisecond,
	}
	for i := range b.shards {
		b.shards[i] = make(chan domain.OutboxDraft, queueDepth)
	}
	return b
}

// Subscribe registers a handler for a topic. Must be called before Start.
func (b *Bus) Subscribe(topic domain.EventType, handler Handler) {
	b.subs[topic] = append(b.subs[topic], handler)
}

// Start launches one dispatcher goroutine per shard. Workers exit when ctx
// is canceled.
func (b *Bus) Start(ctx context.Context) {
	for i, shard := range b.shards {
		go b.runWorker(ctx, i, shard)
	}
}

func (b *Bus) runWorker(ctx context.Context, idx int, queue chan domain.OutboxDraft) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-queue:
			b.dispatch(ctx, event)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, event domain.OutboxDraft) {
	for _, h := range b.subs[event.EventType] {
		b.invokeSafely(ctx, h, event)
	}
}

// invokeSafely isolates one handler's panic or error from the rest: a
// broken subscriber never stops its siblings or later events.
func (b *Bus) invokeSafely(ctx context.Context, h Handler, event domain.OutboxDraft) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", "event_id", event.EventID, "event_type", event.EventType, "panic", r)
		}
	}()
	if err := h(ctx, event); err != nil {
		b.logger.Error("event handler failed", "event_id", event.EventID, "event_type", event.EventType, "error", err)
	}
}

// Publish enqueues event on the shard owning its partition key. A full
// queue blocks the producer for a short bounded interval, then the event is
// dropped from the in-process bus. This never loses the event outright: the
// wallet engine writes every event to the durable outbox table in the same
// database transaction that produced it, so a drop here only means the
// slower outbox-consumer path delivers it instead of the fast in-process
// path (spec's "persisted for later replay" backlog).
func (b *Bus) Publish(ctx context.Context, event domain.OutboxDraft) {
	shard := b.shards[b.shardFor(event.PartitionKey)]

	select {
	case shard <- event:
		return
	default:
	}

	timer := time.NewTimer(b.enqueueWait)
	defer timer.Stop()
	select {
	case shard <- event:
	case <-timer.C:
		b.logger.Warn("event bus queue full, event dropped to outbox backlog", "event_id", event.EventID, "event_type", event.EventType)
	case <-ctx.Done():
	}
}

func (b *Bus) shardFor(partitionKey string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(partitionKey))
	return int(h.Sum32() % uint32(b.shardCount))
}
