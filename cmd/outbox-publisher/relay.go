package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/trailpack-backend/pkg/config"
	"github.com/angelmondragon/trailpack-backend/pkg/db/models"
	"github.com/angelmondragon/trailpack-backend/pkg/enums"
	"github.com/angelmondragon/trailpack-backend/pkg/logger"
	"github.com/angelmondragon/trailpack-backend/pkg/metrics"
	"github.com/angelmondragon/trailpack-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	maxIdleBackoff     = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type topicSource interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type eventStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
	InsertDLQTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// topicPublisher is the part of a Pub/Sub publisher the relay drives. A
// failed publish pauses its ordering key until ResumePublish is called.
type topicPublisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	ResumePublish(orderingKey string)
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// RelayParams wires the order event relay. Metrics and Publishers are
// optional; Publishers defaults to cached ordered Pub/Sub publishers.
type RelayParams struct {
	Outbox     config.OutboxConfig
	Logger     *logger.Logger
	DB         txRunner
	PubSub     topicSource
	Store      eventStore
	Registry   eventResolver
	Publishers func(topic string) topicPublisher
	Metrics    *metrics.OutboxMetrics
	Clock      func() time.Time
}

// Relay moves committed order events from outbox_events onto Pub/Sub. Every
// event of an order carries the same ordering key, so a failure holds back
// the rest of that order's events until the next pass.
type Relay struct {
	logg        *logger.Logger
	db          txRunner
	pubsub      topicSource
	store       eventStore
	registry    eventResolver
	publishers  func(topic string) topicPublisher
	metrics     *metrics.OutboxMetrics
	now         func() time.Time
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

func NewRelay(params RelayParams) (*Relay, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Store == nil:
		return nil, errors.New("outbox store is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	r := &Relay{
		logg:        params.Logger,
		db:          params.DB,
		pubsub:      params.PubSub,
		store:       params.Store,
		registry:    params.Registry,
		publishers:  params.Publishers,
		metrics:     params.Metrics,
		now:         params.Clock,
		batchSize:   params.Outbox.BatchSize,
		maxAttempts: params.Outbox.MaxAttempts,
		poll:        time.Duration(params.Outbox.PollIntervalMS) * time.Millisecond,
	}
	if r.publishers == nil {
		r.publishers = orderedPublishers(params.PubSub)
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.batchSize <= 0 {
		r.batchSize = defaultBatchSize
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = defaultMaxAttempts
	}
	if r.poll <= 0 {
		r.poll = defaultPoll
	}
	return r, nil
}

// Run drains batches until ctx is cancelled. Full batches are followed
// immediately by the next; empty ones wait one poll interval. Database
// errors back off exponentially up to maxIdleBackoff.
func (r *Relay) Run(ctx context.Context) error {
	for _, dep := range []struct {
		name string
		ping func(context.Context) error
	}{{"database", r.db.Ping}, {"pubsub", r.pubsub.Ping}} {
		if err := dep.ping(ctx); err != nil {
			r.logg.Error(ctx, dep.name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}

	wait := r.poll
	for {
		if err := ctx.Err(); err != nil {
			r.logg.Info(ctx, "order event relay stopping")
			return err
		}

		started := time.Now()
		handled, err := r.drainBatch(ctx)
		if handled > 0 || err != nil {
			r.metrics.ObserveBatch(time.Since(started))
		}

		switch {
		case err != nil:
			r.metrics.IncBatchError()
			r.logg.Error(ctx, "order event batch rolled back", err)
			wait = min(wait*2, maxIdleBackoff)
		case handled > 0:
			wait = r.poll
			continue
		default:
			wait = r.poll
		}

		if err := sleepCtx(ctx, wait+jitter()); err != nil {
			return err
		}
	}
}

// delivery is what happened to one row in a batch.
type delivery struct {
	outcome  string
	reason   enums.OutboxDLQErrorReason
	err      error
	resolved *registry.ResolvedEvent
}

// drainBatch locks one batch, publishes it and records each row's fate in
// the same transaction. It returns how many rows were settled.
func (r *Relay) drainBatch(ctx context.Context) (int, error) {
	handled := 0
	paused := map[string]topicPublisher{}

	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.store.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch order events: %w", err)
		}

		for _, row := range rows {
			resolved, rerr := r.registry.Resolve(row)
			if rerr == nil {
				if _, held := paused[resolved.OrderingKey()]; held {
					continue
				}
			}

			d := r.deliver(ctx, row, resolved, rerr)
			if d.outcome == metrics.DeliveryRetried && d.resolved != nil {
				if key := d.resolved.OrderingKey(); key != "" {
					paused[key] = r.publishers(d.resolved.Descriptor.Topic)
				}
			}
			if err := r.settle(ctx, tx, row, d); err != nil {
				return err
			}
			handled++
		}
		return nil
	})

	for key, pub := range paused {
		if pub != nil {
			pub.ResumePublish(key)
		}
	}
	return handled, err
}

func (r *Relay) deliver(ctx context.Context, row models.OutboxEvent, resolved *registry.ResolvedEvent, resolveErr error) delivery {
	if resolveErr != nil {
		return delivery{outcome: metrics.DeliveryDeadLettered, reason: enums.OutboxDLQReasonNonRetryable, err: resolveErr}
	}

	err := r.publish(ctx, row, resolved)
	switch {
	case err == nil:
		return delivery{outcome: metrics.DeliveryPublished, resolved: resolved}
	case registry.IsNonRetryable(err):
		return delivery{outcome: metrics.DeliveryDeadLettered, reason: enums.OutboxDLQReasonNonRetryable, err: err, resolved: resolved}
	case row.AttemptCount+1 >= r.maxAttempts:
		return delivery{
			outcome:  metrics.DeliveryDeadLettered,
			reason:   enums.OutboxDLQReasonMaxAttempts,
			err:      fmt.Errorf("gave up after %d attempts: %w", row.AttemptCount+1, err),
			resolved: resolved,
		}
	default:
		return delivery{outcome: metrics.DeliveryRetried, err: err, resolved: resolved}
	}
}

// publish sends the stored envelope unchanged as the message body.
func (r *Relay) publish(ctx context.Context, row models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := r.publishers(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
	}

	msg := &gcppubsub.Message{
		Data:        row.Payload,
		Attributes:  resolved.Attributes(),
		OrderingKey: resolved.OrderingKey(),
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, msg)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher for %s returned no result", topic))
	}
	_, err := result.Get(publishCtx)
	return err
}

func (r *Relay) settle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, d delivery) error {
	eventType := string(row.EventType)
	logCtx := r.logg.WithFields(ctx, rowFields(row, d))

	switch d.outcome {
	case metrics.DeliveryPublished:
		if err := r.store.MarkPublishedTx(tx, row.ID); err != nil {
			return fmt.Errorf("mark %s published: %w", row.ID, err)
		}
		r.metrics.ObservePublishLag(eventType, r.now().Sub(row.CreatedAt))
		r.logg.Info(logCtx, "order event published")

	case metrics.DeliveryRetried:
		if err := r.store.MarkFailedTx(tx, row.ID, d.err); err != nil {
			return fmt.Errorf("mark %s failed: %w", row.ID, err)
		}
		r.logg.Warn(logCtx, "order event publish failed, will retry")

	case metrics.DeliveryDeadLettered:
		message := d.err.Error()
		entry := models.OutboxDLQ{
			EventID:       row.ID,
			EventType:     row.EventType,
			AggregateType: row.AggregateType,
			AggregateID:   row.AggregateID,
			Payload:       row.Payload,
			ErrorReason:   d.reason,
			ErrorMessage:  &message,
			AttemptCount:  row.AttemptCount,
			FailedAt:      r.now().UTC(),
		}
		if err := r.store.InsertDLQTx(tx, entry); err != nil {
			return fmt.Errorf("dead-letter %s: %w", row.ID, err)
		}
		if err := r.store.MarkTerminalTx(tx, row.ID, d.err, r.maxAttempts); err != nil {
			return fmt.Errorf("park %s: %w", row.ID, err)
		}
		r.logg.Warn(logCtx, "order event dead-lettered")
	}

	r.metrics.IncDelivery(eventType, d.outcome)
	return nil
}

func rowFields(row models.OutboxEvent, d delivery) map[string]any {
	fields := map[string]any{
		"outbox_id":     row.ID.String(),
		"event_type":    row.EventType,
		"order_id":      row.AggregateID,
		"attempt_count": row.AttemptCount,
		"outcome":       d.outcome,
	}
	if d.resolved != nil {
		fields["topic"] = d.resolved.Descriptor.Topic
		fields["ordering_key"] = d.resolved.OrderingKey()
		fields["event_id"] = d.resolved.Envelope.EventID
	}
	if d.reason != "" {
		fields["dlq_reason"] = d.reason
	}
	if d.err != nil {
		fields["error"] = d.err.Error()
	}
	return fields
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func jitter() time.Duration {
	return rand.N(jitterWindow)
}

// orderedPublishers hands out one Pub/Sub publisher per topic with message
// ordering switched on. Missing topics are not cached so a later lookup can
// succeed.
func orderedPublishers(client topicSource) func(topic string) topicPublisher {
	handles := map[string]topicPublisher{}
	return func(topic string) topicPublisher {
		if pub, ok := handles[topic]; ok {
			return pub
		}
		raw := client.Publisher(topic)
		if raw == nil {
			return nil
		}
		raw.EnableMessageOrdering = true
		pub := gcpPublisher{raw}
		handles[topic] = pub
		return pub
	}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}
