package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/clinicore/scheduling-api/internal/model"
	"github.com/clinicore/scheduling-api/internal/repository"
	"github.com/clinicore/scheduling-api/pkg/logger"
	"github.com/clinicore/scheduling-api/pkg/messaging"
	"github.com/clinicore/scheduling-api/pkg/metrics"
)

const maxRetryBackoff = time.Hour

type OutboxProcessorConfig struct {
	Channel      string
	BatchSize    int
	PollInterval time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
}

// OutboxProcessor drains the outbox table and publishes each event to
// the broker. Batches are claimed with row locks inside a transaction,
// so multiple processor instances can run side by side; delivery is
// at-least-once.
type OutboxProcessor struct {
	repo    repository.OutboxRepository
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *OutboxProcessor {
	if config.Channel == "" {
		panic("Channel must be set")
	}
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		panic("MaxRetries must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		panic("RetryDelay must be greater than 0")
	}

	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		config:  config,
		logger:  logger,
		metrics: metrics,
	}
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if err := p.processBatch(ctx); err != nil {
				p.logger.Error(err, "Failed to process outbox batch")
			}
		}
	}
}

func (p *OutboxProcessor) processBatch(ctx context.Context) error {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	tx, err := p.repo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback()

	events, err := p.repo.GetPendingEventsWithLock(ctx, tx, p.config.BatchSize)
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "error").Inc()
		return fmt.Errorf("failed to get pending events: %w", err)
	}
	p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "success").Inc()

	if len(events) == 0 {
		return nil
	}

	for _, event := range events {
		if err := p.dispatch(ctx, tx, event); err != nil {
			p.logger.Error(err, "Failed to dispatch event",
				"event_id", event.ID.String(),
				"event_type", event.EventType)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit claim transaction: %w", err)
	}
	return nil
}

// dispatch publishes one claimed event and records the outcome on the
// same transaction that holds the row lock.
func (p *OutboxProcessor) dispatch(ctx context.Context, tx repository.Tx, event *model.OutboxEvent) error {
	envelope := messaging.Message{
		ID:          event.ID,
		Type:        event.EventType,
		Payload:     event.Payload,
		PublishedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return p.fail(ctx, tx, event, fmt.Errorf("failed to marshal envelope: %w", err))
	}

	if err := p.broker.Publish(ctx, p.config.Channel, data); err != nil {
		return p.fail(ctx, tx, event, err)
	}

	if err := p.repo.UpdateStatusTx(ctx, tx, event.ID, model.OutboxStatusProcessed, nil, nil); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	p.metrics.OutboxEventsProcessed.Inc()
	return nil
}

// fail either schedules a retry with exponential backoff or, once the
// attempt budget is spent, moves the event to the dead letter table.
func (p *OutboxProcessor) fail(ctx context.Context, tx repository.Tx, event *model.OutboxEvent, cause error) error {
	p.metrics.OutboxEventsFailed.Inc()

	if event.RetryCount+1 >= p.config.MaxRetries {
		if err := p.repo.MoveToDeadLetterTx(ctx, tx, event, cause.Error()); err != nil {
			return fmt.Errorf("failed to dead letter event: %w", err)
		}
		p.metrics.OutboxEventsDeadLettered.Inc()
		p.logger.Error(cause, "Event moved to dead letter queue",
			"event_id", event.ID.String(),
			"event_type", event.EventType,
			"retries", event.RetryCount)
		return nil
	}

	retryAt := time.Now().UTC().Add(p.backoff(event.RetryCount))
	if err := p.repo.MarkRetryTx(ctx, tx, event.ID, cause.Error(), retryAt); err != nil {
		return fmt.Errorf("failed to schedule retry: %w", err)
	}
	p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
	return cause
}

// backoff doubles the base delay per attempt. Sleeping in process would
// stall the claim transaction, so retries are scheduled via retry_at
// instead.
func (p *OutboxProcessor) backoff(retryCount int) time.Duration {
	d := p.config.RetryDelay
	for i := 0; i < retryCount; i++ {
		d *= 2
		if d >= maxRetryBackoff {
			return maxRetryBackoff
		}
	}
	return d
}
