package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/clinicore/scheduling-api/internal/model"
	"github.com/clinicore/scheduling-api/internal/repository"
)

// Recorder persists pending domain events. Split from Service so
// tests can substitute a double without a database.
type Recorder interface {
	Record(ctx context.Context, events ...model.DomainEvent) error
}

// Service converts domain events into outbox rows. Callers invoke
// Record inside the same transaction as the aggregate write; the
// dispatcher worker publishes the rows after commit. The service
// never talks to the broker itself.
type Service struct {
	outboxRepo repository.OutboxRepository
}

func NewService(outboxRepo repository.OutboxRepository) *Service {
	return &Service{outboxRepo: outboxRepo}
}

// Record writes one outbox row per event, preserving order.
func (s *Service) Record(ctx context.Context, events ...model.DomainEvent) error {
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to marshal %s event: %w", ev.EventType(), err)
		}

		row := &model.OutboxEvent{
			AggregateID: ev.AggregateID(),
			EventType:   ev.EventType(),
			Payload:     payload,
		}
		if err := s.outboxRepo.Create(ctx, row); err != nil {
			return fmt.Errorf("failed to record %s event: %w", ev.EventType(), err)
		}
	}
	return nil
}
