package service

import (
	"context"
	"time"

	"github.com/iliyamo/club-membership/internal/queue"
)

// EventPublisher receives domain events after their transaction commits.
// *queue.Publisher implements it.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, queue.Event) error { return nil }

// emit publishes best-effort: a broker failure is logged and never undoes
// the committed change.
func emit(ctx context.Context, pub EventPublisher, log Logger, ev queue.Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	if err := pub.Publish(ctx, ev); err != nil {
		log.Warnf("event %s not published: %v", ev.Kind, err)
	}
}
