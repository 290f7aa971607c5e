package temporal

import (
	"context"
	"time"

	"go.temporal.io/sdk/activity"

	"export-consortium/internal/forwarding"
)

type Activities struct {
	Deliverer forwarding.Deliverer
	Sink      *forwarding.Sink
	Now       func() time.Time
}

type DeliverHandoffInput struct {
	Handoff forwarding.Handoff
	Attempt int
}

type DeadLetterInput struct {
	Handoff   forwarding.Handoff
	Attempts  int
	LastError string
}

func (a *Activities) DeliverHandoffActivity(ctx context.Context, input DeliverHandoffInput) error {
	logger := activity.GetLogger(ctx)
	if err := a.Deliverer.Deliver(ctx, input.Handoff); err != nil {
		logger.Warn("handoff delivery failed", "handoff_id", input.Handoff.ID, "target", input.Handoff.Target, "attempt", input.Attempt, "error", err)
		return err
	}
	logger.Info("handoff delivered", "handoff_id", input.Handoff.ID, "target", input.Handoff.Target, "attempt", input.Attempt)
	return nil
}

func (a *Activities) DeadLetterActivity(ctx context.Context, input DeadLetterInput) error {
	now := time.Now().UTC()
	if a.Now != nil {
		now = a.Now()
	}
	return a.Sink.Put(ctx, forwarding.DeadLetter{
		Handoff:   input.Handoff,
		Attempts:  input.Attempts,
		LastError: input.LastError,
		FailedAt:  now,
	})
}
