package temporal

import (
	"context"
	"log"
	"time"

	"go.temporal.io/sdk/client"

	"export-consortium/internal/forwarding"
)

// Forwarder hands each handoff to a HandoffWorkflow so retries survive a
// process restart. If the workflow cannot be started the handoff is
// dead-lettered immediately.
type Forwarder struct {
	client      client.Client
	taskQueue   string
	maxAttempts int
	baseDelay   time.Duration
	fallback    *forwarding.Sink
}

func NewForwarder(c client.Client, taskQueue string, policy forwarding.Policy, baseDelay time.Duration, fallback *forwarding.Sink) *Forwarder {
	return &Forwarder{client: c, taskQueue: taskQueue, maxAttempts: policy.MaxAttempts, baseDelay: baseDelay, fallback: fallback}
}

// HandoffWorkflowID is stable per handoff so a duplicate dispatch cannot start a
// second delivery loop.
func HandoffWorkflowID(handoffID string) string {
	return "handoff-" + handoffID
}

func (f *Forwarder) Dispatch(ctx context.Context, h forwarding.Handoff) {
	ctx = context.WithoutCancel(ctx)
	opts := client.StartWorkflowOptions{
		ID:        HandoffWorkflowID(h.ID),
		TaskQueue: f.taskQueue,
	}
	run, err := f.client.ExecuteWorkflow(ctx, opts, HandoffWorkflowName, HandoffInput{
		Handoff:     h,
		MaxAttempts: f.maxAttempts,
		BaseDelay:   f.baseDelay,
	})
	if err == nil {
		log.Printf("handoff_workflow_started handoff_id=%s kind=%s workflow_id=%s run_id=%s", h.ID, h.Kind, run.GetID(), run.GetRunID())
		return
	}

	log.Printf("handoff_workflow_start_failed handoff_id=%s kind=%s err=%v", h.ID, h.Kind, err)
	if f.fallback == nil {
		return
	}
	dl := forwarding.DeadLetter{Handoff: h, Attempts: 0, LastError: "start handoff workflow: " + err.Error(), FailedAt: time.Now().UTC()}
	if err := f.fallback.Put(ctx, dl); err != nil {
		log.Printf("dead_letter_persist_failed handoff_id=%s err=%v", h.ID, err)
	}
}
