package temporal

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"export-consortium/internal/forwarding"
)

const HandoffWorkflowName = "HandoffWorkflow"

type HandoffInput struct {
	Handoff     forwarding.Handoff
	MaxAttempts int
	BaseDelay   time.Duration
}

type HandoffResult struct {
	HandoffID    string
	Delivered    bool
	Attempts     int
	LastError    string
	DeadLettered bool
}

// HandoffWorkflow delivers one handoff under the forwarding policy: a single
// delivery attempt per activity, a durable sleep of Backoff(n) between
// attempts, and a dead letter once the budget is spent. Exhaustion is a result,
// not a workflow failure.
func HandoffWorkflow(ctx workflow.Context, input HandoffInput) (HandoffResult, error) {
	logger := workflow.GetLogger(ctx)
	policy := forwarding.Policy{MaxAttempts: input.MaxAttempts, Backoff: forwarding.LinearBackoff(input.BaseDelay)}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = forwarding.DefaultMaxAttempts
	}
	if input.BaseDelay <= 0 {
		policy.Backoff = forwarding.LinearBackoff(forwarding.DefaultBaseDelay)
	}

	deliverCtx := mustActivityContext(ctx, ActivityPolicyDeliverHandoff)
	deadLetterCtx := mustActivityContext(ctx, ActivityPolicyDeadLetter)
	retryNow := workflow.GetSignalChannel(ctx, RetryNowSignalName)

	result := HandoffResult{HandoffID: input.Handoff.ID}
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		result.Attempts = attempt
		err := workflow.ExecuteActivity(deliverCtx, (*Activities).DeliverHandoffActivity, DeliverHandoffInput{
			Handoff: input.Handoff,
			Attempt: attempt,
		}).Get(ctx, nil)
		if err == nil {
			result.Delivered = true
			result.LastError = ""
			return result, nil
		}
		result.LastError = activityMessage(err)
		logger.Warn("handoff attempt failed", "handoff_id", input.Handoff.ID, "attempt", attempt, "error", result.LastError)

		delay := policy.Delay(attempt)
		if delay <= 0 {
			continue
		}
		timerCtx, cancelTimer := workflow.WithCancel(ctx)
		selector := workflow.NewSelector(ctx)
		selector.AddFuture(workflow.NewTimer(timerCtx, delay), func(workflow.Future) {})
		selector.AddReceive(retryNow, func(c workflow.ReceiveChannel, _ bool) {
			var sig RetryNowSignal
			c.Receive(ctx, &sig)
			logger.Info("handoff retry requested", "handoff_id", input.Handoff.ID, "operator", sig.Operator)
		})
		selector.Select(ctx)
		cancelTimer()
	}

	if err := workflow.ExecuteActivity(deadLetterCtx, (*Activities).DeadLetterActivity, DeadLetterInput{
		Handoff:   input.Handoff,
		Attempts:  result.Attempts,
		LastError: result.LastError,
	}).Get(ctx, nil); err != nil {
		return result, err
	}
	result.DeadLettered = true
	return result, nil
}

func activityMessage(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	return err.Error()
}
