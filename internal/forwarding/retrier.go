package forwarding

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// Forwarder is what the workflow engine hands approved-stage handoffs to.
type Forwarder interface {
	Dispatch(ctx context.Context, h Handoff)
}

type Retrier struct {
	policy    Policy
	deliverer Deliverer
	sink      *Sink
	now       func() time.Time
	sleep     func(context.Context, time.Duration) error
	wg        sync.WaitGroup
}

type RetrierOption func(*Retrier)

func WithClock(now func() time.Time) RetrierOption { return func(r *Retrier) { r.now = now } }

func WithSleep(sleep func(context.Context, time.Duration) error) RetrierOption {
	return func(r *Retrier) { r.sleep = sleep }
}

func NewRetrier(policy Policy, deliverer Deliverer, sink *Sink, opts ...RetrierOption) *Retrier {
	r := &Retrier{
		policy:    policy.normalized(),
		deliverer: deliverer,
		sink:      sink,
		now:       func() time.Time { return time.Now().UTC() },
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Forward delivers h, retrying per the policy. On exhaustion the handoff is
// persisted as a dead letter and an *ExhaustedError is returned.
func (r *Retrier) Forward(ctx context.Context, h Handoff) error {
	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		attempts = attempt
		lastErr = r.deliverer.Deliver(ctx, h)
		if lastErr == nil {
			log.Printf("handoff_delivered handoff_id=%s kind=%s export_id=%s target=%s attempt=%d", h.ID, h.Kind, h.ExportID, h.Target, attempt)
			return nil
		}
		log.Printf("handoff_attempt_failed handoff_id=%s kind=%s target=%s attempt=%d max_attempts=%d err=%v", h.ID, h.Kind, h.Target, attempt, r.policy.MaxAttempts, lastErr)

		delay := r.policy.Delay(attempt)
		if delay <= 0 {
			continue
		}
		if err := r.sleep(ctx, delay); err != nil {
			lastErr = errors.Join(lastErr, err)
			break
		}
	}

	dl := DeadLetter{Handoff: h, Attempts: attempts, LastError: lastErr.Error(), FailedAt: r.now()}
	// The dead letter must survive the caller giving up.
	if err := r.sink.Put(context.WithoutCancel(ctx), dl); err != nil {
		log.Printf("dead_letter_persist_failed handoff_id=%s err=%v", h.ID, err)
		return errors.Join(&ExhaustedError{HandoffID: h.ID, Attempts: attempts, LastErr: lastErr}, err)
	}
	log.Printf("handoff_dead_lettered handoff_id=%s kind=%s export_id=%s attempts=%d last_error=%q", h.ID, h.Kind, h.ExportID, attempts, dl.LastError)
	return &ExhaustedError{HandoffID: h.ID, Attempts: attempts, LastErr: lastErr}
}

// Dispatch forwards in the background. Errors end in the dead-letter sink and
// the log, never with the caller.
func (r *Retrier) Dispatch(ctx context.Context, h Handoff) {
	ctx = context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				log.Printf("handoff_dispatch_panic handoff_id=%s panic=%v", h.ID, p)
			}
		}()
		_ = r.Forward(ctx, h)
	}()
}

// Wait blocks until every dispatched handoff has finished.
func (r *Retrier) Wait() {
	r.wg.Wait()
}

// Replay re-delivers a dead letter once. On success it is removed from the sink.
func (r *Retrier) Replay(ctx context.Context, handoffID string) error {
	dl, err := r.sink.Get(ctx, handoffID)
	if err != nil {
		return err
	}
	if err := r.deliverer.Deliver(ctx, dl.Handoff); err != nil {
		dl.Attempts++
		dl.LastError = err.Error()
		dl.FailedAt = r.now()
		if putErr := r.sink.Put(ctx, dl); putErr != nil {
			return errors.Join(err, putErr)
		}
		return err
	}
	log.Printf("dead_letter_replayed handoff_id=%s kind=%s export_id=%s", dl.Handoff.ID, dl.Handoff.Kind, dl.Handoff.ExportID)
	return r.sink.Remove(ctx, handoffID)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
