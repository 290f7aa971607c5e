// Command replay inspects and re-delivers dead-lettered handoffs.
//
//	replay                     list dead letters
//	replay --id H              re-deliver one handoff
//	replay --all               re-deliver every dead letter
//	replay --signal H          wake a running handoff workflow (FORWARD_MODE=temporal)
//	replay --watch [--auto]    follow new dead letters in the minio bucket
//
// A badger dead-letter store is locked by the api process while it runs; use
// POST /v1/forwarding/dead-letters/{id}/replay in that setup.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.temporal.io/sdk/client"
	"gopkg.in/yaml.v3"

	"export-consortium/internal/bootstrap"
	"export-consortium/internal/config"
	"export-consortium/internal/events"
	"export-consortium/internal/forwarding"
	appTemporal "export-consortium/internal/temporal"
)

func main() {
	var (
		id       = pflag.String("id", "", "handoff id to re-deliver")
		all      = pflag.Bool("all", false, "re-deliver every dead letter")
		signalID = pflag.String("signal", "", "handoff id whose workflow should retry now")
		watch    = pflag.Bool("watch", false, "follow new dead letters (minio backend only)")
		auto     = pflag.Bool("auto", false, "with --watch, re-deliver each new dead letter once")
		operator = pflag.String("operator", os.Getenv("USER"), "operator name recorded on signals")
	)
	pflag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg.StoreBackend = config.StoreMemory

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *signalID != "" {
		if err := signalRetry(ctx, cfg, *signalID, *operator); err != nil {
			log.Fatalf("signal handoff %s: %v", *signalID, err)
		}
		return
	}

	backends, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("open storage: %v", err)
	}
	defer backends.Close()

	sink := backends.DeadLetters()
	retrier := forwarding.NewRetrier(forwarding.DefaultPolicy(), forwarding.NewHTTPDeliverer(cfg.ForwardTargets, 10*time.Second), sink)

	switch {
	case *watch:
		err = watchDeadLetters(ctx, backends, sink, retrier, *auto)
	case *all:
		err = replayAll(ctx, sink, retrier)
	case *id != "":
		err = retrier.Replay(ctx, *id)
	default:
		err = list(ctx, sink)
	}
	if err != nil {
		log.Fatalf("replay: %v", err)
	}
}

func list(ctx context.Context, sink *forwarding.Sink) error {
	items, err := sink.List(ctx)
	if err != nil {
		return err
	}
	type row struct {
		HandoffID string    `yaml:"handoffId"`
		Kind      string    `yaml:"kind"`
		ExportID  string    `yaml:"exportId"`
		Target    string    `yaml:"target"`
		Attempts  int       `yaml:"attempts"`
		LastError string    `yaml:"lastError"`
		FailedAt  time.Time `yaml:"failedAt"`
	}
	rows := make([]row, 0, len(items))
	for _, dl := range items {
		rows = append(rows, row{
			HandoffID: dl.Handoff.ID,
			Kind:      string(dl.Handoff.Kind),
			ExportID:  dl.Handoff.ExportID,
			Target:    string(dl.Handoff.Target),
			Attempts:  dl.Attempts,
			LastError: dl.LastError,
			FailedAt:  dl.FailedAt,
		})
	}
	enc := yaml.NewEncoder(os.Stdout)
	defer enc.Close()
	return enc.Encode(rows)
}

func replayAll(ctx context.Context, sink *forwarding.Sink, retrier *forwarding.Retrier) error {
	items, err := sink.List(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, dl := range items {
		if err := retrier.Replay(ctx, dl.Handoff.ID); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", dl.Handoff.ID, err))
		}
	}
	log.Printf("replay_finished total=%d failed=%d", len(items), len(errs))
	return errors.Join(errs...)
}

func watchDeadLetters(ctx context.Context, backends *bootstrap.Backends, sink *forwarding.Sink, retrier *forwarding.Retrier, auto bool) error {
	store := backends.Minio()
	if store == nil {
		return fmt.Errorf("--watch needs DEAD_LETTER_BACKEND=minio")
	}
	source := events.NewMinioObjectSource(store.Client(), store.Bucket(), bootstrap.NamespaceDeadLetters)
	log.Printf("watching dead letters bucket=%s auto_replay=%t", store.Bucket(), auto)
	// A failed replay rewrites the object, so each handoff is retried once per session.
	replayed := make(map[string]bool)
	return source.Run(ctx, func(ctx context.Context, ev events.ObjectEvent) error {
		dl, err := sink.Get(ctx, ev.ID)
		if err != nil {
			log.Printf("dead_letter_unreadable object=%s err=%v", ev.ObjectKey, err)
			return nil
		}
		log.Printf("dead_letter_observed handoff_id=%s kind=%s export_id=%s attempts=%d last_error=%q",
			dl.Handoff.ID, dl.Handoff.Kind, dl.Handoff.ExportID, dl.Attempts, dl.LastError)
		if !auto || replayed[dl.Handoff.ID] {
			return nil
		}
		replayed[dl.Handoff.ID] = true
		if err := retrier.Replay(ctx, dl.Handoff.ID); err != nil {
			log.Printf("dead_letter_auto_replay_failed handoff_id=%s err=%v", dl.Handoff.ID, err)
		}
		return nil
	})
}

func signalRetry(ctx context.Context, cfg config.Config, handoffID, operator string) error {
	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
	})
	if err != nil {
		return fmt.Errorf("connect temporal: %w", err)
	}
	defer temporalClient.Close()

	workflowID := appTemporal.HandoffWorkflowID(handoffID)
	if err := temporalClient.SignalWorkflow(ctx, workflowID, "", appTemporal.RetryNowSignalName, appTemporal.RetryNowSignal{Operator: operator}); err != nil {
		return err
	}
	log.Printf("retry_signal_sent workflow_id=%s operator=%s", workflowID, operator)
	return nil
}
