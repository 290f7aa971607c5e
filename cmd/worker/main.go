package main

import (
	"context"
	"log"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"export-consortium/internal/bootstrap"
	"export-consortium/internal/config"
	"export-consortium/internal/forwarding"
	appTemporal "export-consortium/internal/temporal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	// The worker only touches dead letters; records stay with the api process.
	cfg.StoreBackend = config.StoreMemory

	backends, err := bootstrap.Open(context.Background(), cfg)
	if err != nil {
		log.Fatalf("open storage: %v", err)
	}
	defer backends.Close()

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
	})
	if err != nil {
		log.Fatalf("connect temporal: %v", err)
	}
	defer temporalClient.Close()

	activities := &appTemporal.Activities{
		Deliverer: forwarding.NewHTTPDeliverer(cfg.ForwardTargets, 10*time.Second),
		Sink:      backends.DeadLetters(),
		Now:       func() time.Time { return time.Now().UTC() },
	}

	w := worker.New(temporalClient, cfg.TemporalTaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(appTemporal.HandoffWorkflow, workflow.RegisterOptions{Name: appTemporal.HandoffWorkflowName})
	w.RegisterActivity(activities.DeliverHandoffActivity)
	w.RegisterActivity(activities.DeadLetterActivity)

	log.Printf("worker running on task queue %s org=%s", cfg.TemporalTaskQueue, cfg.OrgRole)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker stopped with error: %v", err)
	}
}
