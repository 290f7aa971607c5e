package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"go.temporal.io/sdk/client"

	"export-consortium/internal/api"
	"export-consortium/internal/bootstrap"
	"export-consortium/internal/config"
	"export-consortium/internal/events"
	"export-consortium/internal/forwarding"
	"export-consortium/internal/ledger"
	"export-consortium/internal/notify"
	appTemporal "export-consortium/internal/temporal"
	"export-consortium/internal/workflow"
)

const (
	deliveryTimeout   = 10 * time.Second
	reconnectInterval = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backends, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("open storage: %v", err)
	}
	defer backends.Close()

	ledgerLogger := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout)).With("module", "ledger", "org", string(cfg.OrgRole))
	gateway := ledger.NewGateway(ledger.Config{
		Org:           cfg.OrgRole,
		MSPID:         cfg.LedgerMSPID,
		ProfilePath:   cfg.LedgerProfilePath,
		WalletPath:    cfg.LedgerWalletPath,
		Identity:      cfg.LedgerIdentity,
		AdminIdentity: cfg.LedgerAdminIdentity,
		External:      cfg.LedgerExternal,
		Timeout:       cfg.LedgerTimeout(),
	}, ledger.WithLogger(ledgerLogger))
	connect(ctx, gateway, cfg.LedgerTimeout())
	defer gateway.Disconnect()
	go keepConnected(ctx, gateway, cfg.LedgerTimeout())

	bus := events.NewBus(0)
	hub := notify.NewHub(backends.NotifyStores())
	// The consumer outlives ctx so events from requests still draining in
	// srv.Shutdown reach the hub; bus.Close ends it.
	busStopped := make(chan struct{})
	go func() {
		defer close(busStopped)
		if err := bus.Run(context.Background(), hub.Handle); err != nil {
			log.Printf("event_bus_stopped err=%v", err)
		}
	}()

	deadLetters := backends.DeadLetters()
	policy := forwarding.Policy{MaxAttempts: cfg.ForwardMaxAttempts, Backoff: forwarding.LinearBackoff(cfg.ForwardBaseDelay)}
	retrier := forwarding.NewRetrier(policy, forwarding.NewHTTPDeliverer(cfg.ForwardTargets, deliveryTimeout), deadLetters)

	var forwarder forwarding.Forwarder = retrier
	if cfg.ForwardMode == config.ForwardTemporal {
		temporalClient, err := client.Dial(client.Options{
			HostPort:  cfg.TemporalAddress,
			Namespace: cfg.TemporalNamespace,
		})
		if err != nil {
			log.Fatalf("connect temporal: %v", err)
		}
		defer temporalClient.Close()
		forwarder = appTemporal.NewForwarder(temporalClient, cfg.TemporalTaskQueue, policy, cfg.ForwardBaseDelay, deadLetters)
	}

	engine := workflow.NewEngine(backends.Records(), gateway, bus, workflow.WithForwarder(forwarder))

	h := api.NewHandler(api.Deps{
		Org:         cfg.OrgRole,
		Engine:      engine,
		Hub:         hub,
		DeadLetters: deadLetters,
		Replayer:    retrier,
		Intake:      backends.Intake(),
		Checks: map[string]api.ReadinessCheck{
			"ledger": func(context.Context) error {
				if !gateway.IsConnected() {
					return ledger.ErrLedgerUnavailable
				}
				return nil
			},
			"storage": backends.Ping,
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.NewRouter(h),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("api listening on :%s org=%s forward_mode=%s", cfg.HTTPPort, cfg.OrgRole, cfg.ForwardMode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	retrier.Wait()
	bus.Close()
	<-busStopped
}

// connect logs and carries on when the ledger is down; the API serves reads
// and answers writes with 503 until keepConnected succeeds.
func connect(ctx context.Context, gateway *ledger.Gateway, timeout time.Duration) {
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := gateway.Connect(connectCtx); err != nil {
		log.Printf("ledger_connect_failed org=%s err=%v", gateway.Org(), err)
	}
}

func keepConnected(ctx context.Context, gateway *ledger.Gateway, timeout time.Duration) {
	ticker := time.NewTicker(reconnectInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !gateway.IsConnected() {
				connect(ctx, gateway, timeout)
			}
		}
	}
}
