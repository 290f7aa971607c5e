package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"export-consortium/internal/domain"
	"export-consortium/internal/forwarding"
	"export-consortium/internal/ledger"
	"export-consortium/internal/storage"
)

type ledgerCall struct {
	Contract string
	Function string
	Args     []string
}

type fakeLedger struct {
	mu    sync.Mutex
	calls []ledgerCall
	err   error
}

func (f *fakeLedger) Submit(_ context.Context, contract, function string, args ...string) (ledger.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ledgerCall{Contract: contract, Function: function, Args: args})
	if f.err != nil {
		return ledger.Receipt{}, f.err
	}
	return ledger.Receipt{TxID: fmt.Sprintf("TX%03d", len(f.calls)), Height: int64(len(f.calls))}, nil
}

func (f *fakeLedger) Calls() []ledgerCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ledgerCall(nil), f.calls...)
}

type fakeForwarder struct {
	mu       sync.Mutex
	handoffs []forwarding.Handoff
}

func (f *fakeForwarder) Dispatch(_ context.Context, h forwarding.Handoff) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handoffs = append(f.handoffs, h)
}

func (f *fakeForwarder) Handoffs() []forwarding.Handoff {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]forwarding.Handoff(nil), f.handoffs...)
}

var fixedNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

// seed stores a record directly in status s with every evidentiary field set,
// so only the edge under test decides the outcome.
func seed(repo storage.Repository[domain.ExportRecord], id string, s domain.Status) domain.ExportRecord {
	rec := domain.ExportRecord{
		ID:                 id,
		ExporterID:         "exporter-1",
		CoffeeType:         "Yirgacheffe Grade 1",
		QuantityKg:         19200,
		DestinationCountry: "DE",
		EstimatedValue:     98000,
		Status:             s,
		ConsortiumStep:     domain.StepFor(s),
		CreatedAt:          fixedNow,
		UpdatedAt:          fixedNow,
		StatusHistory:      []domain.StatusHistoryEntry{{Status: s, Timestamp: fixedNow, Actor: domain.RoleExporter}},
	}
	for _, f := range domain.AllRecordFields {
		rec.SetField(f, "VAL-"+string(f))
	}
	_ = repo.Put(context.Background(), id, rec)
	return rec
}
