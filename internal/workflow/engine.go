// Package workflow is the export state machine: who may move a record, to
// which status, and what has to be on file first.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"export-consortium/internal/docgate"
	"export-consortium/internal/domain"
	"export-consortium/internal/events"
	"export-consortium/internal/forwarding"
	"export-consortium/internal/ledger"
	"export-consortium/internal/storage"
)

// Ledger is the slice of ledger.Gateway the engine writes through.
type Ledger interface {
	Submit(ctx context.Context, contract, function string, args ...string) (ledger.Receipt, error)
}

type Decision struct {
	Allowed      bool          `json:"allowed"`
	From         domain.Status `json:"from"`
	Target       domain.Status `json:"target,omitempty"`
	RequiredRole domain.Role   `json:"requiredRole,omitempty"`
	Reason       string        `json:"reason,omitempty"`
}

// CanTransition looks up the edge for (record.Status, action). A missing edge
// is ErrInvalidTransition; an edge owned by another role is ErrForbidden.
func CanTransition(rec domain.ExportRecord, role domain.Role, action domain.Action) (Decision, error) {
	d := Decision{From: rec.Status}
	e, ok := transitions[edgeKey{rec.Status, action}]
	if !ok {
		d.Reason = fmt.Sprintf("no %s transition from %s", action, rec.Status)
		return d, fmt.Errorf("%w: %s", ErrInvalidTransition, d.Reason)
	}
	d.Target = e.target
	d.RequiredRole = e.role
	if role != e.role {
		d.Reason = fmt.Sprintf("%s may not %s a record in %s; requires %s", role, action, rec.Status, e.role)
		return d, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}
	d.Allowed = true
	return d, nil
}

type Request struct {
	RecordID  string                   `json:"recordId"`
	ActorRole domain.Role              `json:"actorRole"`
	Action    domain.Action            `json:"action"`
	Payload   domain.TransitionPayload `json:"payload"`
}

type Result struct {
	Success          bool                  `json:"success"`
	NewStatus        domain.Status         `json:"newStatus"`
	MissingDocuments []docgate.DocumentKey `json:"missingDocuments,omitempty"`
	Record           domain.ExportRecord   `json:"-"`
}

type Engine struct {
	records   storage.Repository[domain.ExportRecord]
	ledger    Ledger
	publisher events.Publisher
	forwarder forwarding.Forwarder
	now       func() time.Time
	newID     func() string
	locks     *keyedMutex
}

type Option func(*Engine)

func WithForwarder(f forwarding.Forwarder) Option { return func(e *Engine) { e.forwarder = f } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func WithIDGenerator(newID func() string) Option { return func(e *Engine) { e.newID = newID } }

func NewEngine(records storage.Repository[domain.ExportRecord], l Ledger, publisher events.Publisher, opts ...Option) *Engine {
	e := &Engine{
		records:   records,
		ledger:    l,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
		locks:     newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateDraft stores a new DRAFT record in the local projection. Drafts are
// not on the ledger until they are submitted.
func (e *Engine) CreateDraft(ctx context.Context, draft domain.ExportDraft) (domain.ExportRecord, error) {
	if err := domain.ValidateDraft(draft); err != nil {
		return domain.ExportRecord{}, err
	}
	submit := transitions[edgeKey{domain.StatusDraft, domain.ActionSubmit}]
	if err := checkAccepted(submit, domain.ActionSubmit, draft.Fields); err != nil {
		return domain.ExportRecord{}, err
	}

	now := e.now()
	rec := domain.ExportRecord{
		ID:                 e.newID(),
		ExporterID:         strings.TrimSpace(draft.ExporterID),
		CoffeeType:         strings.TrimSpace(draft.CoffeeType),
		QuantityKg:         draft.QuantityKg,
		DestinationCountry: strings.TrimSpace(draft.DestinationCountry),
		EstimatedValue:     draft.EstimatedValue,
		Status:             domain.StatusDraft,
		ConsortiumStep:     domain.StepFor(domain.StatusDraft),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	supplied := applyFields(&rec, draft.Fields)
	rec.StatusHistory = []domain.StatusHistoryEntry{{
		Status:    domain.StatusDraft,
		Timestamp: now,
		Actor:     domain.RoleExporter,
		Notes:     "draft created",
		Fields:    supplied,
	}}

	if err := e.records.Put(ctx, rec.ID, rec); err != nil {
		return domain.ExportRecord{}, fmt.Errorf("store draft: %w", err)
	}
	log.Printf("export_draft_created export_id=%s exporter_id=%s", rec.ID, rec.ExporterID)
	return rec, nil
}

// AttemptTransition moves a record along one edge. The order is fixed: role and
// edge check, payload validation, document gate, ledger write, projection,
// event, then any cross-organization handoff. Nothing is stored unless every
// step up to the ledger write succeeds.
func (e *Engine) AttemptTransition(ctx context.Context, req Request) (Result, error) {
	unlock := e.locks.Lock(req.RecordID)
	defer unlock()

	rec, err := e.records.Get(ctx, req.RecordID)
	if err != nil {
		return Result{}, fmt.Errorf("load export %s: %w", req.RecordID, err)
	}
	res := Result{NewStatus: rec.Status, Record: rec}

	if _, err := CanTransition(rec, req.ActorRole, req.Action); err != nil {
		log.Printf("transition_refused export_id=%s status=%s action=%s actor=%s err=%v", rec.ID, rec.Status, req.Action, req.ActorRole, err)
		return res, err
	}
	edge := transitions[edgeKey{rec.Status, req.Action}]

	if err := domain.ValidatePayload(req.Action, req.Payload); err != nil {
		return res, err
	}
	if err := checkAccepted(edge, req.Action, req.Payload.Fields); err != nil {
		return res, err
	}

	candidate := rec.Clone()
	supplied := applyFields(&candidate, req.Payload.Fields)

	if req.Action.Forward() {
		stage := docgate.StageOf(rec.Status)
		gate := docgate.GetStageRequirements(candidate, stage)
		if !gate.CanProceed {
			res.MissingDocuments = gate.MissingDocuments
			e.publish(ctx, events.TransitionEvent{
				Kind:             events.KindActionRequired,
				ExportID:         rec.ID,
				ExporterID:       rec.ExporterID,
				From:             rec.Status,
				To:               rec.Status,
				Action:           req.Action,
				Actor:            req.ActorRole,
				MissingDocuments: documentNames(gate.MissingDocuments),
			})
			log.Printf("transition_blocked export_id=%s status=%s action=%s missing=%v", rec.ID, rec.Status, req.Action, gate.MissingDocuments)
			return res, &DocumentsIncompleteError{Stage: stage, Missing: gate.MissingDocuments}
		}
	}

	now := e.now()
	candidate.Status = edge.target
	candidate.ConsortiumStep = domain.StepFor(edge.target)
	candidate.UpdatedAt = now
	candidate.StatusHistory = append(candidate.StatusHistory, domain.StatusHistoryEntry{
		Status:    edge.target,
		Action:    req.Action,
		Timestamp: now,
		Actor:     req.ActorRole,
		Notes:     strings.TrimSpace(req.Payload.Notes),
		Reason:    strings.TrimSpace(req.Payload.Reason),
		Category:  req.Payload.Category,
		Fields:    supplied,
	})

	if edge.ledgerFunction != "" {
		receipt, err := e.submitToLedger(ctx, edge.ledgerFunction, candidate)
		if err != nil {
			log.Printf("ledger_write_failed export_id=%s action=%s function=%s err=%v", rec.ID, req.Action, edge.ledgerFunction, err)
			return res, err
		}
		candidate.BlockchainTxID = receipt.TxID
	}

	if err := e.records.Put(ctx, candidate.ID, candidate); err != nil {
		return res, fmt.Errorf("store export %s: %w", candidate.ID, err)
	}
	log.Printf("export_transitioned export_id=%s from=%s to=%s action=%s actor=%s tx_id=%s", rec.ID, rec.Status, edge.target, req.Action, req.ActorRole, candidate.BlockchainTxID)

	e.publish(ctx, events.TransitionEvent{
		Kind:       edge.event,
		ExportID:   candidate.ID,
		ExporterID: candidate.ExporterID,
		From:       rec.Status,
		To:         edge.target,
		Action:     req.Action,
		Actor:      req.ActorRole,
		Reason:     strings.TrimSpace(req.Payload.Reason),
		Category:   req.Payload.Category,
		Timestamp:  now,
	})

	if edge.handoff != nil && e.forwarder != nil {
		e.dispatchHandoff(ctx, *edge.handoff, req.ActorRole, candidate)
	}

	return Result{Success: true, NewStatus: candidate.Status, Record: candidate}, nil
}

func (e *Engine) submitToLedger(ctx context.Context, function string, rec domain.ExportRecord) (ledger.Receipt, error) {
	snapshot, err := json.Marshal(rec)
	if err != nil {
		return ledger.Receipt{}, fmt.Errorf("encode export snapshot: %w", err)
	}
	sum, err := storage.Checksum(rec)
	if err != nil {
		return ledger.Receipt{}, fmt.Errorf("checksum export snapshot: %w", err)
	}
	args := []string{rec.ID, string(snapshot), sum}
	if function == ledger.FnUpdateExportStatus {
		args = []string{rec.ID, string(rec.Status), string(snapshot), sum}
	}
	return e.ledger.Submit(ctx, ledger.ContractExport, function, args...)
}

func (e *Engine) publish(ctx context.Context, ev events.TransitionEvent) {
	if e.publisher == nil {
		return
	}
	ev.ID = e.newID()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.now()
	}
	if err := e.publisher.Publish(ctx, ev); err != nil {
		log.Printf("event_publish_failed event_id=%s kind=%s export_id=%s err=%v", ev.ID, ev.Kind, ev.ExportID, err)
	}
}

func (e *Engine) dispatchHandoff(ctx context.Context, route handoffRoute, source domain.Role, rec domain.ExportRecord) {
	payload, err := json.Marshal(rec)
	if err != nil {
		log.Printf("handoff_encode_failed export_id=%s kind=%s err=%v", rec.ID, route.kind, err)
		return
	}
	e.forwarder.Dispatch(ctx, forwarding.Handoff{
		ID:        e.newID(),
		Kind:      route.kind,
		ExportID:  rec.ID,
		Source:    source,
		Target:    route.target,
		Payload:   payload,
		CreatedAt: rec.UpdatedAt,
	})
}

func (e *Engine) Get(ctx context.Context, id string) (domain.ExportRecord, error) {
	rec, err := e.records.Get(ctx, id)
	if err != nil {
		return domain.ExportRecord{}, fmt.Errorf("load export %s: %w", id, err)
	}
	return rec, nil
}

// List returns records newest first, optionally narrowed to one exporter and
// one status.
func (e *Engine) List(ctx context.Context, exporterID string, status domain.Status) ([]domain.ExportRecord, error) {
	all, err := e.records.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ExportRecord, 0, len(all))
	for _, rec := range all {
		if exporterID != "" && rec.ExporterID != exporterID {
			continue
		}
		if status != "" && rec.Status != status {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (e *Engine) History(ctx context.Context, id string) ([]domain.StatusHistoryEntry, error) {
	rec, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.Clone().StatusHistory, nil
}

// ConsortiumStep is always derived from the current status, never read from the cache.
func (e *Engine) ConsortiumStep(ctx context.Context, id string) (domain.ConsortiumStep, error) {
	rec, err := e.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return domain.StepFor(rec.Status), nil
}

func checkAccepted(e edge, action domain.Action, fields map[domain.RecordField]string) error {
	failed := make([]string, 0)
	for f := range fields {
		if !e.accepted(f) {
			failed = append(failed, fmt.Sprintf("field.%s_not_accepted_for_%s", f, action))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	sort.Strings(failed)
	return &domain.ValidationError{FailedRules: failed}
}

// applyFields writes non-blank values and returns the fields supplied, in
// canonical order.
func applyFields(rec *domain.ExportRecord, fields map[domain.RecordField]string) []domain.RecordField {
	var supplied []domain.RecordField
	for _, f := range domain.AllRecordFields {
		v, ok := fields[f]
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		rec.SetField(f, v)
		supplied = append(supplied, f)
	}
	return supplied
}

func documentNames(keys []docgate.DocumentKey) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, string(k))
	}
	return out
}
