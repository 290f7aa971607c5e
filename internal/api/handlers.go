package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"export-consortium/internal/docgate"
	"export-consortium/internal/domain"
	"export-consortium/internal/forwarding"
	"export-consortium/internal/ledger"
	"export-consortium/internal/notify"
	"export-consortium/internal/storage"
	"export-consortium/internal/workflow"
)

const actorRoleHeader = "X-Actor-Role"

// ReadinessCheck reports nil when a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Replayer re-delivers one dead-lettered handoff.
type Replayer interface {
	Replay(ctx context.Context, handoffID string) error
}

type Handler struct {
	org         domain.Role
	engine      *workflow.Engine
	hub         *notify.Hub
	deadLetters *forwarding.Sink
	replayer    Replayer
	intake      storage.Repository[forwarding.Handoff]
	checks      map[string]ReadinessCheck
	now         func() time.Time
}

type Deps struct {
	Org         domain.Role
	Engine      *workflow.Engine
	Hub         *notify.Hub
	DeadLetters *forwarding.Sink
	Replayer    Replayer
	Intake      storage.Repository[forwarding.Handoff]
	Checks      map[string]ReadinessCheck
}

func NewHandler(d Deps) *Handler {
	intake := d.Intake
	if intake == nil {
		intake = storage.NewMemoryRepository[forwarding.Handoff]()
	}
	return &Handler{
		org:         d.Org,
		engine:      d.Engine,
		hub:         d.Hub,
		deadLetters: d.DeadLetters,
		replayer:    d.Replayer,
		intake:      intake,
		checks:      d.Checks,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type actionRequest struct {
	Action  domain.Action            `json:"action"`
	Payload domain.TransitionPayload `json:"payload"`
}

type actionResponse struct {
	Success          bool                  `json:"success"`
	NewStatus        domain.Status         `json:"newStatus"`
	MissingDocuments []docgate.DocumentKey `json:"missingDocuments,omitempty"`
	TxID             string                `json:"txId,omitempty"`
	Error            string                `json:"error,omitempty"`
}

type requirementsResponse struct {
	docgate.StageRequirements
	NextAction string `json:"nextAction"`
}

func actorRole(r *http.Request) (domain.Role, bool) {
	return domain.ParseRole(strings.ToUpper(strings.TrimSpace(r.Header.Get(actorRoleHeader))))
}

// mutatingActor resolves the actor of a write. Writes are signed by this
// process's ledger identity, so the actor must be the organization it runs as.
func (h *Handler) mutatingActor(w http.ResponseWriter, r *http.Request) (domain.Role, bool) {
	role, ok := actorRole(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": actorRoleHeader + " header is required"})
		return "", false
	}
	if role != h.org {
		log.Printf("actor_org_mismatch actor=%s org=%s path=%s", role, h.org, r.URL.Path)
		writeError(w, fmt.Errorf("%w: %s cannot act through the %s service", workflow.ErrForbidden, role, h.org))
		return "", false
	}
	return role, true
}

func (h *Handler) CreateExport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	role, ok := h.mutatingActor(w, r)
	if !ok {
		return
	}
	if role != domain.RoleExporter {
		writeJSON(w, http.StatusForbidden, map[string]any{"error": "only exporters create export drafts"})
		return
	}

	var draft domain.ExportDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	rec, err := h.engine.CreateDraft(ctx, draft)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *Handler) ListExports(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var status domain.Status
	if v := r.URL.Query().Get("status"); v != "" {
		status = domain.Status(strings.ToUpper(v))
		if !status.Valid() {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unknown status"})
			return
		}
	}
	items, err := h.engine.List(ctx, r.URL.Query().Get("exporterId"), status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) GetExport(w http.ResponseWriter, r *http.Request, exportID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rec, err := h.engine.Get(ctx, exportID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request, exportID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	history, err := h.engine.History(ctx, exportID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exportId": exportID, "items": history})
}

func (h *Handler) GetStep(w http.ResponseWriter, r *http.Request, exportID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	step, err := h.engine.ConsortiumStep(ctx, exportID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exportId": exportID, "consortiumStep": step})
}

func (h *Handler) GetRequirements(w http.ResponseWriter, r *http.Request, exportID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rec, err := h.engine.Get(ctx, exportID)
	if err != nil {
		writeError(w, err)
		return
	}
	stage := parseStage(r.URL.Query().Get("stage"), rec.Status)
	writeJSON(w, http.StatusOK, requirementsResponse{
		StageRequirements: docgate.GetStageRequirements(rec, stage),
		NextAction:        docgate.GetNextRequiredAction(rec, stage),
	})
}

// parseStage accepts a status name or a consortium step name and falls back to
// the record's current status.
func parseStage(v string, current domain.Status) docgate.Stage {
	v = strings.ToUpper(strings.TrimSpace(v))
	if v == "" {
		return docgate.StageOf(current)
	}
	if s := domain.Status(v); s.Valid() {
		return docgate.StageOf(s)
	}
	for _, step := range domain.AllSteps {
		if strings.ToUpper(string(step)) == v {
			return docgate.StageOfStep(step)
		}
	}
	return docgate.Stage(v)
}

func (h *Handler) GetChecklist(w http.ResponseWriter, r *http.Request, exportID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rec, err := h.engine.Get(ctx, exportID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exportId": exportID, "documents": docgate.GetDocumentChecklist(rec)})
}

func (h *Handler) PerformAction(w http.ResponseWriter, r *http.Request, exportID string) {
	role, ok := h.mutatingActor(w, r)
	if !ok {
		return
	}
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	action, ok := domain.ParseAction(string(req.Action))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unknown action"})
		return
	}

	res, err := h.engine.AttemptTransition(r.Context(), workflow.Request{
		RecordID:  exportID,
		ActorRole: role,
		Action:    action,
		Payload:   req.Payload,
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, err)
			return
		}
		writeJSON(w, statusFor(err), actionResponse{
			NewStatus:        res.NewStatus,
			MissingDocuments: res.MissingDocuments,
			Error:            err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{
		Success:   true,
		NewStatus: res.NewStatus,
		TxID:      res.Record.BlockchainTxID,
	})
}

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request, userID string) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid limit"})
			return
		}
		limit = n
	}
	items, err := h.hub.List(r.Context(), userID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) UnreadNotifications(w http.ResponseWriter, r *http.Request, userID string) {
	items, err := h.hub.Unread(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request, userID, notificationID string) {
	found, err := h.hub.MarkRead(r.Context(), userID, notificationID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "notification not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": notificationID, "read": true})
}

func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request, userID string) {
	n, err := h.hub.MarkAllRead(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": n})
}

func (h *Handler) DeleteNotification(w http.ResponseWriter, r *http.Request, userID, notificationID string) {
	found, err := h.hub.Delete(r.Context(), userID, notificationID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "notification not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ClearNotifications(w http.ResponseWriter, r *http.Request, userID string) {
	n, err := h.hub.ClearAll(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": n})
}

func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request, userID string) {
	prefs, err := h.hub.Preferences(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (h *Handler) UpdatePreferences(w http.ResponseWriter, r *http.Request, userID string) {
	var prefs notify.Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	saved, err := h.hub.UpdatePreferences(r.Context(), userID, prefs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *Handler) NotificationStats(w http.ResponseWriter, r *http.Request, userID string) {
	stats, err := h.hub.Stats(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	if h.deadLetters == nil {
		writeJSON(w, http.StatusOK, map[string]any{"items": []forwarding.DeadLetter{}})
		return
	}
	items, err := h.deadLetters.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) ReplayDeadLetter(w http.ResponseWriter, r *http.Request, handoffID string) {
	if h.replayer == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]any{"error": "replay is not configured"})
		return
	}
	if err := h.replayer.Replay(r.Context(), handoffID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, err)
			return
		}
		log.Printf("dead_letter_replay_failed handoff_id=%s err=%v", handoffID, err)
		writeJSON(w, http.StatusBadGateway, map[string]any{"handoffId": handoffID, "delivered": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"handoffId": handoffID, "delivered": true})
}

// ReceiveHandoff is the intake endpoint other organizations forward to. A
// repeated delivery of the same handoff ID overwrites the first.
func (h *Handler) ReceiveHandoff(w http.ResponseWriter, r *http.Request) {
	var handoff forwarding.Handoff
	if err := json.NewDecoder(r.Body).Decode(&handoff); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	if id := r.Header.Get("X-Handoff-ID"); id != "" {
		handoff.ID = id
	}
	if handoff.ID == "" || handoff.ExportID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "handoff id and exportId are required"})
		return
	}
	if h.org != "" && handoff.Target != h.org {
		writeJSON(w, http.StatusMisdirectedRequest, map[string]any{"error": "handoff is addressed to " + string(handoff.Target)})
		return
	}
	if err := h.intake.Put(r.Context(), handoff.ID, handoff); err != nil {
		writeError(w, err)
		return
	}
	log.Printf("handoff_received handoff_id=%s kind=%s export_id=%s source=%s", handoff.ID, handoff.Kind, handoff.ExportID, handoff.Source)
	writeJSON(w, http.StatusAccepted, map[string]any{"handoffId": handoff.ID, "status": "received"})
}

func (h *Handler) ListIntake(w http.ResponseWriter, r *http.Request) {
	items, err := h.intake.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := make(map[string]string)
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func statusFor(err error) int {
	var incomplete *workflow.DocumentsIncompleteError
	switch {
	case errors.As(err, &incomplete):
		return http.StatusUnprocessableEntity
	case errors.Is(err, workflow.ErrForbidden), errors.Is(err, ledger.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, workflow.ErrInvalidTransition), errors.Is(err, ledger.ErrLedgerRejected):
		return http.StatusConflict
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case ledger.Retryable(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("request_failed err=%v", err)
		writeJSON(w, status, map[string]any{"error": "internal error"})
		return
	}
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
