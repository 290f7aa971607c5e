package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"export-consortium/internal/docgate"
	"export-consortium/internal/domain"
	"export-consortium/internal/events"
	"export-consortium/internal/storage"
)

const defaultInboxCap = 500

type Hub struct {
	inboxes     storage.Repository[Inbox]
	preferences storage.Repository[Preferences]
	consumed    storage.Repository[ConsumedEvent]
	now         func() time.Time
	newID       func() string
	inboxCap    int
	mu          sync.Mutex
}

type Option func(*Hub)

func WithClock(now func() time.Time) Option { return func(h *Hub) { h.now = now } }

func WithIDGenerator(newID func() string) Option { return func(h *Hub) { h.newID = newID } }

// WithInboxCap bounds each inbox; the oldest notifications are dropped first.
func WithInboxCap(n int) Option { return func(h *Hub) { h.inboxCap = n } }

// Stores groups the repositories a Hub persists through.
type Stores struct {
	Inboxes     storage.Repository[Inbox]
	Preferences storage.Repository[Preferences]
	Consumed    storage.Repository[ConsumedEvent]
}

func MemoryStores() Stores {
	return Stores{
		Inboxes:     storage.NewMemoryRepository[Inbox](),
		Preferences: storage.NewMemoryRepository[Preferences](),
		Consumed:    storage.NewMemoryRepository[ConsumedEvent](),
	}
}

func NewHub(stores Stores, opts ...Option) *Hub {
	h := &Hub{
		inboxes:     stores.Inboxes,
		preferences: stores.Preferences,
		consumed:    stores.Consumed,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
		inboxCap:    defaultInboxCap,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle consumes one event. It creates at most one notification per event id
// and none when the recipient's preferences exclude the event kind.
func (h *Hub) Handle(ctx context.Context, ev events.TransitionEvent) error {
	if ev.ID == "" {
		return fmt.Errorf("event without id for export %s", ev.ExportID)
	}
	userID := strings.TrimSpace(ev.ExporterID)
	if userID == "" {
		return fmt.Errorf("event %s has no recipient", ev.ID)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := h.consumed.Get(ctx, ev.ID); err == nil {
		log.Printf("notification_duplicate_event event_id=%s export_id=%s", ev.ID, ev.ExportID)
		return nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("check consumed event %s: %w", ev.ID, err)
	}

	prefs, err := h.loadPreferences(ctx, userID)
	if err != nil {
		return err
	}
	// Marked before the inbox write so delivery stays at most once.
	if err := h.consumed.Put(ctx, ev.ID, ConsumedEvent{EventID: ev.ID, ConsumedAt: h.now()}); err != nil {
		return fmt.Errorf("mark event %s consumed: %w", ev.ID, err)
	}
	if !prefs.Allows(ev.Kind) {
		log.Printf("notification_suppressed user_id=%s export_id=%s kind=%s", userID, ev.ExportID, ev.Kind)
		return nil
	}
	n := h.render(userID, ev)
	if err := h.prepend(ctx, userID, n); err != nil {
		return err
	}
	log.Printf("notification_created notification_id=%s user_id=%s export_id=%s type=%s", n.ID, userID, ev.ExportID, n.Type)
	return nil
}

func (h *Hub) render(userID string, ev events.TransitionEvent) Notification {
	n := Notification{
		ID:        h.newID(),
		UserID:    userID,
		ExportID:  ev.ExportID,
		Timestamp: h.now(),
		EventID:   ev.ID,
		Metadata: map[string]string{
			"action": string(ev.Action),
			"actor":  string(ev.Actor),
			"status": string(ev.To),
		},
	}
	switch ev.Kind {
	case events.KindApproved:
		if ev.To == domain.StatusCompleted {
			n.Type = TypeCompleted
			n.Title = "Export completed"
			n.Message = fmt.Sprintf("Export %s has completed all consortium stages", ev.ExportID)
		} else {
			n.Type = TypeApproved
			n.Title = "Export approved"
			n.Message = fmt.Sprintf("%s approved export %s; it is now %s", ev.Actor, ev.ExportID, ev.To)
		}
	case events.KindRejected:
		n.Type = TypeRejected
		n.Title = "Export rejected"
		n.Message = fmt.Sprintf("%s rejected export %s: %s", ev.Actor, ev.ExportID, ev.Reason)
		if ev.Category != "" {
			n.Metadata["category"] = string(ev.Category)
		}
	case events.KindActionRequired:
		n.Type = TypeActionRequired
		n.Title = "Action required"
		labels := make([]string, 0, len(ev.MissingDocuments))
		for _, k := range ev.MissingDocuments {
			labels = append(labels, docgate.Label(docgate.DocumentKey(k)))
		}
		n.Message = fmt.Sprintf("Export %s cannot %s yet. Upload the following documents: %s", ev.ExportID, ev.Action, strings.Join(labels, ", "))
		n.Metadata["missingDocuments"] = strings.Join(ev.MissingDocuments, ",")
	default:
		n.Type = TypePending
		if ev.To.Terminal() {
			n.Type = TypeInfo
		}
		n.Title = "Export status updated"
		n.Message = fmt.Sprintf("Export %s moved from %s to %s", ev.ExportID, ev.From, ev.To)
	}
	return n
}

func (h *Hub) prepend(ctx context.Context, userID string, n Notification) error {
	inbox, err := h.loadInbox(ctx, userID)
	if err != nil {
		return err
	}
	inbox.Items = append([]Notification{n}, inbox.Items...)
	if h.inboxCap > 0 && len(inbox.Items) > h.inboxCap {
		inbox.Items = inbox.Items[:h.inboxCap]
	}
	return h.inboxes.Put(ctx, userID, inbox)
}

func (h *Hub) loadInbox(ctx context.Context, userID string) (Inbox, error) {
	inbox, err := h.inboxes.Get(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return Inbox{UserID: userID}, nil
	}
	if err != nil {
		return Inbox{}, fmt.Errorf("load inbox %s: %w", userID, err)
	}
	return inbox, nil
}

func (h *Hub) loadPreferences(ctx context.Context, userID string) (Preferences, error) {
	prefs, err := h.preferences.Get(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return DefaultPreferences(), nil
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("load preferences %s: %w", userID, err)
	}
	return prefs, nil
}

// List returns up to limit notifications, most recent first. A non-positive
// limit returns all.
func (h *Hub) List(ctx context.Context, userID string, limit int) ([]Notification, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	inbox, err := h.loadInbox(ctx, userID)
	if err != nil {
		return nil, err
	}
	items := inbox.Items
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return append([]Notification{}, items...), nil
}

func (h *Hub) Unread(ctx context.Context, userID string) ([]Notification, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	inbox, err := h.loadInbox(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]Notification, 0)
	for _, n := range inbox.Items {
		if !n.Read {
			out = append(out, n)
		}
	}
	return out, nil
}

func (h *Hub) MarkRead(ctx context.Context, userID, notificationID string) (bool, error) {
	return h.mutate(ctx, userID, func(inbox *Inbox) (int, bool) {
		for i := range inbox.Items {
			if inbox.Items[i].ID == notificationID {
				changed := 0
				if !inbox.Items[i].Read {
					inbox.Items[i].Read = true
					changed = 1
				}
				return changed, true
			}
		}
		return 0, false
	})
}

// MarkAllRead returns how many notifications changed state.
func (h *Hub) MarkAllRead(ctx context.Context, userID string) (int, error) {
	var count int
	_, err := h.mutate(ctx, userID, func(inbox *Inbox) (int, bool) {
		for i := range inbox.Items {
			if !inbox.Items[i].Read {
				inbox.Items[i].Read = true
				count++
			}
		}
		return count, count > 0
	})
	return count, err
}

func (h *Hub) Delete(ctx context.Context, userID, notificationID string) (bool, error) {
	return h.mutate(ctx, userID, func(inbox *Inbox) (int, bool) {
		for i := range inbox.Items {
			if inbox.Items[i].ID == notificationID {
				inbox.Items = append(inbox.Items[:i], inbox.Items[i+1:]...)
				return 1, true
			}
		}
		return 0, false
	})
}

// ClearAll empties the inbox and returns how many notifications were removed.
func (h *Hub) ClearAll(ctx context.Context, userID string) (int, error) {
	var count int
	_, err := h.mutate(ctx, userID, func(inbox *Inbox) (int, bool) {
		count = len(inbox.Items)
		inbox.Items = nil
		return count, count > 0
	})
	return count, err
}

// mutate applies fn under the hub lock and persists only when fn changed something.
func (h *Hub) mutate(ctx context.Context, userID string, fn func(*Inbox) (changed int, found bool)) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	inbox, err := h.loadInbox(ctx, userID)
	if err != nil {
		return false, err
	}
	changed, found := fn(&inbox)
	if changed > 0 {
		if err := h.inboxes.Put(ctx, userID, inbox); err != nil {
			return found, fmt.Errorf("store inbox %s: %w", userID, err)
		}
	}
	return found, nil
}

func (h *Hub) Preferences(ctx context.Context, userID string) (Preferences, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loadPreferences(ctx, userID)
}

func (h *Hub) UpdatePreferences(ctx context.Context, userID string, prefs Preferences) (Preferences, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.preferences.Put(ctx, userID, prefs); err != nil {
		return Preferences{}, fmt.Errorf("store preferences %s: %w", userID, err)
	}
	return prefs, nil
}

func (h *Hub) Stats(ctx context.Context, userID string) (Stats, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	inbox, err := h.loadInbox(ctx, userID)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{ByType: make(map[Type]int)}
	for _, n := range inbox.Items {
		st.Total++
		if !n.Read {
			st.Unread++
		}
		st.ByType[n.Type]++
	}
	return st, nil
}
