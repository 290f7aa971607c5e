// Package notify turns transition events into per-user notifications. Each
// event is filtered against the recipient's preferences before anything is
// created.
package notify

import (
	"time"

	"export-consortium/internal/events"
)

type Type string

const (
	TypeApproved       Type = "APPROVED"
	TypeRejected       Type = "REJECTED"
	TypePending        Type = "PENDING"
	TypeActionRequired Type = "ACTION_REQUIRED"
	TypeCompleted      Type = "COMPLETED"
	TypeInfo           Type = "INFO"
)

type Notification struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	ExportID  string            `json:"exportId"`
	Type      Type              `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Read      bool              `json:"read"`
	Timestamp time.Time         `json:"timestamp"`
	EventID   string            `json:"eventId,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type Preferences struct {
	NotifyOnApproval       bool `json:"notifyOnApproval"`
	NotifyOnRejection      bool `json:"notifyOnRejection"`
	NotifyOnStatusChange   bool `json:"notifyOnStatusChange"`
	NotifyOnActionRequired bool `json:"notifyOnActionRequired"`
	InAppNotifications     bool `json:"inAppNotifications"`
	EmailNotifications     bool `json:"emailNotifications"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		NotifyOnApproval:       true,
		NotifyOnRejection:      true,
		NotifyOnStatusChange:   true,
		NotifyOnActionRequired: true,
		InAppNotifications:     true,
	}
}

// Allows reports whether an event of kind k may produce an in-app notification.
func (p Preferences) Allows(k events.Kind) bool {
	if !p.InAppNotifications {
		return false
	}
	switch k {
	case events.KindApproved:
		return p.NotifyOnApproval
	case events.KindRejected:
		return p.NotifyOnRejection
	case events.KindStatusChanged:
		return p.NotifyOnStatusChange
	case events.KindActionRequired:
		return p.NotifyOnActionRequired
	}
	return false
}

type Stats struct {
	Total  int          `json:"total"`
	Unread int          `json:"unread"`
	ByType map[Type]int `json:"byType"`
}

// Inbox is one user's notifications, most recent first.
type Inbox struct {
	UserID string         `json:"userId"`
	Items  []Notification `json:"items"`
}

type ConsumedEvent struct {
	EventID    string    `json:"eventId"`
	ConsumedAt time.Time `json:"consumedAt"`
}
