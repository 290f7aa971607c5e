// Package events carries transition events from the workflow engine to its
// consumers. Producers and consumers share no state beyond the event value.
package events

import (
	"context"
	"time"

	"export-consortium/internal/domain"
)

type Kind string

const (
	KindStatusChanged  Kind = "status-changed"
	KindRejected       Kind = "rejected"
	KindApproved       Kind = "approved"
	KindActionRequired Kind = "action-required"
)

// TransitionEvent is emitted once per successful transition, and once per
// gate refusal as an action-required notice for the exporter.
type TransitionEvent struct {
	ID               string                   `json:"id"`
	Kind             Kind                     `json:"kind"`
	ExportID         string                   `json:"exportId"`
	ExporterID       string                   `json:"exporterId"`
	From             domain.Status            `json:"from"`
	To               domain.Status            `json:"to"`
	Action           domain.Action            `json:"action"`
	Actor            domain.Role              `json:"actor"`
	Reason           string                   `json:"reason,omitempty"`
	Category         domain.RejectionCategory `json:"category,omitempty"`
	MissingDocuments []string                 `json:"missingDocuments,omitempty"`
	Timestamp        time.Time                `json:"timestamp"`
}

type Publisher interface {
	Publish(ctx context.Context, ev TransitionEvent) error
}

type Handler func(context.Context, TransitionEvent) error
