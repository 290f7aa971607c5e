package forwarding

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"export-consortium/internal/domain"
)

var ErrForwardingExhausted = errors.New("forwarding exhausted")

type Kind string

const (
	KindLicenseApplication Kind = "license-application"
	KindFXApplication      Kind = "fx-application"
)

// Handoff is one message relayed from the organization that approved a stage
// to the intake endpoint of the next one.
type Handoff struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	ExportID  string          `json:"exportId"`
	Source    domain.Role     `json:"source"`
	Target    domain.Role     `json:"target"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

// DeadLetter is what remains of a handoff once its retry budget is spent.
type DeadLetter struct {
	Handoff   Handoff   `json:"handoff"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"lastError"`
	FailedAt  time.Time `json:"failedAt"`
}

type ExhaustedError struct {
	HandoffID string
	Attempts  int
	LastErr   error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("forwarding exhausted: handoff %s failed after %d attempts: %v", e.HandoffID, e.Attempts, e.LastErr)
}

func (e *ExhaustedError) Is(target error) bool { return target == ErrForwardingExhausted }

func (e *ExhaustedError) Unwrap() error { return e.LastErr }
