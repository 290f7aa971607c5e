package workflow

import (
	"errors"
	"fmt"
	"strings"

	"export-consortium/internal/docgate"
)

var (
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrDocumentsIncomplete = errors.New("documents incomplete")
)

// DocumentsIncompleteError carries the required documents still missing at the
// stage being left. It is not fatal: callers prompt for the uploads.
type DocumentsIncompleteError struct {
	Stage   docgate.Stage
	Missing []docgate.DocumentKey
}

func (e *DocumentsIncompleteError) Error() string {
	names := make([]string, 0, len(e.Missing))
	for _, k := range e.Missing {
		names = append(names, string(k))
	}
	return fmt.Sprintf("documents incomplete at %s: missing %s", e.Stage, strings.Join(names, ", "))
}

func (e *DocumentsIncompleteError) Is(target error) bool {
	return target == ErrDocumentsIncomplete
}
