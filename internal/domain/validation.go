package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrValidation marks a local input problem. Validation errors are never retried.
var ErrValidation = errors.New("validation failed")

type ValidationError struct {
	FailedRules []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.FailedRules, ", "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func ValidateDraft(d ExportDraft) error {
	failed := make([]string, 0)

	if strings.TrimSpace(d.ExporterID) == "" {
		failed = append(failed, "draft.exporter_id_required")
	}
	if strings.TrimSpace(d.CoffeeType) == "" {
		failed = append(failed, "draft.coffee_type_required")
	}
	if d.QuantityKg <= 0 {
		failed = append(failed, "draft.quantity_gt_zero")
	}
	if strings.TrimSpace(d.DestinationCountry) == "" {
		failed = append(failed, "draft.destination_required")
	}
	if d.EstimatedValue < 0 {
		failed = append(failed, "draft.value_non_negative")
	}
	failed = append(failed, unknownFields(d.Fields)...)

	return result(failed)
}

// ValidatePayload checks the action-independent shape of a payload and, for
// rejections, the mandatory reason and category.
func ValidatePayload(action Action, p TransitionPayload) error {
	failed := unknownFields(p.Fields)

	if action == ActionReject {
		if strings.TrimSpace(p.Reason) == "" {
			failed = append(failed, "reject.reason_required")
		}
		if p.Category == "" {
			failed = append(failed, "reject.category_required")
		} else if !p.Category.Valid() {
			failed = append(failed, "reject.category_unknown")
		}
	}

	return result(failed)
}

func unknownFields(fields map[RecordField]string) []string {
	failed := make([]string, 0)
	var blank ExportRecord
	for f := range fields {
		if blank.fieldPtr(f) == nil {
			failed = append(failed, fmt.Sprintf("field.%s_unknown", f))
		}
	}
	sort.Strings(failed)
	return failed
}

func result(failed []string) error {
	if len(failed) == 0 {
		return nil
	}
	return &ValidationError{FailedRules: failed}
}
