package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateDraftRules(t *testing.T) {
	valid := ExportDraft{
		ExporterID:         "exp-1",
		CoffeeType:         "Yirgacheffe Grade 1",
		QuantityKg:         19200,
		DestinationCountry: "DE",
		EstimatedValue:     98000,
	}
	if err := ValidateDraft(valid); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	invalid := valid
	invalid.ExporterID = " "
	invalid.QuantityKg = 0
	invalid.Fields = map[RecordField]string{"bogus": "x"}
	err := ValidateDraft(invalid)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) || len(verr.FailedRules) != 3 {
		t.Fatalf("expected 3 failed rules, got %v", err)
	}
}

func TestValidatePayloadRejectNeedsReasonAndCategory(t *testing.T) {
	if err := ValidatePayload(ActionReject, TransitionPayload{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for empty rejection, got %v", err)
	}
	if err := ValidatePayload(ActionReject, TransitionPayload{Reason: "moisture too high", Category: "WEATHER"}); err == nil {
		t.Fatalf("expected unknown category to fail")
	}
	if err := ValidatePayload(ActionReject, TransitionPayload{Reason: "moisture too high", Category: CategoryQuality}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidatePayload(ActionApproveLicense, TransitionPayload{}); err != nil {
		t.Fatalf("forward actions need no reason, got %v", err)
	}
}

func TestUnknownFieldRulesAreSorted(t *testing.T) {
	fields := map[RecordField]string{"zeta": "1", "alpha": "2", "mid": "3", FieldBankReference: "B-1"}
	want := []string{"field.alpha_unknown", "field.mid_unknown", "field.zeta_unknown"}
	for i := 0; i < 20; i++ {
		err := ValidatePayload(ActionVerifyDocuments, TransitionPayload{Fields: fields})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected *ValidationError, got %v", err)
		}
		if strings.Join(verr.FailedRules, ",") != strings.Join(want, ",") {
			t.Fatalf("rules out of order: %v", verr.FailedRules)
		}
	}
}

func TestStepForCoversEveryStatus(t *testing.T) {
	seen := make(map[ConsortiumStep]bool)
	for _, s := range AllStatuses {
		seen[StepFor(s)] = true
	}
	for _, step := range AllSteps {
		if !seen[step] {
			t.Fatalf("step %s has no status", step)
		}
	}
	if StepFor(StatusECXVerified) != StepLicenseValidation {
		t.Fatalf("unexpected step for ECX_VERIFIED: %s", StepFor(StatusECXVerified))
	}
}

func TestOwnerOnlyForNonTerminal(t *testing.T) {
	for _, s := range AllStatuses {
		_, owned := Owner(s)
		if owned == s.Terminal() {
			t.Fatalf("status %s: owned=%v terminal=%v", s, owned, s.Terminal())
		}
	}
}

func TestRecordFieldRoundTrip(t *testing.T) {
	var rec ExportRecord
	for _, f := range AllRecordFields {
		if !rec.SetField(f, "  v-"+string(f)+" ") {
			t.Fatalf("field %s not assignable", f)
		}
		if rec.Field(f) != "v-"+string(f) {
			t.Fatalf("field %s value %q", f, rec.Field(f))
		}
	}
	if rec.SetField("nope", "x") {
		t.Fatalf("unknown field accepted")
	}
}
