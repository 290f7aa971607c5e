package domain

type Status string

const (
	StatusDraft                Status = "DRAFT"
	StatusSubmitted            Status = "SUBMITTED"
	StatusUnderReview          Status = "UNDER_REVIEW"
	StatusECXVerified          Status = "ECX_VERIFIED"
	StatusECTALicenseApproved  Status = "ECTA_LICENSE_APPROVED"
	StatusBankDocumentVerified Status = "BANK_DOCUMENT_VERIFIED"
	StatusFXApproved           Status = "FX_APPROVED"
	StatusECTAQualityApproved  Status = "ECTA_QUALITY_APPROVED"
	StatusECTAContractApproved Status = "ECTA_CONTRACT_APPROVED"
	StatusShipmentScheduled    Status = "SHIPMENT_SCHEDULED"
	StatusCustomsCleared       Status = "CUSTOMS_CLEARED"
	StatusShipped              Status = "SHIPPED"
	StatusPaymentReceived      Status = "PAYMENT_RECEIVED"
	StatusCompleted            Status = "COMPLETED"
	StatusCancelled            Status = "CANCELLED"

	StatusECXRejected          Status = "ECX_REJECTED"
	StatusECTALicenseRejected  Status = "ECTA_LICENSE_REJECTED"
	StatusBankDocumentRejected Status = "BANK_DOCUMENT_REJECTED"
	StatusFXRejected           Status = "FX_REJECTED"
	StatusECTAQualityRejected  Status = "ECTA_QUALITY_REJECTED"
	StatusECTAContractRejected Status = "ECTA_CONTRACT_REJECTED"
	StatusShipmentRejected     Status = "SHIPMENT_REJECTED"
	StatusCustomsRejected      Status = "CUSTOMS_REJECTED"
	StatusRejected             Status = "REJECTED"
)

// AllStatuses lists every status in workflow order, rejections last.
var AllStatuses = []Status{
	StatusDraft,
	StatusSubmitted,
	StatusUnderReview,
	StatusECXVerified,
	StatusECTALicenseApproved,
	StatusBankDocumentVerified,
	StatusFXApproved,
	StatusECTAQualityApproved,
	StatusECTAContractApproved,
	StatusShipmentScheduled,
	StatusCustomsCleared,
	StatusShipped,
	StatusPaymentReceived,
	StatusCompleted,
	StatusCancelled,
	StatusECXRejected,
	StatusECTALicenseRejected,
	StatusBankDocumentRejected,
	StatusFXRejected,
	StatusECTAQualityRejected,
	StatusECTAContractRejected,
	StatusShipmentRejected,
	StatusCustomsRejected,
	StatusRejected,
}

func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no edge leaves s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s.Rejected()
}

func (s Status) Rejected() bool {
	switch s {
	case StatusECXRejected,
		StatusECTALicenseRejected,
		StatusBankDocumentRejected,
		StatusFXRejected,
		StatusECTAQualityRejected,
		StatusECTAContractRejected,
		StatusShipmentRejected,
		StatusCustomsRejected,
		StatusRejected:
		return true
	}
	return false
}

type Role string

const (
	RoleExporter       Role = "EXPORTER"
	RoleECX            Role = "ECX"
	RoleECTA           Role = "ECTA"
	RoleCommercialBank Role = "COMMERCIAL_BANK"
	RoleNBE            Role = "NBE"
	RoleCustoms        Role = "CUSTOMS"
	RoleShippingLine   Role = "SHIPPING_LINE"
)

var AllRoles = []Role{
	RoleExporter,
	RoleECX,
	RoleECTA,
	RoleCommercialBank,
	RoleNBE,
	RoleCustoms,
	RoleShippingLine,
}

func ParseRole(v string) (Role, bool) {
	for _, r := range AllRoles {
		if string(r) == v {
			return r, true
		}
	}
	return "", false
}

type Action string

const (
	ActionSubmit           Action = "submit"
	ActionStartReview      Action = "startReview"
	ActionVerifyLot        Action = "verifyLot"
	ActionApproveLicense   Action = "approveLicense"
	ActionVerifyDocuments  Action = "verifyDocuments"
	ActionApproveFX        Action = "approveFx"
	ActionCertifyQuality   Action = "certifyQuality"
	ActionApproveContract  Action = "approveContract"
	ActionScheduleShipment Action = "scheduleShipment"
	ActionClearCustoms     Action = "clearCustoms"
	ActionConfirmShipment  Action = "confirmShipment"
	ActionConfirmPayment   Action = "confirmPayment"
	ActionComplete         Action = "complete"
	ActionReject           Action = "reject"
	ActionCancel           Action = "cancel"
)

var AllActions = []Action{
	ActionSubmit,
	ActionStartReview,
	ActionVerifyLot,
	ActionApproveLicense,
	ActionVerifyDocuments,
	ActionApproveFX,
	ActionCertifyQuality,
	ActionApproveContract,
	ActionScheduleShipment,
	ActionClearCustoms,
	ActionConfirmShipment,
	ActionConfirmPayment,
	ActionComplete,
	ActionReject,
	ActionCancel,
}

func ParseAction(v string) (Action, bool) {
	for _, a := range AllActions {
		if string(a) == v {
			return a, true
		}
	}
	return "", false
}

// Forward reports whether a is a progressing action, i.e. one gated on documents.
func (a Action) Forward() bool {
	return a != ActionReject && a != ActionCancel
}

type ConsortiumStep string

const (
	StepDraft                ConsortiumStep = "DRAFT"
	StepLicenseValidation    ConsortiumStep = "LICENSE_VALIDATION"
	StepBankingReview        ConsortiumStep = "BANKING_REVIEW"
	StepQualityCertification ConsortiumStep = "QUALITY_CERTIFICATION"
	StepLogistics            ConsortiumStep = "LOGISTICS"
	StepCustoms              ConsortiumStep = "CUSTOMS"
	StepCompleted            ConsortiumStep = "COMPLETED"
)

var AllSteps = []ConsortiumStep{
	StepDraft,
	StepLicenseValidation,
	StepBankingReview,
	StepQualityCertification,
	StepLogistics,
	StepCustoms,
	StepCompleted,
}

// StepFor projects a detailed status onto the coarse consortium step.
func StepFor(s Status) ConsortiumStep {
	switch s {
	case StatusDraft, StatusCancelled:
		return StepDraft
	case StatusSubmitted, StatusUnderReview, StatusECXVerified,
		StatusECXRejected, StatusECTALicenseRejected:
		return StepLicenseValidation
	case StatusECTALicenseApproved, StatusBankDocumentVerified,
		StatusBankDocumentRejected, StatusFXRejected:
		return StepBankingReview
	case StatusFXApproved, StatusECTAQualityApproved,
		StatusECTAQualityRejected, StatusECTAContractRejected:
		return StepQualityCertification
	case StatusECTAContractApproved, StatusShipmentRejected:
		return StepLogistics
	case StatusShipmentScheduled, StatusCustomsCleared, StatusShipped, StatusPaymentReceived,
		StatusCustomsRejected, StatusRejected:
		return StepCustoms
	case StatusCompleted:
		return StepCompleted
	}
	return StepDraft
}

// StatusesInStep is the inverse of StepFor.
func StatusesInStep(step ConsortiumStep) []Status {
	out := make([]Status, 0)
	for _, s := range AllStatuses {
		if StepFor(s) == step {
			out = append(out, s)
		}
	}
	return out
}

// Owner returns the role whose stage currently holds mutation rights over a
// record in status s. Terminal statuses are owned by nobody.
func Owner(s Status) (Role, bool) {
	switch s {
	case StatusDraft:
		return RoleExporter, true
	case StatusSubmitted, StatusUnderReview:
		return RoleECX, true
	case StatusECXVerified, StatusFXApproved, StatusECTAQualityApproved:
		return RoleECTA, true
	case StatusECTALicenseApproved, StatusShipped:
		return RoleCommercialBank, true
	case StatusBankDocumentVerified, StatusPaymentReceived:
		return RoleNBE, true
	case StatusECTAContractApproved, StatusCustomsCleared:
		return RoleShippingLine, true
	case StatusShipmentScheduled:
		return RoleCustoms, true
	}
	return "", false
}
