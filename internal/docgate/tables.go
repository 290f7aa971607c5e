package docgate

import "export-consortium/internal/domain"

type requirement struct {
	required []DocumentKey
	optional []DocumentKey
}

// statusRequirements lists what must be on file to leave each status by its forward edge.
var statusRequirements = map[domain.Status]requirement{
	domain.StatusDraft: {
		required: []DocumentKey{DocExportLicense, DocCompetenceCertificate, DocLotNumber, DocWarehouseReceipt, DocSalesContract},
		optional: []DocumentKey{DocCommercialInvoice},
	},
	domain.StatusSubmitted: {
		required: []DocumentKey{DocExportLicense, DocLotNumber},
	},
	domain.StatusUnderReview: {
		required: []DocumentKey{DocLotNumber, DocWarehouseReceipt},
		optional: []DocumentKey{DocQualityGrade},
	},
	domain.StatusECXVerified: {
		required: []DocumentKey{DocExportLicense, DocCompetenceCertificate},
	},
	domain.StatusECTALicenseApproved: {
		required: []DocumentKey{DocSalesContract, DocCommercialInvoice, DocBankVerification},
	},
	domain.StatusBankDocumentVerified: {
		required: []DocumentKey{DocBankVerification, DocFXApplication},
	},
	domain.StatusFXApproved: {
		required: []DocumentKey{DocQualityCertificate, DocQualityGrade},
	},
	domain.StatusECTAQualityApproved: {
		required: []DocumentKey{DocExportPermit, DocOriginCertificate},
	},
	domain.StatusECTAContractApproved: {
		required: []DocumentKey{DocShipmentDocuments},
	},
	domain.StatusShipmentScheduled: {
		required: []DocumentKey{DocCustomsDeclaration, DocExportPermit, DocOriginCertificate, DocCommercialInvoice},
	},
	domain.StatusCustomsCleared: {
		required: []DocumentKey{DocShipmentDocuments},
	},
	domain.StatusShipped: {
		optional: []DocumentKey{DocCommercialInvoice},
	},
	domain.StatusPaymentReceived: {
		required: []DocumentKey{DocFXApplication},
	},
}

var nextActionMessages = map[Stage]string{
	StageOf(domain.StatusDraft):                "Submit the export request for ECX lot verification",
	StageOf(domain.StatusSubmitted):            "Awaiting ECX to open the review",
	StageOf(domain.StatusUnderReview):          "ECX is verifying the lot and warehouse receipt",
	StageOf(domain.StatusECXVerified):          "Awaiting ECTA export license approval",
	StageOf(domain.StatusECTALicenseApproved):  "Awaiting commercial bank document verification",
	StageOf(domain.StatusBankDocumentVerified): "Awaiting NBE foreign exchange approval",
	StageOf(domain.StatusFXApproved):           "Awaiting ECTA quality certification",
	StageOf(domain.StatusECTAQualityApproved):  "Awaiting ECTA sales contract approval and certificate of origin",
	StageOf(domain.StatusECTAContractApproved): "Awaiting shipping line booking",
	StageOf(domain.StatusShipmentScheduled):    "Awaiting customs clearance",
	StageOf(domain.StatusCustomsCleared):       "Awaiting shipping line confirmation of departure",
	StageOf(domain.StatusShipped):              "Awaiting payment confirmation from the commercial bank",
	StageOf(domain.StatusPaymentReceived):      "Awaiting NBE confirmation of FX repatriation",
	StageOf(domain.StatusCompleted):            "Export completed",
	StageOf(domain.StatusCancelled):            "Export cancelled by the exporter",

	StageOfStep(domain.StepDraft):                "Prepare and submit the export request",
	StageOfStep(domain.StepLicenseValidation):    "Lot verification and license validation in progress",
	StageOfStep(domain.StepBankingReview):        "Banking and foreign exchange review in progress",
	StageOfStep(domain.StepQualityCertification): "Quality certification in progress",
	StageOfStep(domain.StepLogistics):            "Shipment booking in progress",
	StageOfStep(domain.StepCustoms):              "Customs clearance and settlement in progress",
	StageOfStep(domain.StepCompleted):            "Export completed",
}

func lookup(stage Stage) (requirement, bool) {
	if req, ok := statusRequirements[domain.Status(stage)]; ok {
		return req, true
	}
	for _, step := range domain.AllSteps {
		if StageOfStep(step) == stage {
			return stepRequirement(step), true
		}
	}
	return requirement{}, false
}

// stepRequirement unions the sets of every status collapsed into step, keeping
// canonical slot order. A document required by any status is not also optional.
func stepRequirement(step domain.ConsortiumStep) requirement {
	required := make(map[DocumentKey]bool)
	optional := make(map[DocumentKey]bool)
	for _, s := range domain.StatusesInStep(step) {
		req := statusRequirements[s]
		for _, k := range req.required {
			required[k] = true
		}
		for _, k := range req.optional {
			optional[k] = true
		}
	}

	var out requirement
	for _, k := range AllDocuments {
		switch {
		case required[k]:
			out.required = append(out.required, k)
		case optional[k]:
			out.optional = append(out.optional, k)
		}
	}
	return out
}
