package workflow

import (
	"export-consortium/internal/domain"
	"export-consortium/internal/events"
	"export-consortium/internal/forwarding"
	"export-consortium/internal/ledger"
)

type edgeKey struct {
	from   domain.Status
	action domain.Action
}

type edge struct {
	target domain.Status
	role   domain.Role
	// ledgerFunction is empty when the transition only touches the local projection.
	ledgerFunction string
	event          events.Kind
	accepts        []domain.RecordField
	handoff        *handoffRoute
}

type handoffRoute struct {
	kind   forwarding.Kind
	target domain.Role
}

var exporterEvidence = []domain.RecordField{
	domain.FieldExportLicenseNumber,
	domain.FieldCompetenceCertificateNumber,
	domain.FieldECXLotNumber,
	domain.FieldWarehouseReceiptNumber,
	domain.FieldSalesContractNumber,
	domain.FieldCommercialInvoiceNumber,
}

var shipmentEvidence = []domain.RecordField{
	domain.FieldShipmentID,
	domain.FieldVesselName,
	domain.FieldBillOfLadingNumber,
}

func forward(target domain.Status, role domain.Role, kind events.Kind, accepts ...domain.RecordField) edge {
	return edge{target: target, role: role, ledgerFunction: ledger.FnUpdateExportStatus, event: kind, accepts: accepts}
}

func buildTable() map[edgeKey]edge {
	t := map[edgeKey]edge{
		{domain.StatusDraft, domain.ActionSubmit}: {
			target:         domain.StatusSubmitted,
			role:           domain.RoleExporter,
			ledgerFunction: ledger.FnSubmitExport,
			event:          events.KindStatusChanged,
			accepts:        exporterEvidence,
		},
		{domain.StatusSubmitted, domain.ActionStartReview}: forward(domain.StatusUnderReview, domain.RoleECX, events.KindStatusChanged,
			domain.FieldECXLotNumber, domain.FieldWarehouseReceiptNumber),
		{domain.StatusECTALicenseApproved, domain.ActionVerifyDocuments}: forward(domain.StatusBankDocumentVerified, domain.RoleCommercialBank, events.KindApproved,
			domain.FieldBankReference, domain.FieldSalesContractNumber, domain.FieldCommercialInvoiceNumber),
		{domain.StatusECXVerified, domain.ActionApproveLicense}: forward(domain.StatusECTALicenseApproved, domain.RoleECTA, events.KindApproved,
			domain.FieldExportLicenseNumber, domain.FieldCompetenceCertificateNumber),
		{domain.StatusBankDocumentVerified, domain.ActionApproveFX}: forward(domain.StatusFXApproved, domain.RoleNBE, events.KindApproved,
			domain.FieldFXAllocationID),
		{domain.StatusFXApproved, domain.ActionCertifyQuality}: forward(domain.StatusECTAQualityApproved, domain.RoleECTA, events.KindApproved,
			domain.FieldQualityCertificateNumber, domain.FieldQualityGrade),
		{domain.StatusECTAQualityApproved, domain.ActionApproveContract}: forward(domain.StatusECTAContractApproved, domain.RoleECTA, events.KindApproved,
			domain.FieldExportPermitNumber, domain.FieldOriginCertificateNumber, domain.FieldSalesContractNumber),
		{domain.StatusECTAContractApproved, domain.ActionScheduleShipment}: forward(domain.StatusShipmentScheduled, domain.RoleShippingLine, events.KindApproved,
			shipmentEvidence...),
		{domain.StatusShipmentScheduled, domain.ActionClearCustoms}: forward(domain.StatusCustomsCleared, domain.RoleCustoms, events.KindApproved,
			domain.FieldCustomsDeclarationNumber, domain.FieldExportPermitNumber, domain.FieldOriginCertificateNumber),
		{domain.StatusCustomsCleared, domain.ActionConfirmShipment}: forward(domain.StatusShipped, domain.RoleShippingLine, events.KindStatusChanged,
			shipmentEvidence...),
		{domain.StatusShipped, domain.ActionConfirmPayment}: forward(domain.StatusPaymentReceived, domain.RoleCommercialBank, events.KindStatusChanged,
			domain.FieldPaymentReference, domain.FieldCommercialInvoiceNumber),
		{domain.StatusPaymentReceived, domain.ActionComplete}: forward(domain.StatusCompleted, domain.RoleNBE, events.KindApproved,
			domain.FieldFXAllocationID),
	}

	verifyLot := forward(domain.StatusECXVerified, domain.RoleECX, events.KindApproved,
		domain.FieldECXLotNumber, domain.FieldWarehouseReceiptNumber, domain.FieldQualityGrade)
	verifyLot.handoff = &handoffRoute{kind: forwarding.KindLicenseApplication, target: domain.RoleECTA}
	t[edgeKey{domain.StatusUnderReview, domain.ActionVerifyLot}] = verifyLot

	bank := t[edgeKey{domain.StatusECTALicenseApproved, domain.ActionVerifyDocuments}]
	bank.handoff = &handoffRoute{kind: forwarding.KindFXApplication, target: domain.RoleNBE}
	t[edgeKey{domain.StatusECTALicenseApproved, domain.ActionVerifyDocuments}] = bank

	rejections := map[domain.Status]domain.Status{
		domain.StatusSubmitted:            domain.StatusECXRejected,
		domain.StatusUnderReview:          domain.StatusECXRejected,
		domain.StatusECXVerified:          domain.StatusECTALicenseRejected,
		domain.StatusECTALicenseApproved:  domain.StatusBankDocumentRejected,
		domain.StatusBankDocumentVerified: domain.StatusFXRejected,
		domain.StatusFXApproved:           domain.StatusECTAQualityRejected,
		domain.StatusECTAQualityApproved:  domain.StatusECTAContractRejected,
		domain.StatusECTAContractApproved: domain.StatusShipmentRejected,
		domain.StatusShipmentScheduled:    domain.StatusCustomsRejected,
		domain.StatusCustomsCleared:       domain.StatusShipmentRejected,
		domain.StatusShipped:              domain.StatusRejected,
		domain.StatusPaymentReceived:      domain.StatusRejected,
	}
	for from, target := range rejections {
		owner, _ := domain.Owner(from)
		t[edgeKey{from, domain.ActionReject}] = edge{
			target:         target,
			role:           owner,
			ledgerFunction: ledger.FnUpdateExportStatus,
			event:          events.KindRejected,
		}
	}

	t[edgeKey{domain.StatusDraft, domain.ActionCancel}] = edge{
		target: domain.StatusCancelled,
		role:   domain.RoleExporter,
		event:  events.KindStatusChanged,
	}
	for _, from := range []domain.Status{domain.StatusSubmitted, domain.StatusUnderReview} {
		t[edgeKey{from, domain.ActionCancel}] = edge{
			target:         domain.StatusCancelled,
			role:           domain.RoleExporter,
			ledgerFunction: ledger.FnUpdateExportStatus,
			event:          events.KindStatusChanged,
		}
	}
	return t
}

var transitions = buildTable()

// Actions lists the actions that have an edge out of status s.
func Actions(s domain.Status) []domain.Action {
	out := make([]domain.Action, 0, 3)
	for _, a := range domain.AllActions {
		if _, ok := transitions[edgeKey{s, a}]; ok {
			out = append(out, a)
		}
	}
	return out
}

func (e edge) accepted(f domain.RecordField) bool {
	for _, a := range e.accepts {
		if a == f {
			return true
		}
	}
	return false
}
