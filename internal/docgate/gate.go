// Package docgate decides which evidentiary documents a stage needs before an
// export record may leave it. Every function is pure: results are derived from
// the record snapshot and static tables and are never persisted.
package docgate

import (
	"fmt"
	"strings"
	"time"

	"export-consortium/internal/domain"
)

type DocumentKey string

const (
	DocExportLicense         DocumentKey = "exportLicense"
	DocCompetenceCertificate DocumentKey = "competenceCertificate"
	DocLotNumber             DocumentKey = "lotNumber"
	DocWarehouseReceipt      DocumentKey = "warehouseReceipt"
	DocQualityCertificate    DocumentKey = "qualityCertificate"
	DocQualityGrade          DocumentKey = "qualityGrade"
	DocSalesContract         DocumentKey = "salesContract"
	DocExportPermit          DocumentKey = "exportPermit"
	DocOriginCertificate     DocumentKey = "originCertificate"
	DocCommercialInvoice     DocumentKey = "commercialInvoice"
	DocCustomsDeclaration    DocumentKey = "customsDeclaration"
	DocBankVerification      DocumentKey = "bankVerification"
	DocFXApplication         DocumentKey = "fxApplication"
	DocShipmentDocuments     DocumentKey = "shipmentDocuments"
)

// AllDocuments is the canonical slot order used by checklists.
var AllDocuments = []DocumentKey{
	DocExportLicense,
	DocCompetenceCertificate,
	DocLotNumber,
	DocWarehouseReceipt,
	DocQualityCertificate,
	DocQualityGrade,
	DocSalesContract,
	DocExportPermit,
	DocOriginCertificate,
	DocCommercialInvoice,
	DocCustomsDeclaration,
	DocBankVerification,
	DocFXApplication,
	DocShipmentDocuments,
}

type slot struct {
	fields []domain.RecordField
	// validatedBy is the status whose arrival means the document was checked.
	validatedBy domain.Status
	label       string
}

var slots = map[DocumentKey]slot{
	DocExportLicense:         {fields: []domain.RecordField{domain.FieldExportLicenseNumber}, validatedBy: domain.StatusECTALicenseApproved, label: "export license"},
	DocCompetenceCertificate: {fields: []domain.RecordField{domain.FieldCompetenceCertificateNumber}, validatedBy: domain.StatusECTALicenseApproved, label: "competence certificate"},
	DocLotNumber:             {fields: []domain.RecordField{domain.FieldECXLotNumber}, validatedBy: domain.StatusECXVerified, label: "ECX lot number"},
	DocWarehouseReceipt:      {fields: []domain.RecordField{domain.FieldWarehouseReceiptNumber}, validatedBy: domain.StatusECXVerified, label: "warehouse receipt"},
	DocQualityCertificate:    {fields: []domain.RecordField{domain.FieldQualityCertificateNumber}, validatedBy: domain.StatusECTAQualityApproved, label: "quality certificate"},
	DocQualityGrade:          {fields: []domain.RecordField{domain.FieldQualityGrade}, validatedBy: domain.StatusECTAQualityApproved, label: "quality grade"},
	DocSalesContract:         {fields: []domain.RecordField{domain.FieldSalesContractNumber}, validatedBy: domain.StatusBankDocumentVerified, label: "sales contract"},
	DocExportPermit:          {fields: []domain.RecordField{domain.FieldExportPermitNumber}, validatedBy: domain.StatusCustomsCleared, label: "export permit"},
	DocOriginCertificate:     {fields: []domain.RecordField{domain.FieldOriginCertificateNumber}, validatedBy: domain.StatusCustomsCleared, label: "certificate of origin"},
	DocCommercialInvoice:     {fields: []domain.RecordField{domain.FieldCommercialInvoiceNumber}, validatedBy: domain.StatusBankDocumentVerified, label: "commercial invoice"},
	DocCustomsDeclaration:    {fields: []domain.RecordField{domain.FieldCustomsDeclarationNumber}, validatedBy: domain.StatusCustomsCleared, label: "customs declaration"},
	DocBankVerification:      {fields: []domain.RecordField{domain.FieldBankReference}, validatedBy: domain.StatusFXApproved, label: "bank document verification"},
	DocFXApplication:         {fields: []domain.RecordField{domain.FieldFXAllocationID}, validatedBy: domain.StatusFXApproved, label: "FX application"},
	DocShipmentDocuments:     {fields: []domain.RecordField{domain.FieldShipmentID, domain.FieldVesselName, domain.FieldBillOfLadingNumber}, validatedBy: domain.StatusShipped, label: "shipment documents"},
}

// Label returns the human readable name of a document slot.
func Label(k DocumentKey) string {
	if s, ok := slots[k]; ok {
		return s.label
	}
	return string(k)
}

// FieldsFor returns the record fields backing a document slot.
func FieldsFor(k DocumentKey) []domain.RecordField {
	return append([]domain.RecordField(nil), slots[k].fields...)
}

type ChecklistEntry struct {
	Uploaded    bool        `json:"uploaded"`
	Validated   bool        `json:"validated"`
	UploadedAt  *time.Time  `json:"uploadedAt,omitempty"`
	UploadedBy  domain.Role `json:"uploadedBy,omitempty"`
	ValidatedAt *time.Time  `json:"validatedAt,omitempty"`
	ValidatedBy domain.Role `json:"validatedBy,omitempty"`
}

type Checklist map[DocumentKey]ChecklistEntry

// GetDocumentChecklist derives one entry per canonical slot from field presence.
func GetDocumentChecklist(rec domain.ExportRecord) Checklist {
	out := make(Checklist, len(AllDocuments))
	for _, key := range AllDocuments {
		s := slots[key]
		var entry ChecklistEntry
		for _, f := range s.fields {
			if rec.Field(f) != "" {
				entry.Uploaded = true
				break
			}
		}
		if entry.Uploaded {
			if h, ok := firstEntrySupplying(rec, s.fields); ok {
				at := h.Timestamp
				entry.UploadedAt = &at
				entry.UploadedBy = h.Actor
			}
			if h, ok := rec.LastEntryFor(s.validatedBy); ok {
				at := h.Timestamp
				entry.Validated = true
				entry.ValidatedAt = &at
				entry.ValidatedBy = h.Actor
			}
		}
		out[key] = entry
	}
	return out
}

func firstEntrySupplying(rec domain.ExportRecord, fields []domain.RecordField) (domain.StatusHistoryEntry, bool) {
	for _, h := range rec.StatusHistory {
		for _, supplied := range h.Fields {
			for _, f := range fields {
				if supplied == f {
					return h, true
				}
			}
		}
	}
	return domain.StatusHistoryEntry{}, false
}

// Stage keys the requirement table. It is either a domain.Status or a domain.ConsortiumStep name.
type Stage string

func StageOf(s domain.Status) Stage { return Stage(s) }

func StageOfStep(step domain.ConsortiumStep) Stage { return Stage("STEP:" + string(step)) }

type StageRequirements struct {
	Stage                Stage         `json:"stage"`
	RequiredDocuments    []DocumentKey `json:"requiredDocuments"`
	OptionalDocuments    []DocumentKey `json:"optionalDocuments"`
	MissingDocuments     []DocumentKey `json:"missingDocuments"`
	CanProceed           bool          `json:"canProceed"`
	CompletionPercentage int           `json:"completionPercentage"`
	// Unmapped is set when the stage has no table entry. The empty result is a
	// pass-through and says nothing about the record.
	Unmapped bool `json:"unmapped,omitempty"`
}

// GetStageRequirements diffs the stage's static requirement set against the checklist.
func GetStageRequirements(rec domain.ExportRecord, stage Stage) StageRequirements {
	req, ok := lookup(stage)
	out := StageRequirements{
		Stage:             stage,
		RequiredDocuments: append([]DocumentKey{}, req.required...),
		OptionalDocuments: append([]DocumentKey{}, req.optional...),
		MissingDocuments:  []DocumentKey{},
		Unmapped:          !ok,
	}

	checklist := GetDocumentChecklist(rec)
	for _, key := range req.required {
		if !checklist[key].Uploaded {
			out.MissingDocuments = append(out.MissingDocuments, key)
		}
	}

	out.CanProceed = len(out.MissingDocuments) == 0
	out.CompletionPercentage = completion(len(req.required), len(req.required)-len(out.MissingDocuments))
	return out
}

func completion(total, uploaded int) int {
	if total == 0 {
		return 100
	}
	pct := uploaded * 100 / total
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// GetNextRequiredAction renders what the actor should do next at stage.
func GetNextRequiredAction(rec domain.ExportRecord, stage Stage) string {
	req := GetStageRequirements(rec, stage)
	if len(req.MissingDocuments) > 0 {
		labels := make([]string, 0, len(req.MissingDocuments))
		for _, k := range req.MissingDocuments {
			labels = append(labels, Label(k))
		}
		return fmt.Sprintf("Upload the following documents: %s", strings.Join(labels, ", "))
	}
	if msg, ok := nextActionMessages[stage]; ok {
		return msg
	}
	return "No further action is required at this stage"
}
