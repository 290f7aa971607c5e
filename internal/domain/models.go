package domain

import (
	"strings"
	"time"
)

// RecordField names an assignable evidentiary field of an ExportRecord.
type RecordField string

const (
	FieldExportLicenseNumber         RecordField = "exportLicenseNumber"
	FieldCompetenceCertificateNumber RecordField = "competenceCertificateNumber"
	FieldECXLotNumber                RecordField = "ecxLotNumber"
	FieldWarehouseReceiptNumber      RecordField = "warehouseReceiptNumber"
	FieldQualityCertificateNumber    RecordField = "qualityCertificateNumber"
	FieldQualityGrade                RecordField = "qualityGrade"
	FieldSalesContractNumber         RecordField = "salesContractNumber"
	FieldExportPermitNumber          RecordField = "exportPermitNumber"
	FieldOriginCertificateNumber     RecordField = "originCertificateNumber"
	FieldCommercialInvoiceNumber     RecordField = "commercialInvoiceNumber"
	FieldCustomsDeclarationNumber    RecordField = "customsDeclarationNumber"
	FieldBankReference               RecordField = "bankReference"
	FieldFXAllocationID              RecordField = "fxAllocationId"
	FieldShipmentID                  RecordField = "shipmentId"
	FieldVesselName                  RecordField = "vesselName"
	FieldBillOfLadingNumber          RecordField = "billOfLadingNumber"
	FieldPaymentReference            RecordField = "paymentReference"
)

var AllRecordFields = []RecordField{
	FieldExportLicenseNumber,
	FieldCompetenceCertificateNumber,
	FieldECXLotNumber,
	FieldWarehouseReceiptNumber,
	FieldQualityCertificateNumber,
	FieldQualityGrade,
	FieldSalesContractNumber,
	FieldExportPermitNumber,
	FieldOriginCertificateNumber,
	FieldCommercialInvoiceNumber,
	FieldCustomsDeclarationNumber,
	FieldBankReference,
	FieldFXAllocationID,
	FieldShipmentID,
	FieldVesselName,
	FieldBillOfLadingNumber,
	FieldPaymentReference,
}

type StatusHistoryEntry struct {
	Status    Status            `json:"status"`
	Action    Action            `json:"action,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Actor     Role              `json:"actor"`
	Notes     string            `json:"notes,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	Category  RejectionCategory `json:"category,omitempty"`
	Fields    []RecordField     `json:"fields,omitempty"`
}

// ExportRecord is the unit of work shared by every organization.
type ExportRecord struct {
	ID                 string         `json:"id"`
	ExporterID         string         `json:"exporterId"`
	CoffeeType         string         `json:"coffeeType"`
	QuantityKg         float64        `json:"quantityKg"`
	DestinationCountry string         `json:"destinationCountry"`
	EstimatedValue     float64        `json:"estimatedValue"`
	Status             Status         `json:"status"`
	ConsortiumStep     ConsortiumStep `json:"consortiumStep"`

	ExportLicenseNumber         string `json:"exportLicenseNumber,omitempty"`
	CompetenceCertificateNumber string `json:"competenceCertificateNumber,omitempty"`
	ECXLotNumber                string `json:"ecxLotNumber,omitempty"`
	WarehouseReceiptNumber      string `json:"warehouseReceiptNumber,omitempty"`
	QualityCertificateNumber    string `json:"qualityCertificateNumber,omitempty"`
	QualityGrade                string `json:"qualityGrade,omitempty"`
	SalesContractNumber         string `json:"salesContractNumber,omitempty"`
	ExportPermitNumber          string `json:"exportPermitNumber,omitempty"`
	OriginCertificateNumber     string `json:"originCertificateNumber,omitempty"`
	CommercialInvoiceNumber     string `json:"commercialInvoiceNumber,omitempty"`
	CustomsDeclarationNumber    string `json:"customsDeclarationNumber,omitempty"`
	BankReference               string `json:"bankReference,omitempty"`
	FXAllocationID              string `json:"fxAllocationId,omitempty"`
	ShipmentID                  string `json:"shipmentId,omitempty"`
	VesselName                  string `json:"vesselName,omitempty"`
	BillOfLadingNumber          string `json:"billOfLadingNumber,omitempty"`
	PaymentReference            string `json:"paymentReference,omitempty"`

	StatusHistory  []StatusHistoryEntry `json:"statusHistory"`
	BlockchainTxID string               `json:"blockchainTxId,omitempty"`
	CreatedAt      time.Time            `json:"createdAt"`
	UpdatedAt      time.Time            `json:"updatedAt"`
}

func (r *ExportRecord) fieldPtr(f RecordField) *string {
	switch f {
	case FieldExportLicenseNumber:
		return &r.ExportLicenseNumber
	case FieldCompetenceCertificateNumber:
		return &r.CompetenceCertificateNumber
	case FieldECXLotNumber:
		return &r.ECXLotNumber
	case FieldWarehouseReceiptNumber:
		return &r.WarehouseReceiptNumber
	case FieldQualityCertificateNumber:
		return &r.QualityCertificateNumber
	case FieldQualityGrade:
		return &r.QualityGrade
	case FieldSalesContractNumber:
		return &r.SalesContractNumber
	case FieldExportPermitNumber:
		return &r.ExportPermitNumber
	case FieldOriginCertificateNumber:
		return &r.OriginCertificateNumber
	case FieldCommercialInvoiceNumber:
		return &r.CommercialInvoiceNumber
	case FieldCustomsDeclarationNumber:
		return &r.CustomsDeclarationNumber
	case FieldBankReference:
		return &r.BankReference
	case FieldFXAllocationID:
		return &r.FXAllocationID
	case FieldShipmentID:
		return &r.ShipmentID
	case FieldVesselName:
		return &r.VesselName
	case FieldBillOfLadingNumber:
		return &r.BillOfLadingNumber
	case FieldPaymentReference:
		return &r.PaymentReference
	}
	return nil
}

// Field returns the trimmed value of f, or "" for unknown fields.
func (r ExportRecord) Field(f RecordField) string {
	if p := r.fieldPtr(f); p != nil {
		return strings.TrimSpace(*p)
	}
	return ""
}

// SetField assigns v to f. It reports false for unknown fields.
func (r *ExportRecord) SetField(f RecordField, v string) bool {
	p := r.fieldPtr(f)
	if p == nil {
		return false
	}
	*p = strings.TrimSpace(v)
	return true
}

// Clone returns a deep copy safe to mutate.
func (r ExportRecord) Clone() ExportRecord {
	out := r
	out.StatusHistory = make([]StatusHistoryEntry, len(r.StatusHistory))
	for i, h := range r.StatusHistory {
		h.Fields = append([]RecordField(nil), h.Fields...)
		out.StatusHistory[i] = h
	}
	return out
}

// LastEntryFor returns the most recent history entry that moved the record to status s.
func (r ExportRecord) LastEntryFor(s Status) (StatusHistoryEntry, bool) {
	for i := len(r.StatusHistory) - 1; i >= 0; i-- {
		if r.StatusHistory[i].Status == s {
			return r.StatusHistory[i], true
		}
	}
	return StatusHistoryEntry{}, false
}

// ExportDraft is the exporter-supplied shape of a new record.
type ExportDraft struct {
	ExporterID         string                 `json:"exporterId"`
	CoffeeType         string                 `json:"coffeeType"`
	QuantityKg         float64                `json:"quantityKg"`
	DestinationCountry string                 `json:"destinationCountry"`
	EstimatedValue     float64                `json:"estimatedValue"`
	Fields             map[RecordField]string `json:"fields,omitempty"`
}

type RejectionCategory string

const (
	CategoryDocumentation RejectionCategory = "DOCUMENTATION"
	CategoryQuality       RejectionCategory = "QUALITY"
	CategoryCompliance    RejectionCategory = "COMPLIANCE"
	CategoryFinancial     RejectionCategory = "FINANCIAL"
	CategoryLogistics     RejectionCategory = "LOGISTICS"
	CategoryOther         RejectionCategory = "OTHER"
)

func (c RejectionCategory) Valid() bool {
	switch c {
	case CategoryDocumentation, CategoryQuality, CategoryCompliance,
		CategoryFinancial, CategoryLogistics, CategoryOther:
		return true
	}
	return false
}

// TransitionPayload carries the evidence and free text an actor submits with an action.
type TransitionPayload struct {
	Fields   map[RecordField]string `json:"fields,omitempty"`
	Notes    string                 `json:"notes,omitempty"`
	Reason   string                 `json:"reason,omitempty"`
	Category RejectionCategory      `json:"category,omitempty"`
}
