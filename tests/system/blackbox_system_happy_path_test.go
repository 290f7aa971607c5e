//go:build system

package system_test

import (
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	_ "github.com/lib/pq"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"export-consortium/internal/domain"
	"export-consortium/internal/forwarding"
	"export-consortium/internal/notify"
)

var _ = Describe("Consortium blackbox happy path", Ordered, func() {
	var cfg systemTestConfig

	BeforeAll(func() {
		if os.Getenv("RUN_BLACKBOX_SYSTEM_TEST") != "1" {
			Skip("set RUN_BLACKBOX_SYSTEM_TEST=1 to run real blackbox system test")
		}

		cfg = loadSystemTestConfig()

		repoRoot, err := findRepoRoot()
		Expect(err).ToNot(HaveOccurred())

		By("verifying required docker compose services (including worker) are already running")
		Expect(requireComposeServicesRunning(repoRoot, cfg.RequiredComposeServices)).To(Succeed())

		By("failing fast if infrastructure is unreachable")
		Expect(waitForPostgres(cfg.PostgresDSN, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForTemporal(cfg.TemporalAddress, cfg.TemporalNamespace, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(cfg.MinioReadyURL, 200, cfg.PreflightTimeout)).To(Succeed())
		for _, role := range domain.AllRoles {
			base := cfg.urlFor(role)
			Expect(waitForHTTPStatus(base+cfg.APIHealthPath, 200, cfg.PreflightTimeout)).To(Succeed())
			Expect(waitForHTTPStatus(base+cfg.APIReadyPath, 200, cfg.PreflightTimeout)).To(Succeed(), "api for %s is not ready", role)
		}
		Expect(waitForWorkerPoller(cfg.TemporalAddress, cfg.TemporalNamespace, cfg.TemporalTaskQueue, cfg.WorkerPollerTimeout)).To(Succeed())
	})

	It("walks an export through every organization and notifies the exporter", func() {
		exporterID := fmt.Sprintf("exporter-system-%d", time.Now().UnixNano())

		By("creating a draft with missing evidence and being told what is missing")
		draft, err := createDraft(cfg, domain.ExportDraft{
			ExporterID:         exporterID,
			CoffeeType:         "Guji Natural",
			QuantityKg:         19200,
			DestinationCountry: "JP",
			EstimatedValue:     112000,
			Fields: map[domain.RecordField]string{
				domain.FieldExportLicenseNumber:         "EL-SYS-1",
				domain.FieldCompetenceCertificateNumber: "CC-SYS-1",
				domain.FieldECXLotNumber:                "LOT-SYS-1",
				domain.FieldWarehouseReceiptNumber:      "WR-SYS-1",
			},
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(draft.Status).To(Equal(domain.StatusDraft))

		blocked, status, err := performAction(cfg, draft.ID, domain.RoleExporter, domain.ActionSubmit, nil)
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(http.StatusUnprocessableEntity))
		Expect(blocked.Success).To(BeFalse())
		Expect(blocked.MissingDocuments).To(ConsistOf("salesContract"))

		By("refusing an action from an organization that does not own the stage")
		_, status, err = performAction(cfg, draft.ID, domain.RoleECX, domain.ActionSubmit, nil)
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(http.StatusForbidden))

		steps := []struct {
			role   domain.Role
			action domain.Action
			fields map[domain.RecordField]string
			want   domain.Status
		}{
			{domain.RoleExporter, domain.ActionSubmit, map[domain.RecordField]string{domain.FieldSalesContractNumber: "SC-SYS-1", domain.FieldCommercialInvoiceNumber: "INV-SYS-1"}, domain.StatusSubmitted},
			{domain.RoleECX, domain.ActionStartReview, nil, domain.StatusUnderReview},
			{domain.RoleECX, domain.ActionVerifyLot, map[domain.RecordField]string{domain.FieldQualityGrade: "G1"}, domain.StatusECXVerified},
			{domain.RoleECTA, domain.ActionApproveLicense, nil, domain.StatusECTALicenseApproved},
			{domain.RoleCommercialBank, domain.ActionVerifyDocuments, map[domain.RecordField]string{domain.FieldBankReference: "BANK-SYS-1"}, domain.StatusBankDocumentVerified},
			{domain.RoleNBE, domain.ActionApproveFX, map[domain.RecordField]string{domain.FieldFXAllocationID: "FX-SYS-1"}, domain.StatusFXApproved},
			{domain.RoleECTA, domain.ActionCertifyQuality, map[domain.RecordField]string{domain.FieldQualityCertificateNumber: "QC-SYS-1"}, domain.StatusECTAQualityApproved},
			{domain.RoleECTA, domain.ActionApproveContract, map[domain.RecordField]string{domain.FieldExportPermitNumber: "EP-SYS-1", domain.FieldOriginCertificateNumber: "CO-SYS-1"}, domain.StatusECTAContractApproved},
			{domain.RoleShippingLine, domain.ActionScheduleShipment, map[domain.RecordField]string{domain.FieldShipmentID: "SHP-SYS-1", domain.FieldVesselName: "MV Abay"}, domain.StatusShipmentScheduled},
			{domain.RoleCustoms, domain.ActionClearCustoms, map[domain.RecordField]string{domain.FieldCustomsDeclarationNumber: "CD-SYS-1"}, domain.StatusCustomsCleared},
			{domain.RoleShippingLine, domain.ActionConfirmShipment, map[domain.RecordField]string{domain.FieldBillOfLadingNumber: "BOL-SYS-1"}, domain.StatusShipped},
			{domain.RoleCommercialBank, domain.ActionConfirmPayment, map[domain.RecordField]string{domain.FieldPaymentReference: "PAY-SYS-1"}, domain.StatusPaymentReceived},
			{domain.RoleNBE, domain.ActionComplete, nil, domain.StatusCompleted},
		}

		for _, step := range steps {
			By(string(step.role) + " performs " + string(step.action))
			res, status, err := performAction(cfg, draft.ID, step.role, step.action, step.fields)
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK), "%s %s: %s", step.role, step.action, res.Error)
			Expect(res.Success).To(BeTrue())
			Expect(res.NewStatus).To(Equal(step.want))
			Expect(res.TxID).ToNot(BeEmpty(), "every forward transition is written to the ledger")
		}

		By("reading the final record from another organization")
		rec, err := getExport(cfg, domain.RoleCustoms, draft.ID)
		Expect(err).ToNot(HaveOccurred())
		Expect(rec.Status).To(Equal(domain.StatusCompleted))
		Expect(rec.ConsortiumStep).To(Equal(domain.StepFor(domain.StatusCompleted)))
		Expect(rec.StatusHistory).To(HaveLen(len(steps) + 1))

		By("checking the shared projection in Postgres")
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		Expect(err).ToNot(HaveOccurred())
		defer db.Close()
		stored, err := fetchStoredStatus(db, draft.ID)
		Expect(err).ToNot(HaveOccurred())
		Expect(stored).To(Equal(string(domain.StatusCompleted)))

		By("waiting for the exporter's completion notification")
		Eventually(func() []notify.Type {
			items, err := listNotifications(cfg, exporterID)
			Expect(err).ToNot(HaveOccurred())
			types := make([]notify.Type, 0, len(items))
			for _, n := range items {
				if n.ExportID == draft.ID {
					types = append(types, n.Type)
				}
			}
			return types
		}, cfg.NotificationTimeout, cfg.PollInterval).Should(ContainElements(notify.TypeActionRequired, notify.TypeCompleted))

		By("waiting for the forwarded applications to reach ECTA and NBE intake")
		Eventually(func() []string {
			return intakeKinds(cfg, domain.RoleECTA, draft.ID)
		}, cfg.DeliveryTimeout, cfg.PollInterval).Should(ContainElement(string(forwarding.KindLicenseApplication)))
		Eventually(func() []string {
			return intakeKinds(cfg, domain.RoleNBE, draft.ID)
		}, cfg.DeliveryTimeout, cfg.PollInterval).Should(ContainElement(string(forwarding.KindFXApplication)))
	})
})

func intakeKinds(cfg systemTestConfig, role domain.Role, exportID string) []string {
	items, err := listIntake(cfg, role)
	Expect(err).ToNot(HaveOccurred())
	var kinds []string
	for _, it := range items {
		if it.ExportID == exportID {
			kinds = append(kinds, it.Kind)
		}
	}
	return kinds
}
