package workflow

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"export-consortium/internal/docgate"
	"export-consortium/internal/domain"
	"export-consortium/internal/events"
	"export-consortium/internal/forwarding"
	"export-consortium/internal/notify"
	"export-consortium/internal/storage"
)

var _ = Describe("Export workflow across the consortium", func() {
	var (
		ctx     context.Context
		repo    *storage.MemoryRepository[domain.ExportRecord]
		ledgerc *fakeLedger
		bus     *events.Bus
		hub     *notify.Hub
		engine  *Engine
	)

	// drain hands everything published so far to the hub.
	drain := func() {
		bus.Close()
		Expect(bus.Run(ctx, hub.Handle)).To(Succeed())
	}

	BeforeEach(func() {
		ctx = context.Background()
		repo = storage.NewMemoryRepository[domain.ExportRecord]()
		ledgerc = &fakeLedger{}
		bus = events.NewBus(64)
		hub = notify.NewHub(notify.MemoryStores())
		engine = NewEngine(repo, ledgerc, bus, WithClock(func() time.Time { return fixedNow }))
	})

	It("blocks a bare draft at submit and lists the five mandatory documents", func() {
		By("creating a draft with no documents")
		draft, err := engine.CreateDraft(ctx, domain.ExportDraft{
			ExporterID: "exporter-1", CoffeeType: "Limu", QuantityKg: 3000, DestinationCountry: "SA",
		})
		Expect(err).ToNot(HaveOccurred())

		By("submitting as the exporter")
		res, err := engine.AttemptTransition(ctx, Request{RecordID: draft.ID, ActorRole: domain.RoleExporter, Action: domain.ActionSubmit})
		Expect(errors.Is(err, ErrDocumentsIncomplete)).To(BeTrue())
		Expect(res.MissingDocuments).To(ConsistOf(
			docgate.DocExportLicense, docgate.DocCompetenceCertificate, docgate.DocLotNumber,
			docgate.DocWarehouseReceipt, docgate.DocSalesContract,
		))

		stored, err := engine.Get(ctx, draft.ID)
		Expect(err).ToNot(HaveOccurred())
		Expect(stored.Status).To(Equal(domain.StatusDraft))
		Expect(ledgerc.Calls()).To(BeEmpty())

		By("telling the exporter what to upload")
		drain()
		items, err := hub.List(ctx, "exporter-1", 0)
		Expect(err).ToNot(HaveOccurred())
		Expect(items).To(HaveLen(1))
		Expect(items[0].Type).To(Equal(notify.TypeActionRequired))
	})

	It("approves the license at ECX_VERIFIED and notifies the exporter once", func() {
		rec := seed(repo, "exp-42", domain.StatusECXVerified)

		res, err := engine.AttemptTransition(ctx, Request{RecordID: rec.ID, ActorRole: domain.RoleECTA, Action: domain.ActionApproveLicense})
		Expect(err).ToNot(HaveOccurred())
		Expect(res.Success).To(BeTrue())
		Expect(res.NewStatus).To(Equal(domain.StatusECTALicenseApproved))
		Expect(res.Record.StatusHistory).To(HaveLen(len(rec.StatusHistory) + 1))
		Expect(res.Record.ConsortiumStep).To(Equal(domain.StepBankingReview))
		Expect(ledgerc.Calls()).To(HaveLen(1))

		drain()
		items, err := hub.List(ctx, "exporter-1", 0)
		Expect(err).ToNot(HaveOccurred())
		Expect(items).To(HaveLen(1))
		Expect(items[0].Type).To(Equal(notify.TypeApproved))
		Expect(items[0].ExportID).To(Equal("exp-42"))
	})

	It("dead-letters a license handoff whose intake fails three times without failing the transition", func() {
		var attempts int
		deadLetters := storage.NewMemoryRepository[forwarding.DeadLetter]()
		retrier := forwarding.NewRetrier(forwarding.DefaultPolicy(),
			forwarding.DelivererFunc(func(context.Context, forwarding.Handoff) error {
				attempts++
				return errors.New("ECTA intake: 503 service unavailable")
			}),
			forwarding.NewSink(deadLetters),
			forwarding.WithSleep(func(context.Context, time.Duration) error { return nil }),
		)
		engine = NewEngine(repo, ledgerc, bus, WithForwarder(retrier))
		seed(repo, "exp-7", domain.StatusUnderReview)

		res, err := engine.AttemptTransition(ctx, Request{RecordID: "exp-7", ActorRole: domain.RoleECX, Action: domain.ActionVerifyLot})
		Expect(err).ToNot(HaveOccurred())
		Expect(res.NewStatus).To(Equal(domain.StatusECXVerified))

		retrier.Wait()
		Expect(attempts).To(Equal(3))
		items, err := deadLetters.List(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(items).To(HaveLen(1))
		Expect(items[0].Attempts).To(Equal(3))
		Expect(items[0].LastError).To(Equal("ECTA intake: 503 service unavailable"))
		Expect(items[0].Handoff.ExportID).To(Equal("exp-7"))
		Expect(string(items[0].Handoff.Payload)).To(ContainSubstring(`"id":"exp-7"`))
	})

	It("walks a record from draft to completion", func() {
		draft, err := engine.CreateDraft(ctx, domain.ExportDraft{
			ExporterID: "exporter-1", CoffeeType: "Harrar", QuantityKg: 12000, DestinationCountry: "US", EstimatedValue: 71000,
			Fields: map[domain.RecordField]string{
				domain.FieldExportLicenseNumber:         "LIC-1",
				domain.FieldCompetenceCertificateNumber: "CC-1",
				domain.FieldECXLotNumber:                "LOT-1",
				domain.FieldWarehouseReceiptNumber:      "WR-1",
				domain.FieldSalesContractNumber:         "SC-1",
				domain.FieldCommercialInvoiceNumber:     "INV-1",
			},
		})
		Expect(err).ToNot(HaveOccurred())

		steps := []struct {
			role   domain.Role
			action domain.Action
			fields map[domain.RecordField]string
		}{
			{domain.RoleExporter, domain.ActionSubmit, nil},
			{domain.RoleECX, domain.ActionStartReview, nil},
			{domain.RoleECX, domain.ActionVerifyLot, map[domain.RecordField]string{domain.FieldQualityGrade: "G1"}},
			{domain.RoleECTA, domain.ActionApproveLicense, nil},
			{domain.RoleCommercialBank, domain.ActionVerifyDocuments, map[domain.RecordField]string{domain.FieldBankReference: "BANK-1"}},
			{domain.RoleNBE, domain.ActionApproveFX, map[domain.RecordField]string{domain.FieldFXAllocationID: "FX-1"}},
			{domain.RoleECTA, domain.ActionCertifyQuality, map[domain.RecordField]string{domain.FieldQualityCertificateNumber: "QC-1"}},
			{domain.RoleECTA, domain.ActionApproveContract, map[domain.RecordField]string{domain.FieldExportPermitNumber: "EP-1", domain.FieldOriginCertificateNumber: "CO-1"}},
			{domain.RoleShippingLine, domain.ActionScheduleShipment, map[domain.RecordField]string{domain.FieldShipmentID: "SHP-1", domain.FieldVesselName: "MV Abay"}},
			{domain.RoleCustoms, domain.ActionClearCustoms, map[domain.RecordField]string{domain.FieldCustomsDeclarationNumber: "CD-1"}},
			{domain.RoleShippingLine, domain.ActionConfirmShipment, map[domain.RecordField]string{domain.FieldBillOfLadingNumber: "BOL-1"}},
			{domain.RoleCommercialBank, domain.ActionConfirmPayment, map[domain.RecordField]string{domain.FieldPaymentReference: "PAY-1"}},
			{domain.RoleNBE, domain.ActionComplete, nil},
		}

		previous := domain.StepDraft
		for _, s := range steps {
			res, err := engine.AttemptTransition(ctx, Request{
				RecordID: draft.ID, ActorRole: s.role, Action: s.action,
				Payload: domain.TransitionPayload{Fields: s.fields},
			})
			Expect(err).ToNot(HaveOccurred(), string(s.action))
			step := domain.StepFor(res.NewStatus)
			Expect(stepIndex(step)).To(BeNumerically(">=", stepIndex(previous)), string(s.action))
			previous = step
		}

		final, err := engine.Get(ctx, draft.ID)
		Expect(err).ToNot(HaveOccurred())
		Expect(final.Status).To(Equal(domain.StatusCompleted))
		Expect(final.ConsortiumStep).To(Equal(domain.StepCompleted))
		Expect(final.StatusHistory).To(HaveLen(len(steps) + 1))
		Expect(ledgerc.Calls()).To(HaveLen(len(steps)))

		drain()
		stats, err := hub.Stats(ctx, "exporter-1")
		Expect(err).ToNot(HaveOccurred())
		Expect(stats.Total).To(Equal(len(steps)))
		Expect(stats.ByType[notify.TypeCompleted]).To(Equal(1))
	})
})

func stepIndex(step domain.ConsortiumStep) int {
	for i, s := range domain.AllSteps {
		if s == step {
			return i
		}
	}
	return -1
}
