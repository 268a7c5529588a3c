package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/debhub/debhub-backend/internal/enrichment"
	"github.com/debhub/debhub-backend/internal/extraction"
	"github.com/debhub/debhub-backend/internal/repos"
	"github.com/debhub/debhub-backend/internal/status"
	"github.com/debhub/debhub-backend/internal/types"
)

func newProcessService(e *testEnv, bucket *fakeBucket, ex *fakeExtractor) ProcessService {
	cascade := enrichment.NewCascade(e.log, enrichment.NewExtractedResolver())
	enricher := NewEnrichmentService(e.db, e.log, cascade, e.lineRepo)
	return NewProcessService(e.db, e.log, bucket, ex, enricher, e.batchRepo, e.docRepo, e.lineRepo, e.linkRepo)
}

func invoiceResult(lines int) *extraction.Result {
	res := &extraction.Result{
		DocType:       types.DocTypeInvoice,
		SupplierName:  "ACME GmbH",
		SupplierVATID: "DE123456789",
		Currency:      "EUR",
		TotalHT:       float64(lines) * 50,
		PagesCount:    1,
		ConfidenceAvg: 0.9,
	}
	for i := 0; i < lines; i++ {
		res.Lines = append(res.Lines, extraction.ExtractedLine{
			LineNo:      i + 1,
			Description: "Part",
			Quantity:    2,
			UnitPrice:   25,
			LineAmount:  50,
			HSCode:      "84139100",
			NetMassKg:   1.5,
		})
	}
	return res
}

func TestProcessBatchHappyPath(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	doc := &types.Document{}
	batch := e.seedBatch(t, doc)

	bucket := newFakeBucket()
	bucket.put(doc.StoragePath, []byte("%PDF-1.4 fake"))
	ex := &fakeExtractor{results: map[string]*extraction.Result{
		doc.StoragePath: invoiceResult(2),
	}}

	svc := newProcessService(e, bucket, ex)
	got, err := svc.ProcessBatch(ctx, e.rd, batch.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != status.BatchReady {
		t.Fatalf("expected batch ready, got %s", got.Status)
	}
	if got.ProcessedDocuments != 1 {
		t.Fatalf("expected 1 processed, got %d", got.ProcessedDocuments)
	}

	fresh, err := e.docRepo.GetByIDWithLines(ctx, nil, doc.ID)
	if err != nil {
		t.Fatalf("reload document: %v", err)
	}
	if fresh.Status != status.DocNeedsReview {
		t.Fatalf("expected needs_review, got %s", fresh.Status)
	}
	if fresh.SupplierName != "ACME GmbH" || fresh.TotalHT != 100 {
		t.Fatalf("header not persisted: %+v", fresh)
	}
	if fresh.ConfidenceAvg != 0.9 {
		t.Fatalf("expected confidence_avg 0.9, got %v", fresh.ConfidenceAvg)
	}
	if len(fresh.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(fresh.Lines))
	}
	line := fresh.Lines[0]
	if line.HSCode != "84139100" || line.HSCodeSource != string(enrichment.SourceAzureExtracted) {
		t.Fatalf("expected extracted hs code with azure_extracted source, got %q from %q", line.HSCode, line.HSCodeSource)
	}
	if line.CustomsValue != line.LineAmount {
		t.Fatalf("expected customs value %v with no shipping, got %v", line.LineAmount, line.CustomsValue)
	}
}

func TestProcessBatchIsolatesFailingDocument(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	good := &types.Document{}
	bad := &types.Document{Filename: "bad.pdf", StoragePath: "deb/x/bad.pdf"}
	batch := e.seedBatch(t, good, bad)

	bucket := newFakeBucket()
	bucket.put(good.StoragePath, []byte("%PDF ok"))
	bucket.put(bad.StoragePath, []byte("%PDF bad"))
	ex := &fakeExtractor{
		results: map[string]*extraction.Result{good.StoragePath: invoiceResult(1)},
		errs:    map[string]error{bad.StoragePath: errors.New("model timeout")},
	}

	svc := newProcessService(e, bucket, ex)
	got, err := svc.ProcessBatch(ctx, e.rd, batch.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != status.BatchReady {
		t.Fatalf("one failure must not sink the batch, got %s", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Fatalf("expected failure note on the batch")
	}

	freshGood, _ := e.docRepo.GetByID(ctx, nil, good.ID)
	if freshGood.Status != status.DocNeedsReview {
		t.Fatalf("sibling document affected: %s", freshGood.Status)
	}
	freshBad, _ := e.docRepo.GetByID(ctx, nil, bad.ID)
	if freshBad.Status != status.DocError {
		t.Fatalf("expected error status, got %s", freshBad.Status)
	}
	if freshBad.ErrorMessage == "" {
		t.Fatalf("expected error message on the failed document")
	}
}

func TestProcessBatchAllFailedMarksBatchError(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	doc := &types.Document{}
	batch := e.seedBatch(t, doc)

	bucket := newFakeBucket()
	bucket.put(doc.StoragePath, []byte("%PDF"))
	ex := &fakeExtractor{errs: map[string]error{doc.StoragePath: errors.New("boom")}}

	svc := newProcessService(e, bucket, ex)
	got, err := svc.ProcessBatch(ctx, e.rd, batch.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != status.BatchError {
		t.Fatalf("expected batch error when every document fails, got %s", got.Status)
	}
}

func TestProcessBatchRerunReplacesLines(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	doc := &types.Document{}
	batch := e.seedBatch(t, doc)

	bucket := newFakeBucket()
	bucket.put(doc.StoragePath, []byte("%PDF"))
	ex := &fakeExtractor{results: map[string]*extraction.Result{
		doc.StoragePath: invoiceResult(3),
	}}

	svc := newProcessService(e, bucket, ex)
	if _, err := svc.ProcessBatch(ctx, e.rd, batch.ID); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// second run extracts 2 lines instead of 3
	ex.results[doc.StoragePath] = invoiceResult(2)
	if _, err := svc.ProcessBatch(ctx, e.rd, batch.ID); err != nil {
		t.Fatalf("second run: %v", err)
	}

	lines, err := e.lineRepo.GetByDocumentID(ctx, nil, doc.ID)
	if err != nil {
		t.Fatalf("load lines: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("rerun must replace lines wholesale, got %d", len(lines))
	}
}

func TestProcessBatchRejectsForeignOrg(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	doc := &types.Document{}
	batch := e.seedBatch(t, doc)

	other := *e.rd
	other.OrgID = e.rd.UserID // any other uuid

	svc := newProcessService(e, newFakeBucket(), &fakeExtractor{})
	if _, err := svc.ProcessBatch(ctx, &other, batch.ID); err == nil {
		t.Fatalf("expected not found for foreign org")
	}
}

func TestProcessBatchCodesDocumentErrors(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	provider := &types.Document{Filename: "provider.pdf", StoragePath: "deb/x/provider.pdf"}
	garbled := &types.Document{Filename: "garbled.pdf", StoragePath: "deb/x/garbled.pdf"}
	batch := e.seedBatch(t, provider, garbled)

	bucket := newFakeBucket()
	bucket.put(provider.StoragePath, []byte("%PDF"))
	bucket.put(garbled.StoragePath, []byte("%PDF"))
	ex := &fakeExtractor{errs: map[string]error{
		provider.StoragePath: errors.New("model timeout"),
		garbled.StoragePath:  &extraction.ParseError{Reason: "not valid JSON", Raw: "oops"},
	}}

	svc := newProcessService(e, bucket, ex)
	if _, err := svc.ProcessBatch(ctx, e.rd, batch.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	freshProvider, _ := e.docRepo.GetByID(ctx, nil, provider.ID)
	if !strings.HasPrefix(freshProvider.ErrorMessage, "extraction_error:") {
		t.Fatalf("expected extraction_error code, got %q", freshProvider.ErrorMessage)
	}
	freshGarbled, _ := e.docRepo.GetByID(ctx, nil, garbled.ID)
	if !strings.HasPrefix(freshGarbled.ErrorMessage, "parse_error:") {
		t.Fatalf("expected parse_error code, got %q", freshGarbled.ErrorMessage)
	}
}

// enrichedWriteFailRepo fails the status write to enriched, as a crashed
// connection mid-pipeline would.
type enrichedWriteFailRepo struct {
	repos.DocumentRepo
}

func (r *enrichedWriteFailRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	if st, ok := fields["status"]; ok && st == status.DocEnriched {
		return fmt.Errorf("connection reset")
	}
	return r.DocumentRepo.UpdateFields(ctx, tx, id, fields)
}

func TestProcessBatchStatusWriteFailureMarksDocumentError(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	doc := &types.Document{}
	batch := e.seedBatch(t, doc)

	bucket := newFakeBucket()
	bucket.put(doc.StoragePath, []byte("%PDF"))
	ex := &fakeExtractor{results: map[string]*extraction.Result{
		doc.StoragePath: invoiceResult(1),
	}}

	cascade := enrichment.NewCascade(e.log, enrichment.NewExtractedResolver())
	enricher := NewEnrichmentService(e.db, e.log, cascade, e.lineRepo)
	docRepo := &enrichedWriteFailRepo{DocumentRepo: e.docRepo}
	svc := NewProcessService(e.db, e.log, bucket, ex, enricher, e.batchRepo, docRepo, e.lineRepo, e.linkRepo)

	got, err := svc.ProcessBatch(ctx, e.rd, batch.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != status.BatchError {
		t.Fatalf("expected batch error, got %s", got.Status)
	}

	fresh, _ := e.docRepo.GetByID(ctx, nil, doc.ID)
	if fresh.Status != status.DocError {
		t.Fatalf("document must not rest in a non-terminal status, got %s", fresh.Status)
	}
	if fresh.ErrorMessage == "" {
		t.Fatalf("expected error message on the document")
	}
}

func TestProcessBatchDetectsDocumentLinks(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	inv := &types.Document{Filename: "invoice.pdf", StoragePath: "deb/x/inv.pdf"}
	dn := &types.Document{Filename: "dn.pdf", StoragePath: "deb/x/dn.pdf"}
	batch := e.seedBatch(t, inv, dn)

	bucket := newFakeBucket()
	bucket.put(inv.StoragePath, []byte("%PDF"))
	bucket.put(dn.StoragePath, []byte("%PDF"))

	invRes := invoiceResult(1)
	invRes.DeliveryNoteNumber = "DN-42"
	dnRes := &extraction.Result{
		DocType:            types.DocTypeDeliveryNote,
		DeliveryNoteNumber: "DN-42",
		Currency:           "EUR",
	}
	ex := &fakeExtractor{results: map[string]*extraction.Result{
		inv.StoragePath: invRes,
		dn.StoragePath:  dnRes,
	}}

	svc := newProcessService(e, bucket, ex)
	if _, err := svc.ProcessBatch(ctx, e.rd, batch.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	links, err := e.linkRepo.GetByDocumentID(ctx, nil, inv.ID)
	if err != nil {
		t.Fatalf("load links: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("expected 1 auto link, got %d", len(links))
	}
	if links[0].LinkType != types.LinkTypeAutoDetected || links[0].Confidence != 0.9 {
		t.Fatalf("unexpected link: %+v", links[0])
	}
}
