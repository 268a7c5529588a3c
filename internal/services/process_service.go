package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/debhub/debhub-backend/internal/apierr"
	"github.com/debhub/debhub-backend/internal/control"
	"github.com/debhub/debhub-backend/internal/enrichment"
	"github.com/debhub/debhub-backend/internal/extraction"
	"github.com/debhub/debhub-backend/internal/logger"
	"github.com/debhub/debhub-backend/internal/platform/gcp"
	"github.com/debhub/debhub-backend/internal/repos"
	"github.com/debhub/debhub-backend/internal/requestdata"
	"github.com/debhub/debhub-backend/internal/status"
	"github.com/debhub/debhub-backend/internal/types"
)

// Extractor is the slice of the extraction orchestrator the pipeline needs.
type Extractor interface {
	Extract(ctx context.Context, in extraction.Input) (*extraction.Result, error)
}

type ProcessService interface {
	// ProcessBatch runs extraction, persistence, enrichment and controls for
	// every document in the batch, sequentially. One document failing marks
	// that document error and moves on; the batch still finishes.
	ProcessBatch(ctx context.Context, rd *requestdata.RequestData, batchID uuid.UUID) (*types.Batch, error)
}

type processService struct {
	db        *gorm.DB
	log       *logger.Logger
	bucket    gcp.BucketService
	extractor Extractor
	enricher  EnrichmentService

	batchRepo repos.BatchRepo
	docRepo   repos.DocumentRepo
	lineRepo  repos.LineRepo
	linkRepo  repos.DocumentLinkRepo
}

func NewProcessService(
	db *gorm.DB,
	baseLog *logger.Logger,
	bucket gcp.BucketService,
	extractor Extractor,
	enricher EnrichmentService,
	batchRepo repos.BatchRepo,
	docRepo repos.DocumentRepo,
	lineRepo repos.LineRepo,
	linkRepo repos.DocumentLinkRepo,
) ProcessService {
	return &processService{
		db:        db,
		log:       baseLog.With("service", "ProcessService"),
		bucket:    bucket,
		extractor: extractor,
		enricher:  enricher,
		batchRepo: batchRepo,
		docRepo:   docRepo,
		lineRepo:  lineRepo,
		linkRepo:  linkRepo,
	}
}

func (s *processService) ProcessBatch(ctx context.Context, rd *requestdata.RequestData, batchID uuid.UUID) (*types.Batch, error) {
	batch, err := s.batchRepo.GetByIDWithDocuments(ctx, nil, batchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("batch")
		}
		return nil, apierr.Persistence(err)
	}
	if batch.OrgID != rd.OrgID {
		return nil, apierr.NotFound("batch")
	}

	next, err := batch.Status.Transition(status.BatchProcessing)
	if err != nil {
		return nil, apierr.BadInput(err)
	}
	err = s.batchRepo.UpdateFields(ctx, nil, batch.ID, map[string]interface{}{
		"status":              next,
		"error_message":       "",
		"processed_documents": 0,
		"total_documents":     len(batch.Documents),
	})
	if err != nil {
		return nil, apierr.Persistence(err)
	}

	processed := 0
	failed := 0
	for _, doc := range batch.Documents {
		// approved documents are never silently reprocessed
		if !doc.Status.CanTransition(status.DocProcessing) {
			s.log.Info("Skipping document in resting status",
				"document_id", doc.ID,
				"status", string(doc.Status),
			)
			continue
		}
		if err := s.processDocument(ctx, doc); err != nil {
			failed++
			s.log.Error("Document processing failed",
				"batch_id", batch.ID,
				"document_id", doc.ID,
				"error", err,
			)
			continue
		}
		processed++
		if err := s.batchRepo.UpdateFields(ctx, nil, batch.ID, map[string]interface{}{
			"processed_documents": processed,
		}); err != nil {
			s.log.Warn("Failed to bump processed counter", "batch_id", batch.ID, "error", err)
		}
	}

	s.detectLinks(ctx, batch)

	final := map[string]interface{}{"status": status.BatchReady}
	if failed > 0 && processed == 0 {
		final["status"] = status.BatchError
		final["error_message"] = fmt.Sprintf("all %d documents failed", failed)
	} else if failed > 0 {
		final["error_message"] = fmt.Sprintf("%d of %d documents failed", failed, len(batch.Documents))
	}
	if err := s.batchRepo.UpdateFields(ctx, nil, batch.ID, final); err != nil {
		return nil, apierr.Persistence(err)
	}

	s.log.Info("Batch processed",
		"batch_id", batch.ID,
		"processed", processed,
		"failed", failed,
	)
	return s.batchRepo.GetByIDWithDocuments(ctx, nil, batch.ID)
}

func (s *processService) processDocument(ctx context.Context, doc *types.Document) error {
	next, err := doc.Status.Transition(status.DocProcessing)
	if err != nil {
		return err
	}
	err = s.docRepo.UpdateFields(ctx, nil, doc.ID, map[string]interface{}{
		"status":        next,
		"error_message": "",
	})
	if err != nil {
		return err
	}

	data, err := s.bucket.DownloadFile(ctx, doc.StoragePath)
	if err != nil {
		return s.markDocError(ctx, doc.ID, fmt.Errorf("download document: %w", err))
	}

	res, err := s.extractor.Extract(ctx, extraction.Input{
		OrgID:       doc.OrgID,
		DocumentID:  doc.ID,
		Filename:    doc.Filename,
		MimeType:    "application/pdf",
		Data:        data,
		StoragePath: doc.StoragePath,
	})
	if err != nil {
		var perr *extraction.ParseError
		if errors.As(err, &perr) {
			return s.markDocError(ctx, doc.ID, apierr.Parse(err))
		}
		return s.markDocError(ctx, doc.ID, apierr.Extraction(err))
	}

	if err := s.applyResult(ctx, doc, res); err != nil {
		return s.markDocError(ctx, doc.ID, fmt.Errorf("persist extraction: %w", err))
	}
	doc.Status = status.DocParsed

	if err := s.enricher.EnrichDocument(ctx, doc, false); err != nil {
		return s.markDocError(ctx, doc.ID, fmt.Errorf("enrich document: %w", err))
	}
	if err := s.docRepo.UpdateFields(ctx, nil, doc.ID, map[string]interface{}{
		"status": status.DocEnriched,
	}); err != nil {
		return s.markDocError(ctx, doc.ID, fmt.Errorf("record enriched status: %w", err))
	}

	s.runControls(ctx, doc)

	if err := s.docRepo.UpdateFields(ctx, nil, doc.ID, map[string]interface{}{
		"status": status.DocNeedsReview,
	}); err != nil {
		return s.markDocError(ctx, doc.ID, fmt.Errorf("record needs_review status: %w", err))
	}
	return nil
}

// applyResult writes the extraction outcome in one transaction. Re-running a
// document replaces its lines wholesale so no duplicates survive a rerun.
func (s *processService) applyResult(ctx context.Context, doc *types.Document, res *extraction.Result) error {
	updates := map[string]interface{}{
		"status":               status.DocParsed,
		"supplier_name":        res.SupplierName,
		"supplier_vat_id":      res.SupplierVATID,
		"supplier_country":     res.SupplierCountry,
		"supplier_address":     res.SupplierAddress,
		"invoice_number":       res.InvoiceNumber,
		"delivery_note_number": res.DeliveryNoteNumber,
		"currency":             res.Currency,
		"total_ht":             res.TotalHT,
		"total_ttc":            res.TotalTTC,
		"shipping_total":       res.ShippingTotal,
		"pages_count":          res.PagesCount,
		"confidence_avg":       res.ConfidenceAvg,
	}
	if res.DocType != "" {
		updates["doc_type"] = res.DocType
	}
	if res.InvoiceDate != "" {
		if d, err := time.Parse("2006-01-02", res.InvoiceDate); err == nil {
			updates["invoice_date"] = d
		}
	}

	lines := make([]*types.Line, 0, len(res.Lines))
	for _, el := range res.Lines {
		lines = append(lines, &types.Line{
			DocumentID:      doc.ID,
			LineNo:          el.LineNo,
			Description:     el.Description,
			SKU:             el.SKU,
			Quantity:        el.Quantity,
			Unit:            el.Unit,
			UnitPrice:       el.UnitPrice,
			LineAmount:      el.LineAmount,
			HSCode:          el.HSCode,
			CountryOfOrigin: el.CountryOfOrigin,
			NetWeightKg:     el.NetMassKg,
		})
	}
	// values printed on the document carry the lowest trust tag
	for _, l := range lines {
		if l.HSCode != "" {
			l.HSCodeSource = string(enrichment.SourceAzureExtracted)
			l.HSCodeConfidence = 0.5
		}
		if l.NetWeightKg > 0 {
			l.NetWeightSource = string(enrichment.SourceAzureExtracted)
			l.NetWeightConfidence = 0.5
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.lineRepo.FullDeleteByDocumentID(ctx, tx, doc.ID); err != nil {
			return err
		}
		if len(lines) > 0 {
			if _, err := s.lineRepo.CreateMany(ctx, tx, lines); err != nil {
				return err
			}
		}
		return s.docRepo.UpdateFields(ctx, tx, doc.ID, updates)
	})
	if err != nil {
		return err
	}

	// refresh the in-memory copy for the enrichment pass
	doc.SupplierName = res.SupplierName
	doc.SupplierVATID = res.SupplierVATID
	doc.SupplierCountry = res.SupplierCountry
	doc.Currency = res.Currency
	doc.TotalHT = res.TotalHT
	doc.TotalTTC = res.TotalTTC
	doc.ShippingTotal = res.ShippingTotal
	doc.InvoiceNumber = res.InvoiceNumber
	doc.DeliveryNoteNumber = res.DeliveryNoteNumber
	if res.DocType != "" {
		doc.DocType = res.DocType
	}
	return nil
}

func (s *processService) markDocError(ctx context.Context, docID uuid.UUID, cause error) error {
	msg := cause.Error()
	if code := apierr.CodeOf(cause); code != "internal_error" {
		msg = code + ": " + msg
	}
	uerr := s.docRepo.UpdateFields(ctx, nil, docID, map[string]interface{}{
		"status":        status.DocError,
		"error_message": msg,
	})
	if uerr != nil {
		s.log.Error("Failed to mark document error", "document_id", docID, "error", uerr)
	}
	return cause
}

// runControls executes the totals and VAT checks and records failures in the
// log. Findings never mutate the document here; approval re-runs the controls
// and is where blocking failures bite.
func (s *processService) runControls(ctx context.Context, doc *types.Document) {
	fresh, err := s.docRepo.GetByIDWithLines(ctx, nil, doc.ID)
	if err != nil {
		s.log.Warn("Control pass skipped", "document_id", doc.ID, "error", err)
		return
	}
	summary := control.Run(fresh, control.DefaultTolerance)
	for _, f := range summary.Failures() {
		s.log.Warn("Control check failed",
			"document_id", doc.ID,
			"check", f.Name,
			"severity", string(f.Severity),
			"detail", f.Detail,
		)
	}
}

// detectLinks pairs invoices with delivery notes inside the batch. A shared
// delivery note number is a strong match; a shared supplier VAT id is weak.
func (s *processService) detectLinks(ctx context.Context, batch *types.Batch) {
	docs, err := s.docRepo.ListByBatchID(ctx, nil, batch.ID)
	if err != nil {
		s.log.Warn("Link detection skipped", "batch_id", batch.ID, "error", err)
		return
	}

	var invoices, notes []*types.Document
	for _, d := range docs {
		switch d.DocType {
		case types.DocTypeInvoice, types.DocTypeMixed:
			invoices = append(invoices, d)
		}
		switch d.DocType {
		case types.DocTypeDeliveryNote, types.DocTypeMixed:
			notes = append(notes, d)
		}
	}

	for _, inv := range invoices {
		for _, dn := range notes {
			if inv.ID == dn.ID {
				continue
			}
			confidence := 0.0
			switch {
			case inv.DeliveryNoteNumber != "" && inv.DeliveryNoteNumber == dn.DeliveryNoteNumber:
				confidence = 0.9
			case inv.SupplierVATID != "" && inv.SupplierVATID == dn.SupplierVATID:
				confidence = 0.6
			default:
				continue
			}
			_, err := s.linkRepo.Upsert(ctx, nil, &types.DocumentLink{
				DocumentID:       inv.ID,
				LinkedDocumentID: dn.ID,
				LinkType:         types.LinkTypeAutoDetected,
				Confidence:       confidence,
			})
			if err != nil {
				s.log.Warn("Failed to record document link",
					"document_id", inv.ID,
					"linked_document_id", dn.ID,
					"error", err,
				)
			}
		}
	}
}
