package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/debhub/debhub-backend/internal/apierr"
	"github.com/debhub/debhub-backend/internal/control"
	"github.com/debhub/debhub-backend/internal/enrichment"
	"github.com/debhub/debhub-backend/internal/logger"
	"github.com/debhub/debhub-backend/internal/repos"
	"github.com/debhub/debhub-backend/internal/requestdata"
	"github.com/debhub/debhub-backend/internal/status"
	"github.com/debhub/debhub-backend/internal/types"
)

// LineEdit is one review action on a line: field changes, a validation
// confirmation or retraction, or both.
type LineEdit struct {
	LineID     uuid.UUID              `json:"line_id"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
	Validate   bool                   `json:"validate,omitempty"`
	Unvalidate bool                   `json:"unvalidate,omitempty"`
}

type ValidationService interface {
	// UpdateLines applies review edits to lines of the batch. Every field
	// change is audited; changing a line drops its validated flag unless the
	// edit also validates it.
	UpdateLines(ctx context.Context, rd *requestdata.RequestData, batchID uuid.UUID, edits []LineEdit) ([]*types.Line, error)
	ListLines(ctx context.Context, rd *requestdata.RequestData, batchID uuid.UUID) ([]*types.Line, error)
	// ApproveDocument requires every line validated and no blocking control
	// failure.
	ApproveDocument(ctx context.Context, rd *requestdata.RequestData, docID uuid.UUID) (*types.Document, error)
	MarkExported(ctx context.Context, rd *requestdata.RequestData, docID uuid.UUID) (*types.Document, error)
}

// editableFields is the review surface. Everything else on a line is derived
// or provenance and only the pipeline writes it.
var editableFields = map[string]bool{
	"description":       true,
	"sku":               true,
	"hs_code":           true,
	"net_weight_kg":     true,
	"country_of_origin": true,
	"quantity":          true,
	"unit":              true,
	"unit_price":        true,
	"line_amount":       true,
}

type validationService struct {
	db  *gorm.DB
	log *logger.Logger

	batchRepo repos.BatchRepo
	docRepo   repos.DocumentRepo
	lineRepo  repos.LineRepo
	refRepo   repos.ReferenceRepo
	auditRepo repos.AuditLogRepo
}

func NewValidationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	batchRepo repos.BatchRepo,
	docRepo repos.DocumentRepo,
	lineRepo repos.LineRepo,
	refRepo repos.ReferenceRepo,
	auditRepo repos.AuditLogRepo,
) ValidationService {
	return &validationService{
		db:        db,
		log:       baseLog.With("service", "ValidationService"),
		batchRepo: batchRepo,
		docRepo:   docRepo,
		lineRepo:  lineRepo,
		refRepo:   refRepo,
		auditRepo: auditRepo,
	}
}

func (s *validationService) ListLines(ctx context.Context, rd *requestdata.RequestData, batchID uuid.UUID) ([]*types.Line, error) {
	batch, err := s.ownedBatch(ctx, rd, batchID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(batch.Documents))
	for _, d := range batch.Documents {
		ids = append(ids, d.ID)
	}
	lines, err := s.lineRepo.GetByDocumentIDs(ctx, nil, ids)
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	return lines, nil
}

func (s *validationService) UpdateLines(ctx context.Context, rd *requestdata.RequestData, batchID uuid.UUID, edits []LineEdit) ([]*types.Line, error) {
	if len(edits) == 0 {
		return nil, apierr.BadInput(fmt.Errorf("no edits"))
	}
	batch, err := s.ownedBatch(ctx, rd, batchID)
	if err != nil {
		return nil, err
	}
	batchDocs := map[uuid.UUID]*types.Document{}
	for _, d := range batch.Documents {
		batchDocs[d.ID] = d
	}

	touched := map[uuid.UUID]bool{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, edit := range edits {
			line, err := s.lineRepo.GetByID(ctx, tx, edit.LineID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apierr.NotFound("line")
				}
				return err
			}
			doc, ok := batchDocs[line.DocumentID]
			if !ok {
				return apierr.NotFound("line")
			}
			if doc.Status == status.DocExported {
				return apierr.Validation(fmt.Errorf("document %s is exported and its lines are frozen", doc.ID))
			}
			if err := s.applyEdit(ctx, tx, rd, doc, line, edit); err != nil {
				return err
			}
			touched[doc.ID] = true
		}
		return nil
	})
	if err != nil {
		var ae *apierr.Error
		if errors.As(err, &ae) {
			return nil, err
		}
		return nil, apierr.Persistence(err)
	}

	// editing an approved document reopens it for review
	for docID := range touched {
		doc := batchDocs[docID]
		if doc.Status == status.DocApproved {
			if err := s.docRepo.UpdateFields(ctx, nil, docID, map[string]interface{}{
				"status": status.DocNeedsReview,
			}); err != nil {
				s.log.Warn("Failed to reopen document", "document_id", docID, "error", err)
			}
		}
	}

	return s.ListLines(ctx, rd, batchID)
}

func (s *validationService) applyEdit(ctx context.Context, tx *gorm.DB, rd *requestdata.RequestData, doc *types.Document, line *types.Line, edit LineEdit) error {
	updates := map[string]interface{}{}
	var audits []*types.LineAuditLog
	now := time.Now()

	for field, raw := range edit.Fields {
		if !editableFields[field] {
			return apierr.BadInput(fmt.Errorf("field %q is not editable", field))
		}
		old := currentValue(line, field)
		val, err := coerceValue(field, raw)
		if err != nil {
			return apierr.BadInput(fmt.Errorf("field %q: %w", field, err))
		}
		if fmt.Sprint(val) == old {
			continue
		}
		updates[field] = val
		audits = append(audits, &types.LineAuditLog{
			OrgID:      rd.OrgID,
			DocumentID: doc.ID,
			LineID:     line.ID,
			Field:      field,
			OldValue:   old,
			NewValue:   fmt.Sprint(val),
			EditedBy:   rd.UserID,
		})
	}

	// a manual value outranks every resolver
	if _, ok := updates["hs_code"]; ok {
		updates["hs_code_source"] = string(enrichment.SourceUserCorrected)
		updates["hs_code_confidence"] = 1.0
	}
	if _, ok := updates["net_weight_kg"]; ok {
		updates["net_weight_source"] = string(enrichment.SourceUserCorrected)
		updates["net_weight_confidence"] = 1.0
	}
	// changing the product identity makes the resolver provenance stale; the
	// reviewer now owns whatever values stand on the line
	_, descEdited := updates["description"]
	_, skuEdited := updates["sku"]
	if descEdited || skuEdited {
		if line.HSCode != "" && updates["hs_code_source"] == nil {
			updates["hs_code_source"] = string(enrichment.SourceUserCorrected)
			updates["hs_code_confidence"] = 1.0
		}
		if line.NetWeightKg > 0 && updates["net_weight_source"] == nil {
			updates["net_weight_source"] = string(enrichment.SourceUserCorrected)
			updates["net_weight_confidence"] = 1.0
		}
	}

	if edit.Validate && edit.Unvalidate {
		return apierr.BadInput(fmt.Errorf("cannot validate and unvalidate the same line"))
	}
	if len(updates) > 0 || edit.Unvalidate {
		updates["validated"] = false
	}
	if edit.Validate {
		updates["validated"] = true
	}
	if len(updates) == 0 {
		return nil
	}
	updates["last_reviewed_at"] = now

	if err := s.lineRepo.UpdateFields(ctx, tx, line.ID, updates); err != nil {
		return err
	}
	if len(audits) > 0 {
		if err := s.auditRepo.Create(ctx, tx, audits); err != nil {
			return err
		}
	}

	if edit.Validate {
		if err := s.recordReference(ctx, tx, rd, line, updates); err != nil {
			return err
		}
	}
	return nil
}

// recordReference feeds the validated line back into the reference table so
// the next batch resolves the same product without a model call.
func (s *validationService) recordReference(ctx context.Context, tx *gorm.DB, rd *requestdata.RequestData, line *types.Line, updates map[string]interface{}) error {
	desc := line.Description
	if v, ok := updates["description"].(string); ok {
		desc = v
	}
	hs := line.HSCode
	if v, ok := updates["hs_code"].(string); ok {
		hs = v
	}
	weight := line.NetWeightKg
	if v, ok := updates["net_weight_kg"].(float64); ok {
		weight = v
	}
	sku := line.SKU
	if v, ok := updates["sku"].(string); ok {
		sku = v
	}
	if desc == "" || (hs == "" && weight == 0) {
		return nil
	}

	source := string(enrichment.SourceReferenceDB)
	if _, corrected := updates["hs_code"]; corrected {
		source = string(enrichment.SourceUserCorrected)
	} else if _, corrected := updates["net_weight_kg"]; corrected {
		source = string(enrichment.SourceUserCorrected)
	}

	_, err := s.refRepo.Upsert(ctx, tx, &types.ReferenceEntry{
		OrgID:          rd.OrgID,
		DescriptionKey: repos.NormalizeKey(desc),
		SKU:            sku,
		HSCode:         hs,
		NetWeightKg:    weight,
		Source:         source,
	})
	return err
}

func (s *validationService) ApproveDocument(ctx context.Context, rd *requestdata.RequestData, docID uuid.UUID) (*types.Document, error) {
	doc, err := s.ownedDocument(ctx, rd, docID)
	if err != nil {
		return nil, err
	}

	unvalidated, err := s.lineRepo.CountUnvalidatedByDocumentID(ctx, nil, doc.ID)
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	if unvalidated > 0 {
		return nil, apierr.Validation(fmt.Errorf("%d lines still need validation", unvalidated))
	}

	summary := control.Run(doc, control.DefaultTolerance)
	if !summary.Passed() {
		var details []string
		for _, f := range summary.Failures() {
			if f.Severity == control.SeverityBlocking {
				details = append(details, f.Detail)
			}
		}
		return nil, apierr.Validation(fmt.Errorf("blocking control failures: %s", strings.Join(details, "; ")))
	}

	next, err := doc.Status.Transition(status.DocApproved)
	if err != nil {
		return nil, apierr.BadInput(err)
	}
	if err := s.docRepo.UpdateFields(ctx, nil, doc.ID, map[string]interface{}{
		"status": next,
	}); err != nil {
		return nil, apierr.Persistence(err)
	}

	s.log.Info("Document approved", "document_id", doc.ID, "org_id", rd.OrgID, "by", rd.UserID)
	doc.Status = next
	return doc, nil
}

func (s *validationService) MarkExported(ctx context.Context, rd *requestdata.RequestData, docID uuid.UUID) (*types.Document, error) {
	doc, err := s.ownedDocument(ctx, rd, docID)
	if err != nil {
		return nil, err
	}
	next, err := doc.Status.Transition(status.DocExported)
	if err != nil {
		return nil, apierr.BadInput(err)
	}
	if err := s.docRepo.UpdateFields(ctx, nil, doc.ID, map[string]interface{}{
		"status": next,
	}); err != nil {
		return nil, apierr.Persistence(err)
	}
	doc.Status = next
	return doc, nil
}

func (s *validationService) ownedBatch(ctx context.Context, rd *requestdata.RequestData, id uuid.UUID) (*types.Batch, error) {
	batch, err := s.batchRepo.GetByIDWithDocuments(ctx, nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("batch")
		}
		return nil, apierr.Persistence(err)
	}
	if batch.OrgID != rd.OrgID {
		return nil, apierr.NotFound("batch")
	}
	return batch, nil
}

func (s *validationService) ownedDocument(ctx context.Context, rd *requestdata.RequestData, id uuid.UUID) (*types.Document, error) {
	doc, err := s.docRepo.GetByIDWithLines(ctx, nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("document")
		}
		return nil, apierr.Persistence(err)
	}
	if doc.OrgID != rd.OrgID {
		return nil, apierr.NotFound("document")
	}
	return doc, nil
}

func currentValue(line *types.Line, field string) string {
	switch field {
	case "description":
		return line.Description
	case "sku":
		return line.SKU
	case "hs_code":
		return line.HSCode
	case "net_weight_kg":
		return fmt.Sprint(line.NetWeightKg)
	case "country_of_origin":
		return line.CountryOfOrigin
	case "quantity":
		return fmt.Sprint(line.Quantity)
	case "unit":
		return line.Unit
	case "unit_price":
		return fmt.Sprint(line.UnitPrice)
	case "line_amount":
		return fmt.Sprint(line.LineAmount)
	}
	return ""
}

// coerceValue types the raw JSON value for its column. Numeric fields accept
// json numbers only; everything else must be a string.
func coerceValue(field string, raw interface{}) (interface{}, error) {
	switch field {
	case "net_weight_kg", "quantity", "unit_price", "line_amount":
		f, ok := raw.(float64)
		if !ok {
			return nil, fmt.Errorf("expected a number, got %T", raw)
		}
		if f < 0 {
			return nil, fmt.Errorf("must not be negative")
		}
		return f, nil
	default:
		v, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string, got %T", raw)
		}
		return strings.TrimSpace(v), nil
	}
}
