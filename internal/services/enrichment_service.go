package services

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/debhub/debhub-backend/internal/enrichment"
	"github.com/debhub/debhub-backend/internal/logger"
	"github.com/debhub/debhub-backend/internal/repos"
	"github.com/debhub/debhub-backend/internal/types"
)

type EnrichmentService interface {
	// EnrichDocument resolves HS codes and net weights for every line of the
	// document and allocates shipping across lines. With force set, already
	// resolved lines are re-run through the cascade; a value is only replaced
	// when an equal or higher trust source answers.
	EnrichDocument(ctx context.Context, doc *types.Document, force bool) error
}

type enrichmentService struct {
	db       *gorm.DB
	log      *logger.Logger
	cascade  *enrichment.Cascade
	lineRepo repos.LineRepo
}

func NewEnrichmentService(
	db *gorm.DB,
	baseLog *logger.Logger,
	cascade *enrichment.Cascade,
	lineRepo repos.LineRepo,
) EnrichmentService {
	return &enrichmentService{
		db:       db,
		log:      baseLog.With("service", "EnrichmentService"),
		cascade:  cascade,
		lineRepo: lineRepo,
	}
}

func (s *enrichmentService) EnrichDocument(ctx context.Context, doc *types.Document, force bool) error {
	lines, err := s.lineRepo.GetByDocumentID(ctx, nil, doc.ID)
	if err != nil {
		return err
	}

	for _, line := range lines {
		if !force && finalized(line) {
			continue
		}
		if err := s.enrichLine(ctx, doc, line, force); err != nil {
			return err
		}
	}

	return s.allocateShipping(ctx, doc, lines)
}

func (s *enrichmentService) enrichLine(ctx context.Context, doc *types.Document, line *types.Line, force bool) error {
	lc := enrichment.LineContext{
		OrgID:           doc.OrgID,
		Description:     line.Description,
		SKU:             line.SKU,
		SupplierCountry: doc.SupplierCountry,
		Currency:        doc.Currency,
	}
	// values read off the document feed the lowest-trust fallback
	if line.HSCodeSource == "" || line.HSCodeSource == string(enrichment.SourceAzureExtracted) {
		lc.ExtractedHSCode = line.HSCode
	}
	if line.NetWeightSource == "" || line.NetWeightSource == string(enrichment.SourceAzureExtracted) {
		lc.ExtractedWeightKg = line.NetWeightKg
	}

	res := s.cascade.Resolve(ctx, lc)

	updates := map[string]interface{}{}
	notes := map[string]string{}

	if res.HSCode != "" && replaces(res.HSCodeSource, line.HSCodeSource, force) {
		updates["hs_code"] = res.HSCode
		updates["hs_code_confidence"] = res.HSCodeConfidence
		updates["hs_code_source"] = string(res.HSCodeSource)
		if res.HSCodeReasoning != "" {
			notes["hs_code"] = res.HSCodeReasoning
		}
	}
	if res.NetWeightKg > 0 && replaces(res.NetWeightSource, line.NetWeightSource, force) {
		updates["net_weight_kg"] = res.NetWeightKg
		updates["net_weight_confidence"] = res.NetWeightConfidence
		updates["net_weight_source"] = string(res.NetWeightSource)
		if res.NetWeightReasoning != "" {
			notes["net_weight"] = res.NetWeightReasoning
		}
	}
	if len(updates) == 0 {
		return nil
	}
	if len(notes) > 0 {
		notes["resolved_at"] = time.Now().UTC().Format(time.RFC3339)
		if raw, err := json.Marshal(notes); err == nil {
			updates["enrichment_notes"] = datatypes.JSON(raw)
		}
	}
	return s.lineRepo.UpdateFields(ctx, nil, line.ID, updates)
}

// finalized reports whether both fields are present and come from validated
// history. Model guesses and document-printed values stay eligible for an
// upgrade on the next enrichment pass.
func finalized(line *types.Line) bool {
	if line.HSCode == "" || line.NetWeightKg == 0 {
		return false
	}
	trusted := enrichment.SourceUserCorrected.Rank()
	return enrichment.Source(line.HSCodeSource).Rank() <= trusted &&
		enrichment.Source(line.NetWeightSource).Rank() <= trusted
}

// replaces decides whether a cascade answer may overwrite what the line
// already carries. A higher trust source always wins; equal trust only
// refreshes under force; a downgrade never happens.
func replaces(next enrichment.Source, current string, force bool) bool {
	if current == "" {
		return true
	}
	cur := enrichment.Source(current).Rank()
	if next.Rank() < cur {
		return true
	}
	return force && next.Rank() == cur
}

// allocateShipping prorates the document shipping total across lines by
// amount share and derives each line's customs value.
func (s *enrichmentService) allocateShipping(ctx context.Context, doc *types.Document, lines []*types.Line) error {
	var total float64
	for _, l := range lines {
		total += l.LineAmount
	}

	for _, l := range lines {
		allocated := 0.0
		if doc.ShippingTotal > 0 && total > 0 {
			allocated = doc.ShippingTotal * (l.LineAmount / total)
		}
		err := s.lineRepo.UpdateFields(ctx, nil, l.ID, map[string]interface{}{
			"shipping_allocated": allocated,
			"customs_value":      l.LineAmount + allocated,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
