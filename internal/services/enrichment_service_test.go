package services

import (
	"context"
	"testing"

	"github.com/debhub/debhub-backend/internal/enrichment"
	"github.com/debhub/debhub-backend/internal/repos"
	"github.com/debhub/debhub-backend/internal/status"
	"github.com/debhub/debhub-backend/internal/types"
)

func newEnrichmentService(e *testEnv) EnrichmentService {
	cascade := enrichment.NewCascade(e.log,
		enrichment.NewReferenceResolver(e.refRepo),
		enrichment.NewCorrectionResolver(e.refRepo),
		enrichment.NewExtractedResolver(),
	)
	return NewEnrichmentService(e.db, e.log, cascade, e.lineRepo)
}

func (e *testEnv) seedEnrichmentDoc(t *testing.T, line *types.Line) *types.Document {
	t.Helper()
	ctx := context.Background()
	doc := &types.Document{
		DocType:       types.DocTypeInvoice,
		Currency:      "EUR",
		ShippingTotal: 10,
		Status:        status.DocParsed,
	}
	e.seedBatch(t, doc)
	line.DocumentID = doc.ID
	if _, err := e.lineRepo.CreateMany(ctx, nil, []*types.Line{line}); err != nil {
		t.Fatalf("seed line: %v", err)
	}
	return doc
}

func TestEnrichDocumentResolvesFromReferenceTable(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	if _, err := e.refRepo.Upsert(ctx, nil, &types.ReferenceEntry{
		OrgID:          e.rd.OrgID,
		DescriptionKey: repos.NormalizeKey("Hex Bolt M8"),
		HSCode:         "73181500",
		NetWeightKg:    0.25,
		Source:         string(enrichment.SourceReferenceDB),
	}); err != nil {
		t.Fatalf("seed reference: %v", err)
	}

	line := &types.Line{LineNo: 1, Description: "hex bolt m8", LineAmount: 100}
	doc := e.seedEnrichmentDoc(t, line)

	svc := newEnrichmentService(e)
	if err := svc.EnrichDocument(ctx, doc, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fresh, _ := e.lineRepo.GetByID(ctx, nil, line.ID)
	if fresh.HSCode != "73181500" || fresh.HSCodeSource != string(enrichment.SourceReferenceDB) {
		t.Fatalf("expected reference answer, got %q from %q", fresh.HSCode, fresh.HSCodeSource)
	}
	if fresh.HSCodeConfidence != 1.0 {
		t.Fatalf("exact match must score 1.0, got %v", fresh.HSCodeConfidence)
	}
	if fresh.NetWeightKg != 0.25 {
		t.Fatalf("expected weight 0.25, got %v", fresh.NetWeightKg)
	}
	// shipping fully allocated to the single line
	if fresh.ShippingAllocated != 10 || fresh.CustomsValue != 110 {
		t.Fatalf("shipping allocation wrong: %v / %v", fresh.ShippingAllocated, fresh.CustomsValue)
	}
}

func TestEnrichDocumentForceUpgradesSource(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	line := &types.Line{
		LineNo:           1,
		Description:      "ceramic bearing",
		LineAmount:       100,
		HSCode:           "84821010",
		HSCodeSource:     string(enrichment.SourceOpenAI),
		HSCodeConfidence: 0.7,
		NetWeightKg:      0.5,
		NetWeightSource:  string(enrichment.SourceOpenAI),
	}
	doc := e.seedEnrichmentDoc(t, line)

	// a reference entry appears after the model guess was stored
	if _, err := e.refRepo.Upsert(ctx, nil, &types.ReferenceEntry{
		OrgID:          e.rd.OrgID,
		DescriptionKey: repos.NormalizeKey("ceramic bearing"),
		HSCode:         "84821090",
		NetWeightKg:    0.45,
		Source:         string(enrichment.SourceReferenceDB),
	}); err != nil {
		t.Fatalf("seed reference: %v", err)
	}

	svc := newEnrichmentService(e)
	if err := svc.EnrichDocument(ctx, doc, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fresh, _ := e.lineRepo.GetByID(ctx, nil, line.ID)
	if fresh.HSCode != "84821090" || fresh.HSCodeSource != string(enrichment.SourceReferenceDB) {
		t.Fatalf("expected upgrade to reference_db, got %q from %q", fresh.HSCode, fresh.HSCodeSource)
	}
}

func TestEnrichDocumentNeverDowngradesSource(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	line := &types.Line{
		LineNo:           1,
		Description:      "obscure widget",
		LineAmount:       100,
		HSCode:           "12345678",
		HSCodeSource:     string(enrichment.SourceUserCorrected),
		HSCodeConfidence: 1.0,
		NetWeightKg:      1.0,
		NetWeightSource:  string(enrichment.SourceUserCorrected),
	}
	doc := e.seedEnrichmentDoc(t, line)

	// only the low-trust fallback can answer here
	svc := newEnrichmentService(e)
	if err := svc.EnrichDocument(ctx, doc, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fresh, _ := e.lineRepo.GetByID(ctx, nil, line.ID)
	if fresh.HSCodeSource != string(enrichment.SourceUserCorrected) || fresh.HSCode != "12345678" {
		t.Fatalf("user corrected value was downgraded: %q from %q", fresh.HSCode, fresh.HSCodeSource)
	}
}

func TestEnrichDocumentSkipsFinalizedLinesWithoutForce(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	line := &types.Line{
		LineNo:          1,
		Description:     "hex bolt m8",
		LineAmount:      100,
		HSCode:          "73181500",
		HSCodeSource:    string(enrichment.SourceUserCorrected),
		NetWeightKg:     0.2,
		NetWeightSource: string(enrichment.SourceUserCorrected),
	}
	doc := e.seedEnrichmentDoc(t, line)

	// conflicting reference entry must not touch a finalized line without force
	if _, err := e.refRepo.Upsert(ctx, nil, &types.ReferenceEntry{
		OrgID:          e.rd.OrgID,
		DescriptionKey: repos.NormalizeKey("hex bolt m8"),
		HSCode:         "99999999",
		NetWeightKg:    9,
		Source:         string(enrichment.SourceReferenceDB),
	}); err != nil {
		t.Fatalf("seed reference: %v", err)
	}

	svc := newEnrichmentService(e)
	if err := svc.EnrichDocument(ctx, doc, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fresh, _ := e.lineRepo.GetByID(ctx, nil, line.ID)
	if fresh.HSCode != "73181500" {
		t.Fatalf("finalized line was re-resolved: %q", fresh.HSCode)
	}
}
