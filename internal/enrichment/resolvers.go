package enrichment

import (
	"context"
	"fmt"

	"github.com/debhub/debhub-backend/internal/repos"
)

const (
	confExact    = 1.0
	confContains = 0.85
	confCorrect  = 0.95
	confExtract  = 0.5
)

// referenceResolver answers from the validated reference table. Exact
// description or SKU matches score 1.0, containment matches 0.85.
type referenceResolver struct {
	repo repos.ReferenceRepo
}

func NewReferenceResolver(repo repos.ReferenceRepo) Resolver {
	return &referenceResolver{repo: repo}
}

func (r *referenceResolver) Source() Source { return SourceReferenceDB }

func (r *referenceResolver) Resolve(ctx context.Context, lc LineContext) (*Hit, error) {
	key := repos.NormalizeKey(lc.Description)
	sources := []string{string(SourceReferenceDB)}

	entry, err := r.repo.FindExact(ctx, nil, lc.OrgID, key, lc.SKU, sources)
	if err != nil {
		return nil, err
	}
	conf := confExact
	if entry == nil {
		entry, err = r.repo.FindContains(ctx, nil, lc.OrgID, key, sources)
		if err != nil {
			return nil, err
		}
		conf = confContains
	}
	if entry == nil {
		return nil, nil
	}
	return &Hit{
		HSCode:              entry.HSCode,
		HSCodeConfidence:    conf,
		NetWeightKg:         entry.NetWeightKg,
		NetWeightConfidence: conf,
		Reasoning:           fmt.Sprintf("reference entry validated %d times", entry.TimesValidated),
	}, nil
}

// correctionResolver answers from prior manual corrections for this org.
// Exact matches only; a correction on one wording says nothing about another.
type correctionResolver struct {
	repo repos.ReferenceRepo
}

func NewCorrectionResolver(repo repos.ReferenceRepo) Resolver {
	return &correctionResolver{repo: repo}
}

func (r *correctionResolver) Source() Source { return SourceUserCorrected }

func (r *correctionResolver) Resolve(ctx context.Context, lc LineContext) (*Hit, error) {
	entry, err := r.repo.FindExact(ctx, nil, lc.OrgID, repos.NormalizeKey(lc.Description), lc.SKU, []string{string(SourceUserCorrected)})
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}
	return &Hit{
		HSCode:              entry.HSCode,
		HSCodeConfidence:    confCorrect,
		NetWeightKg:         entry.NetWeightKg,
		NetWeightConfidence: confCorrect,
		Reasoning:           "matched a previous manual correction",
	}, nil
}

// AIClient is the slice of the OpenAI client the model resolver needs.
type AIClient interface {
	GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error)
}

var suggestionSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"properties": map[string]any{
		"hs_code":       map[string]any{"type": "string", "description": "8-digit EU combined nomenclature code, empty if unsure"},
		"net_weight_kg": map[string]any{"type": "number", "description": "estimated net weight per unit in kilograms, 0 if unsure"},
		"confidence":    map[string]any{"type": "number", "description": "0 to 1"},
		"reasoning":     map[string]any{"type": "string"},
	},
	"required": []string{"hs_code", "net_weight_kg", "confidence", "reasoning"},
}

const suggestionSystem = "You classify goods for EU customs declarations. " +
	"Given a product description, propose the most likely 8-digit combined " +
	"nomenclature (HS) code and an estimated net weight per unit in kilograms. " +
	"Leave fields empty or zero when you are not reasonably sure. " +
	"Respond only through the provided JSON schema."

// modelResolver asks the model for a classification suggestion.
type modelResolver struct {
	ai AIClient
}

func NewModelResolver(ai AIClient) Resolver {
	return &modelResolver{ai: ai}
}

func (r *modelResolver) Source() Source { return SourceOpenAI }

func (r *modelResolver) Resolve(ctx context.Context, lc LineContext) (*Hit, error) {
	user := fmt.Sprintf("Product description: %s", lc.Description)
	if lc.SKU != "" {
		user += fmt.Sprintf("\nSKU: %s", lc.SKU)
	}
	if lc.SupplierCountry != "" {
		user += fmt.Sprintf("\nSupplier country: %s", lc.SupplierCountry)
	}

	out, err := r.ai.GenerateJSON(ctx, suggestionSystem, user, "hs_suggestion", suggestionSchema)
	if err != nil {
		return nil, err
	}

	hit := &Hit{}
	if v, ok := out["hs_code"].(string); ok {
		hit.HSCode = v
	}
	if v, ok := out["net_weight_kg"].(float64); ok {
		hit.NetWeightKg = v
	}
	conf := 0.0
	if v, ok := out["confidence"].(float64); ok {
		conf = v
	}
	hit.HSCodeConfidence = conf
	hit.NetWeightConfidence = conf
	if v, ok := out["reasoning"].(string); ok {
		hit.Reasoning = v
	}
	if hit.HSCode == "" && hit.NetWeightKg == 0 {
		return nil, nil
	}
	return hit, nil
}

// extractedResolver falls back to whatever the extraction stage read off the
// document itself.
type extractedResolver struct{}

func NewExtractedResolver() Resolver {
	return &extractedResolver{}
}

func (r *extractedResolver) Source() Source { return SourceAzureExtracted }

func (r *extractedResolver) Resolve(_ context.Context, lc LineContext) (*Hit, error) {
	if lc.ExtractedHSCode == "" && lc.ExtractedWeightKg == 0 {
		return nil, nil
	}
	return &Hit{
		HSCode:              lc.ExtractedHSCode,
		HSCodeConfidence:    confExtract,
		NetWeightKg:         lc.ExtractedWeightKg,
		NetWeightConfidence: confExtract,
		Reasoning:           "value printed on the source document",
	}, nil
}
