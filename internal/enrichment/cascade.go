package enrichment

import (
	"context"

	"github.com/google/uuid"

	"github.com/debhub/debhub-backend/internal/logger"
)

// Source tags where a resolved value came from. Priority is positional:
// validated history always beats a fresh model guess, whatever the numeric
// confidence says.
type Source string

const (
	SourceReferenceDB    Source = "reference_db"
	SourceUserCorrected  Source = "user_corrected"
	SourceOpenAI         Source = "openai"
	SourceAzureExtracted Source = "azure_extracted"
)

// Priority is the ranked resolver order, highest trust first. Changing the
// cascade is a one-line edit here.
var Priority = []Source{
	SourceReferenceDB,
	SourceUserCorrected,
	SourceOpenAI,
	SourceAzureExtracted,
}

// Rank returns the position of s in Priority; unknown sources sort last.
func (s Source) Rank() int {
	for i, p := range Priority {
		if p == s {
			return i
		}
	}
	return len(Priority)
}

// LineContext is everything a resolver may look at for one line.
type LineContext struct {
	OrgID       uuid.UUID
	Description string
	SKU         string

	// Values the extraction stage already produced, if any.
	ExtractedHSCode   string
	ExtractedWeightKg float64

	SupplierCountry string
	Currency        string
}

// Hit is one resolver's answer. Empty HSCode / zero NetWeightKg mean the
// resolver has nothing for that field.
type Hit struct {
	HSCode              string
	HSCodeConfidence    float64
	NetWeightKg         float64
	NetWeightConfidence float64
	Reasoning           string
}

// Resolution is the cascade outcome, with per-field provenance.
type Resolution struct {
	HSCode           string
	HSCodeConfidence float64
	HSCodeSource     Source
	HSCodeReasoning  string

	NetWeightKg         float64
	NetWeightConfidence float64
	NetWeightSource     Source
	NetWeightReasoning  string
}

type Resolver interface {
	Source() Source
	Resolve(ctx context.Context, lc LineContext) (*Hit, error)
}

// Cascade walks its resolvers in order and keeps the first answer per field.
type Cascade struct {
	log       *logger.Logger
	resolvers []Resolver
}

func NewCascade(log *logger.Logger, resolvers ...Resolver) *Cascade {
	return &Cascade{
		log:       log.With("service", "EnrichmentCascade"),
		resolvers: resolvers,
	}
}

func (c *Cascade) Resolve(ctx context.Context, lc LineContext) Resolution {
	var res Resolution
	for _, r := range c.resolvers {
		if res.HSCode != "" && res.NetWeightKg > 0 {
			break
		}
		hit, err := r.Resolve(ctx, lc)
		if err != nil {
			// one resolver failing must not block the lower-trust fallbacks
			c.log.Warn("Resolver failed, continuing cascade",
				"source", string(r.Source()),
				"description", lc.Description,
				"error", err,
			)
			continue
		}
		if hit == nil {
			continue
		}
		if res.HSCode == "" && hit.HSCode != "" {
			res.HSCode = hit.HSCode
			res.HSCodeConfidence = hit.HSCodeConfidence
			res.HSCodeSource = r.Source()
			res.HSCodeReasoning = hit.Reasoning
		}
		if res.NetWeightKg == 0 && hit.NetWeightKg > 0 {
			res.NetWeightKg = hit.NetWeightKg
			res.NetWeightConfidence = hit.NetWeightConfidence
			res.NetWeightSource = r.Source()
			res.NetWeightReasoning = hit.Reasoning
		}
	}
	return res
}
