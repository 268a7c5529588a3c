package extraction

import (
	"context"
	"fmt"
	"strings"

	"github.com/debhub/debhub-backend/internal/logger"
	"github.com/debhub/debhub-backend/internal/platform/gcp"
	"github.com/debhub/debhub-backend/internal/platform/openai"
	"github.com/debhub/debhub-backend/internal/platform/pdftools"
)

// Strategy names accepted in EXTRACTION_STRATEGY.
const (
	StrategyVision    = "vision"
	StrategyOCR       = "ocr"
	StrategySignedURL = "signed_url"
)

// Meta is what a strategy knows about the document beyond the model payload.
// Zero values mean the strategy could not measure it.
type Meta struct {
	Pages int
	// Confidence is a measured reading confidence in [0,1], currently only
	// available from the OCR pass.
	Confidence float64
}

// Strategy is one way of turning a document into the raw model payload. All
// strategies produce the same canonical shape; the orchestrator owns
// normalization so they cannot drift apart.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, in Input) (raw string, meta Meta, err error)
}

type Orchestrator struct {
	log             *logger.Logger
	strategy        Strategy
	defaultCurrency string
}

func NewOrchestrator(log *logger.Logger, strategy Strategy, defaultCurrency string) *Orchestrator {
	if defaultCurrency == "" {
		defaultCurrency = "EUR"
	}
	return &Orchestrator{
		log:             log.With("service", "ExtractionOrchestrator"),
		strategy:        strategy,
		defaultCurrency: strings.ToUpper(defaultCurrency),
	}
}

// NewStrategy builds the configured strategy from the shared platform clients.
func NewStrategy(name string, log *logger.Logger, ai openai.Client, docai gcp.Document, bucket gcp.BucketService, pdf pdftools.Tools) (Strategy, error) {
	switch name {
	case StrategyVision, "":
		return NewVisionStrategy(log, ai, pdf), nil
	case StrategyOCR:
		if docai == nil {
			return nil, fmt.Errorf("strategy %q requires a Document AI client", name)
		}
		return NewOCRStrategy(log, ai, docai), nil
	case StrategySignedURL:
		if bucket == nil {
			return nil, fmt.Errorf("strategy %q requires a bucket client", name)
		}
		return NewSignedURLStrategy(log, ai, bucket), nil
	default:
		return nil, fmt.Errorf("unknown extraction strategy %q", name)
	}
}

// Extract runs the configured strategy and normalizes its payload.
func (o *Orchestrator) Extract(ctx context.Context, in Input) (*Result, error) {
	if len(in.Data) == 0 && in.StoragePath == "" {
		return nil, &ExtractionError{Op: o.strategy.Name(), Err: fmt.Errorf("no document bytes or storage path")}
	}

	raw, meta, err := o.strategy.Extract(ctx, in)
	if err != nil {
		// strategies return typed errors already; anything else is a provider failure
		switch err.(type) {
		case *ExtractionError, *ParseError:
			return nil, err
		default:
			return nil, &ExtractionError{Op: o.strategy.Name(), Err: err}
		}
	}

	res, err := Normalize(raw, o.defaultCurrency)
	if err != nil {
		return nil, err
	}
	if res.PagesCount == 0 {
		res.PagesCount = meta.Pages
	}
	// a measured OCR confidence beats the model's self-report
	if meta.Confidence > 0 {
		res.ConfidenceAvg = meta.Confidence
	}

	o.log.Info("Extraction complete",
		"strategy", o.strategy.Name(),
		"document_id", in.DocumentID,
		"lines", len(res.Lines),
		"pages", res.PagesCount,
		"confidence", res.ConfidenceAvg,
	)
	return res, nil
}
