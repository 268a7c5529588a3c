package extraction

import (
	"context"
	"fmt"

	"github.com/debhub/debhub-backend/internal/logger"
	"github.com/debhub/debhub-backend/internal/platform/gcp"
	"github.com/debhub/debhub-backend/internal/platform/openai"
)

// ocrStrategy runs a generic Document AI text pass first, then asks the model
// to structure the raw text. Cheaper than vision for text-heavy scans.
type ocrStrategy struct {
	log   *logger.Logger
	ai    openai.Client
	docai gcp.Document
}

func NewOCRStrategy(log *logger.Logger, ai openai.Client, docai gcp.Document) Strategy {
	return &ocrStrategy{
		log:   log.With("strategy", StrategyOCR),
		ai:    ai,
		docai: docai,
	}
}

func (s *ocrStrategy) Name() string { return StrategyOCR }

func (s *ocrStrategy) Extract(ctx context.Context, in Input) (string, Meta, error) {
	if len(in.Data) == 0 {
		return "", Meta{}, &ExtractionError{Op: s.Name(), Err: fmt.Errorf("document bytes required")}
	}

	mimeType := in.MimeType
	if mimeType == "" {
		mimeType = "application/pdf"
	}

	ocr, err := s.docai.ExtractText(ctx, in.Data, mimeType)
	if err != nil {
		return "", Meta{}, &ExtractionError{Op: s.Name(), Err: err}
	}
	if ocr.Text == "" {
		return "", Meta{}, &ExtractionError{Op: s.Name(), Err: fmt.Errorf("OCR produced no text")}
	}

	raw, err := s.ai.GenerateText(ctx, systemPrompt, ocrUserPrompt(ocr.Text))
	if err != nil {
		return "", Meta{}, &ExtractionError{Op: s.Name(), Err: err}
	}
	return raw, Meta{Pages: ocr.Pages, Confidence: ocr.Confidence}, nil
}
