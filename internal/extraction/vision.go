package extraction

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/debhub/debhub-backend/internal/logger"
	"github.com/debhub/debhub-backend/internal/platform/openai"
	"github.com/debhub/debhub-backend/internal/platform/pdftools"
)

// visionStrategy rasterizes every PDF page locally and submits all page
// images in one multimodal call.
type visionStrategy struct {
	log *logger.Logger
	ai  openai.Client
	pdf pdftools.Tools

	dpi      int
	maxPages int
}

func NewVisionStrategy(log *logger.Logger, ai openai.Client, pdf pdftools.Tools) Strategy {
	return &visionStrategy{
		log:      log.With("strategy", StrategyVision),
		ai:       ai,
		pdf:      pdf,
		dpi:      150,
		maxPages: 20,
	}
}

func (s *visionStrategy) Name() string { return StrategyVision }

func (s *visionStrategy) Extract(ctx context.Context, in Input) (string, Meta, error) {
	if len(in.Data) == 0 {
		return "", Meta{}, &ExtractionError{Op: s.Name(), Err: fmt.Errorf("document bytes required")}
	}

	pdfPath, cleanupFile, err := s.pdf.WriteTempFile(in.Data, ".pdf")
	if err != nil {
		return "", Meta{}, &ExtractionError{Op: s.Name(), Err: err}
	}
	defer cleanupFile()

	renderDir, cleanupDir, err := s.pdf.TempDir("render")
	if err != nil {
		return "", Meta{}, &ExtractionError{Op: s.Name(), Err: err}
	}
	defer cleanupDir()

	pages, err := s.pdf.CountPages(ctx, pdfPath)
	if err != nil {
		return "", Meta{}, &ExtractionError{Op: s.Name(), Err: err}
	}
	if pages > s.maxPages {
		return "", Meta{}, &ExtractionError{Op: s.Name(), Err: fmt.Errorf("document has %d pages, max %d", pages, s.maxPages)}
	}

	imagePaths, err := s.pdf.RenderPages(ctx, pdfPath, renderDir, s.dpi)
	if err != nil {
		return "", Meta{}, &ExtractionError{Op: s.Name(), Err: err}
	}

	images := make([]openai.ImageInput, 0, len(imagePaths))
	for _, p := range imagePaths {
		data, err := os.ReadFile(p)
		if err != nil {
			return "", Meta{}, &ExtractionError{Op: s.Name(), Err: fmt.Errorf("read page image: %w", err)}
		}
		images = append(images, openai.ImageInput{
			ImageURL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(data),
			Detail:   "high",
		})
	}

	raw, err := s.ai.GenerateTextWithImages(ctx, systemPrompt, visionUserPrompt(), images)
	if err != nil {
		return "", Meta{}, &ExtractionError{Op: s.Name(), Err: err}
	}
	return raw, Meta{Pages: pages}, nil
}
