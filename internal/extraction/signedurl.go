package extraction

import (
	"context"
	"fmt"
	"time"

	"github.com/debhub/debhub-backend/internal/logger"
	"github.com/debhub/debhub-backend/internal/platform/gcp"
	"github.com/debhub/debhub-backend/internal/platform/openai"
)

// signedURLStrategy skips local rasterization entirely: it mints a
// time-limited read URL for the stored PDF and hands it to the model.
type signedURLStrategy struct {
	log    *logger.Logger
	ai     openai.Client
	bucket gcp.BucketService

	urlTTL time.Duration
}

func NewSignedURLStrategy(log *logger.Logger, ai openai.Client, bucket gcp.BucketService) Strategy {
	return &signedURLStrategy{
		log:    log.With("strategy", StrategySignedURL),
		ai:     ai,
		bucket: bucket,
		urlTTL: 15 * time.Minute,
	}
}

func (s *signedURLStrategy) Name() string { return StrategySignedURL }

func (s *signedURLStrategy) Extract(ctx context.Context, in Input) (string, Meta, error) {
	if in.StoragePath == "" {
		return "", Meta{}, &ExtractionError{Op: s.Name(), Err: fmt.Errorf("storage path required")}
	}

	url, err := s.bucket.SignedReadURL(in.StoragePath, s.urlTTL)
	if err != nil {
		return "", Meta{}, &ExtractionError{Op: s.Name(), Err: err}
	}

	raw, err := s.ai.GenerateTextWithImages(ctx, systemPrompt, visionUserPrompt(), []openai.ImageInput{
		{ImageURL: url, Detail: "high"},
	})
	if err != nil {
		return "", Meta{}, &ExtractionError{Op: s.Name(), Err: err}
	}
	// page count is unknown without touching the bytes
	return raw, Meta{}, nil
}
