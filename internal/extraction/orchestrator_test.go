package extraction

import (
	"context"
	"errors"
	"testing"

	"github.com/debhub/debhub-backend/internal/logger"
)

type stubStrategy struct {
	raw  string
	meta Meta
	err  error
}

func (s *stubStrategy) Name() string { return "stub" }

func (s *stubStrategy) Extract(_ context.Context, _ Input) (string, Meta, error) {
	return s.raw, s.meta, s.err
}

func TestOrchestratorUsesModelConfidence(t *testing.T) {
	o := NewOrchestrator(logger.NewNop(), &stubStrategy{
		raw:  `{"doc_type":"invoice","confidence_avg":0.8,"lines":[]}`,
		meta: Meta{Pages: 3},
	}, "EUR")

	res, err := o.Extract(context.Background(), Input{Data: []byte("%PDF")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ConfidenceAvg != 0.8 {
		t.Fatalf("expected self-reported 0.8, got %v", res.ConfidenceAvg)
	}
	if res.PagesCount != 3 {
		t.Fatalf("expected 3 pages from the strategy, got %d", res.PagesCount)
	}
}

func TestOrchestratorPrefersMeasuredConfidence(t *testing.T) {
	o := NewOrchestrator(logger.NewNop(), &stubStrategy{
		raw:  `{"doc_type":"invoice","confidence_avg":0.99,"lines":[]}`,
		meta: Meta{Confidence: 0.65},
	}, "EUR")

	res, err := o.Extract(context.Background(), Input{Data: []byte("%PDF")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ConfidenceAvg != 0.65 {
		t.Fatalf("measured confidence must win, got %v", res.ConfidenceAvg)
	}
}

func TestOrchestratorClampsReportedConfidence(t *testing.T) {
	o := NewOrchestrator(logger.NewNop(), &stubStrategy{
		raw: `{"doc_type":"invoice","confidence_avg":1.4,"lines":[]}`,
	}, "EUR")

	res, err := o.Extract(context.Background(), Input{Data: []byte("%PDF")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ConfidenceAvg != 1.0 {
		t.Fatalf("expected clamp to 1.0, got %v", res.ConfidenceAvg)
	}
}

func TestOrchestratorWrapsStrategyErrors(t *testing.T) {
	o := NewOrchestrator(logger.NewNop(), &stubStrategy{
		err: errors.New("provider down"),
	}, "EUR")

	_, err := o.Extract(context.Background(), Input{Data: []byte("%PDF")})
	var xerr *ExtractionError
	if !errors.As(err, &xerr) {
		t.Fatalf("expected ExtractionError, got %T", err)
	}

	o = NewOrchestrator(logger.NewNop(), &stubStrategy{
		err: &ParseError{Reason: "not JSON"},
	}, "EUR")
	_, err = o.Extract(context.Background(), Input{Data: []byte("%PDF")})
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError passthrough, got %T", err)
	}
}
