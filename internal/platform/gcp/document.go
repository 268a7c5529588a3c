package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"

	"github.com/debhub/debhub-backend/internal/logger"
	"github.com/debhub/debhub-backend/internal/utils"
)

// OCRText is the raw text pass over a document, before any reasoning.
type OCRText struct {
	Text       string
	Pages      int
	Confidence float64
}

// Document wraps the Document AI OCR processor used by the ocr-then-reason
// extraction strategy.
type Document interface {
	ExtractText(ctx context.Context, data []byte, mimeType string) (*OCRText, error)
	Close() error
}

type documentService struct {
	log       *logger.Logger
	client    *documentai.DocumentProcessorClient
	processor string
}

func NewDocument(log *logger.Logger) (Document, error) {
	serviceLog := log.With("service", "Document")

	projectID := utils.GetEnv("DOCUMENTAI_PROJECT_ID", "", log)
	processorID := utils.GetEnv("DOCUMENTAI_PROCESSOR_ID", "", log)
	if projectID == "" || processorID == "" {
		return nil, fmt.Errorf("missing DOCUMENTAI_PROJECT_ID or DOCUMENTAI_PROCESSOR_ID")
	}
	location := utils.GetEnv("DOCUMENTAI_LOCATION", "eu", log)
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", location)

	opts := []option.ClientOption{option.WithEndpoint(endpoint)}
	if saPath := utils.GetEnv("GOOGLE_APPLICATION_CREDENTIALS_JSON", "", log); saPath != "" {
		opts = append(opts, option.WithCredentialsFile(saPath))
	}

	ctx := context.Background()
	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("documentai client: %w", err)
	}

	serviceLog.Info("Document AI initialized", "endpoint", endpoint)

	return &documentService{
		log:       serviceLog,
		client:    client,
		processor: fmt.Sprintf("projects/%s/locations/%s/processors/%s", projectID, location, processorID),
	}, nil
}

func (s *documentService) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *documentService) ExtractText(ctx context.Context, data []byte, mimeType string) (*OCRText, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty document data")
	}
	if mimeType == "" {
		mimeType = "application/pdf"
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	resp, err := s.client.ProcessDocument(ctx, &documentaipb.ProcessRequest{
		Name: s.processor,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: mimeType,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("documentai process: %w", err)
	}

	doc := resp.GetDocument()
	if doc == nil {
		return nil, fmt.Errorf("documentai returned no document")
	}

	text := strings.TrimSpace(doc.GetText())
	pages := doc.GetPages()

	var confSum float64
	var confCount int
	for _, p := range pages {
		for _, b := range p.GetBlocks() {
			if la := b.GetLayout(); la != nil {
				confSum += float64(la.GetConfidence())
				confCount++
			}
		}
	}
	avg := 0.0
	if confCount > 0 {
		avg = confSum / float64(confCount)
	}

	return &OCRText{
		Text:       text,
		Pages:      len(pages),
		Confidence: avg,
	}, nil
}
