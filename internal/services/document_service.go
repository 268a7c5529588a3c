package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/debhub/debhub-backend/internal/apierr"
	"github.com/debhub/debhub-backend/internal/logger"
	"github.com/debhub/debhub-backend/internal/platform/gcp"
	"github.com/debhub/debhub-backend/internal/repos"
	"github.com/debhub/debhub-backend/internal/requestdata"
	"github.com/debhub/debhub-backend/internal/types"
)

type DocumentService interface {
	// List returns the org's documents, optionally restricted to one batch.
	List(ctx context.Context, rd *requestdata.RequestData, batchID *uuid.UUID) ([]*types.Document, error)
	Get(ctx context.Context, rd *requestdata.RequestData, id uuid.UUID) (*types.Document, error)
	// DownloadURL mints a short-lived read URL for the stored PDF.
	DownloadURL(ctx context.Context, rd *requestdata.RequestData, id uuid.UUID) (string, error)
	Links(ctx context.Context, rd *requestdata.RequestData, id uuid.UUID) ([]*types.DocumentLink, error)
	// Link records a manual association between two documents of the org.
	Link(ctx context.Context, rd *requestdata.RequestData, id, linkedID uuid.UUID) (*types.DocumentLink, error)
}

type documentService struct {
	log    *logger.Logger
	bucket gcp.BucketService

	docRepo  repos.DocumentRepo
	linkRepo repos.DocumentLinkRepo

	urlTTL time.Duration
}

func NewDocumentService(
	baseLog *logger.Logger,
	bucket gcp.BucketService,
	docRepo repos.DocumentRepo,
	linkRepo repos.DocumentLinkRepo,
) DocumentService {
	return &documentService{
		log:      baseLog.With("service", "DocumentService"),
		bucket:   bucket,
		docRepo:  docRepo,
		linkRepo: linkRepo,
		urlTTL:   15 * time.Minute,
	}
}

func (s *documentService) List(ctx context.Context, rd *requestdata.RequestData, batchID *uuid.UUID) ([]*types.Document, error) {
	if batchID != nil {
		docs, err := s.docRepo.ListByBatchID(ctx, nil, *batchID)
		if err != nil {
			return nil, apierr.Persistence(err)
		}
		owned := make([]*types.Document, 0, len(docs))
		for _, d := range docs {
			if d.OrgID == rd.OrgID {
				owned = append(owned, d)
			}
		}
		return owned, nil
	}
	docs, err := s.docRepo.ListByOrgID(ctx, nil, rd.OrgID)
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	return docs, nil
}

func (s *documentService) Get(ctx context.Context, rd *requestdata.RequestData, id uuid.UUID) (*types.Document, error) {
	return s.owned(ctx, rd, id)
}

func (s *documentService) DownloadURL(ctx context.Context, rd *requestdata.RequestData, id uuid.UUID) (string, error) {
	doc, err := s.owned(ctx, rd, id)
	if err != nil {
		return "", err
	}
	url, err := s.bucket.SignedReadURL(doc.StoragePath, s.urlTTL)
	if err != nil {
		return "", apierr.Persistence(err)
	}
	return url, nil
}

func (s *documentService) Links(ctx context.Context, rd *requestdata.RequestData, id uuid.UUID) ([]*types.DocumentLink, error) {
	if _, err := s.owned(ctx, rd, id); err != nil {
		return nil, err
	}
	links, err := s.linkRepo.GetByDocumentID(ctx, nil, id)
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	return links, nil
}

func (s *documentService) Link(ctx context.Context, rd *requestdata.RequestData, id, linkedID uuid.UUID) (*types.DocumentLink, error) {
	if id == linkedID {
		return nil, apierr.BadInput(fmt.Errorf("cannot link a document to itself"))
	}
	// both ends must belong to the caller's org
	if _, err := s.owned(ctx, rd, id); err != nil {
		return nil, err
	}
	if _, err := s.owned(ctx, rd, linkedID); err != nil {
		return nil, err
	}
	link, err := s.linkRepo.Upsert(ctx, nil, &types.DocumentLink{
		DocumentID:       id,
		LinkedDocumentID: linkedID,
		LinkType:         types.LinkTypeManual,
		Confidence:       1.0,
	})
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	s.log.Info("Documents linked", "document_id", id, "linked_document_id", linkedID, "by", rd.UserID)
	return link, nil
}

func (s *documentService) owned(ctx context.Context, rd *requestdata.RequestData, id uuid.UUID) (*types.Document, error) {
	doc, err := s.docRepo.GetByIDWithLines(ctx, nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("document")
		}
		return nil, apierr.Persistence(err)
	}
	if doc.OrgID != rd.OrgID {
		return nil, apierr.NotFound("document")
	}
	return doc, nil
}
