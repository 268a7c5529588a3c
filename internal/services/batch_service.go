package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/debhub/debhub-backend/internal/apierr"
	"github.com/debhub/debhub-backend/internal/logger"
	"github.com/debhub/debhub-backend/internal/platform/gcp"
	"github.com/debhub/debhub-backend/internal/repos"
	"github.com/debhub/debhub-backend/internal/requestdata"
	"github.com/debhub/debhub-backend/internal/types"
)

// UploadFile is one PDF received in the upload form.
type UploadFile struct {
	Filename string
	Data     []byte
}

type BatchService interface {
	// CreateFromUpload stores every file in the blob store and creates the
	// batch with one document row per file, all in uploaded status.
	CreateFromUpload(ctx context.Context, rd *requestdata.RequestData, files []UploadFile) (*types.Batch, error)
	List(ctx context.Context, rd *requestdata.RequestData) ([]*types.Batch, error)
	Get(ctx context.Context, rd *requestdata.RequestData, id uuid.UUID) (*types.Batch, error)
	ListDocuments(ctx context.Context, rd *requestdata.RequestData, batchID uuid.UUID) ([]*types.Document, error)
	// Delete removes the batch, its documents, lines and blobs. Admin-grade
	// operation; everything else soft-deletes.
	Delete(ctx context.Context, rd *requestdata.RequestData, id uuid.UUID) error
}

type batchService struct {
	db     *gorm.DB
	log    *logger.Logger
	bucket gcp.BucketService

	batchRepo repos.BatchRepo
	docRepo   repos.DocumentRepo
	lineRepo  repos.LineRepo
}

func NewBatchService(
	db *gorm.DB,
	baseLog *logger.Logger,
	bucket gcp.BucketService,
	batchRepo repos.BatchRepo,
	docRepo repos.DocumentRepo,
	lineRepo repos.LineRepo,
) BatchService {
	return &batchService{
		db:        db,
		log:       baseLog.With("service", "BatchService"),
		bucket:    bucket,
		batchRepo: batchRepo,
		docRepo:   docRepo,
		lineRepo:  lineRepo,
	}
}

var pdfMagic = []byte("%PDF")

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if idx := strings.LastIndexAny(name, `/\`); idx >= 0 {
		name = name[idx+1:]
	}
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	if name == "" || name == "." {
		name = "document.pdf"
	}
	return name
}

func storageKey(orgID, batchID uuid.UUID, filename string) string {
	return fmt.Sprintf("deb/%s/%s/%d-%s", orgID, batchID, time.Now().Unix(), sanitizeFilename(filename))
}

func (s *batchService) CreateFromUpload(ctx context.Context, rd *requestdata.RequestData, files []UploadFile) (*types.Batch, error) {
	if len(files) == 0 {
		return nil, apierr.BadInput(fmt.Errorf("no files in upload"))
	}
	for _, f := range files {
		if len(f.Data) == 0 {
			return nil, apierr.BadInput(fmt.Errorf("file %q is empty", f.Filename))
		}
		if !bytes.HasPrefix(f.Data, pdfMagic) {
			return nil, apierr.BadInput(fmt.Errorf("file %q is not a PDF", f.Filename))
		}
	}

	batch := &types.Batch{
		ID:             uuid.New(),
		OrgID:          rd.OrgID,
		SourceFilename: sanitizeFilename(files[0].Filename),
		TotalDocuments: len(files),
	}

	// blobs first so a failed upload leaves no dangling rows
	keys := make([]string, len(files))
	for i, f := range files {
		key := storageKey(rd.OrgID, batch.ID, f.Filename)
		if err := s.bucket.UploadFile(ctx, key, bytes.NewReader(f.Data)); err != nil {
			s.cleanupBlobs(keys[:i])
			return nil, apierr.New(500, apierr.CodePersistence, fmt.Errorf("upload %q: %w", f.Filename, err))
		}
		keys[i] = key
	}
	batch.StoragePath = keys[0]

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.batchRepo.Create(ctx, tx, batch); err != nil {
			return err
		}
		for i, f := range files {
			doc := &types.Document{
				OrgID:       rd.OrgID,
				BatchID:     batch.ID,
				Filename:    sanitizeFilename(f.Filename),
				StoragePath: keys[i],
			}
			if _, err := s.docRepo.Create(ctx, tx, doc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.cleanupBlobs(keys)
		return nil, apierr.Persistence(err)
	}

	s.log.Info("Batch created",
		"batch_id", batch.ID,
		"org_id", rd.OrgID,
		"documents", len(files),
	)
	created, err := s.batchRepo.GetByIDWithDocuments(ctx, nil, batch.ID)
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	return created, nil
}

func (s *batchService) cleanupBlobs(keys []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.bucket.DeleteFile(ctx, key); err != nil {
			s.log.Warn("Failed to clean up blob after aborted upload", "key", key, "error", err)
		}
	}
}

func (s *batchService) List(ctx context.Context, rd *requestdata.RequestData) ([]*types.Batch, error) {
	batches, err := s.batchRepo.ListByOrgID(ctx, nil, rd.OrgID)
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	return batches, nil
}

func (s *batchService) Get(ctx context.Context, rd *requestdata.RequestData, id uuid.UUID) (*types.Batch, error) {
	return s.ownedBatch(ctx, rd, id)
}

func (s *batchService) ownedBatch(ctx context.Context, rd *requestdata.RequestData, id uuid.UUID) (*types.Batch, error) {
	batch, err := s.batchRepo.GetByIDWithDocuments(ctx, nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("batch")
		}
		return nil, apierr.Persistence(err)
	}
	// cross-org access reads as absence, not as forbidden
	if batch.OrgID != rd.OrgID {
		return nil, apierr.NotFound("batch")
	}
	return batch, nil
}

func (s *batchService) ListDocuments(ctx context.Context, rd *requestdata.RequestData, batchID uuid.UUID) ([]*types.Document, error) {
	batch, err := s.ownedBatch(ctx, rd, batchID)
	if err != nil {
		return nil, err
	}
	return batch.Documents, nil
}

func (s *batchService) Delete(ctx context.Context, rd *requestdata.RequestData, id uuid.UUID) error {
	batch, err := s.ownedBatch(ctx, rd, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, doc := range batch.Documents {
			if err := s.lineRepo.FullDeleteByDocumentID(ctx, tx, doc.ID); err != nil {
				return err
			}
		}
		if err := s.docRepo.FullDeleteByBatchID(ctx, tx, batch.ID); err != nil {
			return err
		}
		return s.batchRepo.FullDeleteByID(ctx, tx, batch.ID)
	})
	if err != nil {
		return apierr.Persistence(err)
	}

	// blob deletes after the rows are gone; a leftover blob is recoverable,
	// a dangling row is not
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	seen := map[string]bool{}
	for _, doc := range batch.Documents {
		key := doc.StoragePath
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		g.Go(func() error {
			if err := s.bucket.DeleteFile(gctx, key); err != nil {
				s.log.Warn("Failed to delete blob", "key", key, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	s.log.Info("Batch deleted", "batch_id", batch.ID, "org_id", rd.OrgID)
	return nil
}
