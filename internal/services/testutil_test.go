package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/debhub/debhub-backend/internal/extraction"
	"github.com/debhub/debhub-backend/internal/logger"
	"github.com/debhub/debhub-backend/internal/repos"
	"github.com/debhub/debhub-backend/internal/requestdata"
	"github.com/debhub/debhub-backend/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	// a single connection keeps every query on the same in-memory database
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&types.Batch{},
		&types.Document{},
		&types.Line{},
		&types.DocumentLink{},
		&types.ReferenceEntry{},
		&types.LineAuditLog{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type testEnv struct {
	db  *gorm.DB
	log *logger.Logger

	batchRepo repos.BatchRepo
	docRepo   repos.DocumentRepo
	lineRepo  repos.LineRepo
	linkRepo  repos.DocumentLinkRepo
	refRepo   repos.ReferenceRepo
	auditRepo repos.AuditLogRepo

	rd *requestdata.RequestData
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	log := logger.NewNop()
	return &testEnv{
		db:        db,
		log:       log,
		batchRepo: repos.NewBatchRepo(db, log),
		docRepo:   repos.NewDocumentRepo(db, log),
		lineRepo:  repos.NewLineRepo(db, log),
		linkRepo:  repos.NewDocumentLinkRepo(db, log),
		refRepo:   repos.NewReferenceRepo(db, log),
		auditRepo: repos.NewAuditLogRepo(db, log),
		rd: &requestdata.RequestData{
			UserID: uuid.New(),
			OrgID:  uuid.New(),
		},
	}
}

func (e *testEnv) seedBatch(t *testing.T, docs ...*types.Document) *types.Batch {
	t.Helper()
	ctx := context.Background()
	batch := &types.Batch{
		OrgID:          e.rd.OrgID,
		SourceFilename: "upload.pdf",
		TotalDocuments: len(docs),
	}
	if _, err := e.batchRepo.Create(ctx, nil, batch); err != nil {
		t.Fatalf("seed batch: %v", err)
	}
	for i, doc := range docs {
		doc.OrgID = e.rd.OrgID
		doc.BatchID = batch.ID
		if doc.Filename == "" {
			doc.Filename = fmt.Sprintf("doc-%d.pdf", i+1)
		}
		if doc.StoragePath == "" {
			doc.StoragePath = fmt.Sprintf("deb/%s/%s/doc-%d.pdf", e.rd.OrgID, batch.ID, i+1)
		}
		if _, err := e.docRepo.Create(ctx, nil, doc); err != nil {
			t.Fatalf("seed document: %v", err)
		}
	}
	return batch
}

// fakeBucket is an in-memory gcp.BucketService.
type fakeBucket struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{blobs: map[string][]byte{}}
}

func (b *fakeBucket) UploadFile(_ context.Context, key string, file io.Reader) error {
	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[key] = data
	return nil
}

func (b *fakeBucket) DownloadFile(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.blobs[key]
	if !ok {
		return nil, fmt.Errorf("blob %q not found", key)
	}
	return bytes.Clone(data), nil
}

func (b *fakeBucket) DeleteFile(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blobs, key)
	return nil
}

func (b *fakeBucket) SignedReadURL(key string, _ time.Duration) (string, error) {
	return "https://signed.example.com/" + key, nil
}

func (b *fakeBucket) GetPublicURL(key string) string {
	return "https://storage.example.com/" + key
}

func (b *fakeBucket) put(key string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[key] = data
}

func (b *fakeBucket) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.blobs)
}

// fakeExtractor returns a canned result or error per storage path.
type fakeExtractor struct {
	results map[string]*extraction.Result
	errs    map[string]error
	calls   int
}

func (f *fakeExtractor) Extract(_ context.Context, in extraction.Input) (*extraction.Result, error) {
	f.calls++
	if err, ok := f.errs[in.StoragePath]; ok {
		return nil, err
	}
	if res, ok := f.results[in.StoragePath]; ok {
		return res, nil
	}
	return &extraction.Result{DocType: types.DocTypeInvoice, Currency: "EUR"}, nil
}
