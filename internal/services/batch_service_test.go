package services

import (
	"context"
	"testing"

	"github.com/debhub/debhub-backend/internal/apierr"
	"github.com/debhub/debhub-backend/internal/status"
	"github.com/debhub/debhub-backend/internal/types"
)

func newBatchService(e *testEnv, bucket *fakeBucket) BatchService {
	return NewBatchService(e.db, e.log, bucket, e.batchRepo, e.docRepo, e.lineRepo)
}

func TestCreateFromUploadStoresBlobsAndRows(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	bucket := newFakeBucket()
	svc := newBatchService(e, bucket)

	batch, err := svc.CreateFromUpload(ctx, e.rd, []UploadFile{
		{Filename: "facture mars.pdf", Data: []byte("%PDF-1.7 a")},
		{Filename: "bl/mars.pdf", Data: []byte("%PDF-1.7 b")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.Status != status.BatchUploaded {
		t.Fatalf("expected uploaded, got %s", batch.Status)
	}
	if batch.TotalDocuments != 2 || len(batch.Documents) != 2 {
		t.Fatalf("expected 2 documents, got %d/%d", batch.TotalDocuments, len(batch.Documents))
	}
	if bucket.len() != 2 {
		t.Fatalf("expected 2 blobs, got %d", bucket.len())
	}
	for _, doc := range batch.Documents {
		if doc.Status != status.DocUploaded {
			t.Fatalf("expected document uploaded, got %s", doc.Status)
		}
		if doc.StoragePath == "" {
			t.Fatalf("document missing storage path")
		}
		if _, err := bucket.DownloadFile(ctx, doc.StoragePath); err != nil {
			t.Fatalf("blob missing for %q: %v", doc.StoragePath, err)
		}
	}
}

func TestCreateFromUploadRejectsNonPDF(t *testing.T) {
	e := newTestEnv(t)
	svc := newBatchService(e, newFakeBucket())

	_, err := svc.CreateFromUpload(context.Background(), e.rd, []UploadFile{
		{Filename: "notes.txt", Data: []byte("plain text")},
	})
	if err == nil {
		t.Fatalf("expected error for non-PDF upload")
	}
	if apierr.CodeOf(err) != apierr.CodeBadInput {
		t.Fatalf("expected bad_input, got %s", apierr.CodeOf(err))
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"facture mars.pdf", "facture_mars.pdf"},
		{"../../etc/passwd", "passwd"},
		{"a\\b\\été.pdf", "_t_.pdf"},
		{"", "document.pdf"},
	}
	for _, c := range cases {
		if got := sanitizeFilename(c.in); got != c.want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestDeleteRemovesRowsAndBlobs(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	bucket := newFakeBucket()
	svc := newBatchService(e, bucket)

	batch, err := svc.CreateFromUpload(ctx, e.rd, []UploadFile{
		{Filename: "doc.pdf", Data: []byte("%PDF-1.7")},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	doc := batch.Documents[0]
	if _, err := e.lineRepo.CreateMany(ctx, nil, []*types.Line{
		{DocumentID: doc.ID, LineNo: 1, Description: "x"},
	}); err != nil {
		t.Fatalf("seed line: %v", err)
	}

	if err := svc.Delete(ctx, e.rd, batch.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := svc.Get(ctx, e.rd, batch.ID); err == nil {
		t.Fatalf("expected batch gone")
	}
	lines, err := e.lineRepo.GetByDocumentID(ctx, nil, doc.ID)
	if err != nil {
		t.Fatalf("load lines: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("expected lines gone, got %d", len(lines))
	}
	if bucket.len() != 0 {
		t.Fatalf("expected blobs gone, got %d", bucket.len())
	}
}

func TestGetHidesForeignOrg(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	svc := newBatchService(e, newFakeBucket())

	batch, err := svc.CreateFromUpload(ctx, e.rd, []UploadFile{
		{Filename: "doc.pdf", Data: []byte("%PDF-1.7")},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	other := *e.rd
	other.OrgID = e.rd.UserID
	if _, err := svc.Get(ctx, &other, batch.ID); err == nil {
		t.Fatalf("expected not found for foreign org")
	} else if apierr.StatusOf(err) != 404 {
		t.Fatalf("expected 404, got %d", apierr.StatusOf(err))
	}
}
