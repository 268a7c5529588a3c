package handlers

import (
	"fmt"
	"io"
	"mime/multipart"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/debhub/debhub-backend/internal/apierr"
	"github.com/debhub/debhub-backend/internal/logger"
	"github.com/debhub/debhub-backend/internal/requestdata"
	"github.com/debhub/debhub-backend/internal/services"
)

// 50 MB per file keeps batch uploads well under the extractor page cap.
const maxUploadBytes = 50 << 20

type BatchHandler struct {
	log     *logger.Logger
	batches services.BatchService
	process services.ProcessService
}

func NewBatchHandler(baseLog *logger.Logger, batches services.BatchService, process services.ProcessService) *BatchHandler {
	return &BatchHandler{
		log:     baseLog.With("handler", "BatchHandler"),
		batches: batches,
		process: process,
	}
}

// Create handles POST /batches: a multipart form with one or more PDF files
// under the "files" key.
func (h *BatchHandler) Create(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	form, err := c.MultipartForm()
	if err != nil {
		RespondError(c, apierr.BadInput(fmt.Errorf("multipart form required: %w", err)))
		return
	}
	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		RespondError(c, apierr.BadInput(fmt.Errorf("no files under the 'files' key")))
		return
	}

	files := make([]services.UploadFile, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		data, err := readUpload(fh)
		if err != nil {
			RespondError(c, err)
			return
		}
		files = append(files, services.UploadFile{Filename: fh.Filename, Data: data})
	}

	batch, err := h.batches.CreateFromUpload(c.Request.Context(), rd, files)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, batch)
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > maxUploadBytes {
		return nil, apierr.BadInput(fmt.Errorf("file %q exceeds the %d MB limit", fh.Filename, maxUploadBytes>>20))
	}
	f, err := fh.Open()
	if err != nil {
		return nil, apierr.BadInput(fmt.Errorf("open upload %q: %w", fh.Filename, err))
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return nil, apierr.BadInput(fmt.Errorf("read upload %q: %w", fh.Filename, err))
	}
	if len(data) > maxUploadBytes {
		return nil, apierr.BadInput(fmt.Errorf("file %q exceeds the %d MB limit", fh.Filename, maxUploadBytes>>20))
	}
	return data, nil
}

func (h *BatchHandler) List(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	batches, err := h.batches.List(c.Request.Context(), rd)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, batches)
}

func (h *BatchHandler) Get(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	id, err := pathUUID(c, "id")
	if err != nil {
		RespondError(c, err)
		return
	}
	batch, err := h.batches.Get(c.Request.Context(), rd, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, batch)
}

func (h *BatchHandler) Delete(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	id, err := pathUUID(c, "id")
	if err != nil {
		RespondError(c, err)
		return
	}
	if err := h.batches.Delete(c.Request.Context(), rd, id); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": id})
}

// Process handles POST /batches/:id/process. Runs synchronously; the caller
// sees the finished batch, errors included, in the response.
func (h *BatchHandler) Process(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	id, err := pathUUID(c, "id")
	if err != nil {
		RespondError(c, err)
		return
	}
	batch, err := h.process.ProcessBatch(c.Request.Context(), rd, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, batch)
}

func (h *BatchHandler) ListDocuments(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	id, err := pathUUID(c, "id")
	if err != nil {
		RespondError(c, err)
		return
	}
	docs, err := h.batches.ListDocuments(c.Request.Context(), rd, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, docs)
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apierr.BadInput(fmt.Errorf("invalid %s: %w", name, err))
	}
	return id, nil
}
