package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/debhub/debhub-backend/internal/apierr"
	"github.com/debhub/debhub-backend/internal/logger"
	"github.com/debhub/debhub-backend/internal/requestdata"
	"github.com/debhub/debhub-backend/internal/services"
)

type DocumentHandler struct {
	log        *logger.Logger
	documents  services.DocumentService
	validation services.ValidationService
}

func NewDocumentHandler(baseLog *logger.Logger, documents services.DocumentService, validation services.ValidationService) *DocumentHandler {
	return &DocumentHandler{
		log:        baseLog.With("handler", "DocumentHandler"),
		documents:  documents,
		validation: validation,
	}
}

func (h *DocumentHandler) List(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var batchID *uuid.UUID
	if raw := c.Query("batch_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			RespondError(c, apierr.BadInput(fmt.Errorf("invalid batch_id: %w", err)))
			return
		}
		batchID = &id
	}
	docs, err := h.documents.List(c.Request.Context(), rd, batchID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, docs)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	id, err := pathUUID(c, "id")
	if err != nil {
		RespondError(c, err)
		return
	}
	doc, err := h.documents.Get(c.Request.Context(), rd, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, doc)
}

// Download handles GET /documents/:id/download and returns a short-lived
// signed URL rather than proxying the bytes.
func (h *DocumentHandler) Download(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	id, err := pathUUID(c, "id")
	if err != nil {
		RespondError(c, err)
		return
	}
	url, err := h.documents.DownloadURL(c.Request.Context(), rd, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"url": url})
}

func (h *DocumentHandler) Approve(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	id, err := pathUUID(c, "id")
	if err != nil {
		RespondError(c, err)
		return
	}
	doc, err := h.validation.ApproveDocument(c.Request.Context(), rd, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, doc)
}

func (h *DocumentHandler) Export(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	id, err := pathUUID(c, "id")
	if err != nil {
		RespondError(c, err)
		return
	}
	doc, err := h.validation.MarkExported(c.Request.Context(), rd, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, doc)
}

func (h *DocumentHandler) Links(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	id, err := pathUUID(c, "id")
	if err != nil {
		RespondError(c, err)
		return
	}
	links, err := h.documents.Links(c.Request.Context(), rd, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, links)
}

type createLinkRequest struct {
	LinkedDocumentID uuid.UUID `json:"linked_document_id"`
}

func (h *DocumentHandler) CreateLink(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	id, err := pathUUID(c, "id")
	if err != nil {
		RespondError(c, err)
		return
	}
	var req createLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, apierr.BadInput(fmt.Errorf("invalid body: %w", err)))
		return
	}
	if req.LinkedDocumentID == uuid.Nil {
		RespondError(c, apierr.BadInput(fmt.Errorf("linked_document_id required")))
		return
	}
	link, err := h.documents.Link(c.Request.Context(), rd, id, req.LinkedDocumentID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, link)
}
