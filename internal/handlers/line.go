package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/debhub/debhub-backend/internal/apierr"
	"github.com/debhub/debhub-backend/internal/logger"
	"github.com/debhub/debhub-backend/internal/requestdata"
	"github.com/debhub/debhub-backend/internal/services"
)

type LineHandler struct {
	log        *logger.Logger
	validation services.ValidationService
}

func NewLineHandler(baseLog *logger.Logger, validation services.ValidationService) *LineHandler {
	return &LineHandler{
		log:        baseLog.With("handler", "LineHandler"),
		validation: validation,
	}
}

// List handles GET /batches/:id/lines.
func (h *LineHandler) List(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	id, err := pathUUID(c, "id")
	if err != nil {
		RespondError(c, err)
		return
	}
	lines, err := h.validation.ListLines(c.Request.Context(), rd, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, lines)
}

type updateLinesRequest struct {
	Edits []services.LineEdit `json:"edits"`
}

// Update handles PATCH /batches/:id/lines with a list of review edits.
func (h *LineHandler) Update(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	id, err := pathUUID(c, "id")
	if err != nil {
		RespondError(c, err)
		return
	}
	var req updateLinesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, apierr.BadInput(fmt.Errorf("invalid body: %w", err)))
		return
	}
	lines, err := h.validation.UpdateLines(c.Request.Context(), rd, id, req.Edits)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, lines)
}
