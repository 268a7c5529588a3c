package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/debhub/debhub-backend/internal/apierr"
)

// ErrorEnvelope is the uniform error body for every endpoint.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func RespondError(c *gin.Context, err error) {
	c.JSON(apierr.StatusOf(err), ErrorEnvelope{
		Error: ErrorBody{
			Message: err.Error(),
			Code:    apierr.CodeOf(err),
		},
	})
}

func RespondOK(c *gin.Context, body interface{}) {
	c.JSON(http.StatusOK, body)
}

func RespondCreated(c *gin.Context, body interface{}) {
	c.JSON(http.StatusCreated, body)
}
