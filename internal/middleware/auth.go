package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/debhub/debhub-backend/internal/apierr"
	"github.com/debhub/debhub-backend/internal/handlers"
	"github.com/debhub/debhub-backend/internal/logger"
	"github.com/debhub/debhub-backend/internal/requestdata"
	"github.com/debhub/debhub-backend/internal/utils"
)

type claims struct {
	UserID string `json:"user_id"`
	OrgID  string `json:"org_id"`
	jwt.RegisteredClaims
}

// Auth verifies the bearer token and stashes the caller identity in the
// request context. Every protected route runs behind it.
func Auth(log *logger.Logger) gin.HandlerFunc {
	secret := []byte(utils.GetEnv("JWT_SECRET_KEY", "", log))
	mlog := log.With("middleware", "Auth")

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			abort(c, apierr.New(http.StatusUnauthorized, apierr.CodeAuth, fmt.Errorf("missing bearer token")))
			return
		}
		tokenString := strings.TrimPrefix(header, "Bearer ")

		var cl claims
		token, err := jwt.ParseWithClaims(tokenString, &cl, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			mlog.Warn("Rejected token", "error", err)
			abort(c, apierr.New(http.StatusUnauthorized, apierr.CodeAuth, fmt.Errorf("invalid token")))
			return
		}

		userID, err := uuid.Parse(cl.UserID)
		if err != nil {
			abort(c, apierr.New(http.StatusUnauthorized, apierr.CodeAuth, fmt.Errorf("token has no valid user id")))
			return
		}
		orgID, err := uuid.Parse(cl.OrgID)
		if err != nil {
			abort(c, apierr.Forbidden(fmt.Errorf("token has no org membership")))
			return
		}

		rd := &requestdata.RequestData{
			TokenString: tokenString,
			UserID:      userID,
			OrgID:       orgID,
		}
		c.Request = c.Request.WithContext(requestdata.WithRequestData(c.Request.Context(), rd))
		c.Next()
	}
}

func abort(c *gin.Context, err error) {
	c.Abort()
	handlers.RespondError(c, err)
}
