package response

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/pathfinder-backend/internal/platform/apierr"
	"github.com/yungbote/pathfinder-backend/internal/platform/logger"
)

const retryAfterSeconds = 5

type ErrorBody struct {
	Status     string `json:"status"`
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

// RespondError writes err as an error envelope. Messages of 5xx errors are
// replaced by a generic text; the underlying error is only logged.
func RespondError(c *gin.Context, log *logger.Logger, err error) {
	ae := apierr.From(err)
	if ae == nil {
		ae = apierr.Internal(errors.New("unknown error"))
	}
	msg := ae.Error()
	if !ae.Public() {
		msg = genericMessage(ae)
		if log != nil {
			log.Error("Request failed",
				"method", c.Request.Method,
				"path", c.FullPath(),
				"status", ae.Status,
				"code", ae.Code,
				"error", ae.Err,
			)
		}
	}
	if ae.Retryable() {
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	_ = c.Error(ae)
	c.AbortWithStatusJSON(ae.Status, ErrorBody{
		Status:     "error",
		StatusCode: ae.Status,
		Message:    msg,
	})
}

func genericMessage(ae *apierr.Error) string {
	switch ae.Code {
	case apierr.CodeUnavailable:
		return "Service temporarily unavailable, please retry"
	case apierr.CodeUpstream:
		return "Upstream service error, please retry"
	default:
		return http.StatusText(ae.Status)
	}
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
