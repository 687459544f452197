package response

import (
	"printhub/internal/apperr"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response represents a standard API response format
type Response struct {
	Status     string      `json:"status"`      // "success" or "error"
	StatusCode int         `json:"status_code"` // HTTP status code
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Code       apperr.Kind `json:"code,omitempty"`
}

// Success returns a standard success response wrapping the data
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// Error returns a standard error response wrapping the error message
func Error(statusCode int, err string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      err,
	}
}

// FromError builds the error envelope for a typed application error.
// Internal errors carry a generic message only.
func FromError(err error) Response {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	res := Error(status, apperr.PublicMessage(err))
	res.Code = kind
	return res
}

// Abort writes the error envelope and stops the handler chain. Internal
// errors are logged with the request path before the opaque 500 goes out.
func Abort(c *gin.Context, log *zap.Logger, err error) {
	res := FromError(err)
	if res.Code == apperr.KindInternal && log != nil {
		log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(res.StatusCode, res)
}
