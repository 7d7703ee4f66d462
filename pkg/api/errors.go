package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harrisonrobin/taskflow/pkg/service"
)

type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"error"`
}

func newAPIError(status int, code, message string) apiError {
	return apiError{Status: status, Code: code, Message: message}
}

func (e apiError) Error() string {
	return e.Message
}

func abort(c *gin.Context, err apiError) {
	c.AbortWithStatusJSON(err.Status, err)
}

func newBadRequestError(message string) apiError {
	return newAPIError(http.StatusBadRequest, "BAD_REQUEST", message)
}

var kindStatus = map[service.Kind]int{
	service.KindNotFound:   http.StatusNotFound,
	service.KindForbidden:  http.StatusForbidden,
	service.KindConflict:   http.StatusConflict,
	service.KindBadRequest: http.StatusBadRequest,
}

// fail maps a service error to its status; anything unclassified is
// logged and reported as a 500 without detail.
func (h *Handler) fail(c *gin.Context, err error) {
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		if status, ok := kindStatus[svcErr.Kind]; ok {
			abort(c, newAPIError(status, svcErr.Code, svcErr.Message))
			return
		}
	}
	h.logger.Error().
		Err(err).
		Str("method", c.Request.Method).
		Str("path", c.FullPath()).
		Msg("request failed")
	abort(c, newAPIError(http.StatusInternalServerError, "INTERNAL", http.StatusText(http.StatusInternalServerError)))
}
