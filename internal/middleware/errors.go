package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/harentsoaR/clinic-api/internal/apperr"
)

type errorBody struct {
	Message string   `json:"message"`
	Code    string   `json:"code"`
	Fields  []string `json:"fields,omitempty"`
	Stack   string   `json:"stack,omitempty"`
}

// ErrorHandler is the only place that turns errors into responses. Handlers
// and middleware record failures with c.Error and return.
func ErrorHandler(production bool, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		status, body := render(err, production)

		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Str("request_id", RequestIDFrom(c)).Str("path", c.Request.URL.Path).Msg("request failed")
		}
		if c.Writer.Written() {
			return
		}
		c.AbortWithStatusJSON(status, body)
	}
}

func render(err error, production bool) (int, errorBody) {
	kind := apperr.KindOf(err)
	body := errorBody{Code: kind.String()}

	var ae *apperr.Error
	if errors.As(err, &ae) {
		body.Message = ae.Message
		body.Fields = ae.Fields
		if !production {
			body.Stack = ae.Stack
		}
	}

	switch kind {
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized, body
	case apperr.KindForbidden:
		return http.StatusForbidden, body
	case apperr.KindNotFound:
		return http.StatusNotFound, body
	case apperr.KindConflict, apperr.KindValidation:
		return http.StatusBadRequest, body
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests, body
	}

	if production {
		body.Message = "Internal Server Error"
	} else {
		body.Message = err.Error()
	}
	return http.StatusInternalServerError, body
}

// NotFound answers unknown routes through the error stage.
func NotFound(c *gin.Context) {
	_ = c.Error(apperr.NotFound("Not Found - " + c.Request.URL.Path))
}
