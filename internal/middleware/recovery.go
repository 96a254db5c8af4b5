package middleware

import (
	"fmt"
	"runtime"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/harentsoaR/clinic-api/internal/apperr"
)

// Recovery turns a panic into an unexpected error for ErrorHandler.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			var stack [4096]byte
			n := runtime.Stack(stack[:], false)
			log.Error().
				Str("request_id", RequestIDFrom(c)).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(stack[:n])).
				Msg("panic recovered")

			_ = c.Error(apperr.Wrap(fmt.Errorf("panic: %v", r), "Internal Server Error"))
			c.Abort()
		}()
		c.Next()
	}
}
