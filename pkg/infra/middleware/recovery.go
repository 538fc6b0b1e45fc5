package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/seeksense/pkg/response"
)

// Recovery returns a middleware that recovers from panics.
// It converts panics to JSON error responses using the error code system.
// A panic carrying an Errno keeps its code.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorw("panic recovered",
					"path", c.Request.URL.Path,
					"request_id", GetRequestID(c.Request.Context()),
					"panic", fmt.Sprint(r),
					"stack", string(debug.Stack()),
				)
				err, ok := r.(error)
				if !ok {
					err = fmt.Errorf("panic: %v", r)
				}
				response.FailWithError(c, err)
			}
		}()
		c.Next()
	}
}
