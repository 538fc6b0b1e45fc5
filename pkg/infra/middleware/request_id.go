// Package middleware provides the gin middleware shared by SeekSense HTTP servers.
package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/seeksense/pkg/response"
)

// HeaderXRequestID is the header name for request ID.
const HeaderXRequestID = "X-Request-ID"

type requestIDKey struct{}

// GetRequestID returns the request ID from the context.
// Returns empty string if not found.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns a middleware that adds a unique request ID to each request.
// The request ID is added to:
//   - Response header (X-Request-ID)
//   - Request context (can be retrieved with GetRequestID)
//   - gin context under response.RequestIDKey
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderXRequestID)
		if requestID == "" {
			requestID = GenerateRequestID()
		}

		c.Header(HeaderXRequestID, requestID)
		c.Set(response.RequestIDKey, requestID)
		c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), requestID))

		c.Next()
	}
}

// requestIDCounter is the atomic counter for fallback request ID generation.
var requestIDCounter uint64

// GenerateRequestID generates a random request ID using cryptographic random bytes.
// If random generation fails, it falls back to a deterministic ID.
func GenerateRequestID() string {
	b := make([]byte, 16)
	n, err := rand.Read(b)
	if err != nil || n != 16 {
		return fmt.Sprintf("%x-%x", time.Now().Unix(), atomic.AddUint64(&requestIDCounter, 1))
	}
	return hex.EncodeToString(b)
}
