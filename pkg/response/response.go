// Package response writes the JSON envelope used by every HTTP endpoint.
package response

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/kart-io/seeksense/pkg/errors"
)

// Response is the standard API response envelope.
type Response struct {
	// Code is 0 on success, otherwise an errno code.
	Code int `json:"code"`

	// Message is a generic, user-facing message.
	Message string `json:"message"`

	// Detail carries the underlying error text on failure.
	Detail string `json:"detail,omitempty"`

	Data      any    `json:"data,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// RequestIDKey is the gin context key read by the writer.
const RequestIDKey = "request_id"

// OK sends a successful response with data.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, &Response{
		Code:      errors.OK.Code,
		Message:   errors.OK.Message(lang(c)),
		Data:      data,
		RequestID: c.GetString(RequestIDKey),
	})
}

// Fail sends an error response using Errno. The cause, if any, becomes the detail.
func Fail(c *gin.Context, e *errors.Errno) {
	resp := &Response{
		Code:      e.Code,
		Message:   e.Message(lang(c)),
		RequestID: c.GetString(RequestIDKey),
	}
	if cause := e.Cause(); cause != nil {
		resp.Detail = cause.Error()
	}
	c.AbortWithStatusJSON(e.HTTPStatus(), resp)
}

// FailWithError converts a standard error and sends it.
func FailWithError(c *gin.Context, err error) {
	Fail(c, errors.FromError(err))
}

// FailWithBind sends an invalid parameter error for a binding or validation failure.
// Validation errors are reported per field.
func FailWithBind(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) {
		fields := make([]string, len(verrs))
		for i, fe := range verrs {
			fields[i] = fmt.Sprintf("%s: failed on '%s'", fe.Namespace(), fe.Tag())
		}
		err = stderrors.New(strings.Join(fields, "; "))
	}
	Fail(c, errors.ErrInvalidParam.WithCause(err))
}

// lang picks the message language from Accept-Language.
func lang(c *gin.Context) string {
	if strings.HasPrefix(c.GetHeader("Accept-Language"), "zh") {
		return "zh"
	}
	return "en"
}
