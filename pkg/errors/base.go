package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// OK represents a successful operation.
var OK = Register(New(0, http.StatusOK, codes.OK, "Success", "成功"))

// ============================================================================
// Common errors
// ============================================================================

var (
	ErrBadRequest = Register(New(MakeCode(ServiceCommon, CategoryRequest, 0),
		http.StatusBadRequest, codes.InvalidArgument, "Bad request", "请求错误"))
	ErrInvalidParam = Register(New(MakeCode(ServiceCommon, CategoryRequest, 1),
		http.StatusBadRequest, codes.InvalidArgument, "Invalid parameter", "参数无效"))
	ErrNotFound = Register(New(MakeCode(ServiceCommon, CategoryResource, 0),
		http.StatusNotFound, codes.NotFound, "Resource not found", "资源不存在"))
	ErrInternal = Register(New(MakeCode(ServiceCommon, CategoryInternal, 0),
		http.StatusInternalServerError, codes.Internal, "Internal server error", "服务器内部错误"))
	ErrServiceUnavailable = Register(New(MakeCode(ServiceCommon, CategoryNetwork, 0),
		http.StatusServiceUnavailable, codes.Unavailable, "Service unavailable", "服务不可用"))
	ErrRequestTimeout = Register(New(MakeCode(ServiceCommon, CategoryTimeout, 0),
		http.StatusRequestTimeout, codes.DeadlineExceeded, "Request timeout", "请求超时"))
	ErrConfigInvalid = Register(New(MakeCode(ServiceCommon, CategoryConfig, 0),
		http.StatusInternalServerError, codes.FailedPrecondition, "Invalid configuration", "配置无效"))
)
