package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// 检索服务错误码: 20 (业务服务范围 20-79)

var (
	// 请求参数错误 (类别 01)
	ErrSearchInvalidRequest = Register(New(MakeCode(ServiceSearch, CategoryRequest, 1), http.StatusBadRequest, codes.InvalidArgument, "Invalid request parameters", "请求参数无效"))
	ErrSearchEmptyQuery     = Register(New(MakeCode(ServiceSearch, CategoryRequest, 2), http.StatusBadRequest, codes.InvalidArgument, "Query text is empty", "查询内容为空"))
	ErrSearchNoDocuments    = Register(New(MakeCode(ServiceSearch, CategoryRequest, 3), http.StatusBadRequest, codes.InvalidArgument, "No documents to index", "没有可索引的文档"))

	// 资源错误 (类别 04)
	ErrDocumentNotFound = Register(New(MakeCode(ServiceSearch, CategoryResource, 1), http.StatusNotFound, codes.NotFound, "Document not found", "文档不存在"))

	// 冲突错误 (类别 05)
	ErrDuplicateDocument = Register(New(MakeCode(ServiceSearch, CategoryConflict, 1), http.StatusConflict, codes.AlreadyExists, "Duplicate document id in batch", "批次内文档 ID 重复"))

	// 内部错误 (类别 07)
	ErrSearchFailed = Register(New(MakeCode(ServiceSearch, CategoryInternal, 1), http.StatusInternalServerError, codes.Internal, "Search failed", "检索失败"))
	ErrIndexFailed  = Register(New(MakeCode(ServiceSearch, CategoryInternal, 2), http.StatusInternalServerError, codes.Internal, "Document indexing failed", "文档索引失败"))
	ErrStatsFailed  = Register(New(MakeCode(ServiceSearch, CategoryInternal, 3), http.StatusInternalServerError, codes.Internal, "Statistics unavailable", "统计信息不可用"))
	ErrCacheClear   = Register(New(MakeCode(ServiceSearch, CategoryInternal, 4), http.StatusInternalServerError, codes.Internal, "Query cache clear failed", "清空查询缓存失败"))

	// 超时 (类别 11)
	ErrSearchTimeout = Register(New(MakeCode(ServiceSearch, CategoryTimeout, 1), http.StatusRequestTimeout, codes.DeadlineExceeded, "Query timeout", "查询超时"))

	// 配置错误 (类别 12)
	ErrChunkConfig = Register(New(MakeCode(ServiceSearch, CategoryConfig, 1), http.StatusInternalServerError, codes.FailedPrecondition, "Invalid chunking configuration", "分块配置无效"))

	// 第三方模型服务 (服务 94)
	ErrEmbeddingFailed = Register(New(MakeCode(ServiceThirdPartyLLM, CategoryNetwork, 1), http.StatusBadGateway, codes.Unavailable, "Embedding provider failed", "向量化服务调用失败"))
	ErrChatFailed      = Register(New(MakeCode(ServiceThirdPartyLLM, CategoryNetwork, 2), http.StatusBadGateway, codes.Unavailable, "Chat provider failed", "对话模型调用失败"))
)
