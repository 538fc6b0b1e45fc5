package handler

import (
	"context"
	stderrors "errors"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/seeksense/internal/pkg/rag/textutil"
	"github.com/kart-io/seeksense/internal/rag/biz"
	"github.com/kart-io/seeksense/internal/rag/store"
	"github.com/kart-io/seeksense/pkg/errors"
	"github.com/kart-io/seeksense/pkg/response"
)

type operation string

const (
	opIndex    operation = "index"
	opSearch   operation = "search"
	opQuery    operation = "query"
	opStats    operation = "stats"
	opDocument operation = "document"
	opCache    operation = "cache"
)

// toErrno 将服务层错误映射为错误码。
func toErrno(op operation, err error) *errors.Errno {
	var e *errors.Errno
	switch {
	case stderrors.As(err, &e):
		return e
	case stderrors.Is(err, biz.ErrEmptyQuery):
		e = errors.ErrSearchEmptyQuery
	case stderrors.Is(err, biz.ErrNoDocuments):
		e = errors.ErrSearchNoDocuments
	case stderrors.Is(err, biz.ErrDuplicateDocumentID):
		e = errors.ErrDuplicateDocument
	case stderrors.Is(err, store.ErrDocumentNotFound):
		e = errors.ErrDocumentNotFound
	case stderrors.Is(err, biz.ErrQueryEmbedFailed):
		e = errors.ErrEmbeddingFailed
	case stderrors.Is(err, context.DeadlineExceeded):
		e = errors.ErrSearchTimeout
	case stderrors.Is(err, textutil.ErrInvalidChunkParams):
		e = errors.ErrChunkConfig
	case stderrors.Is(err, biz.ErrCatalogDisabled), stderrors.Is(err, biz.ErrCacheDisabled):
		e = errors.ErrServiceUnavailable
	default:
		switch op {
		case opIndex:
			e = errors.ErrIndexFailed
		case opStats:
			e = errors.ErrStatsFailed
		case opCache:
			e = errors.ErrCacheClear
		default:
			e = errors.ErrSearchFailed
		}
	}
	return e.WithCause(err)
}

func fail(c *gin.Context, op operation, err error) {
	e := toErrno(op, err)
	if e.HTTPStatus() >= 500 {
		logger.Errorw("request failed", "operation", string(op), "code", e.Code, "error", err.Error())
	}
	response.Fail(c, e)
}
