// Package metrics 提供检索服务的业务指标收集。
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// 分块查找结果，与 biz.LookupOutcome 的取值一致。
const (
	LookupFound = "found"
	LookupEmpty = "empty"
	LookupError = "error"
)

// RAGMetrics 检索服务业务指标。
type RAGMetrics struct {
	// 查询指标
	queriesTotal       uint64 // 总查询次数
	queriesCacheHits   uint64 // 缓存命中次数
	queriesCacheMisses uint64 // 缓存未命中次数
	queriesErrors      uint64 // 查询错误次数
	queriesRejected    uint64 // 被安全检查拒绝的查询

	// 检索指标
	retrievalTotal    uint64  // 总检索次数
	retrievalDuration float64 // 检索总耗时（秒）
	retrievalErrors   uint64  // 检索错误次数

	// 重组指标
	lookupsFound        uint64 // 补齐查找命中
	lookupsEmpty        uint64 // 补齐查找为空
	lookupsError        uint64 // 补齐查找失败
	documentsIncomplete uint64 // 返回的不完整文档数

	// LLM 调用指标
	llmCallsTotal    uint64  // LLM 总调用次数
	llmCallsDuration float64 // LLM 调用总耗时（秒）
	llmCallsErrors   uint64  // LLM 调用错误次数

	// 索引指标
	documentsIndexed uint64 // 已索引文档数
	chunksIndexed    uint64 // 已写入分块数
	batchesSkipped   uint64 // 向量化失败跳过的批次
	indexErrors      uint64 // 索引错误次数

	startTime  time.Time
	durationMu sync.Mutex
}

// globalRAGMetrics 全局指标实例。
var (
	globalRAGMetrics *RAGMetrics
	ragMetricsOnce   sync.Once
)

// GetRAGMetrics 获取全局指标实例。
func GetRAGMetrics() *RAGMetrics {
	ragMetricsOnce.Do(func() {
		globalRAGMetrics = New()
	})
	return globalRAGMetrics
}

// New 创建独立的指标实例。
func New() *RAGMetrics {
	return &RAGMetrics{startTime: time.Now()}
}

// RecordQuery 记录查询。
func (m *RAGMetrics) RecordQuery(cacheHit bool, err error) {
	atomic.AddUint64(&m.queriesTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.queriesErrors, 1)
		return
	}
	if cacheHit {
		atomic.AddUint64(&m.queriesCacheHits, 1)
	} else {
		atomic.AddUint64(&m.queriesCacheMisses, 1)
	}
}

// RecordRejected 记录被安全检查拒绝的查询。
func (m *RAGMetrics) RecordRejected() {
	atomic.AddUint64(&m.queriesRejected, 1)
}

// RecordRetrieval 记录检索操作。
func (m *RAGMetrics) RecordRetrieval(duration time.Duration, err error) {
	atomic.AddUint64(&m.retrievalTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.retrievalErrors, 1)
		return
	}

	m.durationMu.Lock()
	m.retrievalDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordLookup 记录一次补齐查找的结果。
func (m *RAGMetrics) RecordLookup(outcome string) {
	switch outcome {
	case LookupFound:
		atomic.AddUint64(&m.lookupsFound, 1)
	case LookupEmpty:
		atomic.AddUint64(&m.lookupsEmpty, 1)
	default:
		atomic.AddUint64(&m.lookupsError, 1)
	}
}

// RecordIncomplete 记录返回的不完整文档数。
func (m *RAGMetrics) RecordIncomplete(n int) {
	if n > 0 {
		atomic.AddUint64(&m.documentsIncomplete, uint64(n))
	}
}

// RecordLLMCall 记录 LLM 调用。
func (m *RAGMetrics) RecordLLMCall(duration time.Duration, err error) {
	atomic.AddUint64(&m.llmCallsTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.llmCallsErrors, 1)
		return
	}

	m.durationMu.Lock()
	m.llmCallsDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordIndexing 记录一次索引运行。
func (m *RAGMetrics) RecordIndexing(documents, chunks, skippedBatches int, err error) {
	atomic.AddUint64(&m.documentsIndexed, uint64(documents))
	atomic.AddUint64(&m.chunksIndexed, uint64(chunks))
	atomic.AddUint64(&m.batchesSkipped, uint64(skippedBatches))
	if err != nil {
		atomic.AddUint64(&m.indexErrors, 1)
	}
}

// Export 导出 Prometheus 文本格式指标。
func (m *RAGMetrics) Export(namespace, subsystem string) string {
	var sb strings.Builder
	prefix := namespace
	if subsystem != "" {
		prefix = prefix + "_" + subsystem
	}

	write := func(name, kind, help string, value any) {
		fmt.Fprintf(&sb, "# HELP %s_%s %s\n", prefix, name, help)
		fmt.Fprintf(&sb, "# TYPE %s_%s %s\n", prefix, name, kind)
		switch v := value.(type) {
		case float64:
			fmt.Fprintf(&sb, "%s_%s %.6f\n\n", prefix, name, v)
		default:
			fmt.Fprintf(&sb, "%s_%s %v\n\n", prefix, name, v)
		}
	}

	m.durationMu.Lock()
	retrievalDuration := m.retrievalDuration
	llmDuration := m.llmCallsDuration
	m.durationMu.Unlock()

	// 查询指标
	write("queries_total", "counter", "Total number of queries.", atomic.LoadUint64(&m.queriesTotal))
	write("queries_cache_hits_total", "counter", "Number of cache hits.", atomic.LoadUint64(&m.queriesCacheHits))
	write("queries_cache_misses_total", "counter", "Number of cache misses.", atomic.LoadUint64(&m.queriesCacheMisses))
	write("queries_errors_total", "counter", "Number of query errors.", atomic.LoadUint64(&m.queriesErrors))
	write("queries_rejected_total", "counter", "Number of queries rejected by the guard.", atomic.LoadUint64(&m.queriesRejected))
	write("cache_hit_rate", "gauge", "Cache hit rate (0-1).", m.cacheHitRate())

	// 检索指标
	write("retrieval_total", "counter", "Total number of retrievals.", atomic.LoadUint64(&m.retrievalTotal))
	write("retrieval_duration_seconds_total", "counter", "Total retrieval duration.", retrievalDuration)
	write("retrieval_errors_total", "counter", "Number of retrieval errors.", atomic.LoadUint64(&m.retrievalErrors))

	// 重组指标
	for _, l := range []struct {
		outcome string
		v       *uint64
	}{{LookupFound, &m.lookupsFound}, {LookupEmpty, &m.lookupsEmpty}, {LookupError, &m.lookupsError}} {
		fmt.Fprintf(&sb, "%s_gapfill_lookups_total{outcome=%q} %d\n", prefix, l.outcome, atomic.LoadUint64(l.v))
	}
	sb.WriteString("\n")
	write("documents_incomplete_total", "counter", "Reassembled documents returned incomplete.", atomic.LoadUint64(&m.documentsIncomplete))

	// LLM 调用指标
	write("llm_calls_total", "counter", "Total number of LLM calls.", atomic.LoadUint64(&m.llmCallsTotal))
	write("llm_calls_duration_seconds_total", "counter", "Total LLM call duration.", llmDuration)
	write("llm_calls_errors_total", "counter", "Number of LLM call errors.", atomic.LoadUint64(&m.llmCallsErrors))

	// 索引指标
	write("documents_indexed_total", "counter", "Total documents indexed.", atomic.LoadUint64(&m.documentsIndexed))
	write("chunks_indexed_total", "counter", "Total chunks persisted.", atomic.LoadUint64(&m.chunksIndexed))
	write("batches_skipped_total", "counter", "Indexing batches skipped after embedding failures.", atomic.LoadUint64(&m.batchesSkipped))
	write("index_errors_total", "counter", "Number of indexing errors.", atomic.LoadUint64(&m.indexErrors))

	write("uptime_seconds", "gauge", "Service uptime in seconds.", m.uptime())

	return sb.String()
}

func (m *RAGMetrics) cacheHitRate() float64 {
	hits := atomic.LoadUint64(&m.queriesCacheHits)
	total := hits + atomic.LoadUint64(&m.queriesCacheMisses)
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

func (m *RAGMetrics) uptime() float64 {
	m.durationMu.Lock()
	defer m.durationMu.Unlock()
	return time.Since(m.startTime).Seconds()
}

// Stats 返回当前统计信息（用于 API）。
func (m *RAGMetrics) Stats() map[string]any {
	m.durationMu.Lock()
	retrievalDuration := m.retrievalDuration
	llmDuration := m.llmCallsDuration
	m.durationMu.Unlock()

	retrievalTotal := atomic.LoadUint64(&m.retrievalTotal)
	avgRetrieval := 0.0
	if retrievalTotal > 0 {
		avgRetrieval = retrievalDuration / float64(retrievalTotal)
	}

	llmTotal := atomic.LoadUint64(&m.llmCallsTotal)
	avgLLM := 0.0
	if llmTotal > 0 {
		avgLLM = llmDuration / float64(llmTotal)
	}

	return map[string]any{
		"queries": map[string]any{
			"total":          atomic.LoadUint64(&m.queriesTotal),
			"cache_hits":     atomic.LoadUint64(&m.queriesCacheHits),
			"cache_misses":   atomic.LoadUint64(&m.queriesCacheMisses),
			"cache_hit_rate": m.cacheHitRate(),
			"errors":         atomic.LoadUint64(&m.queriesErrors),
			"rejected":       atomic.LoadUint64(&m.queriesRejected),
		},
		"retrieval": map[string]any{
			"total":             retrievalTotal,
			"avg_duration_secs": avgRetrieval,
			"errors":            atomic.LoadUint64(&m.retrievalErrors),
		},
		"reassembly": map[string]any{
			"lookups_found":        atomic.LoadUint64(&m.lookupsFound),
			"lookups_empty":        atomic.LoadUint64(&m.lookupsEmpty),
			"lookups_error":        atomic.LoadUint64(&m.lookupsError),
			"documents_incomplete": atomic.LoadUint64(&m.documentsIncomplete),
		},
		"llm": map[string]any{
			"calls_total":       llmTotal,
			"avg_duration_secs": avgLLM,
			"errors":            atomic.LoadUint64(&m.llmCallsErrors),
		},
		"indexing": map[string]any{
			"documents_indexed": atomic.LoadUint64(&m.documentsIndexed),
			"chunks_indexed":    atomic.LoadUint64(&m.chunksIndexed),
			"batches_skipped":   atomic.LoadUint64(&m.batchesSkipped),
			"errors":            atomic.LoadUint64(&m.indexErrors),
		},
		"uptime_seconds": m.uptime(),
	}
}
