package metrics

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetRAGMetrics(t *testing.T) {
	assert.Same(t, GetRAGMetrics(), GetRAGMetrics(), "应该返回同一个单例实例")
}

func TestRecordQuery(t *testing.T) {
	m := New()

	m.RecordQuery(true, nil)
	m.RecordQuery(false, nil)
	m.RecordQuery(false, assert.AnError)
	m.RecordRejected()

	q := m.Stats()["queries"].(map[string]any)
	assert.Equal(t, uint64(3), q["total"])
	assert.Equal(t, uint64(1), q["cache_hits"])
	assert.Equal(t, uint64(1), q["cache_misses"])
	assert.Equal(t, uint64(1), q["errors"])
	assert.Equal(t, uint64(1), q["rejected"])
	assert.InDelta(t, 0.5, q["cache_hit_rate"], 1e-9)
}

func TestRecordReassembly(t *testing.T) {
	m := New()

	m.RecordLookup(LookupFound)
	m.RecordLookup(LookupFound)
	m.RecordLookup(LookupEmpty)
	m.RecordLookup(LookupError)
	m.RecordIncomplete(2)
	m.RecordIncomplete(0)

	r := m.Stats()["reassembly"].(map[string]any)
	assert.Equal(t, uint64(2), r["lookups_found"])
	assert.Equal(t, uint64(1), r["lookups_empty"])
	assert.Equal(t, uint64(1), r["lookups_error"])
	assert.Equal(t, uint64(2), r["documents_incomplete"])
}

func TestRecordRetrievalAndIndexing(t *testing.T) {
	m := New()

	m.RecordRetrieval(100*time.Millisecond, nil)
	m.RecordRetrieval(300*time.Millisecond, nil)
	m.RecordRetrieval(0, assert.AnError)
	m.RecordIndexing(3, 7, 1, nil)
	m.RecordIndexing(0, 0, 0, assert.AnError)

	stats := m.Stats()
	r := stats["retrieval"].(map[string]any)
	assert.Equal(t, uint64(3), r["total"])
	assert.Equal(t, uint64(1), r["errors"])

	idx := stats["indexing"].(map[string]any)
	assert.Equal(t, uint64(3), idx["documents_indexed"])
	assert.Equal(t, uint64(7), idx["chunks_indexed"])
	assert.Equal(t, uint64(1), idx["batches_skipped"])
	assert.Equal(t, uint64(1), idx["errors"])
}

func TestExport(t *testing.T) {
	m := New()
	m.RecordQuery(false, nil)
	m.RecordLookup(LookupEmpty)

	out := m.Export("seeksense", "rag")
	assert.Contains(t, out, "# TYPE seeksense_rag_queries_total counter")
	assert.Contains(t, out, "seeksense_rag_queries_total 1\n")
	assert.Contains(t, out, `seeksense_rag_gapfill_lookups_total{outcome="empty"} 1`)
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestConcurrentRecording(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordQuery(false, nil)
			m.RecordLLMCall(time.Millisecond, nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(50), m.Stats()["queries"].(map[string]any)["total"])
	assert.Equal(t, uint64(50), m.Stats()["llm"].(map[string]any)["calls_total"])
}
