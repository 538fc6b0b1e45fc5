package biz

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/kart-io/seeksense/internal/model"
	"github.com/kart-io/seeksense/internal/rag/metrics"
	"github.com/kart-io/seeksense/internal/rag/store"
)

// overfetchFactor 重组模式下初始检索数量相对 limit 的倍数。
const overfetchFactor = 3

// LookupKind 补齐查找的结果类型。
type LookupKind string

const (
	LookupFound LookupKind = metrics.LookupFound
	LookupEmpty LookupKind = metrics.LookupEmpty
	LookupError LookupKind = metrics.LookupError
)

// LookupOutcome 一次分块查找的结果。
type LookupOutcome struct {
	ChunkID string     `json:"chunk_id"`
	Kind    LookupKind `json:"kind"`
	// Metadata 为 true 表示这是为获取 total_chunks 做的查找。
	Metadata bool  `json:"metadata,omitempty"`
	Err      error `json:"-"`
}

// SearchResult 检索结果。原始模式填充 Hits，重组模式填充 Documents。
type SearchResult struct {
	Hits      []*model.SearchHit           `json:"hits,omitempty"`
	Documents []*model.ReassembledDocument `json:"documents,omitempty"`
	Lookups   []LookupOutcome              `json:"lookups,omitempty"`
}

// ReassemblerConfig 重组器配置。
type ReassemblerConfig struct {
	// Concurrency 并发查找上限。
	Concurrency int
	// LookupTimeout 单次查找超时。
	LookupTimeout time.Duration
}

// Reassembler 把分块级的检索命中合并回完整文档。
type Reassembler struct {
	store   store.VectorStore
	config  ReassemblerConfig
	metrics *metrics.RAGMetrics
	tracer  trace.Tracer
}

// NewReassembler 创建重组器。m 为 nil 时不记录指标。
func NewReassembler(vectorStore store.VectorStore, config ReassemblerConfig, m *metrics.RAGMetrics) *Reassembler {
	if config.Concurrency <= 0 {
		config.Concurrency = 8
	}
	if config.LookupTimeout <= 0 {
		config.LookupTimeout = 5 * time.Second
	}
	return &Reassembler{
		store:   vectorStore,
		config:  config,
		metrics: m,
		tracer:  otel.Tracer("seeksense/rag/reassembler"),
	}
}

// member 文档组中的一个分块。
type member struct {
	rec   *model.ChunkRecord
	score float32
}

// group 同一父文档的命中。
type group struct {
	docID     string
	singleton bool
	members   map[int]*member
	topScore  float32
	total     int
}

// add 并入一个分块。已有同序号分块时只吸收其 total_chunks 与分数，不替换内容。
func (g *group) add(rec *model.ChunkRecord, score float32) {
	if g.total == 0 && rec.TotalChunks > 0 {
		g.total = rec.TotalChunks
	}
	if score > g.topScore {
		g.topScore = score
	}
	if _, ok := g.members[rec.ChunkIndex]; ok {
		return
	}
	g.members[rec.ChunkIndex] = &member{rec: rec, score: score}
}

// metadataTarget 选择用于获取 total_chunks 的分块序号：
// 优先取已有最大序号以下的第一个空缺，这样查到的记录同时补上一个分块；没有空缺时取 0 号。
func (g *group) metadataTarget() int {
	maxIdx := -1
	for i := range g.members {
		if i > maxIdx {
			maxIdx = i
		}
	}
	for i := 0; i < maxIdx; i++ {
		if _, ok := g.members[i]; !ok {
			return i
		}
	}
	return 0
}

func (g *group) complete() bool {
	if g.singleton {
		return true
	}
	if g.total == 0 {
		return len(g.members) == 1
	}
	return len(g.members) >= g.total
}

func (g *group) missing() []int {
	if g.total == 0 {
		return nil
	}
	var out []int
	for i := 0; i < g.total; i++ {
		if _, ok := g.members[i]; !ok {
			out = append(out, i)
		}
	}
	return out
}

func (g *group) sortedIndices() []int {
	idx := make([]int, 0, len(g.members))
	for i := range g.members {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

// SearchWithReassembly 检索并按需重组文档。
//
// 重组模式先取 limit*3 个命中，按父文档分组，并发补齐缺失分块后合并，
// 再按组内最高分降序（稳定）排序并截断到 limit。检索失败直接返回错误；
// 单个分块查找失败只体现在 Lookups 中，对应文档以 Complete=false 返回。
func (r *Reassembler) SearchWithReassembly(ctx context.Context, vector []float32, limit int, reassemble bool) (*SearchResult, error) {
	if limit <= 0 {
		return &SearchResult{}, nil
	}

	ctx, span := r.tracer.Start(ctx, "Reassembler.SearchWithReassembly",
		trace.WithAttributes(attribute.Int("limit", limit), attribute.Bool("reassemble", reassemble)))
	defer span.End()

	initialLimit := limit
	if reassemble {
		initialLimit = limit * overfetchFactor
	}

	hits, err := r.store.Search(ctx, vector, initialLimit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	if !reassemble {
		if len(hits) > limit {
			hits = hits[:limit]
		}
		return &SearchResult{Hits: hits}, nil
	}

	groups := groupHits(hits)
	lookups := r.resolveTotals(ctx, groups)
	lookups = append(lookups, r.fillGaps(ctx, groups)...)

	docs := make([]*model.ReassembledDocument, 0, len(groups))
	incomplete := 0
	for _, g := range groups {
		doc := mergeGroup(g)
		if !doc.Complete {
			incomplete++
		}
		docs = append(docs, doc)
	}

	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].TopScore > docs[j].TopScore
	})
	if len(docs) > limit {
		docs = docs[:limit]
	}

	if r.metrics != nil {
		for _, l := range lookups {
			r.metrics.RecordLookup(string(l.Kind))
		}
		r.metrics.RecordIncomplete(incomplete)
	}
	span.SetAttributes(
		attribute.Int("hits", len(hits)),
		attribute.Int("groups", len(groups)),
		attribute.Int("lookups", len(lookups)),
	)

	return &SearchResult{Documents: docs, Lookups: lookups}, nil
}

// groupHits 按父文档分组，保持首次出现的顺序。
// 同一序号只保留最先出现（排名最高）的命中，但所有命中的分数都计入 topScore。
func groupHits(hits []*model.SearchHit) []*group {
	var groups []*group
	byID := make(map[string]*group)

	for _, hit := range hits {
		docID, idx, ok := model.ParseChunkID(hit.ID)
		g, exists := byID[docID]
		if !exists {
			g = &group{docID: docID, singleton: !ok, members: make(map[int]*member), topScore: hit.Score}
			byID[docID] = g
			groups = append(groups, g)
		}

		rec := hit.ChunkRecord
		rec.DocumentID = docID
		rec.ChunkIndex = idx
		g.add(&rec, hit.Score)
	}
	return groups
}

// lookupTask 一个组的一次查找：metadata 任务用 FetchOne 取单个分块，补齐任务用 FetchByIDs 批量取缺失分块。
type lookupTask struct {
	g        *group
	chunkIDs []string
	metadata bool
}

// lookupResult 任务的逐 ID 结果，与 chunkIDs 一一对应。
type lookupResult struct {
	outcomes []LookupOutcome
	records  []*model.ChunkRecord
}

// resolveTotals 对分块数未知的多分块组做一次元数据查找以获取 total_chunks。
func (r *Reassembler) resolveTotals(ctx context.Context, groups []*group) []LookupOutcome {
	var tasks []lookupTask
	for _, g := range groups {
		if g.singleton || g.total > 0 || len(g.members) <= 1 {
			continue
		}
		id := model.ChunkID(g.docID, g.metadataTarget())
		tasks = append(tasks, lookupTask{g: g, chunkIDs: []string{id}, metadata: true})
	}
	return r.runLookups(ctx, tasks)
}

// fillGaps 为每个不完整的组批量查找缺失分块，组之间并发。
func (r *Reassembler) fillGaps(ctx context.Context, groups []*group) []LookupOutcome {
	var tasks []lookupTask
	for _, g := range groups {
		if g.singleton || g.total <= 1 || g.complete() {
			continue
		}
		missing := g.missing()
		ids := make([]string, len(missing))
		for i, idx := range missing {
			ids[i] = model.ChunkID(g.docID, idx)
		}
		tasks = append(tasks, lookupTask{g: g, chunkIDs: ids})
	}
	return r.runLookups(ctx, tasks)
}

// runLookups 在并发上限内执行查找，并按任务顺序把找到的分块（分数为 0）并入所属组。
func (r *Reassembler) runLookups(ctx context.Context, tasks []lookupTask) []LookupOutcome {
	if len(tasks) == 0 {
		return nil
	}

	ctx, span := r.tracer.Start(ctx, "Reassembler.lookups", trace.WithAttributes(attribute.Int("tasks", len(tasks))))
	defer span.End()

	results := make([]lookupResult, len(tasks))

	var eg errgroup.Group
	eg.SetLimit(r.config.Concurrency)
	for i, task := range tasks {
		eg.Go(func() error {
			if task.metadata {
				results[i] = r.lookupOne(ctx, task)
			} else {
				results[i] = r.lookupMany(ctx, task)
			}
			return nil
		})
	}
	_ = eg.Wait()

	var outcomes []LookupOutcome
	for i, task := range tasks {
		outcomes = append(outcomes, results[i].outcomes...)
		for _, rec := range results[i].records {
			if rec == nil {
				continue
			}
			_, idx, _ := model.ParseChunkID(rec.ID)
			rec.DocumentID = task.g.docID
			rec.ChunkIndex = idx
			task.g.add(rec, 0)
		}
	}
	return outcomes
}

// lookupOne 元数据查找。
func (r *Reassembler) lookupOne(ctx context.Context, task lookupTask) lookupResult {
	id := task.chunkIDs[0]
	out := LookupOutcome{ChunkID: id, Metadata: true}
	if err := ctx.Err(); err != nil {
		out.Kind, out.Err = LookupError, err
		return lookupResult{outcomes: []LookupOutcome{out}}
	}

	lctx, cancel := context.WithTimeout(ctx, r.config.LookupTimeout)
	defer cancel()

	rec, err := r.store.FetchOne(lctx, id)
	switch {
	case err == nil:
		out.Kind = LookupFound
		return lookupResult{outcomes: []LookupOutcome{out}, records: []*model.ChunkRecord{rec}}
	case store.IsNotFound(err):
		out.Kind = LookupEmpty
	default:
		out.Kind, out.Err = LookupError, err
		logger.Warnw("chunk lookup failed", "chunk_id", id, "error", err.Error())
	}
	return lookupResult{outcomes: []LookupOutcome{out}}
}

// lookupMany 批量补齐查找。FetchByIDs 只返回取到的记录：
// 返回中有的 ID 为 found；缺失的 ID 在查找超时或被取消时为 error，否则为 empty。
func (r *Reassembler) lookupMany(ctx context.Context, task lookupTask) lookupResult {
	res := lookupResult{outcomes: make([]LookupOutcome, len(task.chunkIDs))}
	fail := func(err error) lookupResult {
		for i, id := range task.chunkIDs {
			res.outcomes[i] = LookupOutcome{ChunkID: id, Kind: LookupError, Err: err}
		}
		return res
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	lctx, cancel := context.WithTimeout(ctx, r.config.LookupTimeout)
	defer cancel()

	recs, err := r.store.FetchByIDs(lctx, task.chunkIDs)
	if err != nil {
		logger.Warnw("chunk lookup failed", "document_id", task.g.docID, "chunks", len(task.chunkIDs), "error", err.Error())
		return fail(err)
	}

	byID := make(map[string]*model.ChunkRecord, len(recs))
	for _, rec := range recs {
		byID[rec.ID] = rec
	}
	cutoff := lctx.Err()
	for i, id := range task.chunkIDs {
		out := LookupOutcome{ChunkID: id}
		switch rec, ok := byID[id]; {
		case ok:
			out.Kind = LookupFound
			res.records = append(res.records, rec)
		case cutoff != nil:
			out.Kind, out.Err = LookupError, cutoff
		default:
			out.Kind = LookupEmpty
		}
		res.outcomes[i] = out
	}
	return res
}

// mergeGroup 按序号升序合并组内分块。
func mergeGroup(g *group) *model.ReassembledDocument {
	indices := g.sortedIndices()
	doc := &model.ReassembledDocument{
		DocumentID:  g.docID,
		Kind:        model.PayloadFreeText,
		TopScore:    g.topScore,
		ChunkCount:  len(indices),
		TotalChunks: g.total,
		Complete:    g.complete(),
	}
	if doc.TotalChunks == 0 {
		doc.TotalChunks = len(indices)
	}
	if !doc.Complete {
		doc.MissingIndices = g.missing()
	}

	contents := make([]string, 0, len(indices))
	for _, idx := range indices {
		rec := g.members[idx].rec
		if rec.Content != "" {
			contents = append(contents, rec.Content)
		}
		if doc.Title == "" {
			doc.Title = rec.Title
		}
		if doc.Category == "" {
			doc.Category = rec.Category
		}
		if doc.Description == "" {
			doc.Description = rec.Description
		}
		if doc.Paired == nil && !rec.Paired.IsZero() {
			p := *rec.Paired
			doc.Paired = &p
			doc.Kind = model.PayloadPaired
		}
	}
	doc.Content = strings.Join(contents, " ")
	return doc
}
