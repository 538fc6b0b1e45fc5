package biz

import (
	"context"
	"crypto/sha256"
	"errors"
	"strings"
	"sync"

	"github.com/kart-io/seeksense/internal/model"
	"github.com/kart-io/seeksense/internal/rag/store"
	"github.com/kart-io/seeksense/pkg/llm"
)

const testDim = 8

// hashVector 为文本生成确定性的测试向量。
func hashVector(text string) []float32 {
	sum := sha256.Sum256([]byte(text))
	v := make([]float32, testDim)
	for i := range v {
		v[i] = float32(sum[i]) + 1
	}
	return v
}

// fakeEmbedder 确定性嵌入，包含 failOn 子串的文本使整个请求失败。
type fakeEmbedder struct {
	mu       sync.Mutex
	failOn   string
	err      error
	calls    int
	maxBatch int
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	if len(texts) > f.maxBatch {
		f.maxBatch = len(texts)
	}
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if f.failOn != "" && strings.Contains(t, f.failOn) {
			return nil, errors.New("embedding service unavailable")
		}
		out[i] = hashVector(t)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) Name() string { return "fake" }

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeChat 返回固定回答或错误，并记录最后一次提示词。
type fakeChat struct {
	mu         sync.Mutex
	answer     string
	err        error
	lastPrompt string
	calls      int
}

func (f *fakeChat) Chat(ctx context.Context, _ []llm.Message) (string, error) {
	return f.answer, f.err
}

func (f *fakeChat) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastPrompt = prompt
	return f.answer, f.err
}

func (f *fakeChat) Name() string { return "fake-chat" }

// scriptedStore 在内存存储之上返回预设的检索命中，并可为指定分块注入查找错误。
// 批量查找中带 fetchErr 的分块被静默跳过，与 Milvus 的 in 查询少返回行一致。
type scriptedStore struct {
	*store.MemoryStore

	mu          sync.Mutex
	hits        []*model.SearchHit
	searchErr   error
	insertErr   error
	fetchErr    map[string]error
	batchErr    error
	blockBatch  bool
	searchLimit int
	fetched     []string
	batches     [][]string
}

func newScriptedStore() *scriptedStore {
	return &scriptedStore{
		MemoryStore: store.NewMemoryStore(0, nil),
		fetchErr:    make(map[string]error),
	}
}

func (s *scriptedStore) Search(ctx context.Context, vector []float32, limit int) ([]*model.SearchHit, error) {
	s.mu.Lock()
	s.searchLimit = limit
	s.mu.Unlock()
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	if s.hits == nil {
		return s.MemoryStore.Search(ctx, vector, limit)
	}
	out := s.hits
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *scriptedStore) Insert(ctx context.Context, records []*model.ChunkRecord, embeddings map[string][]float32) (int, error) {
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	return s.MemoryStore.Insert(ctx, records, embeddings)
}

func (s *scriptedStore) FetchOne(ctx context.Context, id string) (*model.ChunkRecord, error) {
	s.mu.Lock()
	s.fetched = append(s.fetched, id)
	err := s.fetchErr[id]
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.MemoryStore.FetchOne(ctx, id)
}

func (s *scriptedStore) FetchByIDs(ctx context.Context, ids []string) ([]*model.ChunkRecord, error) {
	s.mu.Lock()
	s.fetched = append(s.fetched, ids...)
	s.batches = append(s.batches, append([]string(nil), ids...))
	keep := make([]string, 0, len(ids))
	for _, id := range ids {
		if s.fetchErr[id] == nil {
			keep = append(keep, id)
		}
	}
	s.mu.Unlock()

	if s.blockBatch {
		<-ctx.Done()
		return nil, nil
	}
	if s.batchErr != nil {
		return nil, s.batchErr
	}
	return s.MemoryStore.FetchByIDs(ctx, keep)
}

func (s *scriptedStore) fetchedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.fetched...)
}

// put 把记录写入底层存储，向量无关紧要。
func (s *scriptedStore) put(records ...*model.ChunkRecord) {
	emb := make(map[string][]float32, len(records))
	for _, r := range records {
		emb[r.ID] = hashVector(r.ID)
	}
	if _, err := s.MemoryStore.Insert(context.Background(), records, emb); err != nil {
		panic(err)
	}
}

func hit(rec *model.ChunkRecord, score float32) *model.SearchHit {
	return &model.SearchHit{ChunkRecord: *rec, Score: score}
}

// makeRecords 为文档 docID 生成 n 个分块，内容依次为 "{docID}-a"、"{docID}-b" 等。
func makeRecords(docID string, n int) []*model.ChunkRecord {
	chunks := make([]string, n)
	for i := range chunks {
		chunks[i] = docID + "-" + string(rune('a'+i))
	}
	return BuildChunkRecords(&model.Document{ID: docID, Title: "title " + docID}, chunks)
}
