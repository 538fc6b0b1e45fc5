package model

// SearchHit is a chunk returned by a similarity search.
// Score is a similarity, higher is better.
type SearchHit struct {
	ChunkRecord
	Score float32 `json:"score"`
}

// ReassembledDocument is a document rebuilt from its matched chunks.
type ReassembledDocument struct {
	DocumentID  string        `json:"document_id"`
	Title       string        `json:"title"`
	Category    string        `json:"category,omitempty"`
	Description string        `json:"description,omitempty"`
	Kind        PayloadKind   `json:"kind"`
	Content     string        `json:"content,omitempty"`
	Paired      *PairedFields `json:"paired,omitempty"`

	// TopScore is the best score among the chunks returned by the search.
	TopScore float32 `json:"top_score"`

	ChunkCount     int   `json:"chunk_count"`
	TotalChunks    int   `json:"total_chunks"`
	Complete       bool  `json:"complete"`
	MissingIndices []int `json:"missing_indices,omitempty"`
}

// QueryResult is the answer to an end-user query.
type QueryResult struct {
	Query          string                 `json:"query"`
	Classification string                 `json:"classification"`
	Intent         string                 `json:"intent,omitempty"`
	Entities       map[string]string      `json:"entities,omitempty"`
	Documents      []*ReassembledDocument `json:"documents"`
	Response       string                 `json:"response"`
	Cached         bool                   `json:"cached"`
}
