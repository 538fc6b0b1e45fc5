package model

import (
	"strconv"
	"strings"
)

// chunkSeparator joins the parent document ID and the chunk index.
const chunkSeparator = "_chunk_"

// ChunkRecord is one stored fragment of a document.
// TotalChunks is zero when the count is unknown.
type ChunkRecord struct {
	ID          string        `json:"id"`
	DocumentID  string        `json:"document_id"`
	ChunkIndex  int           `json:"chunk_index"`
	TotalChunks int           `json:"total_chunks"`
	Title       string        `json:"title"`
	Content     string        `json:"content,omitempty"`
	Category    string        `json:"category,omitempty"`
	Description string        `json:"description,omitempty"`
	Paired      *PairedFields `json:"paired,omitempty"`
}

// Kind returns the payload kind of the chunk.
func (c *ChunkRecord) Kind() PayloadKind {
	if !c.Paired.IsZero() {
		return PayloadPaired
	}
	return PayloadFreeText
}

// ChunkID builds the deterministic ID of chunk i of a document.
func ChunkID(documentID string, index int) string {
	return documentID + chunkSeparator + strconv.Itoa(index)
}

// ParseChunkID splits a chunk ID into its parent document ID and index.
// IDs without a trailing "_chunk_{n}" suffix are whole documents: the ID
// itself is returned with index 0 and ok set to false.
func ParseChunkID(id string) (documentID string, index int, ok bool) {
	pos := strings.LastIndex(id, chunkSeparator)
	if pos <= 0 {
		return id, 0, false
	}
	n, err := strconv.Atoi(id[pos+len(chunkSeparator):])
	if err != nil || n < 0 {
		return id, 0, false
	}
	return id[:pos], n, true
}
