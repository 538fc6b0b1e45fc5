// Package model provides data models for the SeekSense service.
package model

import "time"

// PayloadKind identifies which payload schema a document or chunk carries.
type PayloadKind string

const (
	// PayloadFreeText is a single body of text with title and optional metadata.
	PayloadFreeText PayloadKind = "free_text"
	// PayloadPaired carries structured left/right fields, e.g. a product pair.
	PayloadPaired PayloadKind = "paired"
)

// PairedFields is the structured payload of a paired document.
type PairedFields struct {
	LeftTitle        string `json:"left_title"`
	LeftCategory     string `json:"left_category,omitempty"`
	LeftDescription  string `json:"left_description,omitempty"`
	RightTitle       string `json:"right_title"`
	RightCategory    string `json:"right_category,omitempty"`
	RightDescription string `json:"right_description,omitempty"`
}

// IsZero reports whether no field is set.
func (p *PairedFields) IsZero() bool {
	return p == nil || *p == PairedFields{}
}

// Text renders the paired payload as plain text for chunking.
func (p *PairedFields) Text() string {
	if p.IsZero() {
		return ""
	}
	parts := []string{p.LeftTitle, p.LeftCategory, p.LeftDescription, p.RightTitle, p.RightCategory, p.RightDescription}
	out := ""
	for _, s := range parts {
		if s == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += s
	}
	return out
}

// Document is a unit of text submitted for indexing.
// It is immutable once submitted; re-indexing creates a new version with a new ID.
type Document struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Body        string        `json:"body"`
	Category    string        `json:"category,omitempty"`
	Description string        `json:"description,omitempty"`
	Paired      *PairedFields `json:"paired,omitempty"`
}

// Kind returns the payload kind of the document.
func (d *Document) Kind() PayloadKind {
	if !d.Paired.IsZero() {
		return PayloadPaired
	}
	return PayloadFreeText
}

// ChunkText returns the text that is split into chunks.
// Paired documents without a body are chunked on their rendered fields.
func (d *Document) ChunkText() string {
	if d.Body == "" && d.Kind() == PayloadPaired {
		return d.Paired.Text()
	}
	return d.Body
}

// DocumentStatus is the indexing state recorded in the document catalog.
type DocumentStatus string

const (
	DocumentPending DocumentStatus = "pending"
	DocumentIndexed DocumentStatus = "indexed"
	DocumentFailed  DocumentStatus = "failed"
)

// CatalogEntry is the per-document ledger kept in the document catalog.
type CatalogEntry struct {
	ID          string         `json:"id" bson:"_id"`
	Title       string         `json:"title" bson:"title"`
	Kind        PayloadKind    `json:"kind" bson:"kind"`
	TotalChunks int            `json:"total_chunks" bson:"total_chunks"`
	Inserted    int            `json:"inserted" bson:"inserted"`
	Status      DocumentStatus `json:"status" bson:"status"`
	Error       string         `json:"error,omitempty" bson:"error,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at" bson:"updated_at"`
}
