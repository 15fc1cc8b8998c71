// Package models defines the document store's data structures and the
// validation rules that guard them.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Document is a stored text with its embedding vector. Documents are
// immutable once created; the store only ever appends.
type Document struct {
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding"`
	Timestamp int64     `json:"timestamp"` // milliseconds since epoch, set at insert
}

// NewDocument builds a document stamped with the current time. The embedding
// is copied so later mutation by the caller cannot reach the store.
func NewDocument(content string, embedding []float32) Document {
	vec := make([]float32, len(embedding))
	copy(vec, embedding)
	return Document{
		Content:   content,
		Embedding: vec,
		Timestamp: time.Now().UnixMilli(),
	}
}

// ValidateContent rejects empty or whitespace-only content.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("content must not be empty")
	}
	return nil
}
