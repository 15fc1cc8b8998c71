package models

import (
	"encoding/json"
	"fmt"
)

// StoreFile is the unit of persistence: one store, one JSON file, always
// read and written whole.
type StoreFile struct {
	EmbeddingSize int        `json:"embeddingSize"`
	Documents     []Document `json:"documents"` // insertion order; the store's only index
}

// NewStoreFile returns an empty store for the given embedding width.
func NewStoreFile(embeddingSize int) *StoreFile {
	return &StoreFile{
		EmbeddingSize: embeddingSize,
		Documents:     []Document{},
	}
}

// Encode renders the store in its on-disk representation.
func (f *StoreFile) Encode() ([]byte, error) {
	return json.MarshalIndent(f, "", "  ")
}

// DecodeStoreFile parses data and validates it against the store schema.
// Content that parses but does not describe a usable store is rejected here
// rather than trusted downstream.
func DecodeStoreFile(data []byte) (*StoreFile, error) {
	var f StoreFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse store file: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks the schema invariants: a positive embedding size, a
// documents array that is present (nil means the field was absent or null in
// the source JSON), and every document embedding exactly as wide as declared.
func (f *StoreFile) Validate() error {
	if f.EmbeddingSize <= 0 {
		return fmt.Errorf("store schema: embeddingSize must be positive, got %d", f.EmbeddingSize)
	}
	if f.Documents == nil {
		return fmt.Errorf("store schema: documents array is missing")
	}
	for i, doc := range f.Documents {
		if len(doc.Embedding) != f.EmbeddingSize {
			return fmt.Errorf("store schema: document %d has a %d-dimension embedding, store declares %d",
				i, len(doc.Embedding), f.EmbeddingSize)
		}
	}
	return nil
}
