package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kioku/models"
)

func testStore() *models.StoreFile {
	file := models.NewStoreFile(3)
	file.Documents = append(file.Documents,
		models.Document{Content: "alpha", Embedding: []float32{1, 0, 0}, Timestamp: 1000},
		models.Document{Content: "beta", Embedding: []float32{0, 1, 0}, Timestamp: 2000},
	)
	return file
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")

	want := testStore()
	if err := Save(path, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got.EmbeddingSize != want.EmbeddingSize {
		t.Errorf("EmbeddingSize = %d, want %d", got.EmbeddingSize, want.EmbeddingSize)
	}
	if len(got.Documents) != len(want.Documents) {
		t.Fatalf("got %d documents, want %d", len(got.Documents), len(want.Documents))
	}
	for i := range want.Documents {
		if got.Documents[i].Content != want.Documents[i].Content {
			t.Errorf("Document %d content = %q, want %q", i, got.Documents[i].Content, want.Documents[i].Content)
		}
		if got.Documents[i].Timestamp != want.Documents[i].Timestamp {
			t.Errorf("Document %d timestamp = %d, want %d", i, got.Documents[i].Timestamp, want.Documents[i].Timestamp)
		}
	}
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")

	if err := Save(path, testStore()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected temp file to be gone, stat error = %v", err)
	}
}

func TestSaveOverwritesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")

	first := models.NewStoreFile(2)
	first.Documents = append(first.Documents, models.Document{Content: "old", Embedding: []float32{1, 1}})
	if err := Save(path, first); err != nil {
		t.Fatal(err)
	}

	second := models.NewStoreFile(2)
	second.Documents = append(second.Documents, models.Document{Content: "new", Embedding: []float32{2, 2}})
	if err := Save(path, second); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Documents) != 1 || got.Documents[0].Content != "new" {
		t.Errorf("expected overwritten store with one document %q, got %+v", "new", got.Documents)
	}
}

func TestSaveFailureKeepsOriginal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")

	if err := Save(path, testStore()); err != nil {
		t.Fatal(err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	// A directory squatting on the temp path makes the write fail before
	// the rename can happen.
	if err := os.Mkdir(path+".tmp", 0755); err != nil {
		t.Fatal(err)
	}

	if err := Save(path, models.NewStoreFile(3)); err == nil {
		t.Fatal("expected Save() to fail when temp path is unwritable")
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("store file changed despite failed save")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Load() error = %v, want fs.ErrNotExist", err)
	}
}

func TestLoadCorruptFile(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "not json at all"},
		{"truncated", `{"embeddingSize": 3, "documents": [`},
		{"missing embedding size", `{"documents": []}`},
		{"zero embedding size", `{"embeddingSize": 0, "documents": []}`},
		{"missing documents", `{"embeddingSize": 3}`},
		{"null documents", `{"embeddingSize": 3, "documents": null}`},
		{"document width mismatch", `{"embeddingSize": 3, "documents": [{"content": "x", "embedding": [1.0], "timestamp": 1}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "store.json")
			if err := os.WriteFile(path, []byte(tt.data), 0644); err != nil {
				t.Fatal(err)
			}

			_, err := Load(path)
			if !errors.Is(err, ErrCorrupt) {
				t.Errorf("Load() error = %v, want ErrCorrupt", err)
			}
		})
	}
}
