package e2e

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kioku"
)

const e2eSearchK = 3

func TestE2E_SearchReturnsCorrectResults(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "store.json")
	ctx := context.Background()

	corpus := BuildCorpus()
	if corpus.TotalDocs == 0 {
		t.Fatal("corpus has no documents")
	}
	if corpus.TotalQueries == 0 {
		t.Fatal("corpus has no query test cases")
	}

	store := kioku.New(kioku.WithMaxDocuments(corpus.TotalDocs))
	if err := store.Configure(ctx, storePath, corpus.Dimensions); err != nil {
		t.Fatal(err)
	}
	for i, d := range corpus.Documents {
		if err := store.Add(ctx, d.Content, d.Embedding); err != nil {
			t.Fatalf("add document %d: %v", i, err)
		}
	}

	t.Logf("added %d documents; running %d query test cases", corpus.TotalDocs, corpus.TotalQueries)

	for _, tc := range corpus.TestCases {
		t.Run(tc.Description, func(t *testing.T) {
			resp, err := store.Search(ctx, tc.Query, kioku.WithK(e2eSearchK))
			if err != nil {
				t.Fatalf("search failed: %v", err)
			}
			if resp.Total != corpus.TotalDocs {
				t.Errorf("Total = %d, want %d", resp.Total, corpus.TotalDocs)
			}
			if len(resp.Results) != e2eSearchK {
				t.Fatalf("expected %d results, got %d", e2eSearchK, len(resp.Results))
			}
			if got := resp.Results[0].Document.Content; got != tc.ExpectedContent {
				t.Errorf("top result = %q, want %q", got, tc.ExpectedContent)
			}
			if resp.Results[0].Rank != 1 {
				t.Errorf("top result rank = %d, want 1", resp.Results[0].Rank)
			}
		})
	}
}

// TestE2E_ReopenedStoreSearchesSameResults writes the corpus with one store
// instance and runs the query test cases through a second instance opened on
// the same file, the way separate CLI invocations would.
func TestE2E_ReopenedStoreSearchesSameResults(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "store.json")
	ctx := context.Background()

	corpus := BuildCorpus()

	writer := kioku.New(kioku.WithMaxDocuments(corpus.TotalDocs))
	if err := writer.Configure(ctx, storePath, corpus.Dimensions); err != nil {
		t.Fatal(err)
	}
	for i, d := range corpus.Documents {
		if err := writer.Add(ctx, d.Content, d.Embedding); err != nil {
			t.Fatalf("add document %d: %v", i, err)
		}
	}

	reader := kioku.New(kioku.WithMaxDocuments(corpus.TotalDocs))
	if err := reader.Configure(ctx, storePath, corpus.Dimensions); err != nil {
		t.Fatal(err)
	}

	var run int
	for _, tc := range corpus.TestCases {
		run++
		t.Run(tc.Description, func(t *testing.T) {
			resp, err := reader.Search(ctx, tc.Query, kioku.WithK(e2eSearchK))
			if err != nil {
				t.Fatalf("search failed: %v", err)
			}
			if resp.Total != corpus.TotalDocs {
				t.Errorf("Total = %d, want %d", resp.Total, corpus.TotalDocs)
			}
			if got := resp.Results[0].Document.Content; got != tc.ExpectedContent {
				t.Errorf("top result = %q, want %q", got, tc.ExpectedContent)
			}
		})
	}
	if run == 0 {
		t.Fatal("no query test cases ran against the reopened store")
	}
}
