// Package cli provides output formatting and argument parsing for the
// kioku command.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/kioku"
	"github.com/hyperjump/kioku/models"
	"github.com/hyperjump/kioku/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat validates an -output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

// WriteSearchResults writes search results to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\n%d of %d documents in %dms\n\n",
		len(response.Results), response.Total, response.QueryTime)
	for _, result := range response.Results {
		writeOneResult(w, result)
	}
}

func writeOneResult(w io.Writer, result models.SearchResult) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %d | Score: %.4f | Added: %s\n",
		result.Rank, result.Score,
		time.UnixMilli(result.Document.Timestamp).UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "\n%s\n", utils.Truncate(result.Document.Content, 200))
	fmt.Fprintln(w)
}

// WriteStatus writes the store status to w in the given format.
func WriteStatus(w io.Writer, status *kioku.Status, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	default:
		fmt.Fprintf(w, "Store:          %s\n", status.Path)
		fmt.Fprintf(w, "Embedding size: %d\n", status.EmbeddingSize)
		fmt.Fprintf(w, "Documents:      %d / %d\n", status.Documents, status.MaxDocuments)
		fmt.Fprintf(w, "Disk usage:     %d bytes\n", status.DiskUsageBytes)
		return nil
	}
}

// ParseEmbedding parses a comma-separated list of numbers into an embedding
// vector, e.g. "0.12, -0.5, 3".
func ParseEmbedding(s string) ([]float32, error) {
	fields := strings.Split(s, ",")
	embedding := make([]float32, 0, len(fields))
	for _, field := range fields {
		field = strings.TrimSpace(field)
		if field == "" {
			return nil, fmt.Errorf("embedding has an empty component")
		}
		v, err := strconv.ParseFloat(field, 32)
		if err != nil {
			return nil, fmt.Errorf("bad embedding component %q: %w", field, err)
		}
		embedding = append(embedding, float32(v))
	}
	return embedding, nil
}
