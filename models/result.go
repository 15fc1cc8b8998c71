package models

// SearchResult is a single ranked hit.
type SearchResult struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"` // cosine similarity in [-1, 1]
	Rank     int      `json:"rank"`
}

// SearchResponse wraps ranked hits for presentation.
type SearchResponse struct {
	Results   []SearchResult `json:"results"`
	Total     int            `json:"total"`
	QueryTime int64          `json:"query_time_ms"`
}
