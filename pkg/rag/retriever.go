package rag

import (
	"context"
	"time"
)

// SearchConstraints scopes a retrieval call to a course and, optionally,
// to an explicit set of materials.
type SearchConstraints struct {
	CourseID    string   `json:"course_id"`
	MaterialIDs []string `json:"material_ids,omitempty"` // empty means all course materials
	Limit       int      `json:"limit,omitempty"`
}

// SearchResult is one scored chunk from the retrieval collaborator.
type SearchResult struct {
	Content  string  `json:"content"`
	SourceID string  `json:"source_id"`
	Score    float64 `json:"score"`
}

// SearchResponse is the retrieval collaborator's answer. An empty or absent
// index yields an empty result set, never an error.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
	Latency time.Duration  `json:"latency"`
}

// Retriever is the semantic-search collaborator contract.
type Retriever interface {
	Search(ctx context.Context, query string, constraints SearchConstraints) (*SearchResponse, error)
}
