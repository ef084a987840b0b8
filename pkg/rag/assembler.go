package rag

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/coursepilot/coursepilot/internal/metrics"
	"github.com/coursepilot/coursepilot/pkg/agent"
)

// MaxChunks caps how many retrieved chunks feed a single agent prompt.
const MaxChunks = 5

// RetrievedChunk is a request-scoped piece of course material.
type RetrievedChunk struct {
	Content  string  `json:"content"`
	SourceID string  `json:"source_id"`
	Score    float64 `json:"score"`
}

// Context is the assembled retrieval context for one agent and one message.
// Confidence is the mean collaborator score, 0 when nothing was retrieved.
type Context struct {
	Chunks     []RetrievedChunk `json:"chunks"`
	Confidence float64          `json:"confidence"`
}

// Empty reports whether no chunks were retrieved.
func (c Context) Empty() bool {
	return len(c.Chunks) == 0
}

// Assembler builds per-agent retrieval context. Retrieval is best effort:
// failures degrade to an empty context rather than failing the turn.
type Assembler struct {
	retriever Retriever
	logger    zerolog.Logger
	metrics   *metrics.Metrics
}

// NewAssembler creates a context assembler backed by the given retriever.
// A nil retriever disables retrieval entirely.
func NewAssembler(retriever Retriever, logger zerolog.Logger, m *metrics.Metrics) *Assembler {
	return &Assembler{
		retriever: retriever,
		logger:    logger.With().Str("component", "context_assembler").Logger(),
		metrics:   m,
	}
}

// Assemble retrieves the chunks relevant to message for the given agent.
// Agents without retrieval enabled short-circuit without touching the
// collaborator.
func (a *Assembler) Assemble(ctx context.Context, message string, ag agent.Agent) Context {
	if !ag.RAGEnabled || a.retriever == nil {
		return Context{}
	}

	if a.metrics != nil {
		a.metrics.RetrievalRequestsTotal.Inc()
	}

	resp, err := a.retriever.Search(ctx, message, SearchConstraints{
		CourseID:    ag.CourseID,
		MaterialIDs: ag.MaterialIDs,
		Limit:       MaxChunks,
	})
	if err != nil {
		a.logger.Warn().
			Err(err).
			Str("agent_id", ag.ID).
			Str("course_id", ag.CourseID).
			Msg("retrieval failed, continuing with empty context")
		if a.metrics != nil {
			a.metrics.RetrievalDegradationsTotal.Inc()
		}
		return Context{}
	}

	results := resp.Results
	if len(results) > MaxChunks {
		results = results[:MaxChunks]
	}

	if len(results) == 0 {
		return Context{}
	}

	chunks := make([]RetrievedChunk, 0, len(results))
	total := 0.0
	for _, r := range results {
		chunks = append(chunks, RetrievedChunk{
			Content:  r.Content,
			SourceID: r.SourceID,
			Score:    r.Score,
		})
		total += r.Score
	}

	return Context{
		Chunks:     chunks,
		Confidence: total / float64(len(chunks)),
	}
}
