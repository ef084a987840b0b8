package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursepilot/coursepilot/pkg/agent"
	"github.com/coursepilot/coursepilot/pkg/course"
	"github.com/coursepilot/coursepilot/pkg/provider"
	"github.com/coursepilot/coursepilot/pkg/rag"
)

type fakeSource struct {
	courses map[string]course.Course
}

func (s *fakeSource) Course(_ context.Context, courseID string) (course.Course, error) {
	crs, ok := s.courses[courseID]
	if !ok {
		return course.Course{}, fmt.Errorf("course not found: %s", courseID)
	}
	return crs, nil
}

// scriptedBackend records every dispatch and answers via a script function.
// The script inspects the messages and system prompt to tell routing calls,
// agent calls and synthesis calls apart.
type scriptedBackend struct {
	name   string
	script func(messages []provider.Message, opts provider.Options) (*provider.Completion, error)

	mu    sync.Mutex
	calls []backendCall
}

type backendCall struct {
	messages []provider.Message
	opts     provider.Options
}

func (b *scriptedBackend) Name() string { return b.name }

func (b *scriptedBackend) Complete(_ context.Context, messages []provider.Message, opts provider.Options) (*provider.Completion, error) {
	b.mu.Lock()
	b.calls = append(b.calls, backendCall{messages: messages, opts: opts})
	b.mu.Unlock()
	return b.script(messages, opts)
}

func (b *scriptedBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

func (b *scriptedBackend) sawPromptContaining(marker string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, call := range b.calls {
		for _, m := range call.messages {
			if strings.Contains(m.Content, marker) {
				return true
			}
		}
	}
	return false
}

func isRoutingCall(messages []provider.Message) bool {
	return len(messages) > 0 && strings.Contains(messages[len(messages)-1].Content, "Available agents:")
}

func isSynthesisCall(messages []provider.Message) bool {
	return len(messages) > 0 && strings.Contains(messages[len(messages)-1].Content, "--- Answer from")
}

func openPolicy() course.LLMPolicy {
	return course.LLMPolicy{AllowPrimaryBackend: true, FallbackEnabled: true}
}

func mathCourse(subjects int) course.Course {
	crs := course.Course{
		ID:     "math-101",
		Name:   "Mathematics",
		Policy: openPolicy(),
		Orchestration: &agent.Agent{
			ID:           "orch",
			Name:         "Course Coordinator",
			Kind:         agent.KindOrchestration,
			Instructions: "COORDINATOR-INSTRUCTIONS",
		},
	}
	names := []string{"Algebra Tutor", "Geometry Tutor", "Calculus Tutor"}
	for i := 0; i < subjects; i++ {
		crs.Agents = append(crs.Agents, agent.Agent{
			ID:           fmt.Sprintf("a%d", i+1),
			Name:         names[i],
			Kind:         agent.KindSubject,
			Instructions: fmt.Sprintf("AGENT-%d-INSTRUCTIONS", i+1),
		})
	}
	return crs
}

func newTestEngine(crs course.Course, backend *scriptedBackend, retriever rag.Retriever) (*Engine, *InMemoryStore) {
	router := provider.NewRouter(backend.name, zerolog.Nop(), nil)
	if err := router.Register(backend); err != nil {
		panic(err)
	}

	src := &fakeSource{courses: map[string]course.Course{crs.ID: crs}}
	store := NewInMemoryStore()
	assembler := rag.NewAssembler(retriever, zerolog.Nop(), nil)

	return New(src, router, assembler, store, zerolog.Nop()), store
}

func TestRespondSingleSubjectSkipsRouting(t *testing.T) {
	backend := &scriptedBackend{
		name: "fake",
		script: func(_ []provider.Message, _ provider.Options) (*provider.Completion, error) {
			return &provider.Completion{Content: "a fraction is part of a whole", Usage: provider.Usage{PromptTokens: 10, CompletionTokens: 5}}, nil
		},
	}

	engine, store := newTestEngine(mathCourse(1), backend, nil)

	result, err := engine.Respond(context.Background(), TurnRequest{CourseID: "math-101", Message: "what is a fraction?"})
	require.NoError(t, err)

	assert.Equal(t, "a fraction is part of a whole", result.Content)
	assert.Equal(t, DecisionSingleAgent, result.Decision.Kind)
	assert.Equal(t, []string{"a1"}, result.ContributingAgents)
	assert.Equal(t, "fake", result.BackendUsed)
	assert.Equal(t, 10, result.Usage.PromptTokens)
	assert.NotEmpty(t, result.TurnID)
	assert.NotEmpty(t, result.TraceID)

	// Exactly one dispatch, and no classification prompt went out.
	assert.Equal(t, 1, backend.callCount())
	assert.False(t, backend.sawPromptContaining("Available agents:"))

	history := store.History("math-101")
	require.Len(t, history, 1)
	assert.Equal(t, "a1", history[0].AgentID)
	assert.Equal(t, "what is a fraction?", history[0].UserMessage)
	assert.Equal(t, "a fraction is part of a whole", history[0].AgentResponse)
}

func TestRespondMultiAgentSynthesizes(t *testing.T) {
	backend := &scriptedBackend{
		name: "fake",
		script: func(messages []provider.Message, opts provider.Options) (*provider.Completion, error) {
			switch {
			case isRoutingCall(messages):
				return &provider.Completion{Content: "MULTIPLE_AGENTS: a1, a2"}, nil
			case isSynthesisCall(messages):
				return &provider.Completion{Content: "combined perspective"}, nil
			case strings.Contains(opts.System, "AGENT-1"):
				return &provider.Completion{Content: "algebra view"}, nil
			default:
				return &provider.Completion{Content: "geometry view"}, nil
			}
		},
	}

	engine, store := newTestEngine(mathCourse(2), backend, nil)

	result, err := engine.Respond(context.Background(), TurnRequest{CourseID: "math-101", Message: "how do equations describe shapes?"})
	require.NoError(t, err)

	assert.Equal(t, "combined perspective", result.Content)
	assert.Equal(t, DecisionMultipleAgents, result.Decision.Kind)
	assert.ElementsMatch(t, []string{"a1", "a2"}, result.ContributingAgents)

	// routing + two agents + synthesis
	assert.Equal(t, 4, backend.callCount())

	// Each agent's own answer is recorded, not the synthesized reply.
	history := store.History("math-101")
	require.Len(t, history, 2)
	for _, entry := range history {
		assert.NotEqual(t, "combined perspective", entry.AgentResponse)
	}
}

func TestRespondPartialFailureSkipsSynthesis(t *testing.T) {
	backend := &scriptedBackend{
		name: "fake",
		script: func(messages []provider.Message, opts provider.Options) (*provider.Completion, error) {
			switch {
			case isRoutingCall(messages):
				return &provider.Completion{Content: "MULTIPLE_AGENTS: a1, a2, a3"}, nil
			case strings.Contains(opts.System, "AGENT-1"):
				return &provider.Completion{Content: "algebra view"}, nil
			default:
				return nil, errors.New("model rejected the request")
			}
		},
	}

	engine, store := newTestEngine(mathCourse(3), backend, nil)

	result, err := engine.Respond(context.Background(), TurnRequest{CourseID: "math-101", Message: "how do equations describe shapes?"})
	require.NoError(t, err)

	// One survivor: its raw answer comes back, no synthesis round-trip.
	assert.Equal(t, "algebra view", result.Content)
	assert.Equal(t, []string{"a1"}, result.ContributingAgents)
	assert.False(t, backend.sawPromptContaining("--- Answer from"))

	history := store.History("math-101")
	require.Len(t, history, 1)
	assert.Equal(t, "a1", history[0].AgentID)
}

func TestRespondAllAgentsFailed(t *testing.T) {
	backend := &scriptedBackend{
		name: "fake",
		script: func(messages []provider.Message, _ provider.Options) (*provider.Completion, error) {
			if isRoutingCall(messages) {
				return &provider.Completion{Content: "MULTIPLE_AGENTS: a1, a2"}, nil
			}
			return nil, errors.New("model rejected the request")
		},
	}

	engine, store := newTestEngine(mathCourse(2), backend, nil)

	_, err := engine.Respond(context.Background(), TurnRequest{CourseID: "math-101", Message: "help"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOrchestrationFailure)
	assert.Empty(t, store.History("math-101"))
}

func TestRespondSynthesisFailureFallsBackToFirstSurvivor(t *testing.T) {
	backend := &scriptedBackend{
		name: "fake",
		script: func(messages []provider.Message, opts provider.Options) (*provider.Completion, error) {
			switch {
			case isRoutingCall(messages):
				return &provider.Completion{Content: "MULTIPLE_AGENTS: a1, a2"}, nil
			case isSynthesisCall(messages):
				return nil, errors.New("synthesis rejected")
			case strings.Contains(opts.System, "AGENT-1"):
				return &provider.Completion{Content: "algebra view"}, nil
			default:
				return &provider.Completion{Content: "geometry view"}, nil
			}
		},
	}

	engine, _ := newTestEngine(mathCourse(2), backend, nil)

	result, err := engine.Respond(context.Background(), TurnRequest{CourseID: "math-101", Message: "how do equations describe shapes?"})
	require.NoError(t, err)

	// Both agents answered; with synthesis down, the first completed
	// survivor's answer stands.
	assert.Contains(t, []string{"algebra view", "geometry view"}, result.Content)
	assert.ElementsMatch(t, []string{"a1", "a2"}, result.ContributingAgents)
}

func TestRespondRoutingFailureFallsBackToOrchestrator(t *testing.T) {
	backend := &scriptedBackend{
		name: "fake",
		script: func(messages []provider.Message, _ provider.Options) (*provider.Completion, error) {
			if isRoutingCall(messages) {
				return nil, errors.New("model rejected the request")
			}
			return &provider.Completion{Content: "coordinator answer"}, nil
		},
	}

	engine, _ := newTestEngine(mathCourse(2), backend, nil)

	result, err := engine.Respond(context.Background(), TurnRequest{CourseID: "math-101", Message: "hello"})
	require.NoError(t, err)

	assert.Equal(t, DecisionOrchestratorOnly, result.Decision.Kind)
	assert.Equal(t, "coordinator answer", result.Content)
	assert.Equal(t, []string{"orch"}, result.ContributingAgents)
}

func TestRespondPolicyConflictRejectedBeforeDispatch(t *testing.T) {
	backend := &scriptedBackend{
		name: "fake",
		script: func(_ []provider.Message, _ provider.Options) (*provider.Completion, error) {
			return &provider.Completion{Content: "should never be called"}, nil
		},
	}

	crs := mathCourse(1)
	crs.Policy = course.LLMPolicy{AllowPrimaryBackend: false, PreferredBackend: "fake"}

	engine, _ := newTestEngine(crs, backend, nil)

	_, err := engine.Respond(context.Background(), TurnRequest{CourseID: "math-101", Message: "hello"})
	require.Error(t, err)

	var confErr *course.ConfigurationError
	assert.ErrorAs(t, err, &confErr)
	assert.Zero(t, backend.callCount())
}

func TestRespondNoRespondingAgents(t *testing.T) {
	backend := &scriptedBackend{
		name: "fake",
		script: func(_ []provider.Message, _ provider.Options) (*provider.Completion, error) {
			return &provider.Completion{Content: "unused"}, nil
		},
	}

	crs := course.Course{ID: "empty-101", Name: "Empty", Policy: openPolicy()}
	engine, _ := newTestEngine(crs, backend, nil)

	_, err := engine.Respond(context.Background(), TurnRequest{CourseID: "empty-101", Message: "anyone there?"})
	assert.ErrorIs(t, err, ErrNoRespondingAgents)
	assert.Zero(t, backend.callCount())
}

func TestRespondUnknownCourse(t *testing.T) {
	backend := &scriptedBackend{
		name: "fake",
		script: func(_ []provider.Message, _ provider.Options) (*provider.Completion, error) {
			return &provider.Completion{Content: "unused"}, nil
		},
	}

	engine, _ := newTestEngine(mathCourse(1), backend, nil)

	_, err := engine.Respond(context.Background(), TurnRequest{CourseID: "nope-999", Message: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope-999")
}

type failingRetriever struct{}

func (failingRetriever) Search(context.Context, string, rag.SearchConstraints) (*rag.SearchResponse, error) {
	return nil, errors.New("vector index offline")
}

func TestRespondSurvivesRetrievalFailure(t *testing.T) {
	backend := &scriptedBackend{
		name: "fake",
		script: func(_ []provider.Message, _ provider.Options) (*provider.Completion, error) {
			return &provider.Completion{Content: "answer without material"}, nil
		},
	}

	crs := mathCourse(1)
	crs.Agents[0].RAGEnabled = true

	engine, _ := newTestEngine(crs, backend, failingRetriever{})

	result, err := engine.Respond(context.Background(), TurnRequest{CourseID: "math-101", Message: "what is a fraction?"})
	require.NoError(t, err)
	assert.Equal(t, "answer without material", result.Content)
}

func TestRespondIncludesRetrievedMaterialInSystemPrompt(t *testing.T) {
	backend := &scriptedBackend{
		name: "fake",
		script: func(_ []provider.Message, _ provider.Options) (*provider.Completion, error) {
			return &provider.Completion{Content: "grounded answer"}, nil
		},
	}

	crs := mathCourse(1)
	crs.Agents[0].RAGEnabled = true

	retriever := stubRetriever{response: &rag.SearchResponse{
		Results: []rag.SearchResult{{Content: "a fraction represents equal parts", SourceID: "fractions.md", Score: 0.9}},
		Count:   1,
	}}

	engine, _ := newTestEngine(crs, backend, retriever)

	_, err := engine.Respond(context.Background(), TurnRequest{CourseID: "math-101", Message: "what is a fraction?"})
	require.NoError(t, err)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.calls, 1)
	assert.Contains(t, backend.calls[0].opts.System, "[source: fractions.md]")
	assert.Contains(t, backend.calls[0].opts.System, "a fraction represents equal parts")
}

type stubRetriever struct {
	response *rag.SearchResponse
}

func (r stubRetriever) Search(context.Context, string, rag.SearchConstraints) (*rag.SearchResponse, error) {
	return r.response, nil
}

func TestRespondThreadsHistoryIntoAgentMessages(t *testing.T) {
	backend := &scriptedBackend{
		name: "fake",
		script: func(_ []provider.Message, _ provider.Options) (*provider.Completion, error) {
			return &provider.Completion{Content: "follow-up answer"}, nil
		},
	}

	engine, store := newTestEngine(mathCourse(1), backend, nil)
	store.Append("math-101", ConversationEntry{
		AgentID:       "a1",
		AgentName:     "Algebra Tutor",
		UserMessage:   "what is a fraction?",
		AgentResponse: "part of a whole",
	})

	_, err := engine.Respond(context.Background(), TurnRequest{CourseID: "math-101", Message: "and a numerator?"})
	require.NoError(t, err)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.calls, 1)
	msgs := backend.calls[0].messages
	require.Len(t, msgs, 3)
	assert.Equal(t, provider.RoleUser, msgs[0].Role)
	assert.Equal(t, "what is a fraction?", msgs[0].Content)
	assert.Equal(t, provider.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "part of a whole", msgs[1].Content)
	assert.Equal(t, "and a numerator?", msgs[2].Content)
}
