package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/coursepilot/coursepilot/internal/metrics"
	"github.com/coursepilot/coursepilot/pkg/agent"
	"github.com/coursepilot/coursepilot/pkg/course"
	"github.com/coursepilot/coursepilot/pkg/provider"
	"github.com/coursepilot/coursepilot/pkg/rag"
)

const (
	defaultTurnTimeout  = 2 * time.Minute
	defaultAgentTimeout = 60 * time.Second
)

// Engine runs one decision/execution pass per inbound message: classify the
// routing, execute it against one or more agents, synthesize when several
// answered, record the turn.
type Engine struct {
	courses   course.Source
	router    *provider.Router
	assembler *rag.Assembler
	store     ContextStore
	logger    zerolog.Logger
	metrics   *metrics.Metrics

	turnTimeout  time.Duration
	agentTimeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithTurnTimeout overrides the default whole-turn timeout.
func WithTurnTimeout(d time.Duration) Option {
	return func(e *Engine) { e.turnTimeout = d }
}

// WithAgentTimeout overrides the per-agent dispatch timeout used inside a
// fan-out.
func WithAgentTimeout(d time.Duration) Option {
	return func(e *Engine) { e.agentTimeout = d }
}

// WithMetrics attaches a metrics registry.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an orchestration engine.
func New(courses course.Source, router *provider.Router, assembler *rag.Assembler, store ContextStore, logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		courses:      courses,
		router:       router,
		assembler:    assembler,
		store:        store,
		logger:       logger.With().Str("component", "orchestration_engine").Logger(),
		turnTimeout:  defaultTurnTimeout,
		agentTimeout: defaultAgentTimeout,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Respond processes one student message end to end. The caller receives
// either a coherent reply or a typed error; never an empty success.
func (e *Engine) Respond(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	start := time.Now()

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.turnTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	traceID := uuid.New().String()
	turnID, err := gonanoid.New()
	if err != nil {
		turnID = traceID
	}

	logger := e.logger.With().
		Str("trace_id", traceID).
		Str("course_id", req.CourseID).
		Logger()

	crs, err := e.courses.Course(ctx, req.CourseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load course %s: %w", req.CourseID, err)
	}

	if err := crs.Validate(e.router.Primary()); err != nil {
		e.countTurn(req.CourseID, "config_error")
		return nil, err
	}

	history := e.store.History(req.CourseID)

	var usage provider.Usage

	decision, routingUsage, err := e.classify(ctx, crs, req.Message, logger)
	if err != nil {
		e.countTurn(req.CourseID, "error")
		return nil, err
	}
	usage.PromptTokens += routingUsage.PromptTokens
	usage.CompletionTokens += routingUsage.CompletionTokens

	logger.Info().
		Str("decision", string(decision.Kind)).
		Strs("agent_ids", decision.AgentIDs).
		Msg("routing decided")

	if e.metrics != nil {
		e.metrics.RoutingDecisionsTotal.WithLabelValues(string(decision.Kind)).Inc()
	}

	result, err := e.execute(ctx, crs, req.Message, history, decision, &usage, logger)
	if err != nil {
		e.countTurn(req.CourseID, "failed")
		return nil, err
	}

	result.TurnID = turnID
	result.TraceID = traceID
	result.Usage = usage
	result.Decision = decision
	result.Duration = time.Since(start)

	e.countTurn(req.CourseID, "ok")
	if e.metrics != nil {
		e.metrics.TurnDuration.WithLabelValues(req.CourseID).Observe(result.Duration.Seconds())
	}

	logger.Info().
		Strs("contributing_agents", result.ContributingAgents).
		Str("backend_used", result.BackendUsed).
		Dur("duration", result.Duration).
		Msg("turn completed")

	return result, nil
}

func (e *Engine) countTurn(courseID, status string) {
	if e.metrics != nil {
		e.metrics.TurnsTotal.WithLabelValues(courseID, status).Inc()
	}
}

// classify decides how to route the message. A course with exactly one
// subject agent skips the classification call entirely.
func (e *Engine) classify(ctx context.Context, crs course.Course, message string, logger zerolog.Logger) (RoutingDecision, provider.Usage, error) {
	subjects := agent.Subjects(crs.Agents)

	switch len(subjects) {
	case 0:
		if crs.Orchestration == nil {
			return RoutingDecision{}, provider.Usage{}, ErrNoRespondingAgents
		}
		return OrchestratorOnly(), provider.Usage{}, nil
	case 1:
		return SingleAgent(subjects[0].ID), provider.Usage{}, nil
	}

	// Several subject agents: ask the orchestration backend. Roster
	// validation guarantees the orchestration agent exists here.
	orch := crs.Orchestration

	result, err := e.router.Dispatch(ctx,
		[]provider.Message{{Role: provider.RoleUser, Content: buildRoutingPrompt(message, subjects)}},
		e.optionsFor(*orch),
		crs.Policy,
	)
	if err != nil {
		if isFatalDispatchErr(err) {
			return RoutingDecision{}, provider.Usage{}, err
		}
		// Routing is advisory. Fail safe toward the orchestration agent
		// rather than guessing a sub-agent.
		logger.Warn().Err(err).Msg("routing classification failed, answering via orchestration agent")
		return OrchestratorOnly(), provider.Usage{}, nil
	}

	return parseRoutingResponse(result.Content, subjects), result.Usage, nil
}

// isFatalDispatchErr reports errors that doom the whole turn: a policy
// excluding every backend can never be recovered by rerouting.
func isFatalDispatchErr(err error) bool {
	return errors.Is(err, provider.ErrNoProviderAvailable)
}

// execute runs the decision and finalizes the reply.
func (e *Engine) execute(ctx context.Context, crs course.Course, message string, history []ConversationEntry, decision RoutingDecision, usage *provider.Usage, logger zerolog.Logger) (*TurnResult, error) {
	switch decision.Kind {
	case DecisionSingleAgent:
		a, ok := agent.ByID(crs.Agents, decision.AgentIDs[0])
		if !ok {
			return nil, fmt.Errorf("%w: routed agent %s not in course", ErrOrchestrationFailure, decision.AgentIDs[0])
		}

		result, _, err := e.runAgent(ctx, crs, a, message, history)
		if err != nil {
			return nil, fmt.Errorf("%w: agent %s: %v", ErrOrchestrationFailure, a.ID, err)
		}

		usage.PromptTokens += result.Usage.PromptTokens
		usage.CompletionTokens += result.Usage.CompletionTokens

		e.record(crs.ID, a, message, result.Content)

		return &TurnResult{
			Content:            result.Content,
			ContributingAgents: []string{a.ID},
			BackendUsed:        result.BackendUsed,
		}, nil

	case DecisionMultipleAgents:
		return e.executeFanout(ctx, crs, message, history, decision.AgentIDs, usage, logger)

	case DecisionOrchestratorOnly:
		orch := crs.Orchestration
		if orch == nil {
			return nil, ErrNoRespondingAgents
		}

		result, _, err := e.runAgent(ctx, crs, *orch, message, history)
		if err != nil {
			return nil, fmt.Errorf("%w: orchestration agent: %v", ErrOrchestrationFailure, err)
		}

		usage.PromptTokens += result.Usage.PromptTokens
		usage.CompletionTokens += result.Usage.CompletionTokens

		e.record(crs.ID, *orch, message, result.Content)

		return &TurnResult{
			Content:            result.Content,
			ContributingAgents: []string{orch.ID},
			BackendUsed:        result.BackendUsed,
		}, nil

	default:
		return nil, fmt.Errorf("%w: unknown decision kind %q", ErrOrchestrationFailure, decision.Kind)
	}
}

// executeFanout dispatches the selected agents in parallel, tolerating
// individual failures, then synthesizes when two or more answered.
func (e *Engine) executeFanout(ctx context.Context, crs course.Course, message string, history []ConversationEntry, agentIDs []string, usage *provider.Usage, logger zerolog.Logger) (*TurnResult, error) {
	var selected []agent.Agent
	for _, id := range agentIDs {
		if a, ok := agent.ByID(crs.Agents, id); ok {
			selected = append(selected, a)
		}
	}

	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: no routed agents found in course", ErrOrchestrationFailure)
	}

	if e.metrics != nil {
		e.metrics.FanoutSize.Observe(float64(len(selected)))
	}

	outcomes := gather(ctx, selected, e.agentTimeout, func(ctx context.Context, a agent.Agent) (*provider.Result, rag.Context, error) {
		return e.runAgent(ctx, crs, a, message, history)
	})

	for _, o := range outcomes {
		if o.Err != nil {
			logger.Warn().
				Err(o.Err).
				Str("agent_id", o.Agent.ID).
				Dur("duration", o.Duration).
				Msg("agent dropped from aggregation")
			continue
		}
		usage.PromptTokens += o.Result.Usage.PromptTokens
		usage.CompletionTokens += o.Result.Usage.CompletionTokens
	}

	alive := survivors(outcomes)
	if len(alive) == 0 {
		return nil, fmt.Errorf("%w: all %d agents failed", ErrOrchestrationFailure, len(selected))
	}

	contributing := make([]string, len(alive))
	for i, o := range alive {
		contributing[i] = o.Agent.ID
	}

	// History records each agent's own answer in completion order.
	defer func() {
		for _, o := range alive {
			e.record(crs.ID, o.Agent, message, o.Result.Content)
		}
	}()

	// Synthesis is a no-op for a single survivor.
	if len(alive) == 1 {
		return &TurnResult{
			Content:            alive[0].Result.Content,
			ContributingAgents: contributing,
			BackendUsed:        alive[0].Result.BackendUsed,
		}, nil
	}

	synth, err := e.synthesize(ctx, crs, message, alive)
	if err != nil {
		// Degrade to the first surviving answer rather than failing
		// the turn.
		logger.Warn().Err(err).Msg("synthesis failed, returning first agent response")
		if e.metrics != nil {
			e.metrics.SynthesisFallbacks.Inc()
		}
		return &TurnResult{
			Content:            alive[0].Result.Content,
			ContributingAgents: contributing,
			BackendUsed:        alive[0].Result.BackendUsed,
		}, nil
	}

	usage.PromptTokens += synth.Usage.PromptTokens
	usage.CompletionTokens += synth.Usage.CompletionTokens

	return &TurnResult{
		Content:            synth.Content,
		ContributingAgents: contributing,
		BackendUsed:        synth.BackendUsed,
	}, nil
}

// runAgent assembles retrieval context for one agent and dispatches its
// completion. Context assembly always precedes the dispatch.
func (e *Engine) runAgent(ctx context.Context, crs course.Course, a agent.Agent, message string, history []ConversationEntry) (*provider.Result, rag.Context, error) {
	ragCtx := e.assembler.Assemble(ctx, message, a)

	messages := historyMessages(history)
	messages = append(messages, provider.Message{Role: provider.RoleUser, Content: message})

	opts := e.optionsFor(a)
	opts.System = buildSystemPrompt(a, ragCtx)

	result, err := e.router.Dispatch(ctx, messages, opts, crs.Policy)
	if err != nil {
		return nil, ragCtx, err
	}

	return result, ragCtx, nil
}

// synthesize asks the orchestration backend to merge the labeled answers
// into one coherent reply.
func (e *Engine) synthesize(ctx context.Context, crs course.Course, question string, alive []agentOutcome) (*provider.Result, error) {
	orch := crs.Orchestration
	if orch == nil {
		return nil, fmt.Errorf("no orchestration agent for synthesis")
	}

	var b strings.Builder
	b.WriteString("Combine the specialists' answers below into one coherent reply for the student. Resolve overlap, keep each specialist's key points, and answer the original question directly.\n\n")
	b.WriteString("Question: " + question + "\n")
	for _, o := range alive {
		b.WriteString(fmt.Sprintf("\n--- Answer from %s ---\n%s\n", o.Agent.Name, o.Result.Content))
	}

	opts := e.optionsFor(*orch)
	opts.System = orch.Instructions

	return e.router.Dispatch(ctx,
		[]provider.Message{{Role: provider.RoleUser, Content: b.String()}},
		opts,
		crs.Policy,
	)
}

// record appends one completed agent turn. Appends happen only after the
// turn's response is finalized.
func (e *Engine) record(courseID string, a agent.Agent, message, response string) {
	e.store.Append(courseID, ConversationEntry{
		AgentID:       a.ID,
		AgentName:     a.Name,
		UserMessage:   message,
		AgentResponse: response,
		Timestamp:     time.Now(),
	})
}

func (e *Engine) optionsFor(a agent.Agent) provider.Options {
	cfg := a.Config
	if cfg.Model == "" {
		cfg = agent.DefaultModelConfig()
	}
	return provider.Options{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
}

// historyMessages replays the rolling course history as alternating
// user/assistant messages so agents stay grounded in the conversation.
func historyMessages(history []ConversationEntry) []provider.Message {
	var out []provider.Message
	for _, entry := range history {
		out = append(out,
			provider.Message{Role: provider.RoleUser, Content: entry.UserMessage},
			provider.Message{Role: provider.RoleAssistant, Content: entry.AgentResponse},
		)
	}
	return out
}

// buildSystemPrompt composes an agent's instructions, communication style
// and retrieved course material into its system prompt.
func buildSystemPrompt(a agent.Agent, ragCtx rag.Context) string {
	var b strings.Builder
	b.WriteString(a.Instructions)

	var style []string
	if a.Style.Tone != "" {
		style = append(style, "tone: "+a.Style.Tone)
	}
	if a.Style.Formality != "" {
		style = append(style, "formality: "+a.Style.Formality)
	}
	if a.Style.ResponseLength != "" {
		style = append(style, "response length: "+a.Style.ResponseLength)
	}
	if len(style) > 0 {
		b.WriteString("\n\nCommunication style: " + strings.Join(style, ", ") + ".")
	}

	if !ragCtx.Empty() {
		b.WriteString("\n\nRelevant course material:\n")
		for _, chunk := range ragCtx.Chunks {
			b.WriteString(fmt.Sprintf("\n[source: %s]\n%s\n", chunk.SourceID, chunk.Content))
		}
		b.WriteString("\nGround your answer in the material above when it applies.")
	}

	return b.String()
}
