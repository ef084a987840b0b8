package orchestrator

import (
	"time"

	"github.com/coursepilot/coursepilot/pkg/provider"
)

// DecisionKind names the routing outcomes.
type DecisionKind string

const (
	DecisionSingleAgent      DecisionKind = "single_agent"
	DecisionMultipleAgents   DecisionKind = "multiple_agents"
	DecisionOrchestratorOnly DecisionKind = "orchestrator_only"
)

// RoutingDecision is produced once per message and consumed once.
// AgentIDs is populated for the single- and multiple-agent variants.
type RoutingDecision struct {
	Kind     DecisionKind `json:"kind"`
	AgentIDs []string     `json:"agent_ids,omitempty"`
}

// SingleAgent routes the message to one subject agent.
func SingleAgent(agentID string) RoutingDecision {
	return RoutingDecision{Kind: DecisionSingleAgent, AgentIDs: []string{agentID}}
}

// MultipleAgents fans the message out to several subject agents.
func MultipleAgents(agentIDs []string) RoutingDecision {
	return RoutingDecision{Kind: DecisionMultipleAgents, AgentIDs: agentIDs}
}

// OrchestratorOnly lets the orchestration agent answer directly.
func OrchestratorOnly() RoutingDecision {
	return RoutingDecision{Kind: DecisionOrchestratorOnly}
}

// ConversationEntry is one completed agent turn in a course's history.
type ConversationEntry struct {
	AgentID       string    `json:"agent_id"`
	AgentName     string    `json:"agent_name"`
	UserMessage   string    `json:"user_message"`
	AgentResponse string    `json:"agent_response"`
	Timestamp     time.Time `json:"timestamp"`
}

// TurnRequest is one inbound student message.
type TurnRequest struct {
	CourseID string `json:"course_id"`
	Message  string `json:"message"`

	// Timeout bounds the whole turn. Zero applies the engine default.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// TurnResult is the orchestrator's reply for one turn.
type TurnResult struct {
	TurnID             string          `json:"turn_id"`
	TraceID            string          `json:"trace_id"`
	Content            string          `json:"content"`
	ContributingAgents []string        `json:"contributing_agents"`
	BackendUsed        string          `json:"backend_used"`
	Usage              provider.Usage  `json:"usage"`
	Decision           RoutingDecision `json:"decision"`
	Duration           time.Duration   `json:"duration"`
}
