package orchestrator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/coursepilot/coursepilot/pkg/agent"
)

// The routing backend answers with one of three textual markers. Parsing
// lives here, behind one adapter, so the strategy (markers today,
// structured function calling tomorrow) can change without touching the
// state machine.
const (
	markerSingleAgent       = "SINGLE_AGENT"
	markerMultipleAgents    = "MULTIPLE_AGENTS"
	markerOrchestrationOnly = "ORCHESTRATION_ONLY"
)

const instructionPreviewLen = 150

var (
	singleAgentRe    = regexp.MustCompile(`(?i)SINGLE_AGENT\s*:\s*(.+)`)
	multipleAgentsRe = regexp.MustCompile(`(?i)MULTIPLE_AGENTS\s*:\s*(.+)`)
	orchOnlyRe       = regexp.MustCompile(`(?i)ORCHESTRATION_ONLY`)
)

// buildRoutingPrompt asks the orchestration backend to classify a message
// against the available subject agents.
func buildRoutingPrompt(message string, subjects []agent.Agent) string {
	var b strings.Builder

	b.WriteString("You are coordinating a team of tutoring agents. Decide who should answer the student's message.\n\nAvailable agents:\n")

	for _, a := range subjects {
		b.WriteString(fmt.Sprintf("- %s: %s\n", a.Name, truncate(a.Instructions, instructionPreviewLen)))
	}

	b.WriteString(fmt.Sprintf(`
Student message: %s

Reply with exactly one line:
%s: <agent name> - if one agent covers the question
%s: <name, name, ...> - if the question spans several agents
%s - if you should answer it yourself`,
		message, markerSingleAgent, markerMultipleAgents, markerOrchestrationOnly))

	return b.String()
}

// parseRoutingResponse turns the backend's free-text answer into a
// RoutingDecision. Names that match no registered agent are dropped, so a
// garbled answer degrades to fewer agents instead of routing wrongly.
// Anything unrecognized falls back to the orchestration agent.
func parseRoutingResponse(raw string, subjects []agent.Agent) RoutingDecision {
	if m := multipleAgentsRe.FindStringSubmatch(raw); m != nil {
		ids := matchAgents(m[1], subjects)
		switch len(ids) {
		case 0:
			return OrchestratorOnly()
		case 1:
			return SingleAgent(ids[0])
		default:
			return MultipleAgents(ids)
		}
	}

	if m := singleAgentRe.FindStringSubmatch(raw); m != nil {
		if ids := matchAgents(m[1], subjects); len(ids) > 0 {
			return SingleAgent(ids[0])
		}
		return OrchestratorOnly()
	}

	if orchOnlyRe.MatchString(raw) {
		return OrchestratorOnly()
	}

	return OrchestratorOnly()
}

// matchAgents resolves a comma-separated name list to agent ids using
// case-insensitive substring matching against agent names and ids.
func matchAgents(list string, subjects []agent.Agent) []string {
	var ids []string
	seen := make(map[string]bool)

	for _, part := range strings.Split(list, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}

		for _, a := range subjects {
			if !strings.Contains(strings.ToLower(a.Name), name) && !strings.EqualFold(a.ID, name) {
				continue
			}
			if !seen[a.ID] {
				seen[a.ID] = true
				ids = append(ids, a.ID)
			}
			break
		}
	}

	return ids
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
