package orchestrator

import "errors"

// ErrOrchestrationFailure is returned when zero agents produced a usable
// response for a turn. The caller never receives an empty success payload.
var ErrOrchestrationFailure = errors.New("orchestration failure")

// ErrNoRespondingAgents is returned for a course with no subject agents and
// no orchestration agent; no one can answer.
var ErrNoRespondingAgents = errors.New("course has no agents able to respond")
