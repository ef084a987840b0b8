package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/coursepilot/coursepilot/pkg/agent"
	"github.com/coursepilot/coursepilot/pkg/provider"
	"github.com/coursepilot/coursepilot/pkg/rag"
)

// agentOutcome is one participant's result in a fan-out. Failed
// participants carry Err and are dropped from aggregation by the caller.
type agentOutcome struct {
	Agent    agent.Agent
	Result   *provider.Result
	Context  rag.Context
	Err      error
	Duration time.Duration
	order    int // completion order within the fan-out
}

// agentRun executes one agent against the message and returns its
// completion plus the retrieval context that grounded it.
type agentRun func(ctx context.Context, a agent.Agent) (*provider.Result, rag.Context, error)

// gather runs one task per agent concurrently and waits for all of them.
// Each call gets its own timeout; a timed-out or failed participant does
// not cancel its siblings. The returned slice is ordered by completion
// time and always has one outcome per agent.
func gather(ctx context.Context, agents []agent.Agent, timeout time.Duration, run agentRun) []agentOutcome {
	outcomes := make([]agentOutcome, len(agents))

	var mu sync.Mutex
	completed := 0

	var wg sync.WaitGroup
	for i, a := range agents {
		wg.Add(1)
		go func(index int, a agent.Agent) {
			defer wg.Done()

			callCtx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			start := time.Now()
			result, ragCtx, err := run(callCtx, a)

			mu.Lock()
			order := completed
			completed++
			mu.Unlock()

			outcomes[index] = agentOutcome{
				Agent:    a,
				Result:   result,
				Context:  ragCtx,
				Err:      err,
				Duration: time.Since(start),
				order:    order,
			}
		}(i, a)
	}
	wg.Wait()

	byCompletion := make([]agentOutcome, len(outcomes))
	for _, o := range outcomes {
		byCompletion[o.order] = o
	}
	return byCompletion
}

// survivors filters outcomes down to the participants that produced a
// usable response.
func survivors(outcomes []agentOutcome) []agentOutcome {
	out := make([]agentOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err == nil && o.Result != nil {
			out = append(out, o)
		}
	}
	return out
}
