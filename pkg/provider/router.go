package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/coursepilot/coursepilot/internal/metrics"
	"github.com/coursepilot/coursepilot/pkg/course"
)

// ErrNoProviderAvailable is returned when a course policy excludes every
// registered backend.
var ErrNoProviderAvailable = errors.New("no provider available")

// ErrProviderUnavailable is returned when the chosen backend failed and
// fallback was disabled or exhausted.
var ErrProviderUnavailable = errors.New("provider unavailable")

// Result is the outcome of a routed dispatch. BackendUsed records which
// backend actually served the request; collaborators that report per-backend
// usage statistics depend on it.
type Result struct {
	Content     string `json:"content"`
	BackendUsed string `json:"backend_used"`
	Usage       Usage  `json:"usage"`
}

// Router selects among registered backends according to a course's LLM
// policy and performs policy-gated fallback on outages.
type Router struct {
	primary  string
	order    []string
	backends map[string]Backend
	mu       sync.RWMutex

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewRouter creates a router. primary names the platform's primary backend,
// the one course policies may disallow.
func NewRouter(primary string, logger zerolog.Logger, m *metrics.Metrics) *Router {
	return &Router{
		primary:  primary,
		backends: make(map[string]Backend),
		logger:   logger.With().Str("component", "provider_router").Logger(),
		metrics:  m,
	}
}

// Register adds a backend. Registration order determines fallback order.
func (r *Router) Register(b Backend) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := b.Name()
	if _, exists := r.backends[name]; exists {
		return fmt.Errorf("backend already registered: %s", name)
	}

	r.backends[name] = b
	r.order = append(r.order, name)
	return nil
}

// Backends returns the registered backend names in registration order.
func (r *Router) Backends() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Primary returns the name of the platform's primary backend.
func (r *Router) Primary() string {
	return r.primary
}

// candidates builds the attempt order for a policy: the preferred backend
// first when named, then the rest in registration order, with the primary
// removed entirely when the policy disallows it.
func (r *Router) candidates(policy course.LLMPolicy) []Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Backend

	if policy.PreferredBackend != "" {
		allowed := policy.AllowPrimaryBackend || policy.PreferredBackend != r.primary
		if b, ok := r.backends[policy.PreferredBackend]; ok && allowed {
			out = append(out, b)
		}
	}

	for _, name := range r.order {
		if name == policy.PreferredBackend {
			continue
		}
		if !policy.AllowPrimaryBackend && name == r.primary {
			continue
		}
		out = append(out, r.backends[name])
	}

	return out
}

// Select returns the backend that would serve the next request under the
// given policy, without dispatching.
func (r *Router) Select(policy course.LLMPolicy) (Backend, error) {
	cands := r.candidates(policy)
	if len(cands) == 0 {
		return nil, fmt.Errorf("%w: policy excludes every registered backend", ErrNoProviderAvailable)
	}
	return cands[0], nil
}

// Dispatch routes one completion call. The first candidate is always tried;
// on an outage, fallback walks the remaining candidates in order when the
// policy allows it. Request-level errors (not outages) propagate as-is.
func (r *Router) Dispatch(ctx context.Context, messages []Message, opts Options, policy course.LLMPolicy) (*Result, error) {
	cands := r.candidates(policy)
	if len(cands) == 0 {
		return nil, fmt.Errorf("%w: policy excludes every registered backend", ErrNoProviderAvailable)
	}

	if !policy.FallbackEnabled {
		cands = cands[:1]
	}

	var lastErr error
	for i, b := range cands {
		if i > 0 {
			r.logger.Warn().
				Str("backend", b.Name()).
				Err(lastErr).
				Msg("falling back to alternate backend")
			if r.metrics != nil {
				r.metrics.BackendFallbacksTotal.Inc()
			}
		}

		completion, err := b.Complete(ctx, messages, opts)
		if err == nil {
			if r.metrics != nil {
				r.metrics.BackendRequestsTotal.WithLabelValues(b.Name(), "ok").Inc()
				r.metrics.TokensTotal.WithLabelValues(b.Name(), "prompt").Add(float64(completion.Usage.PromptTokens))
				r.metrics.TokensTotal.WithLabelValues(b.Name(), "completion").Add(float64(completion.Usage.CompletionTokens))
			}
			return &Result{
				Content:     completion.Content,
				BackendUsed: b.Name(),
				Usage:       completion.Usage,
			}, nil
		}

		if r.metrics != nil {
			r.metrics.BackendRequestsTotal.WithLabelValues(b.Name(), "error").Inc()
		}

		if !IsUnavailable(err) {
			// A request error, not an outage. Another backend would fail
			// the same way, so do not fall back.
			return nil, err
		}

		lastErr = err
	}

	return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, lastErr)
}
