package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/schemasketch/engine/pkg/retry"
)

// DefaultTimeout is the hard deadline on a provider call, independent of
// the transport's own timeout, so the orchestration layer always resolves.
const DefaultTimeout = 180 * time.Second

type route struct {
	prefix   string
	provider Provider
}

// Router selects a vendor backend by canonical model-id prefix (e.g.
// `claude-*` to Anthropic, `gemini-*` to the Gemini endpoint) and wraps
// every call in the timeout/retry envelope. The Router itself satisfies
// Provider so callers don't care whether they hold a single client or the
// composite.
type Router struct {
	routes   []route
	fallback Provider
	timeout  time.Duration
	retryCfg *retry.Config
	logger   *zap.Logger
}

// NewRouter creates a router with the given fallback provider, used for
// model ids no registered prefix matches.
func NewRouter(fallback Provider, timeout time.Duration, logger *zap.Logger) *Router {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Router{
		fallback: fallback,
		timeout:  timeout,
		retryCfg: retry.DefaultConfig(),
		logger:   logger.Named("llm.router"),
	}
}

// Register routes model ids starting with prefix to the given provider.
// First matching registration wins.
func (r *Router) Register(prefix string, p Provider) {
	r.routes = append(r.routes, route{prefix: prefix, provider: p})
}

// Name implements Provider.
func (r *Router) Name() string { return "router" }

func (r *Router) pick(model string) Provider {
	for _, rt := range r.routes {
		if strings.HasPrefix(model, rt.prefix) {
			return rt.provider
		}
	}
	return r.fallback
}

// Generate implements Provider. Transient failures (429, 5xx) are retried
// with exponential backoff; only the final exhausted failure is surfaced.
// The deadline covers all attempts together.
func (r *Router) Generate(ctx context.Context, prompt, systemMessage, model string) (string, error) {
	p := r.pick(model)
	if p == nil {
		return "", &Error{Type: ErrorTypeModel, Message: "no provider for model " + model, Retryable: false}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := retry.DoWithResult(ctx, r.retryCfg, func() (string, error) {
		return p.Generate(ctx, prompt, systemMessage, model)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return "", &Error{Type: ErrorTypeTimeout, Message: "provider deadline exceeded", Retryable: false, Cause: err}
		}
		r.logger.Warn("generation failed",
			zap.String("provider", p.Name()),
			zap.String("model", model),
			zap.Error(err))
		return "", ClassifyError(err)
	}
	return raw, nil
}

// Ensure Router implements Provider at compile time.
var _ Provider = (*Router)(nil)
