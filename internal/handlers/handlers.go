// Package handlers provides example SPOP message handlers: the kind
// of request-processing logic HAProxy's spoe-filter config would
// route to an agent (client IP reputation, authorization, basic WAF
// checks). None of this is core protocol behavior; it exists to give
// cmd/spoa-agent something real to dispatch to.
package handlers

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/sadewadee/maboo-spoa/internal/spoe/spop"
	"github.com/sadewadee/maboo-spoa/internal/spoe/value"
)

// HandlerFunc is the shape of one message handler: a Message in,
// Actions (or an error) out.
type HandlerFunc = func(ctx context.Context, msg spop.Message) ([]spop.Action, error)

// Router dispatches a Message to a named function by Message.Name,
// the message-name -> handler-function routing table that
// cmd/spoa-agent can reload wholesale on SIGUSR1 from a routing file.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	logger   *slog.Logger
}

// NewRouter builds a Router with an empty handler set.
func NewRouter(logger *slog.Logger) *Router {
	return &Router{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}
}

// Register binds name to fn, replacing any existing binding.
func (r *Router) Register(name string, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = fn
}

// Replace atomically swaps the entire routing table, used for a
// SIGUSR1-triggered reload without dropping connections.
func (r *Router) Replace(table map[string]HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = table
}

// Table returns a snapshot of the current routing table's message
// names, in no particular order.
func (r *Router) Table() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

// Process implements agent.Handler. Unknown message names are not an
// error: they simply produce no actions.
func (r *Router) Process(ctx context.Context, msg spop.Message) ([]spop.Action, error) {
	r.mu.RLock()
	fn, ok := r.handlers[msg.Name]
	r.mu.RUnlock()

	if !ok {
		r.logger.Warn("no handler registered for message", "message", msg.Name)
		return nil, nil
	}
	return fn(ctx, msg)
}

// DefaultTable returns the built-in example handlers keyed by the
// message names a typical spoe-filter config routes. NewRouter starts
// empty; cmd/spoa-agent installs this table when no routing file is
// configured or the file cannot be loaded.
func DefaultTable(logger *slog.Logger) map[string]HandlerFunc {
	registry := Registry(logger)
	return map[string]HandlerFunc{
		"check-client-ip":        registry["check_client_ip"],
		"check-authorization":    registry["check_authorization"],
		"check-request-security": registry["check_request_security"],
	}
}

// CheckClientIP scores a client IP's reputation. A handful of
// hard-coded ranges stand in for a real reputation lookup.
func CheckClientIP(ctx context.Context, msg spop.Message) ([]spop.Action, error) {
	src, ok := msg.Get("src")
	if !ok || (src.Type() != value.TypeIPv4 && src.Type() != value.TypeIPv6) {
		return []spop.Action{
			spop.SetVar(spop.ScopeSession, "ip_score", value.Int32(0)),
		}, nil
	}

	ip := src.IPValue()
	score := reputationScore(ip)

	return []spop.Action{
		spop.SetVar(spop.ScopeSession, "ip_score", value.Int32(score)),
	}, nil
}

func reputationScore(ip net.IP) int32 {
	switch {
	case ip.IsLoopback(), ip.IsPrivate():
		return 100
	case ip.IsUnspecified():
		return 0
	default:
		return 50
	}
}

// CheckAuthorization inspects an Authorization-style header value and
// sets a boolean session variable consumers can branch on.
func CheckAuthorization(ctx context.Context, msg spop.Message) ([]spop.Action, error) {
	header, ok := msg.Get("authorization")
	if !ok || header.Type() != value.TypeString {
		return []spop.Action{
			spop.SetVar(spop.ScopeSession, "authorized", value.Bool(false)),
		}, nil
	}

	authorized := strings.HasPrefix(header.StringValue(), "Bearer ") && len(header.StringValue()) > len("Bearer ")

	return []spop.Action{
		spop.SetVar(spop.ScopeSession, "authorized", value.Bool(authorized)),
	}, nil
}

// rateLimiter backs CheckRequestSecurity with per-source request
// counters. Shared mutable state like this must be the
// consumer's problem to make thread-safe; a sync.Mutex-guarded map is
// the straightforward answer for a handler shared across connections.
type rateLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	logger *slog.Logger
}

func newRateLimiter(logger *slog.Logger) *rateLimiter {
	return &rateLimiter{
		counts: make(map[string]int),
		logger: logger,
	}
}

const rateLimitThreshold = 1000

// CheckRequestSecurity flags sources that have made an excessive
// number of requests and clears stale entries at the threshold.
func (rl *rateLimiter) CheckRequestSecurity(ctx context.Context, msg spop.Message) ([]spop.Action, error) {
	src, ok := msg.Get("src")
	key := "unknown"
	if ok {
		key = src.String()
	}

	rl.mu.Lock()
	rl.counts[key]++
	count := rl.counts[key]
	if count > rateLimitThreshold {
		rl.counts[key] = 0
	}
	rl.mu.Unlock()

	blocked := count > rateLimitThreshold
	if blocked {
		rl.logger.Warn("request security check blocked source", "src", key, "count", count)
	}

	return []spop.Action{
		spop.SetVar(spop.ScopeRequest, "blocked", value.Bool(blocked)),
		spop.SetVar(spop.ScopeRequest, "request_count", value.Int32(int32(count))),
	}, nil
}
