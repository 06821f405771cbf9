package agent

import (
	"context"

	"github.com/sadewadee/maboo-spoa/internal/spoe/spop"
)

// Handler is the sole contract between the connection runtime and
// consumer request-processing logic. Process is invoked once per
// message inside a NOTIFY, in message order, and may be invoked
// concurrently across different connections sharing the same Handler.
// It may suspend but must not block indefinitely.
type Handler interface {
	Process(ctx context.Context, msg spop.Message) ([]spop.Action, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, msg spop.Message) ([]spop.Action, error)

// Process calls f.
func (f HandlerFunc) Process(ctx context.Context, msg spop.Message) ([]spop.Action, error) {
	return f(ctx, msg)
}
