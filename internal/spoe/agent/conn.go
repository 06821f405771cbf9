package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/sadewadee/maboo-spoa/internal/dispatch"
	"github.com/sadewadee/maboo-spoa/internal/spoe/spop"
)

// state is the connection's position in the INIT -> NEGOTIATING ->
// LIVE -> CLOSED state machine.
type state int

const (
	stateInit state = iota
	stateNegotiating
	stateLive
	stateClosed
)

func (s state) String() string {
	switch s {
	case stateInit:
		return "INIT"
	case stateNegotiating:
		return "NEGOTIATING"
	case stateLive:
		return "LIVE"
	case stateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// fallbackVersion is emitted when the peer's HAPROXY-HELLO carries no
// supported-versions entry. Version negotiation picks the first
// offered version with no compatibility filtering.
const fallbackVersion = "2.0"

var pipeliningCapability = "pipelining"

// observer receives lifecycle notifications from a Conn. Both record.Recorder
// and monitor.Hub implement it; either, neither, or both may be attached to
// an Engine.
type observer interface {
	ObserveFrame(streamID, frameID uint64, dir string, f *spop.Frame)
}

// Conn drives one accepted socket through the protocol state machine.
// Exactly one goroutine owns a Conn's net.Conn; Run blocks until the
// connection reaches CLOSED.
type Conn struct {
	nc     net.Conn
	logger *slog.Logger

	handler    Handler
	dispatcher dispatch.ExecFunc

	configuredMaxFrameSize uint64
	idleTimeout            time.Duration
	advertisePipelining    bool

	observers []observer

	state state

	negotiatedVersion      string
	negotiatedMaxFrameSize uint64
	capabilities           map[string]struct{}
}

func newConn(nc net.Conn, handler Handler, exec dispatch.ExecFunc, logger *slog.Logger, maxFrameSize uint64, idleTimeout time.Duration, pipelining bool, observers []observer) *Conn {
	return &Conn{
		nc:                     nc,
		logger:                 logger,
		handler:                handler,
		dispatcher:             exec,
		configuredMaxFrameSize: maxFrameSize,
		idleTimeout:            idleTimeout,
		advertisePipelining:    pipelining,
		observers:              observers,
		state:                  stateInit,
	}
}

// Capabilities returns the negotiated capability set once LIVE.
func (c *Conn) Capabilities() map[string]struct{} { return c.capabilities }

// Run executes the full state machine for this connection, returning
// only once it is CLOSED. stopping is polled at each frame boundary so
// Engine.Stop can drain connections without severing them mid-frame.
// ctx is narrowed to a connection-scoped, cancellable context so that
// any handler dispatch still in flight is cancelled the moment this
// connection closes, whatever the reason.
func (c *Conn) Run(ctx context.Context, stopping func() bool) {
	defer c.nc.Close()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := c.negotiate(); err != nil {
		c.logger.Warn("handshake failed, closing connection", "remote", c.nc.RemoteAddr(), "err", err)
		c.state = stateClosed
		return
	}
	c.state = stateLive
	c.logger.Info("connection live", "remote", c.nc.RemoteAddr(), "version", c.negotiatedVersion, "max_frame_size", c.negotiatedMaxFrameSize)

	for {
		if stopping() {
			c.logger.Info("connection draining on engine stop", "remote", c.nc.RemoteAddr())
			c.state = stateClosed
			return
		}

		if c.idleTimeout > 0 {
			c.nc.SetReadDeadline(time.Now().Add(c.idleTimeout))
		}

		f, err := spop.DecodeFrame(c.nc, c.negotiatedMaxFrameSize)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				c.logger.Warn("idle timeout, closing connection", "remote", c.nc.RemoteAddr())
			} else if errors.Is(err, io.EOF) {
				c.logger.Info("peer closed connection", "remote", c.nc.RemoteAddr())
			} else {
				c.logger.Warn("frame decode error, closing connection", "remote", c.nc.RemoteAddr(), "err", err)
			}
			c.state = stateClosed
			return
		}

		for _, obs := range c.observers {
			obs.ObserveFrame(f.StreamID, f.FrameID, "in", f)
		}

		switch f.Kind {
		case spop.KindNotify:
			ack := c.handleNotify(connCtx, f)
			if err := spop.EncodeFrame(c.nc, ack); err != nil {
				c.logger.Warn("ack write error, closing connection", "remote", c.nc.RemoteAddr(), "err", err)
				c.state = stateClosed
				return
			}
			for _, obs := range c.observers {
				obs.ObserveFrame(ack.StreamID, ack.FrameID, "out", ack)
			}
		case spop.KindHaproxyDisconnect:
			c.logger.Info("peer disconnect", "remote", c.nc.RemoteAddr(), "status", f.Status, "message", f.Message)
			c.state = stateClosed
			return
		default:
			c.logger.Warn("ignoring unexpected frame kind", "remote", c.nc.RemoteAddr(), "kind", f.Kind)
		}
	}
}

// negotiate performs the INIT -> NEGOTIATING -> LIVE transition: reads
// one HAPROXY-HELLO, computes the negotiated parameters, and replies
// with AGENT-HELLO.
func (c *Conn) negotiate() error {
	c.state = stateNegotiating

	f, err := spop.DecodeFrame(c.nc, c.configuredMaxFrameSize)
	if err != nil {
		return fmt.Errorf("reading HAPROXY-HELLO: %w", err)
	}
	for _, obs := range c.observers {
		obs.ObserveFrame(f.StreamID, f.FrameID, "in", f)
	}
	if f.Kind != spop.KindHaproxyHello {
		return fmt.Errorf("expected HAPROXY-HELLO, got %s", f.Kind)
	}

	version := fallbackVersion
	if len(f.SupportedVersions) > 0 {
		version = f.SupportedVersions[0]
	}

	maxFrameSize := c.configuredMaxFrameSize
	if f.MaxFrameSize > 0 && f.MaxFrameSize < maxFrameSize {
		maxFrameSize = f.MaxFrameSize
	}

	caps := make(map[string]struct{})
	if c.advertisePipelining {
		for _, peerCap := range f.Capabilities {
			if peerCap == pipeliningCapability {
				caps[pipeliningCapability] = struct{}{}
			}
		}
	}

	c.negotiatedVersion = version
	c.negotiatedMaxFrameSize = maxFrameSize
	c.capabilities = caps

	reply := &spop.Frame{
		Kind:         spop.KindAgentHello,
		Version:      version,
		MaxFrameSize: maxFrameSize,
		Capabilities: capSlice(caps),
	}
	if err := spop.EncodeFrame(c.nc, reply); err != nil {
		return err
	}
	for _, obs := range c.observers {
		obs.ObserveFrame(reply.StreamID, reply.FrameID, "out", reply)
	}
	return nil
}

func capSlice(caps map[string]struct{}) []string {
	out := make([]string, 0, len(caps))
	for c := range caps {
		out = append(out, c)
	}
	return out
}

// handleNotify dispatches every message in f to the handler in order
// and concatenates the resulting actions into one ACK carrying f's
// stream_id/frame_id. A handler error isolates to its own message: it
// contributes zero actions and is logged, the ACK still ships and the
// connection stays LIVE.
func (c *Conn) handleNotify(ctx context.Context, f *spop.Frame) *spop.Frame {
	var actions []spop.Action
	for _, msg := range f.Messages {
		msgActions, err := c.dispatcher(ctx, func(ctx context.Context) ([]interface{}, error) {
			a, err := c.handler.Process(ctx, msg)
			boxed := make([]interface{}, len(a))
			for i, v := range a {
				boxed[i] = v
			}
			return boxed, err
		})
		if err != nil {
			c.logger.Warn("handler error, message contributes no actions", "remote", c.nc.RemoteAddr(), "message", msg.Name, "err", err)
			continue
		}
		for _, v := range msgActions {
			actions = append(actions, v.(spop.Action))
		}
	}
	return &spop.Frame{
		Kind:     spop.KindAck,
		StreamID: f.StreamID,
		FrameID:  f.FrameID,
		Actions:  actions,
	}
}
