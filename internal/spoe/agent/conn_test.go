package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/sadewadee/maboo-spoa/internal/dispatch"
	"github.com/sadewadee/maboo-spoa/internal/spoe/spop"
	"github.com/sadewadee/maboo-spoa/internal/spoe/value"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPool(t *testing.T) *dispatch.Pool {
	t.Helper()
	p := dispatch.New(dispatch.Config{MinSlots: 2, MaxSlots: 2}, testLogger())
	if err := p.Start(); err != nil {
		t.Fatalf("dispatch.Start: %v", err)
	}
	t.Cleanup(p.Stop)
	return p
}

// driveConn runs conn.Run in the background against one end of a
// net.Pipe, returning the other end for the test to script against.
func driveConn(t *testing.T, handler Handler) net.Conn {
	t.Helper()
	serverSide, clientSide := net.Pipe()
	pool := testPool(t)
	c := newConn(serverSide, handler, pool.Exec, testLogger(), 16384, time.Second, true, nil)
	go c.Run(context.Background(), func() bool { return false })
	t.Cleanup(func() { clientSide.Close() })
	return clientSide
}

func sendHello(t *testing.T, conn net.Conn) *spop.Frame {
	t.Helper()
	hello := &spop.Frame{
		Kind:              spop.KindHaproxyHello,
		SupportedVersions: []string{"2.0"},
		MaxFrameSize:      16384,
		Capabilities:      []string{"pipelining"},
	}
	if err := spop.EncodeFrame(conn, hello); err != nil {
		t.Fatalf("EncodeFrame(hello): %v", err)
	}
	reply, err := spop.DecodeFrame(conn, 65536)
	if err != nil {
		t.Fatalf("DecodeFrame(agent-hello): %v", err)
	}
	return reply
}

func TestHandshakeNegotiatesVersionAndCapability(t *testing.T) {
	conn := driveConn(t, HandlerFunc(func(ctx context.Context, msg spop.Message) ([]spop.Action, error) {
		return nil, nil
	}))
	reply := sendHello(t, conn)

	if reply.Kind != spop.KindAgentHello {
		t.Fatalf("expected AGENT-HELLO, got %s", reply.Kind)
	}
	if reply.Version != "2.0" {
		t.Errorf("expected negotiated version 2.0, got %q", reply.Version)
	}
	if reply.MaxFrameSize != 16384 {
		t.Errorf("expected max_frame_size 16384, got %d", reply.MaxFrameSize)
	}
	if len(reply.Capabilities) != 1 || reply.Capabilities[0] != "pipelining" {
		t.Errorf("expected pipelining capability, got %+v", reply.Capabilities)
	}
}

func TestHandshakeFallsBackToDefaultVersion(t *testing.T) {
	conn := driveConn(t, HandlerFunc(func(ctx context.Context, msg spop.Message) ([]spop.Action, error) {
		return nil, nil
	}))
	hello := &spop.Frame{Kind: spop.KindHaproxyHello, MaxFrameSize: 16384}
	if err := spop.EncodeFrame(conn, hello); err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	reply, err := spop.DecodeFrame(conn, 65536)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if reply.Version != fallbackVersion {
		t.Errorf("expected fallback version %q, got %q", fallbackVersion, reply.Version)
	}
}

func TestHandshakeNegotiatesSmallerMaxFrameSize(t *testing.T) {
	conn := driveConn(t, HandlerFunc(func(ctx context.Context, msg spop.Message) ([]spop.Action, error) {
		return nil, nil
	}))
	hello := &spop.Frame{Kind: spop.KindHaproxyHello, SupportedVersions: []string{"2.0"}, MaxFrameSize: 4096}
	if err := spop.EncodeFrame(conn, hello); err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	reply, err := spop.DecodeFrame(conn, 65536)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if reply.MaxFrameSize != 4096 {
		t.Errorf("expected negotiated max_frame_size min(peer,engine)=4096, got %d", reply.MaxFrameSize)
	}
}

func TestNonHelloFirstFrameClosesConnection(t *testing.T) {
	conn := driveConn(t, HandlerFunc(func(ctx context.Context, msg spop.Message) ([]spop.Action, error) {
		return nil, nil
	}))
	bad := &spop.Frame{Kind: spop.KindNotify}
	if err := spop.EncodeFrame(conn, bad); err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	_, err := spop.DecodeFrame(conn, 65536)
	if err == nil {
		t.Fatal("expected connection to close without a reply")
	}
}

func TestNotifyEchoesStreamAndFrameID(t *testing.T) {
	conn := driveConn(t, HandlerFunc(func(ctx context.Context, msg spop.Message) ([]spop.Action, error) {
		return []spop.Action{spop.SetVar(spop.ScopeSession, "ip_score", value.Int32(95))}, nil
	}))
	sendHello(t, conn)

	notify := &spop.Frame{
		Kind:     spop.KindNotify,
		StreamID: 7,
		FrameID:  3,
		Messages: []spop.Message{
			{Name: "check-client-ip", Args: []spop.Arg{{Name: "src", Value: value.IPv4(net.ParseIP("8.8.8.8"))}}},
		},
	}
	if err := spop.EncodeFrame(conn, notify); err != nil {
		t.Fatalf("EncodeFrame(notify): %v", err)
	}
	ack, err := spop.DecodeFrame(conn, 65536)
	if err != nil {
		t.Fatalf("DecodeFrame(ack): %v", err)
	}
	if ack.Kind != spop.KindAck || ack.StreamID != 7 || ack.FrameID != 3 {
		t.Fatalf("unexpected ack: %+v", ack)
	}
	if len(ack.Actions) != 1 || !ack.Actions[0].Value.Equal(value.Int32(95)) {
		t.Errorf("unexpected ack actions: %+v", ack.Actions)
	}
}

func TestHandlerErrorIsolatesToItsMessage(t *testing.T) {
	conn := driveConn(t, HandlerFunc(func(ctx context.Context, msg spop.Message) ([]spop.Action, error) {
		if msg.Name == "boom" {
			return nil, errors.New("handler exploded")
		}
		return []spop.Action{spop.SetVar(spop.ScopeSession, "ok", value.Bool(true))}, nil
	}))
	sendHello(t, conn)

	notify := &spop.Frame{
		Kind:     spop.KindNotify,
		StreamID: 1,
		FrameID:  1,
		Messages: []spop.Message{
			{Name: "check-one"},
			{Name: "boom"},
			{Name: "check-two"},
		},
	}
	if err := spop.EncodeFrame(conn, notify); err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	ack, err := spop.DecodeFrame(conn, 65536)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if len(ack.Actions) != 2 {
		t.Fatalf("expected 2 actions (message 2 contributes none), got %d: %+v", len(ack.Actions), ack.Actions)
	}

	// connection must still be LIVE: a second NOTIFY still gets an ACK.
	notify2 := &spop.Frame{Kind: spop.KindNotify, StreamID: 2, FrameID: 1, Messages: []spop.Message{{Name: "check-one"}}}
	if err := spop.EncodeFrame(conn, notify2); err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	ack2, err := spop.DecodeFrame(conn, 65536)
	if err != nil {
		t.Fatalf("connection should remain live after a handler error: %v", err)
	}
	if ack2.StreamID != 2 {
		t.Errorf("expected stream_id 2, got %d", ack2.StreamID)
	}
}

func TestDisconnectClosesWithoutAck(t *testing.T) {
	conn := driveConn(t, HandlerFunc(func(ctx context.Context, msg spop.Message) ([]spop.Action, error) {
		return nil, nil
	}))
	sendHello(t, conn)

	disc := &spop.Frame{Kind: spop.KindHaproxyDisconnect, Status: spop.StatusStop, Message: "bye"}
	if err := spop.EncodeFrame(conn, disc); err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}

	buf := make([]byte, 1)
	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, err := conn.Read(buf)
	if err == nil {
		t.Error("expected no further bytes (and no ACK) after disconnect")
	}
}

func TestUnexpectedFrameKindIsIgnoredNotFatal(t *testing.T) {
	conn := driveConn(t, HandlerFunc(func(ctx context.Context, msg spop.Message) ([]spop.Action, error) {
		return nil, nil
	}))
	sendHello(t, conn)

	weird := &spop.Frame{Kind: spop.KindAgentHello, Version: "2.0"}
	if err := spop.EncodeFrame(conn, weird); err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}

	notify := &spop.Frame{Kind: spop.KindNotify, StreamID: 9, FrameID: 9, Messages: []spop.Message{{Name: "ping"}}}
	if err := spop.EncodeFrame(conn, notify); err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	ack, err := spop.DecodeFrame(conn, 65536)
	if err != nil {
		t.Fatalf("connection should survive an unexpected frame kind: %v", err)
	}
	if ack.StreamID != 9 {
		t.Errorf("expected stream_id 9, got %d", ack.StreamID)
	}
}
