package spop

import (
	"bytes"
	"net"
	"testing"

	"github.com/sadewadee/maboo-spoa/internal/spoe/value"
)

func TestAgentHelloRoundtrip(t *testing.T) {
	f := &Frame{
		Kind:         KindAgentHello,
		Version:      "2.0",
		MaxFrameSize: 16384,
		Capabilities: []string{"pipelining"},
	}
	var buf bytes.Buffer
	if err := EncodeFrame(&buf, f); err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}

	got, err := DecodeFrame(&buf, 65536)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if got.Kind != KindAgentHello || got.Version != "2.0" || got.MaxFrameSize != 16384 {
		t.Errorf("decoded frame mismatch: %+v", got)
	}
	if len(got.Capabilities) != 1 || got.Capabilities[0] != "pipelining" {
		t.Errorf("capabilities mismatch: %+v", got.Capabilities)
	}
	if got.StreamID != 0 || got.FrameID != 0 {
		t.Errorf("expected zero stream/frame id for HELLO, got %d/%d", got.StreamID, got.FrameID)
	}
}

func TestAckRoundtripPreservesStreamAndFrameID(t *testing.T) {
	f := &Frame{
		Kind:     KindAck,
		StreamID: 7,
		FrameID:  3,
		Actions: []Action{
			SetVar(ScopeSession, "ip_score", value.Int32(95)),
		},
	}
	var buf bytes.Buffer
	if err := EncodeFrame(&buf, f); err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	got, err := DecodeFrame(&buf, 65536)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if got.StreamID != 7 || got.FrameID != 3 {
		t.Errorf("StreamID/FrameID: got %d/%d, want 7/3", got.StreamID, got.FrameID)
	}
	if len(got.Actions) != 1 || !got.Actions[0].IsSetVar() {
		t.Fatalf("expected one SET-VAR action, got %+v", got.Actions)
	}
	a := got.Actions[0]
	if a.Scope != ScopeSession || a.Name != "ip_score" || !a.Value.Equal(value.Int32(95)) {
		t.Errorf("action mismatch: %+v", a)
	}
}

func TestAgentDisconnectRoundtrip(t *testing.T) {
	f := &Frame{Kind: KindAgentDisconnect, Status: StatusStop, Message: "bye"}
	var buf bytes.Buffer
	if err := EncodeFrame(&buf, f); err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	got, err := DecodeFrame(&buf, 65536)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if got.Status != StatusStop || got.Message != "bye" {
		t.Errorf("disconnect mismatch: %+v", got)
	}
}

func TestHaproxyHelloDecode(t *testing.T) {
	f := &Frame{
		Kind:              KindHaproxyHello,
		SupportedVersions: []string{"2.0"},
		MaxFrameSize:      16384,
		Capabilities:      []string{"pipelining"},
	}
	var buf bytes.Buffer
	if err := EncodeFrame(&buf, f); err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	got, err := DecodeFrame(&buf, 65536)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if len(got.SupportedVersions) != 1 || got.SupportedVersions[0] != "2.0" {
		t.Errorf("supported-versions mismatch: %+v", got.SupportedVersions)
	}
	if got.MaxFrameSize != 16384 {
		t.Errorf("max-frame-size mismatch: %d", got.MaxFrameSize)
	}
}

func TestHaproxyHelloSkipsUnknownKey(t *testing.T) {
	e := &encoder{}
	e.writeString("supported-versions")
	e.writeVarint(1)
	e.writeString("2.0")
	e.writeString("engine-id")
	e.writeValue(value.Str("abc123"))
	e.writeString("max-frame-size")
	e.writeVarint(16384)

	header := &encoder{}
	header.writeByte(byte(KindHaproxyHello))
	header.writeByte(0)
	header.writeVarint(0)
	header.writeVarint(0)
	header.writeBytes(e.buf)

	var lenPrefix [4]byte
	n := len(header.buf)
	lenPrefix[0] = byte(n >> 24)
	lenPrefix[1] = byte(n >> 16)
	lenPrefix[2] = byte(n >> 8)
	lenPrefix[3] = byte(n)

	var buf bytes.Buffer
	buf.Write(lenPrefix[:])
	buf.Write(header.buf)

	got, err := DecodeFrame(&buf, 65536)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if got.MaxFrameSize != 16384 {
		t.Errorf("expected max-frame-size to survive an unknown key, got %d", got.MaxFrameSize)
	}
	if len(got.SupportedVersions) != 1 || got.SupportedVersions[0] != "2.0" {
		t.Errorf("supported-versions mismatch: %+v", got.SupportedVersions)
	}
}

func TestDecodeFrameRejectsOversizedLength(t *testing.T) {
	f := &Frame{Kind: KindAgentHello, Version: "2.0", MaxFrameSize: 4096}
	var buf bytes.Buffer
	if err := EncodeFrame(&buf, f); err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	// Negotiated max smaller than the encoded frame's body.
	_, err := DecodeFrame(&buf, 2)
	if err == nil {
		t.Fatal("expected frame-too-large error")
	}
}

func TestDecodeFrameUnknownKind(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 2, 0xFF, 0})
	_, err := DecodeFrame(&buf, 65536)
	if err == nil {
		t.Fatal("expected unknown-kind error")
	}
}

func TestNotifyWithFragmentedFlagIsRejected(t *testing.T) {
	f := &Frame{
		Kind:  KindNotify,
		Flags: FlagFragmented,
		Messages: []Message{
			{Name: "check-client-ip", Args: []Arg{{Name: "src", Value: value.IPv4(net.ParseIP("1.2.3.4"))}}},
		},
	}
	var buf bytes.Buffer
	if err := EncodeFrame(&buf, f); err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	_, err := DecodeFrame(&buf, 65536)
	if err != ErrFragmentedNotify {
		t.Errorf("expected ErrFragmentedNotify, got %v", err)
	}
}

func TestNotifyMultiMessageRoundtrip(t *testing.T) {
	f := &Frame{
		Kind:     KindNotify,
		StreamID: 1,
		FrameID:  1,
		Messages: []Message{
			{Name: "check-client-ip", Args: []Arg{{Name: "src", Value: value.IPv4(net.ParseIP("8.8.8.8"))}}},
			{Name: "check-authorization", Args: []Arg{{Name: "token", Value: value.Str("abc")}}},
		},
	}
	var buf bytes.Buffer
	if err := EncodeFrame(&buf, f); err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	got, err := DecodeFrame(&buf, 65536)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got.Messages))
	}
	if got.Messages[0].Name != "check-client-ip" || got.Messages[1].Name != "check-authorization" {
		t.Errorf("message order not preserved: %+v", got.Messages)
	}
	src, ok := got.Messages[0].Get("src")
	if !ok || !src.Equal(value.IPv4(net.ParseIP("8.8.8.8"))) {
		t.Errorf("src arg mismatch: %+v", src)
	}
}
