// Package spop implements the SPOP wire codec: the frame envelope,
// the six frame kinds, and the Message/Action data types dispatched
// to and returned from a Handler. It corresponds to components C and F
// of the protocol runtime.
package spop

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

// Kind identifies one of the six SPOP frame types. Values match the
// reference HAProxy SPOE protocol's on-wire FRAME-TYPE byte.
type Kind uint8

const (
	KindHaproxyHello       Kind = 1
	KindHaproxyDisconnect  Kind = 2
	KindNotify             Kind = 3
	KindAgentHello         Kind = 101
	KindAgentDisconnect    Kind = 102
	KindAck                Kind = 103
)

func (k Kind) String() string {
	switch k {
	case KindHaproxyHello:
		return "HAPROXY-HELLO"
	case KindHaproxyDisconnect:
		return "HAPROXY-DISCONNECT"
	case KindNotify:
		return "NOTIFY"
	case KindAgentHello:
		return "AGENT-HELLO"
	case KindAgentDisconnect:
		return "AGENT-DISCONNECT"
	case KindAck:
		return "ACK"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(k))
	}
}

func validKind(k Kind) bool {
	switch k {
	case KindHaproxyHello, KindHaproxyDisconnect, KindNotify,
		KindAgentHello, KindAgentDisconnect, KindAck:
		return true
	default:
		return false
	}
}

// Flags modify frame behavior. The envelope carries a single flags
// byte (not the 4-byte field of the reference protocol) per this
// system's wire contract.
type Flags uint8

const (
	FlagFragmented Flags = 0x01
	FlagAbort      Flags = 0x02
)

// Disconnect status codes.
const (
	StatusOK    uint64 = 0
	StatusRetry uint64 = 1
	StatusStop  uint64 = 2
	StatusAbort uint64 = 3
)

// envelopeFixedHeader is the fixed-size prefix before varints:
// 4-byte length + 1-byte kind + 1-byte flags. StreamID/FrameID are
// variable length and accounted for separately.
const envelopeFixedHeader = 4 + 1 + 1

// Frame is the logical, in-memory representation of one SPOP frame in
// either direction. Only the fields relevant to Kind are populated by
// a given Encode/Decode call; callers that construct a Frame by hand
// are responsible for setting the right subset.
type Frame struct {
	Kind     Kind
	Flags    Flags
	StreamID uint64
	FrameID  uint64

	// HAPROXY-HELLO (decode) / AGENT-HELLO (encode)
	SupportedVersions []string // HAPROXY-HELLO
	Version           string   // AGENT-HELLO
	MaxFrameSize      uint64
	Capabilities      []string

	// NOTIFY / ACK
	Messages []Message
	Actions  []Action

	// HAPROXY-DISCONNECT / AGENT-DISCONNECT
	Status  uint64
	Message string
}

// bodyBufPool pools scratch buffers for frame body encoding to avoid
// a fresh allocation per EncodeFrame call.
var bodyBufPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, 0, 256)
		return &b
	},
}

// EncodeFrame writes f's envelope and body to w: a 4-byte big-endian
// length prefix, then kind, flags, varint stream/frame IDs, then the
// kind-specific body.
func EncodeFrame(w io.Writer, f *Frame) error {
	bp := bodyBufPool.Get().(*[]byte)
	defer bodyBufPool.Put(bp)

	e := &encoder{buf: (*bp)[:0]}
	e.writeByte(byte(f.Kind))
	e.writeByte(byte(f.Flags))
	e.writeVarint(f.StreamID)
	e.writeVarint(f.FrameID)

	if err := encodeBody(e, f); err != nil {
		return fmt.Errorf("spop: encoding %s body: %w", f.Kind, err)
	}
	*bp = e.buf

	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(e.buf)))

	if _, err := w.Write(lenPrefix[:]); err != nil {
		return fmt.Errorf("spop: writing frame length: %w", err)
	}
	if _, err := w.Write(e.buf); err != nil {
		return fmt.Errorf("spop: writing frame body: %w", err)
	}
	return nil
}

func encodeBody(e *encoder, f *Frame) error {
	switch f.Kind {
	case KindAgentHello:
		e.writeString(f.Version)
		e.writeVarint(f.MaxFrameSize)
		e.writeVarint(uint64(len(f.Capabilities)))
		for _, c := range f.Capabilities {
			e.writeString(c)
		}
	case KindHaproxyHello:
		// Encoded only for tests/tooling that originate HAPROXY-HELLO
		// frames (a real agent never sends this kind).
		e.writeString("supported-versions")
		e.writeVarint(uint64(len(f.SupportedVersions)))
		for _, v := range f.SupportedVersions {
			e.writeString(v)
		}
		e.writeString("max-frame-size")
		e.writeVarint(f.MaxFrameSize)
		e.writeString("capabilities")
		e.writeVarint(uint64(len(f.Capabilities)))
		for _, c := range f.Capabilities {
			e.writeString(c)
		}
	case KindNotify:
		encodeMessages(e, f.Messages)
	case KindAck:
		encodeActions(e, f.Actions)
	case KindHaproxyDisconnect, KindAgentDisconnect:
		e.writeVarint(f.Status)
		e.writeString(f.Message)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownFrameKind, uint8(f.Kind))
	}
	return nil
}

// DecodeFrame reads one frame from r. maxFrameSize bounds the declared
// body length: a frame whose prefix exceeds it is rejected without its
// body being read.
func DecodeFrame(r io.Reader, maxFrameSize uint64) (*Frame, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		return nil, fmt.Errorf("spop: reading frame length: %w", err)
	}
	n := binary.BigEndian.Uint32(lenPrefix[:])
	if uint64(n) > maxFrameSize {
		return nil, fmt.Errorf("%w: declared %d > max %d", ErrFrameTooLarge, n, maxFrameSize)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("spop: reading frame body (%d bytes): %w", n, err)
	}

	return decodeFrame(body)
}

func decodeFrame(body []byte) (*Frame, error) {
	d := newDecoder(body)

	kindByte, err := d.readByte()
	if err != nil {
		return nil, fmt.Errorf("spop: decoding frame kind: %w", err)
	}
	kind := Kind(kindByte)
	if !validKind(kind) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFrameKind, kindByte)
	}

	flagsByte, err := d.readByte()
	if err != nil {
		return nil, fmt.Errorf("spop: decoding frame flags: %w", err)
	}

	streamID, err := d.readVarint()
	if err != nil {
		return nil, fmt.Errorf("spop: decoding stream id: %w", err)
	}
	frameID, err := d.readVarint()
	if err != nil {
		return nil, fmt.Errorf("spop: decoding frame id: %w", err)
	}

	f := &Frame{Kind: kind, Flags: Flags(flagsByte), StreamID: streamID, FrameID: frameID}

	if kind == KindNotify && f.Flags&FlagFragmented != 0 {
		return nil, ErrFragmentedNotify
	}

	if err := decodeBody(d, f); err != nil {
		return nil, fmt.Errorf("spop: decoding %s body: %w", kind, err)
	}
	return f, nil
}

func decodeBody(d *decoder, f *Frame) error {
	switch f.Kind {
	case KindHaproxyHello:
		return decodeHaproxyHello(d, f)
	case KindAgentHello:
		version, err := d.readString()
		if err != nil {
			return err
		}
		maxSize, err := d.readVarint()
		if err != nil {
			return err
		}
		capCount, err := d.readVarint()
		if err != nil {
			return err
		}
		caps := make([]string, 0, capCount)
		for i := uint64(0); i < capCount; i++ {
			c, err := d.readString()
			if err != nil {
				return err
			}
			caps = append(caps, c)
		}
		f.Version, f.MaxFrameSize, f.Capabilities = version, maxSize, caps
		return nil
	case KindNotify:
		msgs, err := decodeMessages(d)
		if err != nil {
			return err
		}
		f.Messages = msgs
		return nil
	case KindAck:
		actions, err := decodeActions(d)
		if err != nil {
			return err
		}
		f.Actions = actions
		return nil
	case KindHaproxyDisconnect, KindAgentDisconnect:
		status, err := d.readVarint()
		if err != nil {
			return err
		}
		msg, err := d.readString()
		if err != nil {
			return err
		}
		f.Status, f.Message = status, msg
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrUnknownFrameKind, uint8(f.Kind))
	}
}

func decodeHaproxyHello(d *decoder, f *Frame) error {
	for d.remaining() > 0 {
		key, err := d.readString()
		if err != nil {
			return fmt.Errorf("decoding HELLO key: %w", err)
		}
		switch key {
		case "supported-versions":
			count, err := d.readVarint()
			if err != nil {
				return err
			}
			versions := make([]string, 0, count)
			for i := uint64(0); i < count; i++ {
				v, err := d.readString()
				if err != nil {
					return err
				}
				versions = append(versions, v)
			}
			f.SupportedVersions = versions
		case "max-frame-size":
			v, err := d.readVarint()
			if err != nil {
				return err
			}
			f.MaxFrameSize = v
		case "capabilities":
			count, err := d.readVarint()
			if err != nil {
				return err
			}
			caps := make([]string, 0, count)
			for i := uint64(0); i < count; i++ {
				c, err := d.readString()
				if err != nil {
					return err
				}
				caps = append(caps, c)
			}
			f.Capabilities = caps
		default:
			// Type-aware skip: unrecognized keys carry a generic typed
			// value which we decode and discard.
			if _, err := d.readValue(); err != nil {
				return fmt.Errorf("skipping unknown HELLO key %q: %w", key, err)
			}
		}
	}
	return nil
}
