package spop

import (
	"fmt"
	"net"

	"github.com/sadewadee/maboo-spoa/internal/spoe/value"
	"github.com/sadewadee/maboo-spoa/internal/spoe/varint"
)

// decoder is a cursor over an in-memory frame body. Every NOTIFY/ACK/
// HELLO body is bounded by the 4-byte length prefix already validated
// against max_frame_size, so decoding works against a fully-buffered
// []byte rather than streaming, read by one io.ReadFull for the
// payload after the length prefix.
type decoder struct {
	buf []byte
	pos int
}

func newDecoder(buf []byte) *decoder { return &decoder{buf: buf} }

func (d *decoder) remaining() int { return len(d.buf) - d.pos }

func (d *decoder) readByte() (byte, error) {
	if d.remaining() < 1 {
		return 0, ErrTruncated
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) readN(n int) ([]byte, error) {
	if n < 0 || d.remaining() < n {
		return nil, ErrTruncated
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) readVarint() (uint64, error) {
	v, n, err := varint.Decode(d.buf[d.pos:])
	if err != nil {
		return 0, fmt.Errorf("spop: decoding varint: %w", err)
	}
	d.pos += n
	return v, nil
}

func (d *decoder) readString() (string, error) {
	n, err := d.readVarint()
	if err != nil {
		return "", fmt.Errorf("spop: decoding string length: %w", err)
	}
	b, err := d.readN(int(n))
	if err != nil {
		return "", fmt.Errorf("spop: decoding string body: %w", err)
	}
	return string(b), nil
}

func (d *decoder) readValue() (value.Value, error) {
	tag, err := d.readByte()
	if err != nil {
		return value.Value{}, fmt.Errorf("spop: decoding value tag: %w", err)
	}
	switch value.Type(tag) {
	case value.TypeNull:
		return value.Null(), nil
	case value.TypeBool:
		b, err := d.readByte()
		if err != nil {
			return value.Value{}, fmt.Errorf("spop: decoding bool: %w", err)
		}
		return value.Bool(b != 0), nil
	case value.TypeInt32:
		v, err := d.readVarint()
		if err != nil {
			return value.Value{}, fmt.Errorf("spop: decoding int32: %w", err)
		}
		if v > 0xFFFFFFFF {
			return value.Value{}, fmt.Errorf("spop: decoding int32: %w", varintWidthError)
		}
		return value.Int32(int32(uint32(v))), nil
	case value.TypeUint32:
		v, err := d.readVarint()
		if err != nil {
			return value.Value{}, fmt.Errorf("spop: decoding uint32: %w", err)
		}
		if v > 0xFFFFFFFF {
			return value.Value{}, fmt.Errorf("spop: decoding uint32: %w", varintWidthError)
		}
		return value.UInt32(uint32(v)), nil
	case value.TypeInt64:
		v, err := d.readVarint()
		if err != nil {
			return value.Value{}, fmt.Errorf("spop: decoding int64: %w", err)
		}
		return value.Int64(int64(v)), nil
	case value.TypeUint64:
		v, err := d.readVarint()
		if err != nil {
			return value.Value{}, fmt.Errorf("spop: decoding uint64: %w", err)
		}
		return value.UInt64(v), nil
	case value.TypeIPv4:
		b, err := d.readN(4)
		if err != nil {
			return value.Value{}, fmt.Errorf("%w: IPv4 needs 4 bytes", ErrFixedWidthPayload)
		}
		return value.IPv4(net.IP(b)), nil
	case value.TypeIPv6:
		b, err := d.readN(16)
		if err != nil {
			return value.Value{}, fmt.Errorf("%w: IPv6 needs 16 bytes", ErrFixedWidthPayload)
		}
		return value.IPv6(net.IP(b)), nil
	case value.TypeString:
		s, err := d.readString()
		if err != nil {
			return value.Value{}, fmt.Errorf("spop: decoding string value: %w", err)
		}
		return value.Str(s), nil
	case value.TypeBinary:
		n, err := d.readVarint()
		if err != nil {
			return value.Value{}, fmt.Errorf("spop: decoding binary length: %w", err)
		}
		b, err := d.readN(int(n))
		if err != nil {
			return value.Value{}, fmt.Errorf("spop: decoding binary body: %w", err)
		}
		return value.Bin(b), nil
	default:
		return value.Value{}, fmt.Errorf("%w: tag %d", ErrUnknownValueType, tag)
	}
}

// encoder accumulates an in-memory frame body, appended to directly
// and built up fully before a single Write call.
type encoder struct {
	buf []byte
}

func (e *encoder) writeByte(b byte) { e.buf = append(e.buf, b) }

func (e *encoder) writeBytes(b []byte) { e.buf = append(e.buf, b...) }

func (e *encoder) writeVarint(v uint64) { e.buf = varint.Encode(e.buf, v) }

func (e *encoder) writeString(s string) {
	e.writeVarint(uint64(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *encoder) writeValue(v value.Value) {
	e.writeByte(byte(v.Type()))
	switch v.Type() {
	case value.TypeNull:
	case value.TypeBool:
		if v.BoolValue() {
			e.writeByte(1)
		} else {
			e.writeByte(0)
		}
	case value.TypeInt32:
		e.writeVarint(uint64(uint32(v.Int32Value())))
	case value.TypeUint32:
		e.writeVarint(uint64(v.UInt32Value()))
	case value.TypeInt64:
		e.writeVarint(uint64(v.Int64Value()))
	case value.TypeUint64:
		e.writeVarint(v.UInt64Value())
	case value.TypeIPv4:
		e.writeBytes(v.IPValue().To4())
	case value.TypeIPv6:
		e.writeBytes(v.IPValue().To16())
	case value.TypeString:
		e.writeString(v.StringValue())
	case value.TypeBinary:
		b := v.BinValue()
		e.writeVarint(uint64(len(b)))
		e.writeBytes(b)
	}
}
