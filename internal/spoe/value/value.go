// Package value implements the SPOP typed-value union: the ten data
// types a NOTIFY argument or a SET-VAR action payload can carry.
package value

import (
	"bytes"
	"fmt"
	"net"
)

// Type identifies which variant a Value holds. The numeric values match
// the on-wire type tag byte SPOP uses for typed arguments and SET-VAR
// payloads.
type Type uint8

const (
	TypeNull Type = iota
	TypeBool
	TypeInt32
	TypeUint32
	TypeInt64
	TypeUint64
	TypeIPv4
	TypeIPv6
	TypeString
	TypeBinary
)

func (t Type) String() string {
	switch t {
	case TypeNull:
		return "NULL"
	case TypeBool:
		return "BOOL"
	case TypeInt32:
		return "INT32"
	case TypeUint32:
		return "UINT32"
	case TypeInt64:
		return "INT64"
	case TypeUint64:
		return "UINT64"
	case TypeIPv4:
		return "IPV4"
	case TypeIPv6:
		return "IPV6"
	case TypeString:
		return "STRING"
	case TypeBinary:
		return "BINARY"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// Value is a tagged union over the SPOP data types. Exactly one of the
// payload fields is meaningful, selected by typ. Byte-array variants
// (IPv4, IPv6, Str, Bin) compare by content via Equal, never by
// reference.
type Value struct {
	typ Type
	b   bool
	i   int64
	u   uint64
	buf []byte // IPv4 (4), IPv6 (16), Str/Bin (variable)
}

// Null returns the NULL variant.
func Null() Value { return Value{typ: TypeNull} }

// Bool returns the BOOL variant.
func Bool(v bool) Value { return Value{typ: TypeBool, b: v} }

// Int32 returns the signed 32-bit variant.
func Int32(v int32) Value { return Value{typ: TypeInt32, i: int64(v)} }

// UInt32 returns the unsigned 32-bit variant.
func UInt32(v uint32) Value { return Value{typ: TypeUint32, u: uint64(v)} }

// Int64 returns the signed 64-bit variant.
func Int64(v int64) Value { return Value{typ: TypeInt64, i: v} }

// UInt64 returns the unsigned 64-bit variant.
func UInt64(v uint64) Value { return Value{typ: TypeUint64, u: v} }

// IPv4 returns the IPv4 variant, stored as exactly 4 bytes. Panics if
// ip has no 4-byte IPv4 form (an IPv4-mapped 16-byte address is accepted).
func IPv4(ip net.IP) Value {
	ip4 := ip.To4()
	if ip4 == nil {
		panic("value: IPv4 requires a 4-byte address")
	}
	buf := make([]byte, 4)
	copy(buf, ip4)
	return Value{typ: TypeIPv4, buf: buf}
}

// IPv6 returns the IPv6 variant, stored as exactly 16 bytes. Panics if
// ip is neither 4 nor 16 bytes long (a 4-byte address is widened).
func IPv6(ip net.IP) Value {
	ip16 := ip.To16()
	if ip16 == nil {
		panic("value: IPv6 requires a 16-byte address")
	}
	buf := make([]byte, 16)
	copy(buf, ip16)
	return Value{typ: TypeIPv6, buf: buf}
}

// Str returns the UTF-8 string variant.
func Str(s string) Value {
	return Value{typ: TypeString, buf: []byte(s)}
}

// Bin returns the opaque binary variant. The slice is copied.
func Bin(b []byte) Value {
	buf := make([]byte, len(b))
	copy(buf, b)
	return Value{typ: TypeBinary, buf: buf}
}

// Type reports which variant v holds.
func (v Value) Type() Type { return v.typ }

// BoolValue returns the payload of a BOOL variant.
func (v Value) BoolValue() bool { return v.b }

// Int32Value returns the payload of an INT32 variant.
func (v Value) Int32Value() int32 { return int32(v.i) }

// UInt32Value returns the payload of a UINT32 variant.
func (v Value) UInt32Value() uint32 { return uint32(v.u) }

// Int64Value returns the payload of an INT64 variant.
func (v Value) Int64Value() int64 { return v.i }

// UInt64Value returns the payload of a UINT64 variant.
func (v Value) UInt64Value() uint64 { return v.u }

// IPValue returns the IP payload of an IPv4 or IPv6 variant.
func (v Value) IPValue() net.IP { return net.IP(v.buf) }

// StringValue returns the payload of a STRING variant.
func (v Value) StringValue() string { return string(v.buf) }

// BinValue returns the payload of a BINARY variant.
func (v Value) BinValue() []byte { return v.buf }

// Equal reports whether v and other hold the same variant and content.
// Byte-array variants compare by content, not by slice identity.
func (v Value) Equal(other Value) bool {
	if v.typ != other.typ {
		return false
	}
	switch v.typ {
	case TypeNull:
		return true
	case TypeBool:
		return v.b == other.b
	case TypeInt32, TypeInt64:
		return v.i == other.i
	case TypeUint32, TypeUint64:
		return v.u == other.u
	case TypeIPv4, TypeIPv6, TypeString, TypeBinary:
		return bytes.Equal(v.buf, other.buf)
	default:
		return false
	}
}

// String renders v for diagnostics. It is not part of the wire contract.
func (v Value) String() string {
	switch v.typ {
	case TypeNull:
		return "null"
	case TypeBool:
		return fmt.Sprintf("%v", v.b)
	case TypeInt32, TypeInt64:
		return fmt.Sprintf("%d", v.i)
	case TypeUint32, TypeUint64:
		return fmt.Sprintf("%d", v.u)
	case TypeIPv4, TypeIPv6:
		return v.IPValue().String()
	case TypeString:
		return fmt.Sprintf("%q", string(v.buf))
	case TypeBinary:
		return fmt.Sprintf("bin(%d bytes)", len(v.buf))
	default:
		return "invalid"
	}
}
