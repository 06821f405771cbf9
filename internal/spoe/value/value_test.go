package value

import (
	"net"
	"testing"
)

func TestEqualityByContent(t *testing.T) {
	a := Str("8.8.8.8")
	b := Str("8.8.8.8")
	if &a == &b {
		t.Fatal("test setup: expected distinct Value instances")
	}
	if !a.Equal(b) {
		t.Error("Str values with equal content should be Equal")
	}

	c := Bin([]byte{1, 2, 3})
	d := Bin([]byte{1, 2, 3})
	if !c.Equal(d) {
		t.Error("Bin values with equal content should be Equal")
	}
	e := Bin([]byte{1, 2, 4})
	if c.Equal(e) {
		t.Error("Bin values with different content should not be Equal")
	}

	ip1 := IPv4(net.ParseIP("10.0.0.1"))
	ip2 := IPv4(net.ParseIP("10.0.0.1"))
	if !ip1.Equal(ip2) {
		t.Error("IPv4 values with equal content should be Equal")
	}
	ip3 := IPv4(net.ParseIP("10.0.0.2"))
	if ip1.Equal(ip3) {
		t.Error("IPv4 values with different content should not be Equal")
	}

	v6a := IPv6(net.ParseIP("2001:db8::1"))
	v6b := IPv6(net.ParseIP("2001:db8::1"))
	if !v6a.Equal(v6b) {
		t.Error("IPv6 values with equal content should be Equal")
	}
}

func TestEqualityAcrossTypes(t *testing.T) {
	if Int32(1).Equal(Int64(1)) {
		t.Error("Int32(1) should not equal Int64(1)")
	}
	if Null().Equal(Bool(false)) {
		t.Error("Null should not equal Bool(false)")
	}
}

func TestScalarVariants(t *testing.T) {
	if !Bool(true).BoolValue() {
		t.Error("Bool(true) round-trip failed")
	}
	if Int32(-5).Int32Value() != -5 {
		t.Error("Int32(-5) round-trip failed")
	}
	if UInt32(42).UInt32Value() != 42 {
		t.Error("UInt32(42) round-trip failed")
	}
	if Int64(-1 << 40).Int64Value() != -1<<40 {
		t.Error("Int64 round-trip failed")
	}
	if UInt64(1 << 50).UInt64Value() != 1<<50 {
		t.Error("UInt64 round-trip failed")
	}
}

func TestIPv4RejectsWrongWidth(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for non-IPv4 address")
		}
	}()
	IPv4(net.ParseIP("2001:db8::1"))
}

func TestTypeString(t *testing.T) {
	if TypeBool.String() != "BOOL" {
		t.Errorf("TypeBool.String() = %q", TypeBool.String())
	}
}
