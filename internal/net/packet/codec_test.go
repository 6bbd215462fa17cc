package packet

import (
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestAdditionModification(t *testing.T) {
	w := NewBlockWriter()
	w.Put(Byte, Big, Addition, 10)
	if got := w.Bytes()[0]; got != 138 {
		t.Fatalf("wire byte = %d, want 138", got)
	}

	r := NewReader(w.Bytes())
	v, err := r.Get(Byte, Big, Addition)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != 10 {
		t.Fatalf("decoded = %d, want 10", v)
	}
}

func TestModificationsOnWire(t *testing.T) {
	tests := []struct {
		mod  Modification
		in   int64
		want byte
	}{
		{None, 10, 10},
		{Addition, 10, 138},
		{Addition, 200, 72},
		{Negation, 10, 246},
		{Negation, 0, 0},
		{Subtraction, 10, 118},
		{Subtraction, 200, 184},
	}
	for _, tt := range tests {
		w := NewBlockWriter()
		w.Put(Byte, Big, tt.mod, tt.in)
		if got := w.Bytes()[0]; got != tt.want {
			t.Errorf("mod %d value %d: wire = %d, want %d", tt.mod, tt.in, got, tt.want)
		}
	}
}

func TestByteOrdersOnWire(t *testing.T) {
	tests := []struct {
		name  string
		t     DataType
		order ByteOrder
		mod   Modification
		v     int64
		want  []byte
	}{
		{"short big", Short, Big, None, 0x1234, []byte{0x12, 0x34}},
		{"short little", Short, Little, None, 0x1234, []byte{0x34, 0x12}},
		{"short little add", Short, Little, Addition, 0x1234, []byte{0xb4, 0x12}},
		{"short big add", Short, Big, Addition, 0x1234, []byte{0x12, 0xb4}},
		{"int big", Int, Big, None, 0x01020304, []byte{1, 2, 3, 4}},
		{"int little", Int, Little, None, 0x01020304, []byte{4, 3, 2, 1}},
		{"int middle", Int, Middle, None, 0x01020304, []byte{3, 4, 1, 2}},
		{"int inverse middle", Int, InverseMiddle, None, 0x01020304, []byte{2, 1, 4, 3}},
		{"tribyte", TriByte, Big, None, 0x010203, []byte{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewBlockWriter()
			w.Put(tt.t, tt.order, tt.mod, tt.v)
			got := w.Bytes()
			if string(got) != string(tt.want) {
				t.Fatalf("wire = % x, want % x", got, tt.want)
			}
		})
	}
}

func TestRoundTripAllOrdersAndModifications(t *testing.T) {
	orders := []ByteOrder{Big, Little}
	mods := []Modification{None, Addition, Negation, Subtraction}
	types := []DataType{Byte, Short, TriByte, Int, Long}
	values := []int64{0, 1, 10, 127, 128, 255, 0x7f3a, 0x00ab_cdef, 0x1234_5678}

	for _, dt := range types {
		for _, order := range orders {
			for _, mod := range mods {
				for _, v := range values {
					masked := v
					if dt != Long {
						masked = v & (1<<(8*uint(dt)) - 1)
					}
					w := NewBlockWriter()
					w.Put(dt, order, mod, masked)
					r := NewReader(w.Bytes())
					got, err := r.Get(dt, order, mod)
					if err != nil {
						t.Fatalf("type %d order %d mod %d: %v", dt, order, mod, err)
					}
					if got != masked {
						t.Fatalf("type %d order %d mod %d: got %#x, want %#x", dt, order, mod, got, masked)
					}
				}
			}
		}
	}

	for _, order := range []ByteOrder{Middle, InverseMiddle} {
		for _, mod := range mods {
			w := NewBlockWriter()
			w.Put(Int, order, mod, 0x0a0b0c0d)
			got, err := NewReader(w.Bytes()).Get(Int, order, mod)
			if err != nil || got != 0x0a0b0c0d {
				t.Fatalf("order %d mod %d: got %#x, %v", order, mod, got, err)
			}
		}
	}
}

func TestSignedRead(t *testing.T) {
	w := NewBlockWriter()
	w.Put(Short, Little, None, -2)
	w.Put(Byte, Big, Negation, -5)
	r := NewReader(w.Bytes())

	v, err := r.GetSigned(Short, Little, None)
	if err != nil || v != -2 {
		t.Fatalf("short = %d, %v; want -2", v, err)
	}
	v, err = r.GetSigned(Byte, Big, Negation)
	if err != nil || v != -5 {
		t.Fatalf("byte = %d, %v; want -5", v, err)
	}
}

func TestBitRoundTrip(t *testing.T) {
	type field struct{ n, v int }
	fields := []field{
		{1, 1}, {2, 3}, {3, 5}, {11, 2047}, {5, 17}, {1, 0},
		{7, 100}, {14, 16383}, {12, 4000}, {8, 0xa5}, {32 - 1, 0x7abcdef1},
	}

	w := NewBlockWriter()
	w.PutByte(0x42)
	w.StartBitAccess()
	for _, f := range fields {
		w.PutBits(f.n, f.v)
	}
	w.PutBit(true)
	w.EndBitAccess()
	w.PutShort(0xbeef)

	r := NewReader(w.Bytes())
	if b, _ := r.GetByte(); b != 0x42 {
		t.Fatalf("leading byte = %#x", b)
	}
	if err := r.StartBitAccess(); err != nil {
		t.Fatalf("StartBitAccess: %v", err)
	}
	for i, f := range fields {
		got, err := r.GetBits(f.n)
		if err != nil {
			t.Fatalf("field %d: %v", i, err)
		}
		if got != f.v {
			t.Fatalf("field %d: got %d, want %d", i, got, f.v)
		}
	}
	if bit, err := r.GetBit(); err != nil || !bit {
		t.Fatalf("trailing bit = %v, %v", bit, err)
	}
	if err := r.EndBitAccess(); err != nil {
		t.Fatalf("EndBitAccess: %v", err)
	}
	if s, err := r.GetShort(); err != nil || s != 0xbeef {
		t.Fatalf("trailing short = %#x, %v", s, err)
	}
	if r.Remaining() != 0 {
		t.Fatalf("remaining = %d", r.Remaining())
	}
}

func TestBitsAreMSBFirst(t *testing.T) {
	w := NewBlockWriter()
	w.StartBitAccess()
	w.PutBit(true)
	w.PutBits(2, 1)
	w.PutBits(3, 6)
	w.PutBits(4, 0xf)
	w.EndBitAccess()
	// 1 01 110 11 | 11 000000
	want := []byte{0xbb, 0xc0}
	if got := w.Bytes(); string(got) != string(want) {
		t.Fatalf("bits = % x, want % x", got, want)
	}
}

func TestByteWriteDuringBitAccessPanics(t *testing.T) {
	w := NewBlockWriter()
	w.StartBitAccess()
	w.PutBits(3, 1)

	defer func() {
		rec := recover()
		if rec == nil {
			t.Fatal("expected panic")
		}
		err, ok := rec.(error)
		if !ok || !errors.Is(err, ErrProtocol) {
			t.Fatalf("panic = %v, want ErrProtocol", rec)
		}
	}()
	w.PutByte(1)
}

func TestReaderTruncated(t *testing.T) {
	r := NewReader([]byte{1, 2, 3})
	if _, err := r.GetInt(); !errors.Is(err, ErrTruncated) {
		t.Fatalf("GetInt err = %v, want ErrTruncated", err)
	}
	// Nothing consumed on failure.
	if s, err := r.GetShort(); err != nil || s != 0x0102 {
		t.Fatalf("GetShort = %#x, %v", s, err)
	}
	if _, err := r.GetShort(); !errors.Is(err, ErrTruncated) {
		t.Fatalf("second GetShort err = %v, want ErrTruncated", err)
	}
	if _, err := r.GetBytes(2); !errors.Is(err, ErrTruncated) {
		t.Fatalf("GetBytes err = %v, want ErrTruncated", err)
	}
	if _, err := NewReader([]byte("abc")).GetString(); !errors.Is(err, ErrTruncated) {
		t.Fatalf("GetString err = %v, want ErrTruncated", err)
	}
}

func TestStringRoundTrip(t *testing.T) {
	w := NewBlockWriter()
	w.PutString("Hello, café")
	w.PutString("")
	r := NewReader(w.Bytes())

	s, err := r.GetString()
	if err != nil || s != "Hello, café" {
		t.Fatalf("string = %q, %v", s, err)
	}
	s, err = r.GetString()
	if err != nil || s != "" {
		t.Fatalf("empty string = %q, %v", s, err)
	}
}

func TestBase37(t *testing.T) {
	for _, name := range []string{"zezima", "a", "mod_ash", "player123", "abcdefghijkl"} {
		if got := DecodeBase37(EncodeBase37(name)); got != name {
			t.Errorf("round trip %q = %q", name, got)
		}
	}
	if EncodeBase37("Zezima") != EncodeBase37("zezima") {
		t.Error("encoding should fold case")
	}
	if DecodeBase37(0) != "" {
		t.Error("zero should decode to empty")
	}
	if got := FormatName("mod_ash"); got != "Mod Ash" {
		t.Errorf("FormatName = %q", got)
	}
}

func TestPacketFinalisation(t *testing.T) {
	w := NewWriter(81, VariableShort)
	w.PutShort(7)
	p := w.Packet()
	if p.Opcode != 81 || p.Kind != VariableShort || len(p.Payload) != 2 {
		t.Fatalf("packet = %+v", p)
	}
}

type fakeSession struct {
	calls []int
}

func TestRegistryDispatch(t *testing.T) {
	reg := NewRegistry[*fakeSession](zap.NewNop())
	reg.Register(185, "button", FixedSize(2), func(s *fakeSession, pkt *Packet) error {
		v, err := pkt.Reader().GetShort()
		if err != nil {
			return err
		}
		s.calls = append(s.calls, v)
		return nil
	})
	reg.Register(0, "keepalive", FixedSize(0), nil)
	reg.Register(4, "boom", VarByte, func(*fakeSession, *Packet) error { panic("bad") })

	if f, ok := reg.Framing(185); !ok || f != FixedSize(2) {
		t.Fatalf("Framing(185) = %+v, %v", f, ok)
	}
	if _, ok := reg.Framing(77); ok {
		t.Fatal("Framing(77) should be unknown")
	}
	if reg.Len() != 3 {
		t.Fatalf("Len = %d", reg.Len())
	}

	s := &fakeSession{}
	if err := reg.Dispatch(s, &Packet{Opcode: 185, Payload: []byte{0, 152}}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(s.calls) != 1 || s.calls[0] != 152 {
		t.Fatalf("calls = %v", s.calls)
	}
	if err := reg.Dispatch(s, &Packet{Opcode: 0}); err != nil {
		t.Fatalf("nil handler: %v", err)
	}
	if err := reg.Dispatch(s, &Packet{Opcode: 77}); !errors.Is(err, ErrProtocol) {
		t.Fatalf("unknown opcode err = %v", err)
	}
	if err := reg.Dispatch(s, &Packet{Opcode: 4}); !errors.Is(err, ErrProtocol) {
		t.Fatalf("panicking handler err = %v", err)
	}
}

func TestRegistryDuplicatePanics(t *testing.T) {
	reg := NewRegistry[*fakeSession](zap.NewNop())
	reg.Register(3, "focus", FixedSize(1), nil)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate opcode")
		}
	}()
	reg.Register(3, "focus again", FixedSize(1), nil)
}
