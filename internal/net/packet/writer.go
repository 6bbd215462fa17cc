package packet

import (
	"fmt"

	"golang.org/x/text/encoding/charmap"
)

// stringTerminator ends every string field the client reads.
const stringTerminator = 10

// Writer builds an outbound packet. Byte-level and bit-level writes are
// separated by StartBitAccess/EndBitAccess; mixing them is a programming
// error and panics.
type Writer struct {
	opcode  int
	kind    Kind
	buf     []byte
	bitPos  int
	bitMode bool
}

// NewWriter starts a packet with the given plaintext opcode and framing.
func NewWriter(opcode int, kind Kind) *Writer {
	return &Writer{opcode: opcode, kind: kind, buf: make([]byte, 0, 64)}
}

// NewBlockWriter returns a Writer for a headerless byte block that is
// appended to another packet (update blocks, appearance payloads).
func NewBlockWriter() *Writer {
	return &Writer{opcode: -1, kind: Fixed, buf: make([]byte, 0, 64)}
}

func (w *Writer) assertByteAccess() {
	if w.bitMode {
		panic(fmt.Errorf("%w: byte write during bit access", ErrProtocol))
	}
}

func (w *Writer) assertBitAccess() {
	if !w.bitMode {
		panic(fmt.Errorf("%w: bit write outside bit access", ErrProtocol))
	}
}

// Put writes the low bytes of v as type t in the given order, applying mod
// to the least significant byte.
func (w *Writer) Put(t DataType, order ByteOrder, mod Modification, v int64) {
	w.assertByteAccess()
	for _, i := range byteIndices(t, order) {
		b := byte(v >> (8 * i))
		if i == 0 {
			b = mod.apply(b)
		}
		w.buf = append(w.buf, b)
	}
}

// PutByte writes one byte.
func (w *Writer) PutByte(v int) { w.Put(Byte, Big, None, int64(v)) }

// PutShort writes 2 bytes big-endian.
func (w *Writer) PutShort(v int) { w.Put(Short, Big, None, int64(v)) }

// PutInt writes 4 bytes big-endian.
func (w *Writer) PutInt(v int32) { w.Put(Int, Big, None, int64(v)) }

// PutLong writes 8 bytes big-endian.
func (w *Writer) PutLong(v int64) { w.Put(Long, Big, None, v) }

// PutBytes appends raw bytes.
func (w *Writer) PutBytes(b []byte) {
	w.assertByteAccess()
	w.buf = append(w.buf, b...)
}

// PutBytesReversed appends b back to front.
func (w *Writer) PutBytesReversed(b []byte) {
	w.assertByteAccess()
	for i := len(b) - 1; i >= 0; i-- {
		w.buf = append(w.buf, b[i])
	}
}

// PutBlock appends the bytes of a block writer.
func (w *Writer) PutBlock(block *Writer) {
	block.assertByteAccess()
	w.PutBytes(block.buf)
}

// PutString writes s in Windows-1252 followed by the terminator byte.
func (w *Writer) PutString(s string) {
	w.assertByteAccess()
	encoded, err := charmap.Windows1252.NewEncoder().Bytes([]byte(s))
	if err != nil {
		encoded = []byte(s)
	}
	w.buf = append(w.buf, encoded...)
	w.buf = append(w.buf, stringTerminator)
}

// PutName writes a player name packed as a base-37 long.
func (w *Writer) PutName(name string) {
	w.PutLong(int64(EncodeBase37(name)))
}

// StartBitAccess switches to bit-level writes at the next byte boundary.
func (w *Writer) StartBitAccess() {
	w.assertByteAccess()
	w.bitPos = len(w.buf) * 8
	w.bitMode = true
}

// EndBitAccess pads the current byte with zero bits and returns to
// byte-level writes.
func (w *Writer) EndBitAccess() {
	w.assertBitAccess()
	w.bitMode = false
}

// PutBits writes the low n bits of v, most significant first.
func (w *Writer) PutBits(n int, v int) {
	w.assertBitAccess()
	if n < 1 || n > 32 {
		panic(fmt.Sprintf("packet: bit count %d out of range", n))
	}
	for i := n - 1; i >= 0; i-- {
		bytePos := w.bitPos >> 3
		if bytePos >= len(w.buf) {
			w.buf = append(w.buf, 0)
		}
		if (v>>i)&1 == 1 {
			w.buf[bytePos] |= 0x80 >> (w.bitPos & 7)
		}
		w.bitPos++
	}
}

// PutBit writes a single flag bit.
func (w *Writer) PutBit(flag bool) {
	if flag {
		w.PutBits(1, 1)
	} else {
		w.PutBits(1, 0)
	}
}

// BitLen returns the number of payload bits written so far. Outside bit
// access it is Len()*8.
func (w *Writer) BitLen() int {
	if w.bitMode {
		return w.bitPos
	}
	return len(w.buf) * 8
}

// Len returns the number of payload bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Bytes returns the payload written so far.
func (w *Writer) Bytes() []byte {
	w.assertByteAccess()
	return w.buf
}

// Packet finalises the writer. The length prefix for variable framing is
// added by the encoder once the payload size is known.
func (w *Writer) Packet() *Packet {
	w.assertByteAccess()
	if w.opcode < 0 {
		panic("packet: block writer has no opcode")
	}
	return &Packet{Opcode: w.opcode, Kind: w.kind, Payload: w.buf}
}
