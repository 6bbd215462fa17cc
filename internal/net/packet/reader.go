package packet

import (
	"bytes"
	"fmt"

	"golang.org/x/text/encoding/charmap"
)

// Reader reads fields from a decoded payload. Every getter either returns
// the value and advances, or returns ErrTruncated and consumes nothing.
type Reader struct {
	data    []byte
	off     int
	bitPos  int
	bitMode bool
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) checkByteAccess() error {
	if r.bitMode {
		return fmt.Errorf("%w: byte read during bit access", ErrProtocol)
	}
	return nil
}

// Get reads a value of type t in the given order, reverting mod on the
// least significant byte. The result is unsigned.
func (r *Reader) Get(t DataType, order ByteOrder, mod Modification) (int64, error) {
	if err := r.checkByteAccess(); err != nil {
		return 0, err
	}
	n := int(t)
	if r.off+n > len(r.data) {
		return 0, ErrTruncated
	}
	var v uint64
	for k, i := range byteIndices(t, order) {
		b := r.data[r.off+k]
		if i == 0 {
			b = mod.revert(b)
		}
		v |= uint64(b) << (8 * i)
	}
	r.off += n
	return int64(v), nil
}

// GetSigned reads like Get and sign-extends the result.
func (r *Reader) GetSigned(t DataType, order ByteOrder, mod Modification) (int64, error) {
	v, err := r.Get(t, order, mod)
	if err != nil {
		return 0, err
	}
	shift := 64 - 8*uint(t)
	return v << shift >> shift, nil
}

// GetByte reads 1 unsigned byte.
func (r *Reader) GetByte() (int, error) {
	v, err := r.Get(Byte, Big, None)
	return int(v), err
}

// GetShort reads 2 bytes big-endian, unsigned.
func (r *Reader) GetShort() (int, error) {
	v, err := r.Get(Short, Big, None)
	return int(v), err
}

// GetInt reads 4 bytes big-endian.
func (r *Reader) GetInt() (int32, error) {
	v, err := r.GetSigned(Int, Big, None)
	return int32(v), err
}

// GetLong reads 8 bytes big-endian.
func (r *Reader) GetLong() (int64, error) {
	return r.Get(Long, Big, None)
}

// GetBytes reads n raw bytes into a fresh slice.
func (r *Reader) GetBytes(n int) ([]byte, error) {
	if err := r.checkByteAccess(); err != nil {
		return nil, err
	}
	if n < 0 || r.off+n > len(r.data) {
		return nil, ErrTruncated
	}
	b := make([]byte, n)
	copy(b, r.data[r.off:r.off+n])
	r.off += n
	return b, nil
}

// GetString reads a terminated Windows-1252 string and returns UTF-8.
func (r *Reader) GetString() (string, error) {
	if err := r.checkByteAccess(); err != nil {
		return "", err
	}
	end := bytes.IndexByte(r.data[r.off:], stringTerminator)
	if end < 0 {
		return "", ErrTruncated
	}
	raw := r.data[r.off : r.off+end]
	r.off += end + 1
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw), nil
	}
	return string(decoded), nil
}

// StartBitAccess switches to bit-level reads from the current byte.
func (r *Reader) StartBitAccess() error {
	if err := r.checkByteAccess(); err != nil {
		return err
	}
	r.bitPos = r.off * 8
	r.bitMode = true
	return nil
}

// EndBitAccess skips the rest of the current byte.
func (r *Reader) EndBitAccess() error {
	if !r.bitMode {
		return fmt.Errorf("%w: bit access not started", ErrProtocol)
	}
	r.off = (r.bitPos + 7) / 8
	r.bitMode = false
	return nil
}

// GetBits reads n bits, most significant first.
func (r *Reader) GetBits(n int) (int, error) {
	if !r.bitMode {
		return 0, fmt.Errorf("%w: bit read outside bit access", ErrProtocol)
	}
	if n < 1 || n > 32 {
		return 0, fmt.Errorf("%w: bit count %d out of range", ErrProtocol, n)
	}
	if r.bitPos+n > len(r.data)*8 {
		return 0, ErrTruncated
	}
	v := 0
	for i := 0; i < n; i++ {
		b := r.data[r.bitPos>>3]
		bit := int(b>>(7-uint(r.bitPos&7))) & 1
		v = v<<1 | bit
		r.bitPos++
	}
	return v, nil
}

// GetBit reads a single flag bit.
func (r *Reader) GetBit() (bool, error) {
	v, err := r.GetBits(1)
	return v == 1, err
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	if r.bitMode {
		return len(r.data) - (r.bitPos+7)/8
	}
	return len(r.data) - r.off
}
