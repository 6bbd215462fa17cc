package packet

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncated is returned when fewer bytes remain than a read needs.
	// The caller waits for more input; nothing is consumed.
	ErrTruncated = errors.New("packet: truncated")

	// ErrProtocol marks input the client should never send: unknown
	// opcodes, broken framing, misaligned bit access. Connection-fatal.
	ErrProtocol = errors.New("packet: protocol error")
)

// Kind is the framing of a packet on the wire.
type Kind int

const (
	Fixed         Kind = iota // size known statically, no prefix
	VariableByte              // 1 byte length prefix
	VariableShort             // 2 byte big-endian length prefix
)

func (k Kind) String() string {
	switch k {
	case Fixed:
		return "Fixed"
	case VariableByte:
		return "VariableByte"
	case VariableShort:
		return "VariableShort"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Framing declares how many payload bytes follow an opcode.
type Framing struct {
	Kind Kind
	Size int // payload size for Fixed framing
}

// FixedSize returns the framing of a fixed-length packet.
func FixedSize(n int) Framing { return Framing{Kind: Fixed, Size: n} }

var (
	VarByte  = Framing{Kind: VariableByte}
	VarShort = Framing{Kind: VariableShort}
)

// Packet is one decoded or encoded wire unit. Opcode is always plaintext;
// the cipher is applied by the codec.
type Packet struct {
	Opcode  int
	Kind    Kind
	Payload []byte
}

// Reader returns a Reader positioned at the start of the payload.
func (p *Packet) Reader() *Reader {
	return NewReader(p.Payload)
}

// DataType is the width in bytes of a primitive field.
type DataType int

const (
	Byte    DataType = 1
	Short   DataType = 2
	TriByte DataType = 3
	Int     DataType = 4
	Long    DataType = 8
)

// ByteOrder controls the order bytes of a multi-byte value are emitted in.
type ByteOrder int

const (
	Big ByteOrder = iota
	Little
	Middle        // int only: 8-15, 0-7, 24-31, 16-23
	InverseMiddle // int only: 16-23, 24-31, 0-7, 8-15
)

// Modification perturbs the least significant byte of a value, which is
// the byte the client applies its matching transform to.
type Modification int

const (
	None Modification = iota
	Addition
	Negation
	Subtraction
)

func (m Modification) apply(b byte) byte {
	switch m {
	case Addition:
		return b + 128
	case Negation:
		return -b
	case Subtraction:
		return 128 - b
	default:
		return b
	}
}

func (m Modification) revert(b byte) byte {
	switch m {
	case Addition:
		return b - 128
	case Negation:
		return -b
	case Subtraction:
		return 128 - b
	default:
		return b
	}
}

// byteIndices lists which byte of the value (0 = least significant) is
// emitted at each wire position.
func byteIndices(t DataType, order ByteOrder) []int {
	n := int(t)
	idx := make([]int, n)
	switch order {
	case Big:
		for i := range idx {
			idx[i] = n - 1 - i
		}
	case Little:
		for i := range idx {
			idx[i] = i
		}
	case Middle:
		if t != Int {
			panic(fmt.Sprintf("packet: middle byte order requires int, got %d bytes", n))
		}
		copy(idx, []int{1, 0, 3, 2})
	case InverseMiddle:
		if t != Int {
			panic(fmt.Sprintf("packet: inverse middle byte order requires int, got %d bytes", n))
		}
		copy(idx, []int{2, 3, 0, 1})
	default:
		panic(fmt.Sprintf("packet: unknown byte order %d", order))
	}
	return idx
}
