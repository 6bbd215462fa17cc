package net

import (
	"errors"
	"fmt"

	"github.com/astraeus/server/internal/net/packet"
)

var (
	// ErrUnknownOpcode is returned for an opcode with no declared framing.
	ErrUnknownOpcode = fmt.Errorf("%w: unknown opcode", packet.ErrProtocol)

	// ErrLengthOverflow is returned when a payload does not fit its framing.
	ErrLengthOverflow = fmt.Errorf("%w: payload does not fit framing", packet.ErrProtocol)
)

// FramingTable tells the decoder how many payload bytes follow an opcode.
type FramingTable interface {
	Framing(opcode int) (packet.Framing, bool)
}

type decodeState int

const (
	stateOpcode decodeState = iota
	stateLength
	statePayload
)

// Decoder turns the inbound byte stream into packets.
//
// Wire format: [opcode + inbound mask] [0, 1 or 2 length bytes] [payload].
// The opcode is deciphered exactly once per packet; if the payload has not
// fully arrived the decoder remembers where it stopped so the cipher is not
// advanced again on retry.
type Decoder struct {
	stream KeyStream
	table  FramingTable

	state  decodeState
	opcode int
	kind   packet.Kind
	size   int
}

func NewDecoder(stream KeyStream, table FramingTable) *Decoder {
	return &Decoder{stream: stream, table: table}
}

// Decode consumes bytes from buf and returns at most one packet. n is the
// number of bytes consumed, which can be non-zero even when the packet is
// still incomplete (packet.ErrTruncated): the caller drops those n bytes
// and calls again once more input is buffered.
func (d *Decoder) Decode(buf []byte) (pkt *packet.Packet, n int, err error) {
	for {
		switch d.state {
		case stateOpcode:
			if n >= len(buf) {
				return nil, n, packet.ErrTruncated
			}
			d.opcode = int((uint32(buf[n]) - d.stream.Next()) & 0xff)
			n++
			framing, ok := d.table.Framing(d.opcode)
			if !ok {
				return nil, n, fmt.Errorf("%w %d", ErrUnknownOpcode, d.opcode)
			}
			d.kind = framing.Kind
			switch framing.Kind {
			case packet.Fixed:
				d.size = framing.Size
				d.state = statePayload
			case packet.VariableByte, packet.VariableShort:
				d.state = stateLength
			default:
				return nil, n, fmt.Errorf("%w: opcode %d declares %s framing", packet.ErrProtocol, d.opcode, framing.Kind)
			}

		case stateLength:
			width := 1
			if d.kind == packet.VariableShort {
				width = 2
			}
			if len(buf)-n < width {
				return nil, n, packet.ErrTruncated
			}
			if width == 1 {
				d.size = int(buf[n])
			} else {
				d.size = int(buf[n])<<8 | int(buf[n+1])
			}
			n += width
			d.state = statePayload

		case statePayload:
			if len(buf)-n < d.size {
				return nil, n, packet.ErrTruncated
			}
			payload := make([]byte, d.size)
			copy(payload, buf[n:n+d.size])
			n += d.size
			pkt = &packet.Packet{Opcode: d.opcode, Kind: d.kind, Payload: payload}
			d.state = stateOpcode
			return pkt, n, nil
		}
	}
}

// Pending reports whether a packet header has been consumed but its
// payload has not.
func (d *Decoder) Pending() bool {
	return d.state != stateOpcode
}

// Encoder frames outbound packets and masks their opcodes. Packets must be
// encoded in the order they are written to the connection.
type Encoder struct {
	stream KeyStream
}

func NewEncoder(stream KeyStream) *Encoder {
	return &Encoder{stream: stream}
}

// Encode appends the framed packet to dst. The length is validated before
// the cipher advances so a rejected packet does not desynchronise the
// stream.
func (e *Encoder) Encode(dst []byte, p *packet.Packet) ([]byte, error) {
	if p.Opcode < 0 || p.Opcode > 255 {
		return dst, fmt.Errorf("%w: opcode %d", packet.ErrProtocol, p.Opcode)
	}
	size := len(p.Payload)
	switch p.Kind {
	case packet.Fixed:
	case packet.VariableByte:
		if size > 0xff {
			return dst, fmt.Errorf("%w: opcode %d size %d", ErrLengthOverflow, p.Opcode, size)
		}
	case packet.VariableShort:
		if size > 0xffff {
			return dst, fmt.Errorf("%w: opcode %d size %d", ErrLengthOverflow, p.Opcode, size)
		}
	default:
		return dst, errors.New("encode: unknown packet kind")
	}

	dst = append(dst, byte(uint32(p.Opcode)+e.stream.Next()))
	switch p.Kind {
	case packet.VariableByte:
		dst = append(dst, byte(size))
	case packet.VariableShort:
		dst = append(dst, byte(size>>8), byte(size))
	}
	return append(dst, p.Payload...), nil
}
