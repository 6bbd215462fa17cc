package net

// ISAAC is the keyed pseudorandom generator the client uses to mask
// opcodes. It reproduces the client's implementation bit for bit: same
// seeding, same result order (results are consumed from the top of each
// 256-word batch down).
type ISAAC struct {
	count   int
	results [256]uint32
	mem     [256]uint32
	a, b, c uint32
}

const goldenRatio = 0x9e3779b9

// NewISAAC seeds a generator. At most 256 seed words are used.
func NewISAAC(seed []uint32) *ISAAC {
	g := &ISAAC{}
	copy(g.results[:], seed)
	g.init()
	return g
}

// Next advances the generator one step and returns the value.
func (g *ISAAC) Next() uint32 {
	if g.count == 0 {
		g.isaac()
		g.count = 256
	}
	g.count--
	return g.results[g.count]
}

func (g *ISAAC) isaac() {
	g.c++
	g.b += g.c
	for i := 0; i < 256; i++ {
		x := g.mem[i]
		switch i & 3 {
		case 0:
			g.a ^= g.a << 13
		case 1:
			g.a ^= g.a >> 6
		case 2:
			g.a ^= g.a << 2
		case 3:
			g.a ^= g.a >> 16
		}
		g.a += g.mem[(i+128)&0xff]
		y := g.mem[(x>>2)&0xff] + g.a + g.b
		g.mem[i] = y
		g.b = g.mem[(y>>10)&0xff] + x
		g.results[i] = g.b
	}
}

type isaacMix [8]uint32

func (m *isaacMix) mix() {
	m[0] ^= m[1] << 11
	m[3] += m[0]
	m[1] += m[2]
	m[1] ^= m[2] >> 2
	m[4] += m[1]
	m[2] += m[3]
	m[2] ^= m[3] << 8
	m[5] += m[2]
	m[3] += m[4]
	m[3] ^= m[4] >> 16
	m[6] += m[3]
	m[4] += m[5]
	m[4] ^= m[5] << 10
	m[7] += m[4]
	m[5] += m[6]
	m[5] ^= m[6] >> 4
	m[0] += m[5]
	m[6] += m[7]
	m[6] ^= m[7] << 8
	m[1] += m[6]
	m[7] += m[0]
	m[7] ^= m[0] >> 9
	m[2] += m[7]
	m[0] += m[1]
}

func (g *ISAAC) init() {
	var m isaacMix
	for i := range m {
		m[i] = goldenRatio
	}
	for i := 0; i < 4; i++ {
		m.mix()
	}
	for i := 0; i < 256; i += 8 {
		for j := range m {
			m[j] += g.results[i+j]
		}
		m.mix()
		copy(g.mem[i:i+8], m[:])
	}
	for i := 0; i < 256; i += 8 {
		for j := range m {
			m[j] += g.mem[i+j]
		}
		m.mix()
		copy(g.mem[i:i+8], m[:])
	}
	g.isaac()
	g.count = 256
}

// KeyStream is one direction of opcode masking.
type KeyStream interface {
	Next() uint32
}

// outboundSeedOffset is added to every seed word for the server-to-client
// stream; the client seeds its decoder the same way.
const outboundSeedOffset = 50

// CipherPair holds the two independent generators of one session. Each
// is advanced exactly once per packet in its direction and never reseeded.
type CipherPair struct {
	Inbound  KeyStream
	Outbound KeyStream
}

// NewCipherPair derives both streams from the session seed exchanged at
// login.
func NewCipherPair(seed [4]uint32) *CipherPair {
	in := seed
	out := seed
	for i := range out {
		out[i] += outboundSeedOffset
	}
	return &CipherPair{
		Inbound:  NewISAAC(in[:]),
		Outbound: NewISAAC(out[:]),
	}
}

// NextInbound returns the next mask for a client-to-server opcode.
func (c *CipherPair) NextInbound() uint32 { return c.Inbound.Next() }

// NextOutbound returns the next mask for a server-to-client opcode.
func (c *CipherPair) NextOutbound() uint32 { return c.Outbound.Next() }
