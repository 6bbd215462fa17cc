// Package update encodes the per-tick synchronization packets that tell a
// client how the players and npcs around it moved and changed.
package update

import (
	"sort"

	"github.com/astraeus/server/internal/net/packet"
	"github.com/astraeus/server/internal/world"
)

const (
	PlayerUpdateOpcode = 81
	NpcUpdateOpcode    = 65

	playerIndexBits = 11
	npcIndexBits    = 14
	npcIDBits       = 12

	// Index values that end the additions list.
	playerTerminator = 1<<playerIndexBits - 1
	npcTerminator    = 1<<npcIndexBits - 1

	// Widest movement segment of a tracked entity (run).
	maxMovementBits = 1 + 2 + 3 + 3 + 1
	// Bit segment of one addition.
	playerAddBits = playerIndexBits + 1 + 1 + 5 + 5
	npcAddBits    = npcIndexBits + 5 + 5 + 1 + npcIDBits + 1
)

// Movement segment types.
const (
	moveNone = iota
	moveWalk
	moveRun
	moveTeleport
)

// Limits bounds what one update packet may carry.
type Limits struct {
	ViewRadius int
	// MaxAdditions caps the entities added to one local list per tick.
	MaxAdditions int
	// MaxPacketSize is the payload budget. Additions stop before it and
	// blocks of tracked entities that do not fit wait for the next tick.
	MaxPacketSize int
}

// DefaultLimits matches the client's buffers.
var DefaultLimits = Limits{ViewRadius: 15, MaxAdditions: 15, MaxPacketSize: 5000}

// View finds entities near a position. The results may include entities
// out of range; the encoders filter them.
type View interface {
	PlayersNear(dst []*world.Player, pos world.Position) []*world.Player
	NpcsNear(dst []*world.Npc, pos world.Position) []*world.Npc
}

// budget checks a packet under construction against MaxPacketSize,
// always leaving room for the additions terminator.
type budget struct {
	w, blocks      *packet.Writer
	max            int
	terminatorBits int
}

// fits reports whether bits more of the bit section and a block of
// blockBytes still fit.
func (b budget) fits(bits, blockBytes int) bool {
	bitBytes := (b.w.BitLen() + bits + b.terminatorBits + 7) / 8
	return bitBytes+b.blocks.Len()+blockBytes <= b.max
}

// putMovement writes the movement segment of a tracked entity.
func putMovement(w *packet.Writer, f world.Frame, updateRequired bool) {
	switch {
	case f.Secondary != world.None:
		w.PutBit(true)
		w.PutBits(2, moveRun)
		w.PutBits(3, int(f.Primary))
		w.PutBits(3, int(f.Secondary))
		w.PutBit(updateRequired)
	case f.Primary != world.None:
		w.PutBit(true)
		w.PutBits(2, moveWalk)
		w.PutBits(3, int(f.Primary))
		w.PutBit(updateRequired)
	case updateRequired:
		w.PutBit(true)
		w.PutBits(2, moveNone)
	default:
		w.PutBit(false)
	}
}

// putRemoval writes the segment that drops a tracked entity.
func putRemoval(w *packet.Writer) {
	w.PutBit(true)
	w.PutBits(2, moveTeleport)
}

// offset encodes a signed tile delta in 5 bits.
func offset(d int) int { return d & 0x1f }

// byDistance orders candidates nearest first, then by index, so
// truncation is deterministic.
func byDistance[E interface{ Index() int }](from world.Position, entities []E, pos func(E) world.Position) {
	sort.SliceStable(entities, func(i, j int) bool {
		di, dj := from.Distance(pos(entities[i])), from.Distance(pos(entities[j]))
		if di != dj {
			return di < dj
		}
		return entities[i].Index() < entities[j].Index()
	})
}

// stays decides whether a tracked entity remains in an observer's list.
func stays(observer world.Position, active bool, f world.Frame, radius int) bool {
	return active && !f.Teleported && observer.WithinDistance(f.Position, radius)
}
