package update

import (
	"github.com/astraeus/server/internal/net/packet"
	"github.com/astraeus/server/internal/world"
)

// PlayerUpdate builds the player synchronization packet for observer and
// advances its local player list. It must run after the prepare phase
// latched every entity's frame.
func PlayerUpdate(observer *world.Player, view View, lim Limits) *packet.Packet {
	self := observer.Frame()
	local := observer.LocalPlayers

	w := packet.NewWriter(PlayerUpdateOpcode, packet.VariableShort)
	blocks := packet.NewBlockWriter()

	room := budget{w: w, blocks: blocks, max: lim.MaxPacketSize, terminatorBits: playerIndexBits}

	w.StartBitAccess()
	selfFlags := self.Flags &^ world.FlagSet(world.FlagChat)
	putLocalPlayerMovement(w, observer, self, !selfFlags.Empty())
	if !selfFlags.Empty() {
		putPlayerBlocks(blocks, observer, self.Blocks, selfFlags)
	}

	entries := local.Entries()
	w.PutBits(8, len(entries))
	keep := make([]bool, len(entries))
	for i, other := range entries {
		f := other.Frame()
		keep[i] = other != observer && stays(self.Position, other.Active(), f, lim.ViewRadius)
		if !keep[i] {
			putRemoval(w)
			continue
		}
		flags, b := local.TakeDeferred(other).Merge(f.Flags, f.Blocks)
		if flags.Empty() {
			putMovement(w, f, false)
			continue
		}
		block := packet.NewBlockWriter()
		putPlayerBlocks(block, other, b, flags)
		if !room.fits((len(entries)-i)*maxMovementBits, block.Len()) {
			local.Defer(other, flags, b)
			putMovement(w, f, false)
			continue
		}
		putMovement(w, f, true)
		blocks.PutBlock(block)
	}
	i := 0
	local.Retain(func(*world.Player) bool {
		k := keep[i]
		i++
		return k
	})

	candidates := view.PlayersNear(nil, self.Position)
	added := 0
	var pending []*world.Player
	for _, other := range candidates {
		if other == observer || !other.Active() || local.Contains(other) {
			continue
		}
		if self.Position.WithinDistance(other.Position(), lim.ViewRadius) {
			pending = append(pending, other)
		}
	}
	byDistance(self.Position, pending, (*world.Player).Position)

	for _, other := range pending {
		if local.Full() || added >= lim.MaxAdditions {
			break
		}
		f := other.Frame()
		flags := f.Flags.With(world.FlagAppearance)
		block := packet.NewBlockWriter()
		putPlayerBlocks(block, other, f.Blocks, flags)
		if !room.fits(playerAddBits, block.Len()) {
			break
		}
		local.Add(other)
		added++

		dx, dy := self.Position.Delta(f.Position)
		w.PutBits(playerIndexBits, other.Index())
		w.PutBit(true) // update required
		w.PutBit(true) // discard walking queue
		w.PutBits(5, offset(dy))
		w.PutBits(5, offset(dx))
		blocks.PutBlock(block)
	}

	if blocks.Len() > 0 {
		w.PutBits(playerIndexBits, playerTerminator)
	}
	w.EndBitAccess()
	w.PutBlock(blocks)
	return w.Packet()
}

// putLocalPlayerMovement writes the observer's own movement. A teleport or
// region change places the player by local coordinates instead.
func putLocalPlayerMovement(w *packet.Writer, p *world.Player, f world.Frame, updateRequired bool) {
	if !f.Teleported && !p.RegionChanged() {
		putMovement(w, f, updateRequired)
		return
	}
	region := p.LastRegion()
	w.PutBit(true)
	w.PutBits(2, moveTeleport)
	w.PutBits(2, f.Position.Plane)
	w.PutBit(true) // discard walking queue
	w.PutBit(updateRequired)
	w.PutBits(7, f.Position.LocalY(region))
	w.PutBits(7, f.Position.LocalX(region))
}
