package update

import (
	"github.com/astraeus/server/internal/net/packet"
	"github.com/astraeus/server/internal/world"
)

// NpcUpdate builds the npc synchronization packet for observer and
// advances its local npc list.
func NpcUpdate(observer *world.Player, view View, lim Limits) *packet.Packet {
	self := observer.Frame()
	local := observer.LocalNpcs

	w := packet.NewWriter(NpcUpdateOpcode, packet.VariableShort)
	blocks := packet.NewBlockWriter()

	room := budget{w: w, blocks: blocks, max: lim.MaxPacketSize, terminatorBits: npcIndexBits}

	w.StartBitAccess()
	entries := local.Entries()
	w.PutBits(8, len(entries))
	keep := make([]bool, len(entries))
	for i, n := range entries {
		f := n.Frame()
		keep[i] = stays(self.Position, n.Active(), f, lim.ViewRadius)
		if !keep[i] {
			putRemoval(w)
			continue
		}
		flags, b := local.TakeDeferred(n).Merge(f.Flags, f.Blocks)
		if flags.Empty() {
			putMovement(w, f, false)
			continue
		}
		block := packet.NewBlockWriter()
		putNpcBlocks(block, b, flags)
		if !room.fits((len(entries)-i)*maxMovementBits, block.Len()) {
			local.Defer(n, flags, b)
			putMovement(w, f, false)
			continue
		}
		putMovement(w, f, true)
		blocks.PutBlock(block)
	}
	i := 0
	local.Retain(func(*world.Npc) bool {
		k := keep[i]
		i++
		return k
	})

	var pending []*world.Npc
	for _, n := range view.NpcsNear(nil, self.Position) {
		if !n.Active() || local.Contains(n) {
			continue
		}
		if self.Position.WithinDistance(n.Position(), lim.ViewRadius) {
			pending = append(pending, n)
		}
	}
	byDistance(self.Position, pending, (*world.Npc).Position)

	added := 0
	for _, n := range pending {
		if local.Full() || added >= lim.MaxAdditions {
			break
		}
		f := n.Frame()
		block := packet.NewBlockWriter()
		if f.UpdateRequired() {
			putNpcBlocks(block, f.Blocks, f.Flags)
		}
		if !room.fits(npcAddBits, block.Len()) {
			break
		}
		local.Add(n)
		added++

		dx, dy := self.Position.Delta(f.Position)
		w.PutBits(npcIndexBits, n.Index())
		w.PutBits(5, offset(dy))
		w.PutBits(5, offset(dx))
		w.PutBit(true) // discard walking queue
		w.PutBits(npcIDBits, n.VisibleID())
		w.PutBit(f.UpdateRequired())
		blocks.PutBlock(block)
	}

	if blocks.Len() > 0 {
		w.PutBits(npcIndexBits, npcTerminator)
	}
	w.EndBitAccess()
	w.PutBlock(blocks)
	return w.Packet()
}
