package update

import (
	"github.com/astraeus/server/internal/net/packet"
	"github.com/astraeus/server/internal/world"
)

// blockMask pairs a flag with the bit the client reads for it. The order
// of each table is the order the client decodes the blocks in.
type blockMask struct {
	flag world.Flag
	bit  int
}

var playerBlockOrder = []blockMask{
	{world.FlagGraphics, 0x100},
	{world.FlagAnimation, 0x8},
	{world.FlagForcedChat, 0x4},
	{world.FlagChat, 0x80},
	{world.FlagInteracting, 0x1},
	{world.FlagAppearance, 0x10},
	{world.FlagFaceCoordinate, 0x2},
}

var npcBlockOrder = []blockMask{
	{world.FlagAnimation, 0x10},
	{world.FlagGraphics, 0x80},
	{world.FlagInteracting, 0x20},
	{world.FlagForcedChat, 0x1},
	{world.FlagTransform, 0x2},
	{world.FlagFaceCoordinate, 0x4},
}

// Player mask bit that announces a second mask byte.
const extendedMask = 0x40

// Animation ids of the default humanoid stance.
var standAnimations = [7]int{0x328, 0x337, 0x333, 0x334, 0x335, 0x336, 0x338}

func mask(order []blockMask, flags world.FlagSet) int {
	m := 0
	for _, b := range order {
		if flags.Has(b.flag) {
			m |= b.bit
		}
	}
	return m
}

func putPlayerBlocks(w *packet.Writer, p *world.Player, b world.Blocks, flags world.FlagSet) {
	m := mask(playerBlockOrder, flags)
	if m >= 0x100 {
		m |= extendedMask
		w.Put(packet.Short, packet.Little, packet.None, int64(m))
	} else {
		w.PutByte(m)
	}
	for _, bm := range playerBlockOrder {
		if !flags.Has(bm.flag) {
			continue
		}
		switch bm.flag {
		case world.FlagGraphics:
			w.Put(packet.Short, packet.Little, packet.None, int64(b.Graphic.ID))
			w.PutInt(int32(b.Graphic.Height<<16 | b.Graphic.Delay&0xffff))
		case world.FlagAnimation:
			w.Put(packet.Short, packet.Little, packet.None, int64(b.Animation.ID))
			w.Put(packet.Byte, packet.Big, packet.Negation, int64(b.Animation.Delay))
		case world.FlagForcedChat:
			w.PutString(b.ForcedChat)
		case world.FlagChat:
			putChat(w, b.Chat)
		case world.FlagInteracting:
			w.Put(packet.Short, packet.Little, packet.None, int64(b.Interacting))
		case world.FlagAppearance:
			putAppearance(w, p)
		case world.FlagFaceCoordinate:
			w.Put(packet.Short, packet.Little, packet.Addition, int64(b.Face.X*2+1))
			w.Put(packet.Short, packet.Little, packet.None, int64(b.Face.Y*2+1))
		}
	}
}

func putChat(w *packet.Writer, c world.ChatMessage) {
	w.Put(packet.Short, packet.Little, packet.None, int64((c.Color&0xff)<<8|c.Effects&0xff))
	w.PutByte(c.Rights)
	w.Put(packet.Byte, packet.Big, packet.Negation, int64(len(c.Packed)))
	w.PutBytesReversed(c.Packed)
}

// putAppearance writes the length-prefixed appearance block.
func putAppearance(w *packet.Writer, p *world.Player) {
	a := p.Appearance()
	combat, total := p.Levels()
	const (
		head = iota
		torso
		arms
		hands
		legs
		feet
		beard
	)

	props := packet.NewBlockWriter()
	props.PutByte(a.Gender)
	props.PutByte(a.HeadIcon)
	for range 4 { // hat, cape, amulet, weapon
		props.PutByte(0)
	}
	props.PutShort(0x100 + a.Body[torso])
	props.PutByte(0) // shield
	props.PutShort(0x100 + a.Body[arms])
	props.PutShort(0x100 + a.Body[legs])
	props.PutShort(0x100 + a.Body[head])
	props.PutShort(0x100 + a.Body[hands])
	props.PutShort(0x100 + a.Body[feet])
	if a.Gender == 0 {
		props.PutShort(0x100 + a.Body[beard])
	} else {
		props.PutByte(0)
	}
	for _, c := range a.Colors {
		props.PutByte(c)
	}
	for _, anim := range standAnimations {
		props.PutShort(anim)
	}
	props.PutName(p.Name)
	props.PutByte(combat)
	props.PutShort(total)

	w.Put(packet.Byte, packet.Big, packet.Negation, int64(props.Len()))
	w.PutBlock(props)
}

func putNpcBlocks(w *packet.Writer, b world.Blocks, flags world.FlagSet) {
	w.PutByte(mask(npcBlockOrder, flags))
	for _, bm := range npcBlockOrder {
		if !flags.Has(bm.flag) {
			continue
		}
		switch bm.flag {
		case world.FlagAnimation:
			w.Put(packet.Short, packet.Little, packet.None, int64(b.Animation.ID))
			w.PutByte(b.Animation.Delay)
		case world.FlagGraphics:
			w.PutShort(b.Graphic.ID)
			w.PutInt(int32(b.Graphic.Height<<16 | b.Graphic.Delay&0xffff))
		case world.FlagInteracting:
			w.PutShort(b.Interacting)
		case world.FlagForcedChat:
			w.PutString(b.ForcedChat)
		case world.FlagTransform:
			w.Put(packet.Short, packet.Little, packet.Addition, int64(b.Transform))
		case world.FlagFaceCoordinate:
			w.Put(packet.Short, packet.Little, packet.None, int64(b.Face.X*2+1))
			w.Put(packet.Short, packet.Little, packet.None, int64(b.Face.Y*2+1))
		}
	}
}
