package handler

import (
	"github.com/astraeus/server/internal/net/packet"
	"github.com/astraeus/server/internal/world"
)

// maxChatBytes is the longest packed message the client composes.
const maxChatBytes = 100

// HandleChat processes public chat. The text stays in the client's packed
// form and is relayed to observers through the chat update block.
func HandleChat(p *world.Player, pkt *packet.Packet, deps *Deps) error {
	r := pkt.Reader()
	effects, err := r.Get(packet.Byte, packet.Big, packet.Subtraction)
	if err != nil {
		return malformed("chat", err)
	}
	color, err := r.Get(packet.Byte, packet.Big, packet.Subtraction)
	if err != nil {
		return malformed("chat", err)
	}
	n := r.Remaining()
	if n == 0 || n > maxChatBytes {
		return nil
	}
	packed := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		b, err := r.Get(packet.Byte, packet.Big, packet.Addition)
		if err != nil {
			return malformed("chat", err)
		}
		packed[i] = byte(b)
	}

	p.Chat(world.ChatMessage{
		Color:   int(color),
		Effects: int(effects),
		Rights:  int(p.Rights),
		Packed:  packed,
	})
	return nil
}
