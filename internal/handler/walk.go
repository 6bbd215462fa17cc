package handler

import (
	"github.com/astraeus/server/internal/net/packet"
	"github.com/astraeus/server/internal/world"
	"go.uber.org/zap"
)

const (
	// minimapTrailer is the anti-cheat data the client appends to a
	// minimap walk.
	minimapTrailer = 14
	// maxWalkDistance bounds how far from the player a waypoint may lie;
	// the client can only click inside its loaded region.
	maxWalkDistance = 104
)

// HandleWalk processes the three walk opcodes: a first tile, then step
// offsets relative to it, then the ctrl-run flag.
func HandleWalk(p *world.Player, pkt *packet.Packet, deps *Deps) error {
	size := len(pkt.Payload)
	if pkt.Opcode == OpWalk {
		size -= minimapTrailer
	}
	if size < 5 || (size-5)%2 != 0 {
		return malformed("walk", packet.ErrTruncated)
	}
	steps := (size - 5) / 2

	r := pkt.Reader()
	firstX, err := r.Get(packet.Short, packet.Little, packet.Addition)
	if err != nil {
		return malformed("walk", err)
	}
	offsets := make([][2]int, steps)
	for i := range offsets {
		dx, err := r.GetSigned(packet.Byte, packet.Big, packet.None)
		if err != nil {
			return malformed("walk", err)
		}
		dy, err := r.GetSigned(packet.Byte, packet.Big, packet.None)
		if err != nil {
			return malformed("walk", err)
		}
		offsets[i] = [2]int{int(dx), int(dy)}
	}
	firstY, err := r.Get(packet.Short, packet.Little, packet.None)
	if err != nil {
		return malformed("walk", err)
	}
	ctrl, err := r.Get(packet.Byte, packet.Big, packet.Negation)
	if err != nil {
		return malformed("walk", err)
	}

	from := p.Position()
	waypoints := make([]world.Position, 0, steps+1)
	first := world.Position{X: int(firstX), Y: int(firstY), Plane: from.Plane}
	waypoints = append(waypoints, first)
	for _, o := range offsets {
		waypoints = append(waypoints, world.Position{X: first.X + o[0], Y: first.Y + o[1], Plane: from.Plane})
	}
	for _, wp := range waypoints {
		if !from.WithinDistance(wp, maxWalkDistance) {
			deps.Log.Debug("walk target outside region",
				zap.String("player", p.Name),
				zap.Stringer("from", from),
				zap.Stringer("to", wp),
			)
			return nil
		}
	}

	p.WalkTo(ctrl == 1 || p.RunToggled(), waypoints...)
	return nil
}
