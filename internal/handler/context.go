package handler

import (
	"fmt"

	"github.com/astraeus/server/internal/config"
	"github.com/astraeus/server/internal/data"
	"github.com/astraeus/server/internal/net/packet"
	"github.com/astraeus/server/internal/world"
	"go.uber.org/zap"
)

// Deps holds shared dependencies injected into all packet handlers.
type Deps struct {
	Config  *config.Config
	Log     *zap.Logger
	World   *world.State
	Npcs    *data.NpcTable
	Metrics NpcMetrics // optional
}

// NpcMetrics tracks npcs added and removed by commands.
type NpcMetrics interface {
	NpcsSpawned(n int)
	NpcsDespawned(n int)
}

type nopNpcMetrics struct{}

func (nopNpcMetrics) NpcsSpawned(int)   {}
func (nopNpcMetrics) NpcsDespawned(int) {}

func (d *Deps) npcMetrics() NpcMetrics {
	if d.Metrics == nil {
		return nopNpcMetrics{}
	}
	return d.Metrics
}

// Registry is the opcode table every in-game session dispatches through.
type Registry = packet.Registry[*world.Player]

// RegisterAll registers all packet handlers into the registry.
func RegisterAll(reg *Registry, deps *Deps) {
	// Movement
	for _, op := range []int{OpWalk, OpWalkMinimap, OpWalkOnCommand} {
		reg.Register(op, "walk", packet.VarByte,
			func(p *world.Player, pkt *packet.Packet) error {
				return HandleWalk(p, pkt, deps)
			},
		)
	}

	reg.Register(OpButtonClick, "button_click", packet.FixedSize(2),
		func(p *world.Player, pkt *packet.Packet) error {
			return HandleButton(p, pkt, deps)
		},
	)
	reg.Register(OpPublicChat, "public_chat", packet.VarByte,
		func(p *world.Player, pkt *packet.Packet) error {
			return HandleChat(p, pkt, deps)
		},
	)
	reg.Register(OpCommand, "command", packet.VarByte,
		func(p *world.Player, pkt *packet.Packet) error {
			return HandleCommand(p, pkt, deps)
		},
	)
	reg.Register(OpDesign, "design", packet.FixedSize(13),
		func(p *world.Player, pkt *packet.Packet) error {
			return HandleDesign(p, pkt, deps)
		},
	)

	// Client housekeeping. Registered so framing stays in sync; nothing
	// to do on the server side.
	for _, n := range noops {
		reg.Register(n.opcode, n.name, n.framing, nil)
	}
}

// Inbound opcodes with a handler.
const (
	OpPublicChat    = 4
	OpWalkMinimap   = 98
	OpDesign        = 101
	OpCommand       = 103
	OpWalkOnCommand = 164
	OpButtonClick   = 185
	OpWalk          = 248
)

var noops = []struct {
	opcode  int
	name    string
	framing packet.Framing
}{
	{0, "keep_alive", packet.FixedSize(0)},
	{3, "focus_change", packet.FixedSize(1)},
	{36, "anti_cheat", packet.FixedSize(4)},
	{40, "dialogue_continue", packet.FixedSize(2)},
	{77, "anti_cheat", packet.VarByte},
	{78, "anti_cheat", packet.FixedSize(0)},
	{86, "camera_movement", packet.FixedSize(4)},
	{95, "privacy_options", packet.FixedSize(3)},
	{121, "region_loaded", packet.FixedSize(0)},
	{130, "close_interface", packet.FixedSize(0)},
	{165, "anti_cheat", packet.VarByte},
	{189, "anti_cheat", packet.FixedSize(1)},
	{202, "idle", packet.FixedSize(0)},
	{210, "region_changed", packet.FixedSize(4)},
	{218, "report_abuse", packet.FixedSize(10)},
	{226, "anti_cheat", packet.VarByte},
	{241, "mouse_click", packet.FixedSize(4)},
	{246, "anti_cheat", packet.VarByte},
}

// malformed wraps a read failure inside a packet whose length the decoder
// already accepted: the client sent a body that does not match its opcode.
func malformed(name string, err error) error {
	return fmt.Errorf("%w: malformed %s packet: %v", packet.ErrProtocol, name, err)
}
