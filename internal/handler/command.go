package handler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/astraeus/server/internal/net/packet"
	"github.com/astraeus/server/internal/world"
	"go.uber.org/zap"
)

type command struct {
	rights world.Rights
	usage  string
	run    func(p *world.Player, args []string, deps *Deps)
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"help":    {world.RightsPlayer, "::help", cmdHelp},
		"pos":     {world.RightsPlayer, "::pos", cmdPos},
		"players": {world.RightsPlayer, "::players", cmdPlayers},
		"tele":    {world.RightsModerator, "::tele x y [plane]", cmdTele},
		"say":     {world.RightsModerator, "::say text", cmdSay},
		"anim":    {world.RightsAdministrator, "::anim id [delay]", cmdAnim},
		"gfx":     {world.RightsAdministrator, "::gfx id [height]", cmdGfx},
		"npc":     {world.RightsAdministrator, "::npc id", cmdNpc},
		"despawn": {world.RightsAdministrator, "::despawn index", cmdDespawn},
	}
}

// HandleCommand processes a "::" command typed in the chat box. The client
// strips the prefix before sending.
func HandleCommand(p *world.Player, pkt *packet.Packet, deps *Deps) error {
	text, err := pkt.Reader().GetString()
	if err != nil {
		return malformed("command", err)
	}
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return nil
	}
	name := strings.ToLower(parts[0])
	cmd, ok := commands[name]
	if !ok || p.Rights < cmd.rights {
		SendMessage(p, "Unknown command: "+name)
		return nil
	}

	deps.Log.Info("command",
		zap.String("player", p.Name),
		zap.String("command", name),
		zap.Strings("args", parts[1:]),
	)
	cmd.run(p, parts[1:], deps)
	return nil
}

// intArgs parses every argument as an integer; at least n are required.
func intArgs(args []string, n int) ([]int, bool) {
	if len(args) < n {
		return nil, false
	}
	out := make([]int, len(args))
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func usage(p *world.Player, name string) {
	SendMessage(p, "Usage: "+commands[name].usage)
}

func cmdHelp(p *world.Player, _ []string, _ *Deps) {
	for _, name := range []string{"help", "pos", "players", "tele", "say", "anim", "gfx", "npc", "despawn"} {
		if c := commands[name]; p.Rights >= c.rights {
			SendMessage(p, c.usage)
		}
	}
}

func cmdPos(p *world.Player, _ []string, _ *Deps) {
	pos := p.Position()
	SendMessage(p, fmt.Sprintf("You are at %d, %d, %d (region %d, %d).",
		pos.X, pos.Y, pos.Plane, pos.RegionX(), pos.RegionY()))
}

func cmdPlayers(p *world.Player, _ []string, deps *Deps) {
	n := deps.World.PlayerCount()
	if n == 1 {
		SendMessage(p, "There is 1 player online.")
		return
	}
	SendMessage(p, fmt.Sprintf("There are %d players online.", n))
}

func cmdTele(p *world.Player, args []string, _ *Deps) {
	v, ok := intArgs(args, 2)
	if !ok || len(v) > 3 {
		usage(p, "tele")
		return
	}
	dest := world.Position{X: v[0], Y: v[1], Plane: p.Position().Plane}
	if len(v) == 3 {
		dest.Plane = v[2]
	}
	if dest.X < 0 || dest.Y < 0 || dest.Plane < 0 || dest.Plane > 3 {
		usage(p, "tele")
		return
	}
	p.Teleport(dest)
}

func cmdSay(p *world.Player, args []string, _ *Deps) {
	if len(args) == 0 {
		usage(p, "say")
		return
	}
	p.ForceChat(strings.Join(args, " "))
}

func cmdAnim(p *world.Player, args []string, _ *Deps) {
	v, ok := intArgs(args, 1)
	if !ok || len(v) > 2 {
		usage(p, "anim")
		return
	}
	a := world.Animation{ID: v[0]}
	if len(v) == 2 {
		a.Delay = v[1]
	}
	p.PlayAnimation(a)
}

func cmdGfx(p *world.Player, args []string, _ *Deps) {
	v, ok := intArgs(args, 1)
	if !ok || len(v) > 2 {
		usage(p, "gfx")
		return
	}
	g := world.Graphic{ID: v[0]}
	if len(v) == 2 {
		g.Height = v[1]
	}
	p.PlayGraphic(g)
}

func cmdNpc(p *world.Player, args []string, deps *Deps) {
	v, ok := intArgs(args, 1)
	if !ok || len(v) != 1 {
		usage(p, "npc")
		return
	}
	if deps.Npcs != nil && deps.Npcs.Get(v[0]) == nil {
		SendMessage(p, fmt.Sprintf("No npc with id %d.", v[0]))
		return
	}
	n := world.NewNpc(v[0], p.Position(), world.South, false, 0)
	if err := deps.World.AddNpc(n); err != nil {
		deps.Log.Warn("spawn npc", zap.Int("npc", v[0]), zap.Error(err))
		SendMessage(p, "The world cannot hold any more npcs.")
		return
	}
	deps.npcMetrics().NpcsSpawned(1)
	SendMessage(p, fmt.Sprintf("Spawned npc %d at index %d.", v[0], n.Index()))
}

func cmdDespawn(p *world.Player, args []string, deps *Deps) {
	v, ok := intArgs(args, 1)
	if !ok || len(v) != 1 {
		usage(p, "despawn")
		return
	}
	n, ok := deps.World.Npc(v[0])
	if !ok || !deps.World.RemoveNpc(n) {
		SendMessage(p, fmt.Sprintf("No npc at index %d.", v[0]))
		return
	}
	deps.npcMetrics().NpcsDespawned(1)
	SendMessage(p, fmt.Sprintf("Despawned npc %d at index %d.", n.DefinitionID, v[0]))
}
