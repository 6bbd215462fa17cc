package world

import "github.com/astraeus/server/internal/net/packet"

// Sender is the player's connection: Send queues an outbound packet,
// Disconnect ends the connection after the queued packets are written.
type Sender interface {
	Send(p *packet.Packet)
	Disconnect()
}

// Rights is the player's privilege level as the client displays it.
type Rights int

const (
	RightsPlayer Rights = iota
	RightsModerator
	RightsAdministrator
)

// regionRebuildDistance is how many chunks a player may drift from the
// last loaded region before the client needs a new one.
const regionRebuildDistance = 4

// Player is a connected user.
type Player struct {
	Mob

	Name   string
	Rights Rights
	sender Sender

	appearance  Appearance
	combatLevel int
	totalLevel  int

	// Owned by the synchronize phase for this observer.
	LocalPlayers *LocalList[*Player]
	LocalNpcs    *LocalList[*Npc]

	runToggled bool

	lastRegion    Position
	regionChanged bool
	placed        bool
}

// NewPlayer builds an unregistered player at pos.
func NewPlayer(name string, pos Position, sender Sender, localCapacity int) *Player {
	p := &Player{
		Name:         name,
		sender:       sender,
		appearance:   DefaultAppearance(),
		combatLevel:  3,
		totalLevel:   32,
		LocalPlayers: NewLocalList[*Player](localCapacity),
		LocalNpcs:    NewLocalList[*Npc](localCapacity),
	}
	p.init(pos)
	return p
}

// Send queues p for the player's client.
func (p *Player) Send(pkt *packet.Packet) {
	if p.sender != nil {
		p.sender.Send(pkt)
	}
}

// Disconnect asks the connection to close after pending output.
func (p *Player) Disconnect() {
	if p.sender != nil {
		p.sender.Disconnect()
	}
}

// ToggleRun records the run setting from the client's settings tab. It
// applies to paths queued from now on.
func (p *Player) ToggleRun(on bool) {
	p.mu.Lock()
	p.runToggled = on
	p.queue.SetRunning(on)
	p.mu.Unlock()
}

func (p *Player) RunToggled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runToggled
}

// Appearance returns the current look.
func (p *Player) Appearance() Appearance {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.appearance
}

func (p *Player) Levels() (combat, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.combatLevel, p.totalLevel
}

// UpdateAppearance stores a new look and flags it for broadcast.
func (p *Player) UpdateAppearance(a Appearance) {
	p.mu.Lock()
	p.appearance = a
	p.pending = p.pending.With(FlagAppearance)
	p.mu.Unlock()
}

// Chat flags a public chat message.
func (p *Player) Chat(msg ChatMessage) {
	p.setFlag(FlagChat, func(b *Blocks) { b.Chat = msg })
}

// InteractionID is how other entities refer to this player when they
// focus it.
func (p *Player) InteractionID() int { return p.Index() + 32768 }

// UpdateRegion decides, after movement, whether the client needs a new
// map region. The first call after login always does.
func (p *Player) UpdateRegion() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case !p.placed:
		p.placed = true
		p.teleported = true
		p.regionChanged = true
	case p.teleported && p.pos.Plane != p.lastRegion.Plane:
		p.regionChanged = true
	default:
		dx := abs(p.pos.RegionX() - p.lastRegion.RegionX())
		dy := abs(p.pos.RegionY() - p.lastRegion.RegionY())
		p.regionChanged = dx >= regionRebuildDistance || dy >= regionRebuildDistance
	}
	if p.regionChanged {
		p.lastRegion = p.pos
	}
	return p.regionChanged
}

// RegionChanged reports whether this tick loads a new region.
func (p *Player) RegionChanged() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.regionChanged
}

// LastRegion is the position the client's loaded region is built around.
func (p *Player) LastRegion() Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastRegion
}

// ResetFlags clears the player's per-tick state.
func (p *Player) ResetFlags() {
	p.Mob.ResetFlags()
	p.mu.Lock()
	p.regionChanged = false
	p.mu.Unlock()
}
