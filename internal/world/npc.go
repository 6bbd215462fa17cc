package world

// Npc is a server-controlled character.
type Npc struct {
	Mob

	DefinitionID int
	Spawn        Position
	Facing       Direction
	RandomWalk   bool
	WanderRadius int

	transformID int
}

// NewNpc builds an unregistered npc standing at its spawn.
func NewNpc(definitionID int, spawn Position, facing Direction, randomWalk bool, radius int) *Npc {
	n := &Npc{
		DefinitionID: definitionID,
		Spawn:        spawn,
		Facing:       facing,
		RandomWalk:   randomWalk,
		WanderRadius: radius,
		transformID:  definitionID,
	}
	n.init(spawn)
	return n
}

// Transform changes the definition the client renders this npc as.
func (n *Npc) Transform(definitionID int) {
	n.setFlag(FlagTransform, func(b *Blocks) { b.Transform = definitionID })
	n.mu.Lock()
	n.transformID = definitionID
	n.mu.Unlock()
}

// VisibleID is the definition id sent when the npc is added to a view.
func (n *Npc) VisibleID() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.transformID
}

// Idle reports whether the npc has nowhere to walk.
func (n *Npc) Idle() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.queue.Empty() && n.teleport == nil
}
