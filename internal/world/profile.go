package world

// Profile is the part of a player that outlives a session.
type Profile struct {
	Name       string
	Rights     Rights
	Position   Position
	Appearance Appearance
}

// NewPlayerFromProfile builds an unregistered player from saved state.
// The appearance is flagged so the first update shows it.
func NewPlayerFromProfile(pr Profile, sender Sender, localCapacity int) *Player {
	p := NewPlayer(pr.Name, pr.Position, sender, localCapacity)
	p.Rights = pr.Rights
	p.UpdateAppearance(pr.Appearance)
	return p
}

// Profile captures the player's persistent state.
func (p *Player) Profile() Profile {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Profile{
		Name:       p.Name,
		Rights:     p.Rights,
		Position:   p.pos,
		Appearance: p.appearance,
	}
}
