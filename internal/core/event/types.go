package event

// PlayerLoggedIn is emitted once a player has been admitted to the world.
type PlayerLoggedIn struct {
	Name   string
	Index  int
	Rights int
}

// PlayerLoggedOut is emitted after a player left the world and was saved.
type PlayerLoggedOut struct {
	Name  string
	Index int
}
