package handler

import (
	"github.com/astraeus/server/internal/net/packet"
	"github.com/astraeus/server/internal/world"
)

// Outbound opcodes.
const (
	OpSidebarInterface = 71
	OpRegionalUpdate   = 73
	OpLogout           = 109
	OpPlayerDetails    = 249
	OpMessage          = 253
)

// Sidebar tab interfaces shown after login, indexed by tab.
var sidebarTabs = [...]int{
	2423, // attack style
	3917, // skills
	638,  // quests
	3213, // inventory
	1644, // equipment
	5608, // prayer
	1151, // magic
	-1,
	5065, // friends
	5715, // ignores
	2449, // logout
	904,  // settings
	147,  // emotes
	962,  // music
}

// SendMessage writes a line to the player's chat box.
func SendMessage(p *world.Player, text string) {
	w := packet.NewWriter(OpMessage, packet.VariableByte)
	w.PutString(text)
	p.Send(w.Packet())
}

// SendLogout tells the client to return to the title screen.
func SendLogout(p *world.Player) {
	p.Send(packet.NewWriter(OpLogout, packet.Fixed).Packet())
}

// SendSidebarInterface shows interface id on sidebar tab. -1 hides the
// tab.
func SendSidebarInterface(p *world.Player, tab, id int) {
	w := packet.NewWriter(OpSidebarInterface, packet.Fixed)
	w.PutShort(id)
	w.Put(packet.Byte, packet.Big, packet.Addition, int64(tab))
	p.Send(w.Packet())
}

// SendRegionalUpdate makes the client load the region around pos. Must
// precede the player update of the same tick.
func SendRegionalUpdate(p *world.Player, pos world.Position) {
	w := packet.NewWriter(OpRegionalUpdate, packet.Fixed)
	w.Put(packet.Short, packet.Big, packet.Addition, int64(pos.RegionX()))
	w.PutShort(pos.RegionY())
	p.Send(w.Packet())
}

// SendPlayerDetails tells the client its own player index.
func SendPlayerDetails(p *world.Player) {
	w := packet.NewWriter(OpPlayerDetails, packet.Fixed)
	w.Put(packet.Byte, packet.Big, packet.Addition, 1) // members
	w.Put(packet.Short, packet.Little, packet.Addition, int64(p.Index()))
	p.Send(w.Packet())
}

// SendInitialInterfaces sets up every sidebar tab.
func SendInitialInterfaces(p *world.Player) {
	for tab, id := range sidebarTabs {
		SendSidebarInterface(p, tab, id)
	}
}
