package game

import (
	"github.com/astraeus/server/internal/core/event"
	"github.com/astraeus/server/internal/handler"
	"github.com/astraeus/server/internal/world"
)

// SubscribeStaffNotices tells online moderators and administrators when
// players log in or out.
func SubscribeStaffNotices(bus *event.Bus, ws *world.State) {
	event.Subscribe(bus, func(e event.PlayerLoggedIn) {
		notifyStaff(ws, e.Name, e.Name+" has logged in.")
	})
	event.Subscribe(bus, func(e event.PlayerLoggedOut) {
		notifyStaff(ws, e.Name, e.Name+" has logged out.")
	})
}

func notifyStaff(ws *world.State, subject, msg string) {
	for _, p := range ws.Players() {
		if !p.Active() || p.Rights < world.RightsModerator || p.Name == subject {
			continue
		}
		handler.SendMessage(p, msg)
	}
}
