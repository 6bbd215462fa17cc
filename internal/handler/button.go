package handler

import (
	"fmt"

	"github.com/astraeus/server/internal/net/packet"
	"github.com/astraeus/server/internal/world"
	"go.uber.org/zap"
)

// Interface button ids.
const (
	ButtonWalk   = 152
	ButtonRun    = 153
	ButtonLogout = 2458
)

// HandleButton processes an interface button click.
func HandleButton(p *world.Player, pkt *packet.Packet, deps *Deps) error {
	button, err := pkt.Reader().GetShort()
	if err != nil {
		return malformed("button", err)
	}

	switch button {
	case ButtonWalk:
		p.ToggleRun(false)
	case ButtonRun:
		p.ToggleRun(true)
	case ButtonLogout:
		deps.Log.Info("logout requested", zap.String("player", p.Name))
		SendLogout(p)
		p.Disconnect()
	default:
		deps.Log.Debug("unhandled button", zap.String("player", p.Name), zap.Int("button", button))
		if p.Rights >= world.RightsAdministrator {
			SendMessage(p, fmt.Sprintf("Button: %d", button))
		}
	}
	return nil
}
