package handler

import (
	"github.com/astraeus/server/internal/net/packet"
	"github.com/astraeus/server/internal/world"
	"go.uber.org/zap"
)

// HandleDesign processes the character design screen: gender, seven body
// kits and five colours.
func HandleDesign(p *world.Player, pkt *packet.Packet, deps *Deps) error {
	r := pkt.Reader()
	var a world.Appearance
	gender, err := r.GetByte()
	if err != nil {
		return malformed("design", err)
	}
	a.Gender = gender
	for i := range a.Body {
		if a.Body[i], err = r.GetByte(); err != nil {
			return malformed("design", err)
		}
	}
	for i := range a.Colors {
		if a.Colors[i], err = r.GetByte(); err != nil {
			return malformed("design", err)
		}
	}

	if !a.Valid() {
		deps.Log.Warn("rejected appearance", zap.String("player", p.Name), zap.Any("appearance", a))
		return nil
	}
	a.HeadIcon = p.Appearance().HeadIcon
	p.UpdateAppearance(a)
	return nil
}
