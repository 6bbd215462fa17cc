package handler

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/astraeus/server/internal/net/packet"
	"github.com/astraeus/server/internal/world"
	"go.uber.org/zap"
)

type recordingSender struct {
	sent         []*packet.Packet
	disconnected bool
}

func (r *recordingSender) Send(p *packet.Packet) { r.sent = append(r.sent, p) }
func (r *recordingSender) Disconnect()           { r.disconnected = true }

func (r *recordingSender) opcodes() []int {
	out := make([]int, len(r.sent))
	for i, p := range r.sent {
		out[i] = p.Opcode
	}
	return out
}

func newTestDeps(t *testing.T) *Deps {
	t.Helper()
	return &Deps{
		Log:   zap.NewNop(),
		World: world.NewState(world.Limits{Players: 4, Npcs: 4, ViewRadius: 15, LocalCapacity: 255}, zap.NewNop()),
	}
}

func newTestPlayer(t *testing.T, deps *Deps, rights world.Rights) (*world.Player, *recordingSender) {
	t.Helper()
	out := &recordingSender{}
	p := world.NewPlayer("tester", world.Position{X: 3200, Y: 3200}, out, 255)
	p.Rights = rights
	if err := deps.World.AddPlayer(p); err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}
	return p, out
}

func dispatch(t *testing.T, deps *Deps, p *world.Player, opcode int, payload []byte) error {
	t.Helper()
	reg := packet.NewRegistry[*world.Player](zap.NewNop())
	RegisterAll(reg, deps)
	return reg.Dispatch(p, &packet.Packet{Opcode: opcode, Payload: payload})
}

func walkPayload(firstX, firstY int, steps [][2]int, ctrl bool) []byte {
	w := packet.NewBlockWriter()
	w.Put(packet.Short, packet.Little, packet.Addition, int64(firstX))
	for _, s := range steps {
		w.PutByte(s[0])
		w.PutByte(s[1])
	}
	w.Put(packet.Short, packet.Little, packet.None, int64(firstY))
	run := 0
	if ctrl {
		run = 1
	}
	w.Put(packet.Byte, packet.Big, packet.Negation, int64(run))
	return w.Bytes()
}

func TestRegisterAllFraming(t *testing.T) {
	reg := packet.NewRegistry[*world.Player](zap.NewNop())
	RegisterAll(reg, newTestDeps(t))

	cases := map[int]packet.Framing{
		OpWalk:          packet.VarByte,
		OpWalkMinimap:   packet.VarByte,
		OpWalkOnCommand: packet.VarByte,
		OpButtonClick:   packet.FixedSize(2),
		OpPublicChat:    packet.VarByte,
		OpCommand:       packet.VarByte,
		OpDesign:        packet.FixedSize(13),
		0:               packet.FixedSize(0),
		241:             packet.FixedSize(4),
	}
	for op, want := range cases {
		got, ok := reg.Framing(op)
		if !ok || got != want {
			t.Errorf("opcode %d: framing %+v, %v; want %+v", op, got, ok, want)
		}
	}
	if _, ok := reg.Framing(7); ok {
		t.Error("opcode 7 should be unknown")
	}
}

func TestNoopOpcodesIgnored(t *testing.T) {
	deps := newTestDeps(t)
	p, out := newTestPlayer(t, deps, world.RightsPlayer)
	if err := dispatch(t, deps, p, 241, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(out.sent) != 0 {
		t.Errorf("sent %v, want nothing", out.opcodes())
	}
}

func TestWalkQueuesPath(t *testing.T) {
	deps := newTestDeps(t)
	p, _ := newTestPlayer(t, deps, world.RightsPlayer)

	payload := walkPayload(3202, 3200, [][2]int{{1, 1}}, false)
	if err := dispatch(t, deps, p, OpWalkOnCommand, payload); err != nil {
		t.Fatalf("walk: %v", err)
	}

	p.Advance()
	if got, want := p.Position(), (world.Position{X: 3201, Y: 3200}); got != want {
		t.Fatalf("after one tick at %v, want %v", got, want)
	}
	p.Advance()
	p.Advance()
	if got, want := p.Position(), (world.Position{X: 3203, Y: 3201}); got != want {
		t.Fatalf("path ends at %v, want %v", got, want)
	}
}

func TestWalkMinimapTrailerAndRun(t *testing.T) {
	deps := newTestDeps(t)
	p, _ := newTestPlayer(t, deps, world.RightsPlayer)

	payload := append(walkPayload(3200, 3204, nil, true), make([]byte, minimapTrailer)...)
	if err := dispatch(t, deps, p, OpWalk, payload); err != nil {
		t.Fatalf("walk: %v", err)
	}
	if !p.Running() {
		t.Error("ctrl-click walk should run")
	}
	p.Advance()
	if got, want := p.Position(), (world.Position{X: 3200, Y: 3202}); got != want {
		t.Fatalf("running step reached %v, want %v", got, want)
	}
}

func TestWalkOutsideRegionIgnored(t *testing.T) {
	deps := newTestDeps(t)
	p, _ := newTestPlayer(t, deps, world.RightsPlayer)

	if err := dispatch(t, deps, p, OpWalkMinimap, walkPayload(3400, 3200, nil, false)); err != nil {
		t.Fatalf("walk: %v", err)
	}
	p.Advance()
	if got := p.Position(); got != (world.Position{X: 3200, Y: 3200}) {
		t.Fatalf("player moved to %v", got)
	}
}

func TestWalkMalformed(t *testing.T) {
	deps := newTestDeps(t)
	p, _ := newTestPlayer(t, deps, world.RightsPlayer)

	err := dispatch(t, deps, p, OpWalkMinimap, []byte{1, 2, 3})
	if !errors.Is(err, packet.ErrProtocol) {
		t.Fatalf("err = %v, want ErrProtocol", err)
	}
}

func TestButtonRunToggle(t *testing.T) {
	deps := newTestDeps(t)
	p, _ := newTestPlayer(t, deps, world.RightsPlayer)

	if err := dispatch(t, deps, p, OpButtonClick, []byte{0, ButtonRun}); err != nil {
		t.Fatal(err)
	}
	if !p.RunToggled() {
		t.Fatal("run button should toggle running on")
	}
	if err := dispatch(t, deps, p, OpButtonClick, []byte{0, ButtonWalk}); err != nil {
		t.Fatal(err)
	}
	if p.RunToggled() {
		t.Fatal("walk button should toggle running off")
	}
}

func TestButtonLogout(t *testing.T) {
	deps := newTestDeps(t)
	p, out := newTestPlayer(t, deps, world.RightsPlayer)

	if err := dispatch(t, deps, p, OpButtonClick, []byte{ButtonLogout >> 8, ButtonLogout & 0xff}); err != nil {
		t.Fatal(err)
	}
	if ops := out.opcodes(); len(ops) != 1 || ops[0] != OpLogout {
		t.Fatalf("sent %v, want [%d]", ops, OpLogout)
	}
	if !out.disconnected {
		t.Fatal("logout should disconnect")
	}
}

func TestChatLatchedAsBlock(t *testing.T) {
	deps := newTestDeps(t)
	p, _ := newTestPlayer(t, deps, world.RightsModerator)

	text := []byte{0x12, 0x34, 0x56}
	w := packet.NewBlockWriter()
	w.Put(packet.Byte, packet.Big, packet.Subtraction, 2) // effects
	w.Put(packet.Byte, packet.Big, packet.Subtraction, 9) // colour
	for i := len(text) - 1; i >= 0; i-- {
		w.Put(packet.Byte, packet.Big, packet.Addition, int64(text[i]))
	}
	if err := dispatch(t, deps, p, OpPublicChat, w.Bytes()); err != nil {
		t.Fatal(err)
	}

	p.Latch()
	f := p.Frame()
	if !f.Flags.Has(world.FlagChat) {
		t.Fatal("chat flag not set")
	}
	c := f.Blocks.Chat
	if c.Effects != 2 || c.Color != 9 || c.Rights != int(world.RightsModerator) {
		t.Errorf("chat = %+v", c)
	}
	if !bytes.Equal(c.Packed, text) {
		t.Errorf("packed = %x, want %x", c.Packed, text)
	}
}

func TestDesign(t *testing.T) {
	deps := newTestDeps(t)
	p, _ := newTestPlayer(t, deps, world.RightsPlayer)

	payload := []byte{1, 45, 56, 61, 67, 70, 79, 0, 3, 4, 5, 1, 2}
	if err := dispatch(t, deps, p, OpDesign, payload); err != nil {
		t.Fatal(err)
	}
	a := p.Appearance()
	if a.Gender != 1 || a.Body[0] != 45 || a.Colors[4] != 2 {
		t.Fatalf("appearance = %+v", a)
	}
	p.Latch()
	if !p.Frame().Flags.Has(world.FlagAppearance) {
		t.Fatal("appearance flag not set")
	}

	bad := []byte{7, 45, 56, 61, 67, 70, 79, 0, 3, 4, 5, 1, 2}
	if err := dispatch(t, deps, p, OpDesign, bad); err != nil {
		t.Fatal(err)
	}
	if p.Appearance().Gender != 1 {
		t.Fatal("invalid design should be ignored")
	}
}

func commandPayload(s string) []byte {
	w := packet.NewBlockWriter()
	w.PutString(s)
	return w.Bytes()
}

func TestCommandRights(t *testing.T) {
	deps := newTestDeps(t)
	p, out := newTestPlayer(t, deps, world.RightsPlayer)

	if err := dispatch(t, deps, p, OpCommand, commandPayload("tele 3000 3000")); err != nil {
		t.Fatal(err)
	}
	p.Advance()
	if p.Position() != (world.Position{X: 3200, Y: 3200}) {
		t.Fatal("player without rights teleported")
	}
	if ops := out.opcodes(); len(ops) != 1 || ops[0] != OpMessage {
		t.Fatalf("sent %v, want an unknown command message", ops)
	}
}

func TestCommandTele(t *testing.T) {
	deps := newTestDeps(t)
	p, _ := newTestPlayer(t, deps, world.RightsModerator)

	if err := dispatch(t, deps, p, OpCommand, commandPayload("tele 3000 3100 1")); err != nil {
		t.Fatal(err)
	}
	p.Advance()
	if got, want := p.Position(), (world.Position{X: 3000, Y: 3100, Plane: 1}); got != want {
		t.Fatalf("teleported to %v, want %v", got, want)
	}
}

type npcGauge struct{ active int }

func (g *npcGauge) NpcsSpawned(n int)   { g.active += n }
func (g *npcGauge) NpcsDespawned(n int) { g.active -= n }

func TestCommandNpcSpawnAndDespawn(t *testing.T) {
	deps := newTestDeps(t)
	gauge := &npcGauge{}
	deps.Metrics = gauge
	p, _ := newTestPlayer(t, deps, world.RightsAdministrator)

	if err := dispatch(t, deps, p, OpCommand, commandPayload("npc 1")); err != nil {
		t.Fatal(err)
	}
	if n := deps.World.NpcCount(); n != 1 || gauge.active != 1 {
		t.Fatalf("npc count = %d, gauge %d, want 1", n, gauge.active)
	}

	deps.World.BeginTick()
	npcs := deps.World.Npcs()
	index := npcs[0].Index()
	if err := dispatch(t, deps, p, OpCommand, commandPayload(fmt.Sprintf("despawn %d", index))); err != nil {
		t.Fatal(err)
	}
	if n := deps.World.NpcCount(); n != 0 || gauge.active != 0 {
		t.Fatalf("after despawn npc count = %d, gauge %d", n, gauge.active)
	}
	if npcs[0].Active() {
		t.Fatal("despawned npc still active")
	}

	// A second despawn of the same index finds nothing.
	if err := dispatch(t, deps, p, OpCommand, commandPayload(fmt.Sprintf("despawn %d", index))); err != nil {
		t.Fatal(err)
	}
	if gauge.active != 0 {
		t.Fatalf("gauge = %d after repeated despawn", gauge.active)
	}
}

func TestCommandNpcFullWorldLeavesGauge(t *testing.T) {
	deps := newTestDeps(t)
	gauge := &npcGauge{}
	deps.Metrics = gauge
	p, _ := newTestPlayer(t, deps, world.RightsAdministrator)

	for i := 0; i < 5; i++ {
		if err := dispatch(t, deps, p, OpCommand, commandPayload("npc 1")); err != nil {
			t.Fatal(err)
		}
	}
	if gauge.active != deps.World.NpcCount() {
		t.Fatalf("gauge %d, world holds %d npcs", gauge.active, deps.World.NpcCount())
	}
}

func TestCommandPos(t *testing.T) {
	deps := newTestDeps(t)
	p, out := newTestPlayer(t, deps, world.RightsPlayer)

	if err := dispatch(t, deps, p, OpCommand, commandPayload("pos")); err != nil {
		t.Fatal(err)
	}
	if len(out.sent) != 1 {
		t.Fatalf("sent %d packets, want 1", len(out.sent))
	}
	msg, err := out.sent[0].Reader().GetString()
	if err != nil {
		t.Fatal(err)
	}
	if want := "You are at 3200, 3200, 0 (region 400, 400)."; msg != want {
		t.Errorf("message %q, want %q", msg, want)
	}
}

func TestSendRegionalUpdate(t *testing.T) {
	out := &recordingSender{}
	p := world.NewPlayer("r", world.Position{}, out, 1)
	SendRegionalUpdate(p, world.Position{X: 3222, Y: 3218})

	pkt := out.sent[0]
	if pkt.Opcode != OpRegionalUpdate || pkt.Kind != packet.Fixed {
		t.Fatalf("packet %d kind %v", pkt.Opcode, pkt.Kind)
	}
	// 3222>>3 = 402 = 0x0192, low byte +128. 3218>>3 = 402.
	want := []byte{0x01, 0x92 + 128, 0x01, 0x92}
	if !bytes.Equal(pkt.Payload, want) {
		t.Errorf("payload %x, want %x", pkt.Payload, want)
	}
}

func TestSendInitialInterfaces(t *testing.T) {
	out := &recordingSender{}
	p := world.NewPlayer("r", world.Position{}, out, 1)
	SendInitialInterfaces(p)
	if len(out.sent) != len(sidebarTabs) {
		t.Fatalf("sent %d, want %d", len(out.sent), len(sidebarTabs))
	}
	for _, pkt := range out.sent {
		if pkt.Opcode != OpSidebarInterface || len(pkt.Payload) != 3 {
			t.Fatalf("bad sidebar packet %+v", pkt)
		}
	}
}
