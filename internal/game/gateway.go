// Package game joins the network layer to the world: it admits sessions
// as players and binds their packets to the opcode table.
package game

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/astraeus/server/internal/core/event"
	"github.com/astraeus/server/internal/handler"
	"github.com/astraeus/server/internal/net"
	"github.com/astraeus/server/internal/net/packet"
	"github.com/astraeus/server/internal/world"
	"go.uber.org/zap"
)

// maxNameLength is the longest name the base-37 encoding holds.
const maxNameLength = 12

// Persistence loads and saves player profiles. Load reports ok=false for
// bad credentials.
type Persistence interface {
	Load(ctx context.Context, name, password string) (world.Profile, bool, error)
	Save(ctx context.Context, pr world.Profile) error
}

// Metrics receives admission events.
type Metrics interface {
	LoginResult(result string)
	PlayerJoined()
	PlayerLeft()
}

type nopMetrics struct{}

func (nopMetrics) LoginResult(string) {}
func (nopMetrics) PlayerJoined()      {}
func (nopMetrics) PlayerLeft()        {}

// Options configures a Gateway.
type Options struct {
	ServerName    string
	LocalCapacity int
	// StoreTimeout bounds each Load and Save.
	StoreTimeout time.Duration
	// Events receives login and logout events. Optional.
	Events *event.Bus
}

// Gateway implements net.Gateway.
type Gateway struct {
	world    *world.State
	store    Persistence
	registry *handler.Registry
	opts     Options
	metrics  Metrics
	log      *zap.Logger

	// mu serializes admission so a name cannot log in twice concurrently.
	mu       sync.Mutex
	sessions map[uint64]*world.Player
	// busy holds lower-case names whose profile is being loaded or saved.
	busy map[string]struct{}
}

func NewGateway(ws *world.State, store Persistence, reg *handler.Registry, opts Options, metrics Metrics, log *zap.Logger) *Gateway {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	if opts.LocalCapacity <= 0 {
		opts.LocalCapacity = 255
	}
	return &Gateway{
		world:    ws,
		store:    store,
		registry: reg,
		opts:     opts,
		metrics:  metrics,
		log:      log,
		sessions: make(map[uint64]*world.Player),
		busy:     make(map[string]struct{}),
	}
}

// Login authenticates the request and places the player in the world. The
// player is registered before Login returns, so the next tick already
// synchronizes it.
func (g *Gateway) Login(s *net.Session, req *net.LoginRequest) (net.LoginResponse, int, net.PacketHandler) {
	name := packet.FormatName(strings.ToLower(strings.TrimSpace(req.Username)))
	if !validName(name) {
		g.metrics.LoginResult("invalid")
		return net.LoginInvalidCredentials, 0, nil
	}

	// A profile still being saved by a logout must not be loaded yet.
	if !g.reserve(name) {
		g.metrics.LoginResult("online")
		return net.LoginAlreadyOnline, 0, nil
	}
	defer g.unreserve(name)

	ctx, cancel := context.WithTimeout(context.Background(), g.opts.StoreTimeout)
	defer cancel()
	profile, ok, err := g.store.Load(ctx, name, req.Password)
	if err != nil {
		g.log.Error("load profile", zap.String("name", name), zap.Error(err))
		g.metrics.LoginResult("error")
		return net.LoginRejected, 0, nil
	}
	if !ok {
		g.metrics.LoginResult("invalid")
		return net.LoginInvalidCredentials, 0, nil
	}

	g.mu.Lock()
	if _, online := g.world.PlayerByName(profile.Name); online {
		g.mu.Unlock()
		g.metrics.LoginResult("online")
		return net.LoginAlreadyOnline, 0, nil
	}
	p := world.NewPlayerFromProfile(profile, s, g.opts.LocalCapacity)
	if err := g.world.AddPlayer(p); err != nil {
		g.mu.Unlock()
		if errors.Is(err, world.ErrCapacityExhausted) {
			g.metrics.LoginResult("full")
			return net.LoginWorldFull, 0, nil
		}
		g.log.Error("add player", zap.String("name", name), zap.Error(err))
		g.metrics.LoginResult("error")
		return net.LoginRejected, 0, nil
	}
	g.sessions[s.ID] = p
	g.mu.Unlock()

	handler.SendPlayerDetails(p)
	handler.SendInitialInterfaces(p)
	handler.SendMessage(p, "Welcome to "+g.opts.ServerName+".")

	g.metrics.LoginResult("ok")
	g.metrics.PlayerJoined()
	if g.opts.Events != nil {
		event.Emit(g.opts.Events, event.PlayerLoggedIn{Name: p.Name, Index: p.Index(), Rights: int(p.Rights)})
	}
	g.log.Info("player logged in",
		zap.String("name", p.Name),
		zap.Int("index", p.Index()),
		zap.String("ip", s.IP),
		zap.Stringer("position", profile.Position),
	)
	return net.LoginOK, int(p.Rights), &boundHandler{registry: g.registry, player: p}
}

// Logout removes the player from the world and saves it. The name cannot
// log in again until the save returns. Its slot is released once every
// tick that may still reference it has finished.
func (g *Gateway) Logout(s *net.Session) {
	g.mu.Lock()
	p, ok := g.sessions[s.ID]
	delete(g.sessions, s.ID)
	if ok {
		g.busy[strings.ToLower(p.Name)] = struct{}{}
	}
	g.mu.Unlock()
	if !ok {
		return
	}
	defer g.unreserve(p.Name)

	g.world.RemovePlayer(p)
	g.metrics.PlayerLeft()

	ctx, cancel := context.WithTimeout(context.Background(), g.opts.StoreTimeout)
	defer cancel()
	if err := g.store.Save(ctx, p.Profile()); err != nil {
		g.log.Error("save profile", zap.String("name", p.Name), zap.Error(err))
	}
	if g.opts.Events != nil {
		event.Emit(g.opts.Events, event.PlayerLoggedOut{Name: p.Name, Index: p.Index()})
	}
	g.log.Info("player logged out", zap.String("name", p.Name), zap.Int("index", p.Index()))
}

// reserve claims name for a login. It fails while the player is online or
// its profile is being loaded or saved.
func (g *Gateway) reserve(name string) bool {
	key := strings.ToLower(name)
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, online := g.world.PlayerByName(name); online {
		return false
	}
	if _, busy := g.busy[key]; busy {
		return false
	}
	g.busy[key] = struct{}{}
	return true
}

func (g *Gateway) unreserve(name string) {
	g.mu.Lock()
	delete(g.busy, strings.ToLower(name))
	g.mu.Unlock()
}

// Online returns the number of admitted sessions.
func (g *Gateway) Online() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

// SaveAll stores every online player. Used on shutdown.
func (g *Gateway) SaveAll(ctx context.Context) error {
	g.mu.Lock()
	players := make([]*world.Player, 0, len(g.sessions))
	for _, p := range g.sessions {
		players = append(players, p)
	}
	g.mu.Unlock()

	var errs []error
	for _, p := range players {
		if err := g.store.Save(ctx, p.Profile()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// validName accepts the characters the base-37 name encoding can hold.
func validName(name string) bool {
	if name == "" || len(name) > maxNameLength {
		return false
	}
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == ' ':
		default:
			return false
		}
	}
	return true
}

// boundHandler dispatches one session's packets on behalf of its player.
type boundHandler struct {
	registry *handler.Registry
	player   *world.Player
}

func (h *boundHandler) Framing(opcode int) (packet.Framing, bool) {
	return h.registry.Framing(opcode)
}

func (h *boundHandler) Handle(pkt *packet.Packet) error {
	return h.registry.Dispatch(h.player, pkt)
}
