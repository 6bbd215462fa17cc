package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/astraeus/server/internal/config"
	"github.com/astraeus/server/internal/core/event"
	coresys "github.com/astraeus/server/internal/core/system"
	"github.com/astraeus/server/internal/data"
	"github.com/astraeus/server/internal/game"
	"github.com/astraeus/server/internal/handler"
	gonet "github.com/astraeus/server/internal/net"
	"github.com/astraeus/server/internal/net/packet"
	"github.com/astraeus/server/internal/observe"
	"github.com/astraeus/server/internal/persist"
	"github.com/astraeus/server/internal/scripting"
	"github.com/astraeus/server/internal/system"
	"github.com/astraeus/server/internal/update"
	"github.com/astraeus/server/internal/world"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string, revision int) {
	fmt.Println()
	fmt.Println("\033[36;1m  +-------------------------------------------+\033[0m")
	fmt.Printf("\033[36;1m  |\033[0m            Astraeus  v%-20s\033[36;1m|\033[0m\n", version)
	fmt.Println("\033[36;1m  +-------------------------------------------+\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mServer:\033[0m %s \033[90m(revision %d)\033[0m\n\n", serverName, revision)
}

func printSection(title string) {
	lineLen := max(46-len(title)-1, 3)
	fmt.Printf("  \033[33m-- %s %s\033[0m\n", title, strings.Repeat("-", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := max(42-len(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat(".", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m+\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m>\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("ASTRAEUS_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name, cfg.Server.Revision)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Metrics
	mp, shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "astraeus",
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("metrics provider: %w", err)
	}
	defer shutdownMetrics(context.Background())
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// 4. Persistence
	printSection("Database")
	repo, closeRepo, err := openRepo(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeRepo()
	store := persist.NewStore(repo, persist.StoreOptions{
		AutoCreate: cfg.Character.AutoCreateAccounts,
		Spawn:      world.Position{X: cfg.World.SpawnX, Y: cfg.World.SpawnY, Plane: cfg.World.SpawnPlane},
	}, log)
	fmt.Println()

	// 5. World state, scripts and npcs
	printSection("World")
	ws := world.NewState(world.Limits{
		Players:       cfg.World.MaxPlayers,
		Npcs:          cfg.World.MaxNpcs,
		ViewRadius:    cfg.World.ViewRadius,
		LocalCapacity: cfg.World.LocalCapacity,
	}, log)

	scripts, err := scripting.NewEngine(cfg.World.ScriptsDir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer scripts.Close()
	printOK("Lua engine ready")

	npcTable, err := data.LoadNpcTable(cfg.World.NpcList)
	if err != nil {
		return fmt.Errorf("load npc table: %w", err)
	}
	printStat("Npc definitions", npcTable.Count())

	spawns, err := data.LoadSpawnList(cfg.World.SpawnList)
	if err != nil {
		return fmt.Errorf("load npc spawns: %w", err)
	}
	spawned := spawnNpcs(ws, npcTable, spawns, log)
	metrics.NpcsSpawned(spawned)
	printStat("Npcs spawned", spawned)
	log.Info("world ready", zap.Stringer("world", ws))
	fmt.Println()

	// 6. Packet handlers and admission
	pktReg := packet.NewRegistry[*world.Player](log)
	handler.RegisterAll(pktReg, &handler.Deps{
		Config:  cfg,
		Log:     log,
		World:   ws,
		Npcs:    npcTable,
		Metrics: metrics,
	})
	bus := event.NewBus()
	game.SubscribeStaffNotices(bus, ws)
	gateway := game.NewGateway(ws, store, pktReg, game.Options{
		ServerName:    cfg.Server.Name,
		LocalCapacity: cfg.World.LocalCapacity,
		Events:        bus,
	}, metrics, log)

	// 7. Network server
	sessCfg := gonet.SessionConfig{
		Revision:     cfg.Server.Revision,
		OutQueueSize: cfg.Network.OutQueueSize,
		ReadTimeout:  cfg.Network.ReadTimeout,
		WriteTimeout: cfg.Network.WriteTimeout,
	}
	if cfg.RateLimit.Enabled {
		sessCfg.PacketsPerSecond = cfg.RateLimit.PacketsPerSecond
	}
	netServer, err := gonet.NewServer(cfg.Network.BindAddress, sessCfg, gateway, metrics, log)
	if err != nil {
		return fmt.Errorf("net server: %w", err)
	}

	// 8. Systems, in phase order
	runner := coresys.NewRunner()
	runner.Register(system.NewEventDispatchSystem(bus))
	runner.Register(system.NewMovementSystem(ws, scripts, log))
	runner.Register(system.NewSyncSystem(ws, update.Limits{
		ViewRadius:    cfg.World.ViewRadius,
		MaxAdditions:  cfg.World.MaxAdditions,
		MaxPacketSize: cfg.World.MaxUpdateSize,
	}, cfg.World.SyncWorkers, log))
	runner.Register(system.NewResetSystem(ws, log))
	scheduler := coresys.NewScheduler(runner, cfg.Network.TickRate, metrics, log)

	// 9. Run until signalled
	printSection("Ready")
	printReady(fmt.Sprintf("Listening on %s", netServer.Addr().String()))
	printReady(fmt.Sprintf("Tick loop started (tick: %s)", cfg.Network.TickRate))
	if cfg.Metrics.BindAddress != "" {
		printReady(fmt.Sprintf("Metrics on http://%s/metrics", cfg.Metrics.BindAddress))
	}
	fmt.Println()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(netServer.AcceptLoop)
	g.Go(func() error { return scheduler.Run(gctx) })
	if cfg.Metrics.BindAddress != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.BindAddress,
			Handler:           observe.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	if interval := cfg.Character.AutoSaveInterval; interval > 0 {
		g.Go(func() error {
			autoSave(gctx, gateway, interval, log)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", zap.Int("players", ws.PlayerCount()))
		// Sessions log out (and save) as they close.
		netServer.Shutdown()
		return nil
	})

	err = g.Wait()
	log.Info("server stopped", zap.Uint64("ticks", scheduler.Ticks()), zap.Uint64("late_ticks", scheduler.LateTicks()))
	return err
}

// autoSave periodically stores every online player until ctx ends.
func autoSave(ctx context.Context, gw *game.Gateway, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			saveCtx, cancel := context.WithTimeout(ctx, interval)
			if err := gw.SaveAll(saveCtx); err != nil {
				log.Error("autosave", zap.Error(err))
			} else {
				log.Debug("autosave complete", zap.Int("players", gw.Online()))
			}
			cancel()
		}
	}
}

// openRepo returns the PostgreSQL repository when a DSN is configured and
// an in-memory one otherwise.
func openRepo(ctx context.Context, cfg *config.Config, log *zap.Logger) (persist.Repo, func(), error) {
	if cfg.Database.DSN == "" {
		printOK("No DSN configured, accounts kept in memory")
		return persist.NewMemoryRepo(), func() {}, nil
	}

	dbCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	db, err := persist.NewDB(dbCtx, cfg.Database, cfg.Server.Name, log)
	if err != nil {
		return nil, nil, fmt.Errorf("database: %w", err)
	}
	printOK("PostgreSQL connected")

	if err := persist.RunMigrations(dbCtx, db.Pool, log.Named("migrate")); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	printOK("Migrations applied")
	return persist.NewPlayerRepo(db), db.Close, nil
}

// spawnNpcs registers every spawn entry and returns how many were placed.
func spawnNpcs(ws *world.State, npcs *data.NpcTable, spawns []data.SpawnEntry, log *zap.Logger) int {
	count := 0
	for _, s := range spawns {
		tmpl := npcs.Get(s.NpcID)
		if tmpl == nil {
			log.Warn("spawn references unknown npc", zap.Int("npc", s.NpcID))
			continue
		}
		facing := world.South
		if s.Facing != "" {
			d, ok := world.ParseDirection(s.Facing)
			if !ok {
				log.Warn("bad spawn facing", zap.Int("npc", s.NpcID), zap.String("facing", s.Facing))
			} else {
				facing = d
			}
		}
		radius := s.Radius
		if radius == 0 {
			radius = tmpl.WanderRadius
		}
		pos := world.Position{X: s.X, Y: s.Y, Plane: s.Plane}
		if err := ws.AddNpc(world.NewNpc(s.NpcID, pos, facing, s.RandomWalk, radius)); err != nil {
			log.Warn("npc spawn dropped", zap.Int("npc", s.NpcID), zap.Error(err))
			break
		}
		count++
	}
	return count
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
