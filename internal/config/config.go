package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Protocol limits on entity indices.
const (
	MaxPlayers = 2047  // 11-bit index, 2047 ends the list
	MaxNpcs    = 16383 // 14-bit index, 16383 ends the list
	MaxRadius  = 15    // 5-bit signed offsets
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Network   NetworkConfig   `toml:"network"`
	World     WorldConfig     `toml:"world"`
	Character CharacterConfig `toml:"character"`
	Logging   LoggingConfig   `toml:"logging"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Metrics   MetricsConfig   `toml:"metrics"`
}

type ServerConfig struct {
	Name      string `toml:"name"`
	Revision  int    `toml:"revision"`
	StartTime int64  // set at boot, not from config
}

type DatabaseConfig struct {
	DSN             string        `toml:"dsn"` // empty = in-memory accounts
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
}

type NetworkConfig struct {
	BindAddress  string        `toml:"bind_address"`
	TickRate     time.Duration `toml:"tick_rate"`
	OutQueueSize int           `toml:"out_queue_size"`
	WriteTimeout time.Duration `toml:"write_timeout"`
	ReadTimeout  time.Duration `toml:"read_timeout"`
}

type WorldConfig struct {
	MaxPlayers    int    `toml:"max_players"`
	MaxNpcs       int    `toml:"max_npcs"`
	ViewRadius    int    `toml:"view_radius"`
	LocalCapacity int    `toml:"local_capacity"`
	MaxAdditions  int    `toml:"max_additions_per_tick"`
	MaxUpdateSize int    `toml:"max_update_size"`
	SyncWorkers   int    `toml:"sync_workers"` // 0 = GOMAXPROCS
	NpcList       string `toml:"npc_list"`
	SpawnList     string `toml:"spawn_list"`
	ScriptsDir    string `toml:"scripts_dir"`
	SpawnX        int    `toml:"spawn_x"`
	SpawnY        int    `toml:"spawn_y"`
	SpawnPlane    int    `toml:"spawn_plane"`
}

type CharacterConfig struct {
	AutoCreateAccounts bool          `toml:"auto_create_accounts"`
	AutoSaveInterval   time.Duration `toml:"autosave_interval"` // 0 = save on logout only
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type RateLimitConfig struct {
	Enabled          bool `toml:"enabled"`
	PacketsPerSecond int  `toml:"packets_per_second"`
}

type MetricsConfig struct {
	BindAddress string `toml:"bind_address"` // empty = disabled
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.Server.StartTime = time.Now().Unix()
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaults()
}

// Validate rejects values the protocol cannot represent.
func (c *Config) Validate() error {
	var errs []error
	if c.Network.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("network.tick_rate must be positive, got %s", c.Network.TickRate))
	}
	if c.World.ViewRadius < 1 || c.World.ViewRadius > MaxRadius {
		errs = append(errs, fmt.Errorf("world.view_radius must be in 1..%d, got %d", MaxRadius, c.World.ViewRadius))
	}
	if c.World.MaxPlayers < 1 || c.World.MaxPlayers > MaxPlayers {
		errs = append(errs, fmt.Errorf("world.max_players must be in 1..%d, got %d", MaxPlayers, c.World.MaxPlayers))
	}
	if c.World.MaxNpcs < 0 || c.World.MaxNpcs > MaxNpcs {
		errs = append(errs, fmt.Errorf("world.max_npcs must be in 0..%d, got %d", MaxNpcs, c.World.MaxNpcs))
	}
	if c.World.LocalCapacity < 1 || c.World.LocalCapacity > 255 {
		errs = append(errs, fmt.Errorf("world.local_capacity must be in 1..255, got %d", c.World.LocalCapacity))
	}
	if c.World.MaxAdditions < 1 {
		errs = append(errs, errors.New("world.max_additions_per_tick must be positive"))
	}
	if c.World.MaxUpdateSize < 64 || c.World.MaxUpdateSize > 0xffff {
		errs = append(errs, fmt.Errorf("world.max_update_size must be in 64..65535, got %d", c.World.MaxUpdateSize))
	}
	if c.World.SpawnPlane < 0 || c.World.SpawnPlane > 3 {
		errs = append(errs, fmt.Errorf("world.spawn_plane must be in 0..3, got %d", c.World.SpawnPlane))
	}
	return errors.Join(errs...)
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name:     "Astraeus",
			Revision: 317,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Network: NetworkConfig{
			BindAddress:  "0.0.0.0:43594",
			TickRate:     600 * time.Millisecond,
			OutQueueSize: 256,
			WriteTimeout: 10 * time.Second,
			ReadTimeout:  60 * time.Second,
		},
		World: WorldConfig{
			MaxPlayers:    2000,
			MaxNpcs:       16000,
			ViewRadius:    15,
			LocalCapacity: 255,
			MaxAdditions:  15,
			MaxUpdateSize: 5000,
			NpcList:       "data/npc_list.yaml",
			SpawnList:     "data/npc_spawns.yaml",
			ScriptsDir:    "scripts",
			SpawnX:        3222,
			SpawnY:        3222,
		},
		Character: CharacterConfig{
			AutoCreateAccounts: true,
			AutoSaveInterval:   5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		RateLimit: RateLimitConfig{
			Enabled:          true,
			PacketsPerSecond: 60,
		},
		Metrics: MetricsConfig{
			BindAddress: "127.0.0.1:9100",
		},
	}
}
