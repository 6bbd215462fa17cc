package scripting

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

//go:embed scripts/*.lua
var builtin embed.FS

// Engine wraps a single gopher-lua VM for npc behaviour.
// Single-goroutine access only (prepare phase).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine with the built-in scripts, then loads
// every .lua file in overrideDir (if it exists) so servers can replace
// the defaults.
func NewEngine(overrideDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	if err := e.loadBuiltin(); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load builtin scripts: %w", err)
	}
	if overrideDir != "" {
		if err := e.loadDir(overrideDir); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load scripts: %w", err)
		}
	}
	return e, nil
}

func (e *Engine) loadBuiltin() error {
	entries, err := builtin.ReadDir("scripts")
	if err != nil {
		return err
	}
	for _, entry := range entries {
		src, err := builtin.ReadFile("scripts/" + entry.Name())
		if err != nil {
			return err
		}
		if err := e.vm.DoString(string(src)); err != nil {
			return fmt.Errorf("load %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// WanderContext is what npc_wander sees for one npc.
type WanderContext struct {
	X, Y           int
	SpawnX, SpawnY int
	Radius         int
	Roll           int
}

// Wander calls the Lua npc_wander function and returns the step to take.
// Script errors are logged and yield no movement.
func (e *Engine) Wander(ctx WanderContext) (dx, dy int) {
	fn := e.vm.GetGlobal("npc_wander")
	if fn == lua.LNil {
		e.log.Error("lua function npc_wander not found")
		return 0, 0
	}

	t := e.vm.NewTable()
	t.RawSetString("x", lua.LNumber(ctx.X))
	t.RawSetString("y", lua.LNumber(ctx.Y))
	t.RawSetString("spawn_x", lua.LNumber(ctx.SpawnX))
	t.RawSetString("spawn_y", lua.LNumber(ctx.SpawnY))
	t.RawSetString("radius", lua.LNumber(ctx.Radius))
	t.RawSetString("roll", lua.LNumber(ctx.Roll))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    2,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua npc_wander error", zap.Error(err))
		return 0, 0
	}
	rx, ry := e.vm.Get(-2), e.vm.Get(-1)
	e.vm.Pop(2)

	x, okX := rx.(lua.LNumber)
	y, okY := ry.(lua.LNumber)
	if !okX || !okY {
		return 0, 0
	}
	return clampStep(int(x)), clampStep(int(y))
}

func clampStep(v int) int {
	return max(-1, min(1, v))
}

// Close releases the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
