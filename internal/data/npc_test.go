package data

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSpawnList(t *testing.T) {
	path := writeFile(t, "npc_spawns.yaml", `
spawns:
  - npc_id: 1
    x: 3222
    y: 3222
    facing: south
    random_walk: true
    radius: 4
  - npc_id: 520
    x: 3212
    y: 3246
    plane: 1
`)
	spawns, err := LoadSpawnList(path)
	if err != nil {
		t.Fatalf("LoadSpawnList: %v", err)
	}
	if len(spawns) != 2 {
		t.Fatalf("got %d spawns", len(spawns))
	}
	if s := spawns[0]; s.NpcID != 1 || !s.RandomWalk || s.Radius != 4 || s.Facing != "south" {
		t.Fatalf("first spawn = %+v", s)
	}
	if s := spawns[1]; s.Plane != 1 || s.RandomWalk {
		t.Fatalf("second spawn = %+v", s)
	}
}

func TestLoadSpawnListRejectsWideIDs(t *testing.T) {
	path := writeFile(t, "npc_spawns.yaml", "spawns:\n  - npc_id: 5000\n    x: 1\n    y: 1\n")
	_, err := LoadSpawnList(path)
	if err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadNpcTable(t *testing.T) {
	path := writeFile(t, "npc_list.yaml", `
npcs:
  - npc_id: 1
    name: Man
    combat: 2
    size: 1
    wander_radius: 5
`)
	table, err := LoadNpcTable(path)
	if err != nil {
		t.Fatalf("LoadNpcTable: %v", err)
	}
	if table.Count() != 1 || table.Get(1).Name != "Man" || table.Get(1).WanderRadius != 5 {
		t.Fatal("template not loaded")
	}
	if table.Get(2) != nil {
		t.Fatal("unknown template returned")
	}
}

func TestMissingFile(t *testing.T) {
	if _, err := LoadSpawnList(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("missing file not reported")
	}
}
