package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// maxNpcID is the largest definition id the npc update can carry.
const maxNpcID = 1<<12 - 1

// NpcTemplate holds static data for an npc type loaded from YAML.
type NpcTemplate struct {
	NpcID        int    `yaml:"npc_id"`
	Name         string `yaml:"name"`
	Combat       int    `yaml:"combat"`
	Size         int    `yaml:"size"`
	WanderRadius int    `yaml:"wander_radius"`
}

// SpawnEntry places one npc in the world.
type SpawnEntry struct {
	NpcID      int    `yaml:"npc_id"`
	X          int    `yaml:"x"`
	Y          int    `yaml:"y"`
	Plane      int    `yaml:"plane"`
	Facing     string `yaml:"facing"`
	RandomWalk bool   `yaml:"random_walk"`
	Radius     int    `yaml:"radius"` // 0 = template default
}

type npcListFile struct {
	Npcs []NpcTemplate `yaml:"npcs"`
}

type spawnListFile struct {
	Spawns []SpawnEntry `yaml:"spawns"`
}

// NpcTable holds all npc templates indexed by NpcID.
type NpcTable struct {
	templates map[int]*NpcTemplate
}

// LoadNpcTable loads npc templates from a YAML file.
func LoadNpcTable(path string) (*NpcTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read npc_list: %w", err)
	}
	var f npcListFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse npc_list: %w", err)
	}
	t := &NpcTable{templates: make(map[int]*NpcTemplate, len(f.Npcs))}
	for i := range f.Npcs {
		npc := &f.Npcs[i]
		if npc.NpcID < 0 || npc.NpcID > maxNpcID {
			return nil, fmt.Errorf("npc_list: npc_id %d out of range", npc.NpcID)
		}
		t.templates[npc.NpcID] = npc
	}
	return t, nil
}

// Get returns the template for npcID, or nil.
func (t *NpcTable) Get(npcID int) *NpcTemplate {
	if t == nil {
		return nil
	}
	return t.templates[npcID]
}

func (t *NpcTable) Count() int {
	if t == nil {
		return 0
	}
	return len(t.templates)
}

// LoadSpawnList loads npc spawn entries from a YAML file.
func LoadSpawnList(path string) ([]SpawnEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read npc_spawns: %w", err)
	}
	var f spawnListFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse npc_spawns: %w", err)
	}
	for i, s := range f.Spawns {
		if s.NpcID < 0 || s.NpcID > maxNpcID {
			return nil, fmt.Errorf("npc_spawns: entry %d: npc_id %d out of range", i, s.NpcID)
		}
		if s.Plane < 0 || s.Plane > 3 {
			return nil, fmt.Errorf("npc_spawns: entry %d: plane %d out of range", i, s.Plane)
		}
	}
	return f.Spawns, nil
}
