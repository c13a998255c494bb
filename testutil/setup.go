package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mistveil/buildcalc/cache"
	"github.com/mistveil/buildcalc/config"
	dbadapter "github.com/mistveil/buildcalc/db"
	"github.com/mistveil/buildcalc/game/tree"
	"github.com/mistveil/buildcalc/model"
	"github.com/mistveil/buildcalc/resource"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// SetupTestDB creates an in-memory sqlite DB and runs AutoMigrate.
// It requires no external services and is safe to use in parallel tests.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := dbadapter.Open(config.DatabaseConfig{
		Mode: dbadapter.ModeSQLiteMemory,
	})
	require.NoError(t, err, "SetupTestDB: Open")
	require.NoError(t, model.AutoMigrate(db), "SetupTestDB: AutoMigrate")
	return db
}

// SetupTestCache creates a LocalCache (no Redis required).
func SetupTestCache(t *testing.T) cache.Cache {
	t.Helper()
	c, err := cache.NewCache(cache.CacheConfig{}) // empty RedisAddr → LocalCache
	require.NoError(t, err, "SetupTestCache: NewCache")
	return c
}

const sampleSkills = `[
  {
    "id": "fireball", "name": "Fireball", "damageType": "Fire",
    "tags": ["Spell", "Projectile", "AoE"],
    "minDamage": 10, "maxDamage": 20, "critChance": 5, "castTime": 1.0, "cost": 10,
    "scaling": {"damagePerLevel": 4, "costPerLevel": 1}
  },
  {
    "id": "heavy_strike", "name": "Heavy Strike", "damageType": "Physical",
    "tags": ["Attack", "Melee"],
    "minDamage": 8, "maxDamage": 14, "critChance": 6, "castTime": 0.8, "cost": 6,
    "scaling": {"damagePerLevel": 3, "costPerLevel": 0.5}
  },
  {
    "id": "broken_ritual", "name": "Broken Ritual", "damageType": "Chaos",
    "tags": ["Spell", "Duration"],
    "minDamage": 5, "maxDamage": 9, "critChance": 5, "castTime": 0, "cost": 4,
    "scaling": {"damagePerLevel": 2, "costPerLevel": 0}
  }
]`

const sampleGems = `[
  {
    "id": "added_fire", "name": "Added Fire Damage", "tags": ["Spell", "Attack"],
    "costMultiplier": 1.2,
    "modifiers": [{"name": "FireDamage", "kind": "INCREASED", "value": 25}]
  },
  {
    "id": "spell_echo", "name": "Spell Echo", "tags": ["Spell"],
    "costMultiplier": 1.4,
    "modifiers": [
      {"name": "CastSpeed", "kind": "INCREASED", "value": 50},
      {"name": "Damage", "kind": "MORE", "value": -10}
    ]
  },
  {
    "id": "melee_physical", "name": "Melee Physical Damage", "tags": ["Melee"],
    "costMultiplier": 1.3,
    "modifiers": [{"name": "PhysicalDamage", "kind": "MORE", "value": 30}]
  },
  {
    "id": "controlled_destruction", "name": "Controlled Destruction", "tags": ["Spell"],
    "costMultiplier": 1.25,
    "modifiers": [
      {"name": "SpellDamage", "kind": "MORE", "value": 25},
      {"name": "CritChance", "kind": "INCREASED", "value": -100}
    ]
  },
  {
    "id": "inc_crit", "name": "Increased Critical Strikes", "tags": ["Spell", "Attack"],
    "costMultiplier": 1.15,
    "modifiers": [{"name": "CritChance", "kind": "INCREASED", "value": 90}]
  },
  {
    "id": "faster_proj", "name": "Faster Projectiles", "tags": ["Projectile"],
    "costMultiplier": 1.1,
    "modifiers": [{"name": "ProjectileSpeed", "kind": "INCREASED", "value": 40}]
  },
  {
    "id": "inc_aoe", "name": "Increased Area of Effect", "tags": ["AoE"],
    "costMultiplier": 1.2,
    "modifiers": [{"name": "AreaOfEffect", "kind": "INCREASED", "value": 30}]
  },
  {
    "id": "brutality", "name": "Brutality", "tags": ["Melee", "Attack"],
    "costMultiplier": 1.3,
    "modifiers": [{"name": "PhysicalDamage", "kind": "MORE", "value": 35}]
  }
]`

const sampleTree = `{
  "version": "test-1",
  "orbitRadii": [0, 82, 162, 335],
  "skillsPerOrbit": [1, 6, 12, 12],
  "groups": [
    {"id": 1, "x": 0, "y": 0, "orbits": [0, 1, 2]},
    {"id": 2, "x": 1000, "y": 500, "orbits": [0, 1]}
  ],
  "nodes": [
    {"id": 100, "name": "Arcane Potency", "group": 1, "orbit": 1, "orbitIndex": 0,
     "stats": ["12% increased Spell Damage"], "connections": [101, 102]},
    {"id": 101, "name": "Forces of Nature", "group": 1, "orbit": 1, "orbitIndex": 3,
     "stats": ["10% increased Damage"], "connections": [100]},
    {"id": 102, "name": "Assassination", "group": 1, "orbit": 2, "orbitIndex": 6, "notable": true,
     "stats": ["40% more Critical Strike Chance", "+20 to CritMultiplier"], "connections": [100]},
    {"id": 103, "name": "Vitality Void", "group": 1, "orbit": 2, "orbitIndex": 9,
     "stats": ["+20 to maximum Life"], "connections": []},
    {"id": 200, "name": "Stone Skin", "group": 2, "orbit": 0, "orbitIndex": 0, "keystone": true,
     "stats": ["some unmodeled defensive text"], "connections": []},
    {"id": 201, "name": "Swift Hands", "group": 2, "orbit": 1, "orbitIndex": 2,
     "stats": ["8% increased AttackSpeed"], "connections": [200]}
  ]
}`

// WriteSampleCatalog writes the shared test catalog files into dir.
func WriteSampleCatalog(t *testing.T, dir string) {
	t.Helper()
	files := map[string]string{
		"Skills.json":      sampleSkills,
		"SupportGems.json": sampleGems,
		"Tree.json":        sampleTree,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

// SetupTestCatalog loads the shared test catalog from a temp dir.
func SetupTestCatalog(t *testing.T) *resource.Loader {
	t.Helper()
	dir := t.TempDir()
	WriteSampleCatalog(t, dir)
	res := resource.NewLoader(dir)
	require.NoError(t, res.Load(), "SetupTestCatalog: Load")
	return res
}

// SetupTestTree resolves the shared test catalog's tree.
func SetupTestTree(t *testing.T, res *resource.Loader) *tree.Resolved {
	t.Helper()
	resolved, err := tree.Resolve(res.Tree)
	require.NoError(t, err, "SetupTestTree: Resolve")
	return resolved
}
