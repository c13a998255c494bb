package resource

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ---- Catalog Data Structures ----

// Damage type names for ActiveSkill.DamageType.
const (
	DamagePhysical  = "Physical"
	DamageFire      = "Fire"
	DamageCold      = "Cold"
	DamageLightning = "Lightning"
	DamageChaos     = "Chaos"
)

// Skill tags referenced by the damage formula and support compatibility.
const (
	TagSpell      = "Spell"
	TagAttack     = "Attack"
	TagProjectile = "Projectile"
	TagAoE        = "AoE"
	TagMelee      = "Melee"
	TagDuration   = "Duration"
)

// SkillScaling is the per-level scaling rule of an active skill.
type SkillScaling struct {
	DamagePerLevel float64 `json:"damagePerLevel"`
	CostPerLevel   float64 `json:"costPerLevel"`
}

// ActiveSkill is a catalog entry. Never mutated at runtime, only referenced.
type ActiveSkill struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	DamageType string       `json:"damageType"`
	Tags       []string     `json:"tags"`
	MinDamage  float64      `json:"minDamage"`
	MaxDamage  float64      `json:"maxDamage"`
	CritChance float64      `json:"critChance"`
	CastTime   float64      `json:"castTime"`
	Cost       float64      `json:"cost"`
	Scaling    SkillScaling `json:"scaling"`
}

// HasTag reports whether the skill carries the given tag.
func (s *ActiveSkill) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// GemModifier is one structured effect granted by a support gem. Kind is the
// transport string (BASE/INCREASED/MORE/FLAG/OVERRIDE); the skill setup layer
// converts it when contributing to aggregation.
type GemModifier struct {
	Name  string  `json:"name"`
	Kind  string  `json:"kind"`
	Value float64 `json:"value"`
}

// SupportGem is a catalog entry granting modifiers to a linked active skill.
type SupportGem struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Tags           []string      `json:"tags"`
	CostMultiplier float64       `json:"costMultiplier"`
	Modifiers      []GemModifier `json:"modifiers"`
}

// HasTag reports whether the gem carries the given tag.
func (g *SupportGem) HasTag(tag string) bool {
	for _, t := range g.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// TreeGroup is a cluster of nodes sharing a center point.
type TreeGroup struct {
	ID     int     `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Orbits []int   `json:"orbits"`
}

// TreeNode is one allocable passive. Positions are derived at resolve time,
// never stored in the catalog.
type TreeNode struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Group       int      `json:"group"`
	Orbit       int      `json:"orbit"`
	OrbitIndex  int      `json:"orbitIndex"`
	Stats       []string `json:"stats"`
	Keystone    bool     `json:"keystone"`
	Notable     bool     `json:"notable"`
	Mastery     bool     `json:"mastery"`
	Connections []int    `json:"connections"`
}

// TreeData is the raw passive-tree catalog: groups, nodes, and the orbit
// geometry constants (radius and angular slot count per orbit ring).
type TreeData struct {
	Version        string       `json:"version"`
	OrbitRadii     []float64    `json:"orbitRadii"`
	SkillsPerOrbit []int        `json:"skillsPerOrbit"`
	Groups         []*TreeGroup `json:"groups"`
	Nodes          []*TreeNode  `json:"nodes"`
}

// ---- Load Error ----

// LoadError reports a missing or malformed catalog file. Fatal to the
// features backed by that catalog; the caller decides whether to continue.
type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("resource: load %s: %v", e.File, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ---- Loader ----

// Loader reads the skill, support-gem, and passive-tree catalogs from a data
// directory. All loaded data is immutable after Load and safe to share across
// concurrent evaluations.
type Loader struct {
	dataPath string

	Skills []*ActiveSkill
	Gems   []*SupportGem
	Tree   *TreeData

	skillByID map[string]*ActiveSkill
	gemByID   map[string]*SupportGem
}

// NewLoader creates a Loader rooted at dataPath.
func NewLoader(dataPath string) *Loader {
	return &Loader{dataPath: dataPath}
}

// Load reads every catalog file. The first failure aborts the load and is
// returned as a *LoadError.
func (l *Loader) Load() error {
	if err := l.loadSkills(); err != nil {
		return err
	}
	if err := l.loadGems(); err != nil {
		return err
	}
	if err := l.loadTree(); err != nil {
		return err
	}
	return nil
}

func (l *Loader) path(file string) string {
	return filepath.Join(l.dataPath, file)
}

func loadJSONArray[T any](path string) ([]*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []*T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func loadJSONObject[T any](path string, out *T) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (l *Loader) loadSkills() error {
	skills, err := loadJSONArray[ActiveSkill](l.path("Skills.json"))
	if err != nil {
		return &LoadError{File: "Skills.json", Err: err}
	}
	byID := make(map[string]*ActiveSkill, len(skills))
	for _, s := range skills {
		if s == nil {
			continue
		}
		if s.ID == "" {
			return &LoadError{File: "Skills.json", Err: fmt.Errorf("skill %q has no id", s.Name)}
		}
		if s.CastTime < 0 {
			return &LoadError{File: "Skills.json", Err: fmt.Errorf("skill %s: negative cast time", s.ID)}
		}
		byID[s.ID] = s
	}
	l.Skills = skills
	l.skillByID = byID
	return nil
}

func (l *Loader) loadGems() error {
	gems, err := loadJSONArray[SupportGem](l.path("SupportGems.json"))
	if err != nil {
		return &LoadError{File: "SupportGems.json", Err: err}
	}
	byID := make(map[string]*SupportGem, len(gems))
	for _, g := range gems {
		if g == nil {
			continue
		}
		if g.ID == "" {
			return &LoadError{File: "SupportGems.json", Err: fmt.Errorf("gem %q has no id", g.Name)}
		}
		byID[g.ID] = g
	}
	l.Gems = gems
	l.gemByID = byID
	return nil
}

func (l *Loader) loadTree() error {
	tree := &TreeData{}
	if err := loadJSONObject(l.path("Tree.json"), tree); err != nil {
		return &LoadError{File: "Tree.json", Err: err}
	}
	if len(tree.OrbitRadii) == 0 || len(tree.SkillsPerOrbit) == 0 {
		return &LoadError{File: "Tree.json", Err: fmt.Errorf("missing orbit constants")}
	}
	if len(tree.OrbitRadii) != len(tree.SkillsPerOrbit) {
		return &LoadError{File: "Tree.json", Err: fmt.Errorf("orbitRadii and skillsPerOrbit length mismatch")}
	}
	l.Tree = tree
	return nil
}

// SkillByID returns the active skill with the given id, or nil.
func (l *Loader) SkillByID(id string) *ActiveSkill {
	return l.skillByID[id]
}

// GemByID returns the support gem with the given id, or nil.
func (l *Loader) GemByID(id string) *SupportGem {
	return l.gemByID[id]
}
