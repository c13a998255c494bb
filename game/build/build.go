package build

import (
	"math"

	"github.com/mistveil/buildcalc/game/calc"
	"github.com/mistveil/buildcalc/game/gear"
	"github.com/mistveil/buildcalc/game/skill"
	"github.com/mistveil/buildcalc/game/tree"
	"github.com/mistveil/buildcalc/resource"
)

// Build owns one character build: identity, passive allocation, equipment,
// skill setup, and manual modifiers. Each component exclusively owns its
// slice of state; aggregation only reads.
type Build struct {
	Name      string
	CharLevel int
	Class     string

	res    *resource.Loader
	tree   *tree.Tree
	equip  *gear.Equipment
	skills *skill.Setup
	manual []calc.Modifier
}

// New creates an empty build over the given catalogs. resolved may be nil
// when no tree catalog is loaded; tree operations then become no-ops.
func New(res *resource.Loader, resolved *tree.Resolved) *Build {
	var t *tree.Tree
	if resolved != nil {
		t = resolved.NewTree()
	}
	return &Build{
		CharLevel: 1,
		res:       res,
		tree:      t,
		equip:     gear.NewEquipment(),
		skills:    skill.NewSetup(),
	}
}

// Tree returns the passive-tree allocation state (nil-safe to operate on).
func (b *Build) Tree() *tree.Tree { return b.tree }

// Equipment returns the equipment state.
func (b *Build) Equipment() *gear.Equipment { return b.equip }

// Skill returns the active-skill setup.
func (b *Build) Skill() *skill.Setup { return b.skills }

// AddManualModifier appends a manual/debug modifier.
func (b *Build) AddManualModifier(m calc.Modifier) {
	if m.Source == "" {
		m.Source = "manual"
	}
	b.manual = append(b.manual, m)
}

// RemoveManualModifier removes the manual modifier at index. Out-of-range
// indexes are no-ops.
func (b *Build) RemoveManualModifier(index int) {
	if index < 0 || index >= len(b.manual) {
		return
	}
	b.manual = append(b.manual[:index], b.manual[index+1:]...)
}

// ManualModifiers returns a copy of the manual modifier list.
func (b *Build) ManualModifiers() []calc.Modifier {
	out := make([]calc.Modifier, len(b.manual))
	copy(out, b.manual)
	return out
}

// Aggregate merges every contributing component into one evaluation context.
// Order fixes attribution for display (manual, tree, skill links, equipment);
// the combination arithmetic itself is order independent.
func (b *Build) Aggregate() *calc.Context {
	return calc.NewContext(
		b.manual,
		b.tree.Modifiers(),
		b.skills.Modifiers(),
		b.equip.Modifiers(),
	)
}

// DamageResult resolves the active skill's combat statistics against the
// aggregated context. With no active skill the result is flagged invalid.
func (b *Build) DamageResult() calc.DamageResult {
	result := calc.ResolveDamage(b.skills.Active(), b.skills.Level(), b.Aggregate())
	if !result.Invalid {
		result.Cost = int(math.Round(float64(result.Cost) * b.skills.CostMultiplier()))
	}
	return result
}
