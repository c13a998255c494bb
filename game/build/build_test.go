package build_test

import (
	"testing"

	"github.com/mistveil/buildcalc/game/build"
	"github.com/mistveil/buildcalc/game/calc"
	"github.com/mistveil/buildcalc/game/gear"
	"github.com/mistveil/buildcalc/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBuild(t *testing.T) *build.Build {
	t.Helper()
	res := testutil.SetupTestCatalog(t)
	resolved := testutil.SetupTestTree(t, res)
	return build.New(res, resolved)
}

func TestAggregate_AttributionOrder(t *testing.T) {
	b := newTestBuild(t)
	res := testutil.SetupTestCatalog(t)

	b.AddManualModifier(calc.Modifier{Name: "Damage", Kind: calc.KindIncreased, Value: 5})
	b.Tree().Allocate(101) // 10% increased Damage
	b.Skill().SetActiveSkill(res.SkillByID("fireball"))
	b.Skill().AddSupport(res.GemByID("added_fire"), 1)
	b.Equipment().AddModifier(gear.SlotMainHand, calc.Modifier{Name: "SpellDamage", Kind: calc.KindIncreased, Value: 20})

	mods := b.Aggregate().Modifiers()
	require.Len(t, mods, 4)
	assert.Equal(t, "manual", mods[0].Source)
	assert.Equal(t, "tree:101", mods[1].Source)
	assert.Equal(t, "support:added_fire", mods[2].Source)
	assert.Equal(t, "item:MainHand", mods[3].Source)
}

func TestManualModifiers(t *testing.T) {
	b := newTestBuild(t)

	b.AddManualModifier(calc.Modifier{Name: "Damage", Kind: calc.KindIncreased, Value: 10})
	b.AddManualModifier(calc.Modifier{Name: "Life", Kind: calc.KindBase, Value: 50, Source: "debug"})

	mods := b.ManualModifiers()
	require.Len(t, mods, 2)
	assert.Equal(t, "manual", mods[0].Source, "empty source defaults to manual")
	assert.Equal(t, "debug", mods[1].Source, "explicit source is kept")

	b.RemoveManualModifier(5) // out of range: no-op
	b.RemoveManualModifier(0)
	mods = b.ManualModifiers()
	require.Len(t, mods, 1)
	assert.Equal(t, "Life", mods[0].Name)
}

func TestDamageResult_FullBuild(t *testing.T) {
	res := testutil.SetupTestCatalog(t)
	resolved := testutil.SetupTestTree(t, res)
	b := build.New(res, resolved)

	b.Skill().SetActiveSkill(res.SkillByID("fireball"))
	b.Skill().AddSupport(res.GemByID("spell_echo"), 1) // +50% cast speed, 10% less damage, cost x1.4
	b.Tree().Allocate(100)                             // 12% increased Spell Damage
	b.Tree().Allocate(101)                             // 10% increased Damage
	b.Equipment().AddModifier(gear.SlotMainHand, calc.Modifier{Name: "SpellDamage", Kind: calc.KindIncreased, Value: 20})
	b.AddManualModifier(calc.Modifier{Name: "FireDamage", Kind: calc.KindIncreased, Value: 8})

	r := b.DamageResult()
	require.False(t, r.Invalid)

	// avg = 15 * (1 + 0.50) * 0.9
	assert.InDelta(t, 20.25, r.AvgDamage, 1e-9)
	assert.InDelta(t, 5, r.CritChance, 1e-9)
	assert.InDelta(t, 1.5, r.CritMultiplier, 1e-9)
	assert.InDelta(t, 20.25*1.025, r.AvgWithCrit, 1e-9)
	assert.InDelta(t, 1.5, r.Speed, 1e-9)
	assert.InDelta(t, 20.25*1.025*1.5, r.DPS, 1e-9)
	assert.Equal(t, 14, r.Cost, "base cost 10 scaled by the 1.4 link multiplier")
}

func TestDamageResult_NoActiveSkill(t *testing.T) {
	b := newTestBuild(t)
	r := b.DamageResult()
	assert.True(t, r.Invalid)
	assert.Zero(t, r.Cost)
}

func TestDamageResult_ZeroCastTimeSkill(t *testing.T) {
	res := testutil.SetupTestCatalog(t)
	b := build.New(res, testutil.SetupTestTree(t, res))
	b.Skill().SetActiveSkill(res.SkillByID("broken_ritual"))
	assert.True(t, b.DamageResult().Invalid)
}

func TestNew_NilTreeIsUsable(t *testing.T) {
	res := testutil.SetupTestCatalog(t)
	b := build.New(res, nil)

	// Tree operations are silent no-ops; everything else works.
	b.Tree().Allocate(100)
	assert.Empty(t, b.Tree().Allocated())

	b.Skill().SetActiveSkill(res.SkillByID("fireball"))
	r := b.DamageResult()
	require.False(t, r.Invalid)
	assert.InDelta(t, 15.375, r.AvgWithCrit, 1e-9)
}
