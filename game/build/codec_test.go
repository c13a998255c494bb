package build_test

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mistveil/buildcalc/game/build"
	"github.com/mistveil/buildcalc/game/calc"
	"github.com/mistveil/buildcalc/game/gear"
	"github.com/mistveil/buildcalc/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populatedBuild(t *testing.T) *build.Build {
	t.Helper()
	res := testutil.SetupTestCatalog(t)
	b := build.New(res, testutil.SetupTestTree(t, res))

	b.Name = "Crit Fireballer"
	b.CharLevel = 68
	b.Class = "Witch"
	b.Skill().SetActiveSkill(res.SkillByID("fireball"))
	b.Skill().SetLevel(15)
	b.Skill().AddSupport(res.GemByID("spell_echo"), 12)
	b.Skill().AddSupport(res.GemByID("inc_crit"), 9)
	b.Tree().Allocate(100)
	b.Tree().Allocate(102)
	b.Equipment().AddModifier(gear.SlotMainHand, calc.Modifier{Name: "SpellDamage", Kind: calc.KindIncreased, Value: 22})
	b.Equipment().AddModifier(gear.SlotAmulet, calc.Modifier{Name: "CritMultiplier", Kind: calc.KindBase, Value: 15})
	b.AddManualModifier(calc.Modifier{Name: "FireDamage", Kind: calc.KindMore, Value: 10})
	return b
}

func TestExportImport_RoundTrip(t *testing.T) {
	src := populatedBuild(t)

	code, err := src.Export()
	require.NoError(t, err)
	require.NotEmpty(t, code)

	// URL-safe, unpadded alphabet only.
	assert.NotContains(t, code, "=")
	assert.NotContains(t, code, "+")
	assert.NotContains(t, code, "/")

	res := testutil.SetupTestCatalog(t)
	dst := build.New(res, testutil.SetupTestTree(t, res))
	require.NoError(t, dst.Import(code))

	assert.Equal(t, src.Snapshot(), dst.Snapshot())

	// Equal state implies equal evaluation.
	assert.Equal(t, src.DamageResult(), dst.DamageResult())
}

func TestExport_PayloadShape(t *testing.T) {
	src := populatedBuild(t)
	code, err := src.Export()
	require.NoError(t, err)

	payload, err := base64.RawURLEncoding.DecodeString(code)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(payload, &raw))
	for _, key := range []string{"version", "character", "skill", "passives", "equipment", "manualModifiers"} {
		assert.Contains(t, raw, key)
	}

	var version int
	require.NoError(t, json.Unmarshal(raw["version"], &version))
	assert.Equal(t, build.CodecVersion, version)
}

func TestImport_RejectsBadCodes(t *testing.T) {
	cases := []struct {
		name string
		code string
	}{
		{"not base64", "!!!not-base64!!!"},
		{"not json", base64.RawURLEncoding.EncodeToString([]byte("hello"))},
		{"wrong version", mustEncode(t, build.Snapshot{Version: 99})},
		{"unknown skill", mustEncode(t, build.Snapshot{
			Version: build.CodecVersion,
			Skill:   build.SkillSnapshot{ActiveSkillID: "meteor_storm", Level: 1},
		})},
		{"unknown support gem", mustEncode(t, build.Snapshot{
			Version: build.CodecVersion,
			Skill: build.SkillSnapshot{
				ActiveSkillID: "fireball", Level: 1,
				Supports: []build.SupportSnapshot{{ID: "nonexistent", Level: 1}},
			},
		})},
		{"bad modifier kind", mustEncode(t, build.Snapshot{
			Version: build.CodecVersion,
			Equipment: []build.EquipmentSnapshot{{
				Slot:      "MainHand",
				Modifiers: []build.ModifierSnapshot{{Name: "Damage", Kind: "SOMETIMES", Value: 3}},
			}},
		})},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := populatedBuild(t)
			before := b.Snapshot()

			err := b.Import(tc.code)
			require.Error(t, err)

			var ie *build.ImportError
			assert.True(t, errors.As(err, &ie), "want *ImportError, got %T", err)

			// Failed imports must leave the prior state untouched.
			assert.Equal(t, before, b.Snapshot())
		})
	}
}

func mustEncode(t *testing.T, snap build.Snapshot) string {
	t.Helper()
	payload, err := json.Marshal(snap)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(payload)
}

func TestImport_ReplaysThroughMutationAPI(t *testing.T) {
	mods := make([]build.ModifierSnapshot, 0, 8)
	for i := 0; i < 8; i++ {
		mods = append(mods, build.ModifierSnapshot{Name: "Life", Kind: "BASE", Value: float64(i)})
	}
	snap := build.Snapshot{
		Version:   build.CodecVersion,
		Character: build.CharacterSnapshot{Name: "Replayed", Level: 90},
		Skill: build.SkillSnapshot{
			ActiveSkillID: "heavy_strike",
			Level:         99, // clamped on replay
			Supports: []build.SupportSnapshot{
				{ID: "spell_echo", Level: 1}, // incompatible with an Attack: dropped
				{ID: "brutality", Level: 50}, // level clamped
			},
		},
		Passives:  []int{100, 424242}, // unknown node ignored
		Equipment: []build.EquipmentSnapshot{{Slot: "Helmet", Modifiers: mods}},
	}

	b := newTestBuild(t)
	require.NoError(t, b.Restore(snap))

	assert.Equal(t, "Replayed", b.Name)
	assert.Equal(t, 20, b.Skill().Level(), "skill level clamps on replay")

	links := b.Skill().Links()
	require.Len(t, links, 1, "incompatible support dropped silently")
	assert.Equal(t, "brutality", links[0].Gem.ID)
	assert.Equal(t, 20, links[0].Level)

	assert.Equal(t, []int{100}, b.Tree().Allocated())

	helmet := b.Equipment().Item(gear.SlotHelmet)
	require.NotNil(t, helmet)
	assert.Len(t, helmet.Mods, gear.MaxItemModifiers, "item capacity applies on replay")
}

func TestImport_ReplacesPriorState(t *testing.T) {
	b := populatedBuild(t)

	res := testutil.SetupTestCatalog(t)
	empty := build.New(res, testutil.SetupTestTree(t, res))
	code, err := empty.Export()
	require.NoError(t, err)

	require.NoError(t, b.Import(code))
	assert.Empty(t, b.Name)
	assert.Nil(t, b.Skill().Active())
	assert.Empty(t, b.Tree().Allocated())
	assert.Empty(t, b.Equipment().Items())
	assert.Empty(t, b.ManualModifiers())
}

func TestExportImport_EmptyItemRoundTrips(t *testing.T) {
	src := populatedBuild(t)

	// An item whose last modifier was removed stays in the slot and must
	// survive the round trip.
	src.Equipment().AddModifier(gear.SlotHelmet, calc.Modifier{Name: "Life", Kind: calc.KindBase, Value: 40})
	src.Equipment().RemoveModifier(gear.SlotHelmet, 0)
	require.NotNil(t, src.Equipment().Item(gear.SlotHelmet))

	code, err := src.Export()
	require.NoError(t, err)

	res := testutil.SetupTestCatalog(t)
	dst := build.New(res, testutil.SetupTestTree(t, res))
	require.NoError(t, dst.Import(code))

	helmet := dst.Equipment().Item(gear.SlotHelmet)
	require.NotNil(t, helmet, "empty helmet item lost on import")
	assert.Empty(t, helmet.Mods)
	assert.Equal(t, src.Snapshot(), dst.Snapshot())
}
