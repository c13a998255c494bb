package calc

import (
	"math"

	"github.com/mistveil/buildcalc/resource"
)

// DamageResult holds the resolved combat statistics for one skill setup.
// Invalid is set instead of an error for unusable configurations (e.g. a
// zero cast time) so a UI can always render a result.
type DamageResult struct {
	MinDamage      float64 `json:"min_damage"`
	MaxDamage      float64 `json:"max_damage"`
	AvgDamage      float64 `json:"avg_damage"`
	AvgWithCrit    float64 `json:"avg_with_crit"`
	CritChance     float64 `json:"crit_chance"`
	CritMultiplier float64 `json:"crit_multiplier"`
	Speed          float64 `json:"speed"`
	DPS            float64 `json:"dps"`
	Cost           int     `json:"cost"`
	Invalid        bool    `json:"invalid,omitempty"`
}

// ResolveDamage runs the full damage computation pipeline for one skill at
// the given level against the aggregated modifier context. Pure: the same
// inputs always yield the same result.
func ResolveDamage(skill *resource.ActiveSkill, level int, ctx *Context) DamageResult {
	if skill == nil || skill.CastTime <= 0 {
		return DamageResult{Invalid: true}
	}

	// ① Per-level base numbers.
	perLevel := float64(level-1) * skill.Scaling.DamagePerLevel
	minDamage := skill.MinDamage + perLevel*0.8
	maxDamage := skill.MaxDamage + perLevel*1.2
	cost := int(math.Round(skill.Cost + float64(level-1)*skill.Scaling.CostPerLevel))

	// ② Stat names whose increased/more modifiers apply to this skill.
	names := []string{"Damage", skill.DamageType + "Damage"}
	if skill.HasTag(resource.TagSpell) {
		names = append(names, "SpellDamage")
	}
	if skill.HasTag(resource.TagAttack) {
		names = append(names, "AttackDamage")
	}

	// ③ Combination algebra: increased sums once, more multiplies per source.
	incTotal := 1 + ctx.Sum(KindIncreased, names...)/100
	moreTotal := ctx.MoreMultiplier(names...)

	// ④ Crit chance, clamped to [0, 100].
	critChance := skill.CritChance * (1 + ctx.Sum(KindIncreased, "CritChance", skill.DamageType+"CritChance")/100)
	critChance = math.Min(100, math.Max(0, critChance))

	// ⑤ Crit multiplier from a 150% baseline.
	critMultiplier := (150 + ctx.Sum(KindBase, "CritMultiplier")) / 100

	// ⑥ Average damage, clamped before crit blending so heavy "reduced"
	// stacks can never push it negative.
	avgDamage := (minDamage + maxDamage) / 2 * incTotal * moreTotal
	avgDamage = math.Max(0, avgDamage)
	critFrac := critChance / 100
	avgWithCrit := avgDamage*(1-critFrac) + avgDamage*critMultiplier*critFrac

	// ⑦ Casts (or attacks) per second.
	speed := (1 / skill.CastTime) * (1 + ctx.Sum(KindIncreased, "Speed", "CastSpeed", "AttackSpeed")/100)

	// ⑧ DPS.
	dps := avgWithCrit * speed

	return DamageResult{
		MinDamage:      math.Max(0, minDamage*incTotal*moreTotal),
		MaxDamage:      math.Max(0, maxDamage*incTotal*moreTotal),
		AvgDamage:      avgDamage,
		AvgWithCrit:    avgWithCrit,
		CritChance:     critChance,
		CritMultiplier: critMultiplier,
		Speed:          speed,
		DPS:            dps,
		Cost:           cost,
	}
}
