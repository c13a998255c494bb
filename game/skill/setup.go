package skill

import (
	"github.com/mistveil/buildcalc/game/calc"
	"github.com/mistveil/buildcalc/resource"
)

const (
	// MaxSupportLinks caps the number of support gems linked to one skill.
	MaxSupportLinks = 6
	// MinLevel and MaxLevel bound skill and support gem levels.
	MinLevel = 1
	MaxLevel = 20
)

// Link is one support gem linked to the active skill at a given level.
type Link struct {
	Gem   *resource.SupportGem
	Level int
}

// Setup owns one build's active-skill configuration: the catalog skill, its
// level, and the ordered, deduplicated set of support links.
type Setup struct {
	active *resource.ActiveSkill
	level  int
	links  []Link
}

// NewSetup creates an empty skill setup at level 1.
func NewSetup() *Setup {
	return &Setup{level: MinLevel}
}

// Active returns the current active skill, or nil.
func (s *Setup) Active() *resource.ActiveSkill { return s.active }

// Level returns the active skill level.
func (s *Setup) Level() int { return s.level }

// Links returns a copy of the current support links in link order.
func (s *Setup) Links() []Link {
	out := make([]Link, len(s.links))
	copy(out, s.links)
	return out
}

func clampLevel(level int) int {
	if level < MinLevel {
		return MinLevel
	}
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}

// compatible reports whether the gem's tag set intersects the skill's.
func compatible(gem *resource.SupportGem, skill *resource.ActiveSkill) bool {
	if gem == nil || skill == nil {
		return false
	}
	for _, t := range gem.Tags {
		if skill.HasTag(t) {
			return true
		}
	}
	return false
}

// SetActiveSkill switches the catalog skill and drops every support link
// whose gem no longer shares a tag with it. Stale incompatible links would
// silently corrupt aggregation, so this filtering is part of the lifecycle,
// not a UI nicety.
func (s *Setup) SetActiveSkill(skill *resource.ActiveSkill) {
	s.active = skill
	kept := s.links[:0]
	for _, l := range s.links {
		if compatible(l.Gem, skill) {
			kept = append(kept, l)
		}
	}
	s.links = kept
}

// SetLevel sets the active skill level, clamped to [MinLevel, MaxLevel].
func (s *Setup) SetLevel(level int) {
	s.level = clampLevel(level)
}

// AddSupport links a support gem at the given level. Silently ignored when
// no active skill is set, the gem is incompatible, already linked, or the
// link count is already at capacity.
func (s *Setup) AddSupport(gem *resource.SupportGem, level int) {
	if gem == nil || !compatible(gem, s.active) {
		return
	}
	if len(s.links) >= MaxSupportLinks {
		return
	}
	for _, l := range s.links {
		if l.Gem.ID == gem.ID {
			return
		}
	}
	s.links = append(s.links, Link{Gem: gem, Level: clampLevel(level)})
}

// RemoveSupport unlinks the gem with the given id. No-op if not linked.
func (s *Setup) RemoveSupport(gemID string) {
	for i, l := range s.links {
		if l.Gem.ID == gemID {
			s.links = append(s.links[:i], s.links[i+1:]...)
			return
		}
	}
}

// SetSupportLevel sets a linked gem's level, clamped to [MinLevel, MaxLevel].
func (s *Setup) SetSupportLevel(gemID string, level int) {
	for i := range s.links {
		if s.links[i].Gem.ID == gemID {
			s.links[i].Level = clampLevel(level)
			return
		}
	}
}

// Clear drops the active skill and every link, resetting the level.
func (s *Setup) Clear() {
	s.active = nil
	s.level = MinLevel
	s.links = nil
}

// supportLevelScale is the per-level effect multiplier of a support gem.
func supportLevelScale(level int) float64 {
	return 1 + float64(level-1)*0.05
}

// Modifiers returns every linked gem's contributions, scaled by the gem's
// level at contribution time (the scale is never stored). Gem entries with
// an unknown kind string are skipped.
func (s *Setup) Modifiers() []calc.Modifier {
	var mods []calc.Modifier
	for _, l := range s.links {
		scale := supportLevelScale(l.Level)
		for _, gm := range l.Gem.Modifiers {
			kind, err := calc.ParseKind(gm.Kind)
			if err != nil {
				continue
			}
			mods = append(mods, calc.Modifier{
				Name:   gm.Name,
				Kind:   kind,
				Value:  gm.Value * scale,
				Source: "support:" + l.Gem.ID,
			})
		}
	}
	return mods
}

// CostMultiplier is the product of every linked gem's resource-cost
// multiplier. Gems without one (zero value) count as 1.
func (s *Setup) CostMultiplier() float64 {
	mult := 1.0
	for _, l := range s.links {
		if l.Gem.CostMultiplier > 0 {
			mult *= l.Gem.CostMultiplier
		}
	}
	return mult
}
