package build

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/mistveil/buildcalc/game/calc"
	"github.com/mistveil/buildcalc/game/gear"
	"github.com/mistveil/buildcalc/game/skill"
)

// CodecVersion is the current build-code payload version. Import rejects
// any other value.
const CodecVersion = 1

// ImportError reports a rejected build code. The build's prior state is
// guaranteed untouched when one is returned.
type ImportError struct {
	Reason string
	Err    error
}

func (e *ImportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("build import: %s: %v", e.Reason, e.Err)
	}
	return "build import: " + e.Reason
}

func (e *ImportError) Unwrap() error { return e.Err }

// Snapshot is the serializable projection of a build: a pure function of
// the four contributing components' state, with no derived fields.
type Snapshot struct {
	Version         int                 `json:"version"`
	Character       CharacterSnapshot   `json:"character"`
	Skill           SkillSnapshot       `json:"skill"`
	Passives        []int               `json:"passives"`
	Equipment       []EquipmentSnapshot `json:"equipment"`
	ManualModifiers []ModifierSnapshot  `json:"manualModifiers"`
}

// CharacterSnapshot is the identity slice of a snapshot.
type CharacterSnapshot struct {
	Name  string `json:"name"`
	Level int    `json:"level"`
	Class string `json:"class"`
}

// SupportSnapshot is one serialized support link.
type SupportSnapshot struct {
	ID    string `json:"id"`
	Level int    `json:"level"`
}

// SkillSnapshot is the serialized skill setup.
type SkillSnapshot struct {
	ActiveSkillID string            `json:"activeSkillId"`
	Level         int               `json:"level"`
	Supports      []SupportSnapshot `json:"supports"`
}

// ModifierSnapshot is one serialized modifier. Source is not carried: it is
// informational only and reassigned on replay.
type ModifierSnapshot struct {
	Name  string  `json:"name"`
	Kind  string  `json:"kind"`
	Value float64 `json:"value"`
}

// EquipmentSnapshot is one serialized item.
type EquipmentSnapshot struct {
	Slot      string             `json:"slot"`
	Modifiers []ModifierSnapshot `json:"modifiers"`
}

// Snapshot captures the build's current state.
func (b *Build) Snapshot() Snapshot {
	snap := Snapshot{
		Version: CodecVersion,
		Character: CharacterSnapshot{
			Name:  b.Name,
			Level: b.CharLevel,
			Class: b.Class,
		},
		Passives: b.tree.Allocated(),
	}

	if active := b.skills.Active(); active != nil {
		ss := SkillSnapshot{ActiveSkillID: active.ID, Level: b.skills.Level()}
		for _, l := range b.skills.Links() {
			ss.Supports = append(ss.Supports, SupportSnapshot{ID: l.Gem.ID, Level: l.Level})
		}
		snap.Skill = ss
	}

	for _, item := range b.equip.Items() {
		es := EquipmentSnapshot{Slot: string(item.Slot)}
		for _, m := range item.Mods {
			es.Modifiers = append(es.Modifiers, ModifierSnapshot{Name: m.Name, Kind: m.Kind.String(), Value: m.Value})
		}
		snap.Equipment = append(snap.Equipment, es)
	}

	for _, m := range b.manual {
		snap.ManualModifiers = append(snap.ManualModifiers, ModifierSnapshot{Name: m.Name, Kind: m.Kind.String(), Value: m.Value})
	}

	return snap
}

// Export serializes the build to a copy/paste-safe code: the versioned JSON
// snapshot wrapped in unpadded URL-safe base64.
func (b *Build) Export() (string, error) {
	payload, err := json.Marshal(b.Snapshot())
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(payload), nil
}

// Import decodes a build code and replaces the build's state with the
// decoded snapshot. Atomic: any failure returns an *ImportError and leaves
// the current state untouched.
func (b *Build) Import(code string) error {
	payload, err := base64.RawURLEncoding.DecodeString(code)
	if err != nil {
		return &ImportError{Reason: "invalid encoding", Err: err}
	}
	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return &ImportError{Reason: "malformed payload", Err: err}
	}
	return b.Restore(snap)
}

// Restore replaces the build's state with the given snapshot. State is
// rebuilt in staging components by replaying the normal mutation API, so
// capacity clamps and compatibility filtering apply exactly as they do for
// interactive edits; the staged components are swapped in only on success.
func (b *Build) Restore(snap Snapshot) error {
	if snap.Version != CodecVersion {
		return &ImportError{Reason: fmt.Sprintf("unsupported version %d", snap.Version)}
	}

	// Stage the skill setup first: unknown catalog references are hard
	// failures, and nothing may touch the live components before all
	// staging succeeds.
	stagedSkill := skill.NewSetup()
	if snap.Skill.ActiveSkillID != "" {
		if b.res == nil {
			return &ImportError{Reason: "no catalogs loaded"}
		}
		active := b.res.SkillByID(snap.Skill.ActiveSkillID)
		if active == nil {
			return &ImportError{Reason: fmt.Sprintf("unknown skill %q", snap.Skill.ActiveSkillID)}
		}
		stagedSkill.SetActiveSkill(active)
		stagedSkill.SetLevel(snap.Skill.Level)
		for _, sup := range snap.Skill.Supports {
			gem := b.res.GemByID(sup.ID)
			if gem == nil {
				return &ImportError{Reason: fmt.Sprintf("unknown support gem %q", sup.ID)}
			}
			stagedSkill.AddSupport(gem, sup.Level)
		}
	}

	stagedEquip := gear.NewEquipment()
	for _, es := range snap.Equipment {
		slot := gear.Slot(es.Slot)
		// A listed slot holds an item even when its modifier list is
		// empty; materialize it so export/import round-trips.
		stagedEquip.EnsureItem(slot)
		for _, ms := range es.Modifiers {
			kind, err := calc.ParseKind(ms.Kind)
			if err != nil {
				return &ImportError{Reason: fmt.Sprintf("item in slot %s", es.Slot), Err: err}
			}
			stagedEquip.AddModifier(slot, calc.Modifier{Name: ms.Name, Kind: kind, Value: ms.Value})
		}
	}

	var stagedManual []calc.Modifier
	for _, ms := range snap.ManualModifiers {
		kind, err := calc.ParseKind(ms.Kind)
		if err != nil {
			return &ImportError{Reason: "manual modifier", Err: err}
		}
		stagedManual = append(stagedManual, calc.Modifier{Name: ms.Name, Kind: kind, Value: ms.Value, Source: "manual"})
	}

	// All staging succeeded; swap in.
	b.Name = snap.Character.Name
	b.CharLevel = snap.Character.Level
	b.Class = snap.Character.Class
	b.skills = stagedSkill
	b.equip = stagedEquip
	b.manual = stagedManual
	b.tree.Clear()
	for _, id := range snap.Passives {
		b.tree.Allocate(id)
	}
	return nil
}
