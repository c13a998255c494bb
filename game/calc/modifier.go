package calc

import (
	"encoding/json"
	"fmt"
)

// Kind determines how a modifier combines with others sharing its stat name.
type Kind int

const (
	// KindBase sums additively into a flat bonus.
	KindBase Kind = iota
	// KindIncreased sums additively into a single percentage.
	KindIncreased
	// KindMore multiplies independently per contributing source.
	KindMore
	// KindFlag marks a boolean stat. Carried through aggregation, not
	// consumed by the damage formula.
	KindFlag
	// KindOverride replaces a stat outright. Carried through aggregation,
	// not consumed by the damage formula.
	KindOverride
)

var kindNames = map[Kind]string{
	KindBase:      "BASE",
	KindIncreased: "INCREASED",
	KindMore:      "MORE",
	KindFlag:      "FLAG",
	KindOverride:  "OVERRIDE",
}

var kindValues = map[string]Kind{
	"BASE":      KindBase,
	"INCREASED": KindIncreased,
	"MORE":      KindMore,
	"FLAG":      KindFlag,
	"OVERRIDE":  KindOverride,
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind converts a catalog/transport kind string into a Kind.
func ParseKind(s string) (Kind, error) {
	if k, ok := kindValues[s]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("calc: unknown modifier kind %q", s)
}

// MarshalJSON encodes the kind as its transport string ("BASE", "MORE", ...).
func (k Kind) MarshalJSON() ([]byte, error) {
	s, ok := kindNames[k]
	if !ok {
		return nil, fmt.Errorf("calc: cannot marshal kind %d", int(k))
	}
	return json.Marshal(s)
}

// UnmarshalJSON decodes a transport kind string.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Modifier is a single named, typed, signed numeric effect contributed by
// one source. Immutable once created. Source is attribution for display
// only and never affects evaluation.
type Modifier struct {
	Name   string  `json:"name"`
	Kind   Kind    `json:"kind"`
	Value  float64 `json:"value"`
	Source string  `json:"source,omitempty"`
}
