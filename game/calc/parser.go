package calc

import (
	"regexp"
	"strconv"
	"strings"
)

// Stat-line patterns, tried in order. The increased/reduced alternation
// deliberately excludes "more"/"less" so multiplicative lines fall through
// to the second pattern.
var (
	reIncreased = regexp.MustCompile(`^(\d+(?:\.\d+)?)% (increased|reduced) (.+)$`)
	reMore      = regexp.MustCompile(`^(\d+(?:\.\d+)?)% (more|less) (.+)$`)
	reFlat      = regexp.MustCompile(`^\+(\d+(?:\.\d+)?) to (.+)$`)
)

// ParseStatLine converts a free-text effect line into a structured modifier.
// Unrecognized lines report ok=false and contribute nothing; the tree catalog
// carries many lines (defensive stats, QoL text) the evaluator does not model,
// and dropping them silently is the documented policy.
func ParseStatLine(line, source string) (Modifier, bool) {
	line = strings.TrimSpace(line)

	if m := reIncreased.FindStringSubmatch(line); m != nil {
		value, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return Modifier{}, false
		}
		if m[2] == "reduced" {
			value = -value
		}
		return Modifier{Name: canonicalStatName(m[3]), Kind: KindIncreased, Value: value, Source: source}, true
	}

	if m := reMore.FindStringSubmatch(line); m != nil {
		value, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return Modifier{}, false
		}
		if m[2] == "less" {
			value = -value
		}
		return Modifier{Name: canonicalStatName(m[3]), Kind: KindMore, Value: value, Source: source}, true
	}

	if m := reFlat.FindStringSubmatch(line); m != nil {
		value, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return Modifier{}, false
		}
		return Modifier{Name: canonicalStatName(m[2]), Kind: KindBase, Value: value, Source: source}, true
	}

	return Modifier{}, false
}

// canonicalStatName strips whitespace so "Critical Strike Chance" becomes
// the stat id "CriticalStrikeChance".
func canonicalStatName(s string) string {
	return strings.Join(strings.Fields(s), "")
}
