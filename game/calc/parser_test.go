package calc

import "testing"

func TestParseStatLine_Increased(t *testing.T) {
	m, ok := ParseStatLine("12% increased Spell Damage", "tree:100")
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if m.Name != "SpellDamage" {
		t.Errorf("name: got %q, want SpellDamage", m.Name)
	}
	if m.Kind != KindIncreased {
		t.Errorf("kind: got %v, want INCREASED", m.Kind)
	}
	if m.Value != 12 {
		t.Errorf("value: got %f, want 12", m.Value)
	}
	if m.Source != "tree:100" {
		t.Errorf("source: got %q, want tree:100", m.Source)
	}
}

func TestParseStatLine_ReducedNegates(t *testing.T) {
	m, ok := ParseStatLine("10% reduced Damage", "")
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if m.Kind != KindIncreased || m.Value != -10 {
		t.Errorf("got kind=%v value=%f, want INCREASED -10", m.Kind, m.Value)
	}
}

func TestParseStatLine_MoreAndLess(t *testing.T) {
	m, ok := ParseStatLine("40% more Critical Strike Chance", "")
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if m.Kind != KindMore || m.Value != 40 {
		t.Errorf("got kind=%v value=%f, want MORE 40", m.Kind, m.Value)
	}
	if m.Name != "CriticalStrikeChance" {
		t.Errorf("name: got %q, want CriticalStrikeChance", m.Name)
	}

	m, ok = ParseStatLine("15% less Damage", "")
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if m.Kind != KindMore || m.Value != -15 {
		t.Errorf("got kind=%v value=%f, want MORE -15", m.Kind, m.Value)
	}
}

func TestParseStatLine_Flat(t *testing.T) {
	m, ok := ParseStatLine("+20 to maximum Life", "tree:103")
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if m.Kind != KindBase || m.Value != 20 {
		t.Errorf("got kind=%v value=%f, want BASE 20", m.Kind, m.Value)
	}
	if m.Name != "maximumLife" {
		t.Errorf("name: got %q, want maximumLife", m.Name)
	}
}

func TestParseStatLine_Decimal(t *testing.T) {
	m, ok := ParseStatLine("+1.5 to Mana Regeneration", "")
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if m.Value != 1.5 {
		t.Errorf("value: got %f, want 1.5", m.Value)
	}
}

func TestParseStatLine_UnmodeledLinesDrop(t *testing.T) {
	lines := []string{
		"your critical strikes deal no extra damage",
		"Grants Level 20 Clarity",
		"-10% increased Damage",
		"20%increased Damage",
		"",
		"   ",
	}
	for _, line := range lines {
		if _, ok := ParseStatLine(line, ""); ok {
			t.Errorf("expected %q to be dropped", line)
		}
	}
}

func TestParseStatLine_TrimsSurroundingSpace(t *testing.T) {
	m, ok := ParseStatLine("  8% increased AttackSpeed  ", "")
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if m.Name != "AttackSpeed" || m.Value != 8 {
		t.Errorf("got %q %f, want AttackSpeed 8", m.Name, m.Value)
	}
}
