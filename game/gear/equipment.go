package gear

import (
	"github.com/mistveil/buildcalc/game/calc"
)

// MaxItemModifiers caps the number of modifiers one item can hold.
const MaxItemModifiers = 6

// Slot identifies one equipment position.
type Slot string

const (
	SlotMainHand   Slot = "MainHand"
	SlotOffHand    Slot = "OffHand"
	SlotHelmet     Slot = "Helmet"
	SlotBodyArmour Slot = "BodyArmour"
	SlotGloves     Slot = "Gloves"
	SlotBoots      Slot = "Boots"
	SlotShield     Slot = "Shield"
	SlotAmulet     Slot = "Amulet"
	SlotRingLeft   Slot = "RingLeft"
	SlotRingRight  Slot = "RingRight"
	SlotBelt       Slot = "Belt"
	SlotFlask1     Slot = "Flask1"
	SlotFlask2     Slot = "Flask2"
	SlotFlask3     Slot = "Flask3"
	SlotFlask4     Slot = "Flask4"
	SlotFlask5     Slot = "Flask5"
)

// AllSlots lists every slot in canonical order. Iteration over equipment
// always follows this order so contribution attribution is deterministic.
var AllSlots = []Slot{
	SlotMainHand, SlotOffHand,
	SlotHelmet, SlotBodyArmour, SlotGloves, SlotBoots, SlotShield,
	SlotAmulet, SlotRingLeft, SlotRingRight, SlotBelt,
	SlotFlask1, SlotFlask2, SlotFlask3, SlotFlask4, SlotFlask5,
}

// defaultBase is the base type given to an item created lazily in a slot.
var defaultBase = map[Slot]string{
	SlotMainHand:   "Driftwood Wand",
	SlotOffHand:    "Driftwood Club",
	SlotHelmet:     "Iron Hat",
	SlotBodyArmour: "Plate Vest",
	SlotGloves:     "Iron Gauntlets",
	SlotBoots:      "Iron Greaves",
	SlotShield:     "Splintered Tower Shield",
	SlotAmulet:     "Coral Amulet",
	SlotRingLeft:   "Iron Ring",
	SlotRingRight:  "Iron Ring",
	SlotBelt:       "Leather Belt",
	SlotFlask1:     "Small Life Flask",
	SlotFlask2:     "Small Life Flask",
	SlotFlask3:     "Small Mana Flask",
	SlotFlask4:     "Small Mana Flask",
	SlotFlask5:     "Quicksilver Flask",
}

// Rarity of an item.
type Rarity string

const (
	RarityNormal Rarity = "Normal"
	RarityMagic  Rarity = "Magic"
	RarityRare   Rarity = "Rare"
	RarityUnique Rarity = "Unique"
)

// Item is one equipped piece holding up to MaxItemModifiers modifiers.
type Item struct {
	Slot   Slot            `json:"slot"`
	Rarity Rarity          `json:"rarity"`
	Base   string          `json:"base"`
	Mods   []calc.Modifier `json:"mods"`
}

// Equipment owns every equipped item, keyed by slot. Items are created
// lazily on the first modifier added to an empty slot. Removing the last
// modifier leaves the empty item in place; only ClearSlot deletes it.
type Equipment struct {
	items map[Slot]*Item
}

// NewEquipment creates an empty equipment set.
func NewEquipment() *Equipment {
	return &Equipment{items: make(map[Slot]*Item)}
}

func validSlot(slot Slot) bool {
	_, ok := defaultBase[slot]
	return ok
}

// Item returns the item in slot, or nil if the slot is empty.
func (e *Equipment) Item(slot Slot) *Item {
	return e.items[slot]
}

// EnsureItem creates the item in slot with its default base type if the
// slot is empty, and returns it. Unknown slots return nil. The codec uses
// this to round-trip items whose modifier list is empty.
func (e *Equipment) EnsureItem(slot Slot) *Item {
	if !validSlot(slot) {
		return nil
	}
	item := e.items[slot]
	if item == nil {
		item = &Item{Slot: slot, Rarity: RarityRare, Base: defaultBase[slot]}
		e.items[slot] = item
	}
	return item
}

// AddModifier appends a modifier to the item in slot, creating the item
// with the slot's default base type if needed. Unknown slots and items
// already at capacity are silently ignored.
func (e *Equipment) AddModifier(slot Slot, m calc.Modifier) {
	item := e.EnsureItem(slot)
	if item == nil {
		return
	}
	if len(item.Mods) >= MaxItemModifiers {
		return
	}
	m.Source = "item:" + string(slot)
	item.Mods = append(item.Mods, m)
}

// RemoveModifier removes the modifier at index from the item in slot.
// Out-of-range indexes and empty slots are no-ops. The item itself stays
// even when its list becomes empty.
func (e *Equipment) RemoveModifier(slot Slot, index int) {
	item := e.items[slot]
	if item == nil || index < 0 || index >= len(item.Mods) {
		return
	}
	item.Mods = append(item.Mods[:index], item.Mods[index+1:]...)
}

// ClearSlot deletes the item in slot entirely.
func (e *Equipment) ClearSlot(slot Slot) {
	delete(e.items, slot)
}

// Clear deletes every item.
func (e *Equipment) Clear() {
	e.items = make(map[Slot]*Item)
}

// Modifiers concatenates every item's modifiers in canonical slot order.
func (e *Equipment) Modifiers() []calc.Modifier {
	var mods []calc.Modifier
	for _, slot := range AllSlots {
		if item := e.items[slot]; item != nil {
			mods = append(mods, item.Mods...)
		}
	}
	return mods
}

// Items returns the occupied items in canonical slot order.
func (e *Equipment) Items() []*Item {
	var out []*Item
	for _, slot := range AllSlots {
		if item := e.items[slot]; item != nil {
			out = append(out, item)
		}
	}
	return out
}
