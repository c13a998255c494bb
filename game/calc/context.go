package calc

// Context is the flattened, queryable view of all active modifiers.
// It stores the concatenated contributions in attribution order and
// collapses same-named modifiers lazily at query time, so queries are
// referentially transparent: a fixed modifier set always yields the
// same answer regardless of call order.
type Context struct {
	mods []Modifier
}

// NewContext concatenates the given modifier groups, in order, into a
// single evaluation context.
func NewContext(groups ...[]Modifier) *Context {
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	mods := make([]Modifier, 0, total)
	for _, g := range groups {
		mods = append(mods, g...)
	}
	return &Context{mods: mods}
}

// Sum returns the arithmetic sum of every modifier of the given kind whose
// name matches any of names.
func (c *Context) Sum(kind Kind, names ...string) float64 {
	var total float64
	for _, m := range c.mods {
		if m.Kind != kind {
			continue
		}
		for _, n := range names {
			if m.Name == n {
				total += m.Value
				break
			}
		}
	}
	return total
}

// MoreMultiplier returns the product of (1 + value/100) over every
// MORE-kind modifier matching any of names. Each source multiplies
// independently.
func (c *Context) MoreMultiplier(names ...string) float64 {
	mult := 1.0
	for _, m := range c.mods {
		if m.Kind != KindMore {
			continue
		}
		for _, n := range names {
			if m.Name == n {
				mult *= 1 + m.Value/100
				break
			}
		}
	}
	return mult
}

// Modifiers returns a copy of the full modifier list in attribution order.
func (c *Context) Modifiers() []Modifier {
	out := make([]Modifier, len(c.mods))
	copy(out, c.mods)
	return out
}

// Len reports the number of modifiers in the context.
func (c *Context) Len() int {
	return len(c.mods)
}
