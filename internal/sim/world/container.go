package world

import "sort"

// Container is the inventory of an item terminal.
type Container struct {
	Block string
	Pos   Vec3i

	Inventory map[string]int
	Capacity  int // total unit cap across all item kinds
}

func (c *Container) TotalUnits() int {
	n := 0
	for _, v := range c.Inventory {
		if v > 0 {
			n += v
		}
	}
	return n
}

// InsertOne adds a single unit, respecting the container's unit cap.
func (c *Container) InsertOne(item string) bool {
	if item == "" {
		return false
	}
	if c.Capacity > 0 && c.TotalUnits() >= c.Capacity {
		return false
	}
	if c.Inventory == nil {
		c.Inventory = map[string]int{}
	}
	c.Inventory[item]++
	return true
}

// ExtractOne removes a single unit of the lexicographically first item
// matching the predicate (deterministic pick) and returns it, or ""
// when nothing matches.
func (c *Container) ExtractOne(match func(item string) bool) string {
	if len(c.Inventory) == 0 {
		return ""
	}
	keys := make([]string, 0, len(c.Inventory))
	for item, n := range c.Inventory {
		if item == "" || n <= 0 {
			continue
		}
		if match != nil && !match(item) {
			continue
		}
		keys = append(keys, item)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	item := keys[0]
	c.Inventory[item]--
	if c.Inventory[item] <= 0 {
		delete(c.Inventory, item)
	}
	return item
}

// Restore puts back a unit that was tentatively extracted but could not
// be placed anywhere, ignoring the cap so nothing is ever lost.
func (c *Container) Restore(item string) {
	if item == "" {
		return
	}
	if c.Inventory == nil {
		c.Inventory = map[string]int{}
	}
	c.Inventory[item]++
}

func (w *World) sortedContainerKeys() []Vec3i {
	keys := make([]Vec3i, 0, len(w.containers))
	for p := range w.containers {
		keys = append(keys, p)
	}
	sort.Slice(keys, func(i, j int) bool { return lessVec3i(keys[i], keys[j]) })
	return keys
}
