package world

import (
	"fluxgrid.dev/internal/sim/catalogs"
)

// routeOneItem attempts a single one-unit item transfer from the source
// container through the network reachable from entry (a dedicated-output
// pipe adjacent to the source). At most one move happens per invocation;
// the per-source round-robin index rotates which receiver is tried first
// so receivers sharing a source are served fairly across ticks.
//
// Returns the number of units moved (0 or 1). On total failure the
// tentatively extracted unit is restored and the index left unchanged.
func (w *World) routeOneItem(source Vec3i, entry Vec3i, reg *Registration) int {
	src := w.containers[source]
	if src == nil || src.TotalUnits() == 0 {
		return 0
	}

	net := w.discoverNetwork(entry, false)
	receivers := make([]Vec3i, 0, len(net.Order))
	for _, pos := range net.Order {
		if pos == source {
			continue
		}
		caps := net.Terminals[pos]
		if !caps.CanInput || caps.Tag != catalogs.TagItem {
			continue
		}
		if w.containers[pos] == nil {
			continue
		}
		receivers = append(receivers, pos)
	}
	if len(receivers) == 0 {
		return 0
	}

	item := src.ExtractOne(nil)
	if item == "" {
		return 0
	}

	start := reg.RRIndex % len(receivers)
	for i := 0; i < len(receivers); i++ {
		slot := (start + i) % len(receivers)
		dst := w.containers[receivers[slot]]
		if !dst.InsertOne(item) {
			continue
		}
		reg.RRIndex = (slot + 1) % len(receivers)
		w.persistRegistration(reg)
		w.auditEvent(w.tick.Load(), "WORLD", "ITEM_ROUTE", source, "", map[string]any{
			"item": item,
			"to":   receivers[slot].ToArray(),
		})
		return 1
	}

	// Nothing accepted it; conservation requires the unit back.
	src.Restore(item)
	return 0
}
