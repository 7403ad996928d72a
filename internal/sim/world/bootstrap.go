package world

import "fluxgrid.dev/internal/sim/catalogs"

// Bootstrap replays durable state from the store into a fresh world.
// Must be called before Run; it runs on the caller's goroutine while
// nothing else touches the world.
func (w *World) Bootstrap(blocks []BlockRecord, ledgers []LedgerRecord, regs []RegistrationRecord) {
	for _, r := range blocks {
		blockID, ok := w.catalogs.Blocks.Index[r.Block]
		if !ok {
			continue
		}
		pos := FromArray(r.Pos)
		if !w.chunks.SetBlock(pos, blockID) {
			continue
		}
		caps := w.catalogs.Blocks.Caps[blockID]
		if caps.Terminal {
			switch caps.Tag {
			case catalogs.TagEnergy:
				w.ledgers[pos] = &Ledger{Capacity: caps.Capacity}
			case catalogs.TagItem:
				w.containers[pos] = &Container{Block: r.Block, Pos: pos, Capacity: int(caps.Capacity)}
			}
		}
	}

	for _, r := range ledgers {
		pos := FromArray(r.Pos)
		l := w.ledgers[pos]
		if l == nil {
			continue
		}
		l.Capacity = r.Capacity
		l.Amount = r.Amount
		if l.Amount < 0 {
			l.Amount = 0
		}
		if l.Amount > l.Capacity {
			l.Amount = l.Capacity
		}
	}

	for _, r := range regs {
		pos := FromArray(r.Pos)
		entry := &Registration{
			Pos:            pos,
			Tag:            tagFromString(r.Tag),
			Region:         ChunkKey{CX: r.RegionCX, CZ: r.RegionCZ},
			RRIndex:        r.RRIndex,
			RegisteredTick: r.RegisteredTick,
		}
		registry := w.registryFor(entry.Tag)
		if registry == nil {
			continue
		}
		if w.chunks.Loaded(pos) && w.sourceEligible(pos, entry.Tag) {
			registry.Restore(entry)
		} else {
			// Region not materialized (or wiring gone); park for the
			// rescan instead of dropping the registration.
			w.pending[pos] = entry
		}
	}

	// Replayed blocks invalidate everything derived.
	w.connCache = map[Vec3i]ConnState{}
}
