package world

import (
	"encoding/json"

	"fluxgrid.dev/internal/protocol"
	"fluxgrid.dev/internal/sim/catalogs"
)

// QueryEnvelope is a read-only display query answered on the world
// thread at the next tick boundary.
type QueryEnvelope struct {
	ObserverID string
	Conn       *protocol.QueryConnMsg
	Network    *protocol.QueryNetworkMsg
}

// step advances the simulation by one tick. Everything in here runs on
// the world goroutine; nothing blocks.
func (w *World) step(acts []ActEnvelope, queries []QueryEnvelope, moves []Vec3i) {
	nowTick := w.tick.Add(1)
	w.energyMovedThisTick = 0
	w.itemsMovedThisTick = 0

	for _, env := range acts {
		w.applyAct(nowTick, env)
	}
	for _, pos := range moves {
		w.reclaimRegion(nowTick, RegionOf(pos))
	}

	w.systemProduction(nowTick)
	w.systemEnergyFlow(nowTick)
	if nowTick%uint64(w.cfg.ItemRouteEveryTicks) == 0 {
		w.systemItemRouting(nowTick)
	}
	if nowTick%uint64(w.cfg.RescanEveryTicks) == 0 {
		w.rescanPending(nowTick)
	}

	for _, q := range queries {
		w.answerQuery(nowTick, q)
	}

	if w.tickLogger != nil {
		_ = w.tickLogger.WriteTick(TickLogEntry{
			Tick:          nowTick,
			EnergySources: w.energySources.Len(),
			ItemSources:   w.itemSources.Len(),
			EnergyMoved:   w.energyMovedThisTick,
			ItemsMoved:    w.itemsMovedThisTick,
			Digest:        w.stateDigest(),
		})
	}
	if w.cfg.StatusEveryTicks > 0 && nowTick%uint64(w.cfg.StatusEveryTicks) == 0 {
		w.broadcastStatus(nowTick)
	}
}

// systemProduction ticks generator output and machine consumption
// against their ledgers, and has item producers mine into their own
// containers at the routing cadence.
func (w *World) systemProduction(nowTick uint64) {
	for _, pos := range w.sortedLedgerKeys() {
		caps, ok := w.capsAt(pos)
		if !ok || !caps.Terminal {
			continue
		}
		if caps.GenRate > 0 {
			w.ledgerAdd(pos, caps.GenRate)
		}
		if caps.UseRate > 0 {
			w.ledgerRemove(pos, caps.UseRate)
		}
	}
	if nowTick%uint64(w.cfg.ItemRouteEveryTicks) != 0 {
		return
	}
	for _, pos := range w.sortedContainerKeys() {
		caps, ok := w.capsAt(pos)
		if !ok || !caps.Terminal || caps.ProducesItem == "" || caps.GenRate <= 0 {
			continue
		}
		c := w.containers[pos]
		for i := int64(0); i < caps.GenRate; i++ {
			if !c.InsertOne(caps.ProducesItem) {
				break
			}
		}
	}
}

// systemEnergyFlow distributes from every registered energy source, in
// registration order, every tick.
func (w *World) systemEnergyFlow(nowTick uint64) {
	for _, reg := range w.energySources.Ordered() {
		if !w.validateSource(nowTick, w.energySources, reg) {
			continue
		}
		led := w.ledgers[reg.Pos]
		if led == nil || led.Amount <= 0 {
			continue
		}
		consumed := w.distributeEnergy(reg.Pos, led.Amount)
		if consumed <= 0 {
			continue
		}
		w.ledgerRemove(reg.Pos, consumed)
		w.energyMovedThisTick += consumed
		w.auditEvent(nowTick, "WORLD", "FLOW", reg.Pos, "", map[string]any{
			"consumed": consumed,
		})
	}
}

// systemItemRouting performs at most one one-unit transfer per source
// per pass, at the coarser item cadence.
func (w *World) systemItemRouting(nowTick uint64) {
	for _, reg := range w.itemSources.Ordered() {
		if !w.validateSource(nowTick, w.itemSources, reg) {
			continue
		}
		entry, ok := w.entryConduit(reg.Pos, catalogs.TagItem)
		if !ok {
			continue
		}
		moved := w.routeOneItem(reg.Pos, entry, reg)
		w.itemsMovedThisTick += int64(moved)
	}
}

// validateSource re-checks a registration. An unloaded region parks the
// entry for later reclaim; a loaded but ineligible cell unregisters it
// silently (audit only).
func (w *World) validateSource(nowTick uint64, reg *Registry, entry *Registration) bool {
	if !w.chunks.Loaded(entry.Pos) {
		reg.Unregister(entry.Pos)
		w.pending[entry.Pos] = entry
		w.auditEvent(nowTick, "WORLD", "SOURCE_PARKED", entry.Pos, "region unloaded", nil)
		return false
	}
	if !w.sourceEligible(entry.Pos, reg.Tag()) {
		reg.Unregister(entry.Pos)
		w.clearRegistration(entry.Pos)
		w.auditEvent(nowTick, "WORLD", "UNREGISTER", entry.Pos, "ineligible", nil)
		return false
	}
	entry.LastValidated = nowTick
	return true
}

// sourceEligible: the cell holds an output-capable terminal of the right
// kind with at least one dedicated-output conduit linking back to it.
func (w *World) sourceEligible(pos Vec3i, tag catalogs.ResourceTag) bool {
	caps, ok := w.capsAt(pos)
	if !ok || !caps.Terminal || !caps.CanOutput || caps.Tag != tag {
		return false
	}
	_, ok = w.entryConduit(pos, tag)
	return ok
}

// entryConduit finds the first dedicated-output conduit adjacent to the
// terminal that links back to it, in fixed direction order.
func (w *World) entryConduit(pos Vec3i, tag catalogs.ResourceTag) (Vec3i, bool) {
	for d := Dir(0); d < DirCount; d++ {
		np := neighborPos(pos, d)
		ncaps, ok := w.capsAt(np)
		if !ok || ncaps.ConduitKind != catalogs.ConduitOutput || ncaps.Tag != tag {
			continue
		}
		cs, ok := w.connState(np)
		if !ok {
			continue
		}
		if cs.Links[d.Opposite()] == LinkTerminal {
			return np, true
		}
	}
	return Vec3i{}, false
}

// registerSource registers the terminal at pos if it is an eligible
// source. Returns the entry, or nil.
func (w *World) registerSource(nowTick uint64, pos Vec3i) *Registration {
	caps, ok := w.capsAt(pos)
	if !ok || !caps.Terminal || !caps.CanOutput {
		return nil
	}
	registry := w.registryFor(caps.Tag)
	if registry == nil {
		return nil
	}
	if !w.sourceEligible(pos, caps.Tag) {
		return nil
	}
	if reg := registry.Get(pos); reg != nil {
		return reg
	}
	reg := registry.Register(pos, nowTick)
	delete(w.pending, pos)
	w.persistRegistration(reg)
	w.auditEvent(nowTick, "WORLD", "REGISTER", pos, "", map[string]any{"tag": string(caps.Tag)})
	return reg
}

func (w *World) unregisterSource(nowTick uint64, pos Vec3i, reason string) {
	removed := w.energySources.Unregister(pos)
	removed = w.itemSources.Unregister(pos) || removed
	if _, ok := w.pending[pos]; ok {
		delete(w.pending, pos)
		removed = true
	}
	if removed {
		w.clearRegistration(pos)
		w.auditEvent(nowTick, "WORLD", "UNREGISTER", pos, reason, nil)
	}
}

func (w *World) registryFor(tag catalogs.ResourceTag) *Registry {
	switch tag {
	case catalogs.TagEnergy:
		return w.energySources
	case catalogs.TagItem:
		return w.itemSources
	default:
		return nil
	}
}

// onTopologyChanged invalidates derived connection state around pos and
// re-evaluates source registrations for pos and its neighbors, so wiring
// a conduit next to an existing terminal picks it up without a rescan.
func (w *World) onTopologyChanged(nowTick uint64, pos Vec3i) {
	w.invalidateConn(pos)
	w.registerSource(nowTick, pos)
	for d := Dir(0); d < DirCount; d++ {
		w.registerSource(nowTick, neighborPos(pos, d))
	}
}

// rescanPending retries every parked registration whose region is loaded
// again.
func (w *World) rescanPending(nowTick uint64) {
	for _, pos := range sortedPendingKeys(w.pending) {
		w.reclaimOne(nowTick, pos)
	}
}

// reclaimRegion retries parked registrations inside one region,
// triggered opportunistically by a movement report near it.
func (w *World) reclaimRegion(nowTick uint64, k ChunkKey) {
	for _, pos := range sortedPendingKeys(w.pending) {
		if RegionOf(pos) != k {
			continue
		}
		w.reclaimOne(nowTick, pos)
	}
}

func (w *World) reclaimOne(nowTick uint64, pos Vec3i) {
	entry, ok := w.pending[pos]
	if !ok || !w.chunks.Loaded(pos) {
		return
	}
	if !w.sourceEligible(pos, entry.Tag) {
		delete(w.pending, pos)
		w.clearRegistration(pos)
		w.auditEvent(nowTick, "WORLD", "UNREGISTER", pos, "ineligible after reload", nil)
		return
	}
	registry := w.registryFor(entry.Tag)
	registry.Restore(entry)
	delete(w.pending, pos)
	w.auditEvent(nowTick, "WORLD", "SOURCE_RECLAIMED", pos, "", nil)
}

func sortedPendingKeys(m map[Vec3i]*Registration) []Vec3i {
	keys := make([]Vec3i, 0, len(m))
	for p := range m {
		keys = append(keys, p)
	}
	sortVec3i(keys)
	return keys
}

func (w *World) broadcastStatus(nowTick uint64) {
	if len(w.observers) == 0 {
		return
	}
	msg := protocol.TickStatusMsg{
		Type:          protocol.TypeTickStatus,
		Tick:          nowTick,
		EnergySources: w.energySources.Len(),
		ItemSources:   w.itemSources.Len(),
		EnergyMoved:   w.energyMovedThisTick,
		ItemsMoved:    w.itemsMovedThisTick,
		Digest:        w.stateDigest(),
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	for _, o := range w.observers {
		select {
		case o.Out <- b:
		default:
			// Slow observer; drop rather than stall the tick.
		}
	}
}
