package world

import (
	"encoding/json"

	"fluxgrid.dev/internal/protocol"
	"fluxgrid.dev/internal/sim/catalogs"
)

// applyAct performs one queued PLACE/BREAK mutation and reports the
// result back to the requesting observer. A bad act never stops the
// tick; it just fails its own result.
func (w *World) applyAct(nowTick uint64, env ActEnvelope) {
	act := env.Act
	pos := FromArray(act.Pos)

	fail := func(code, detail string) {
		w.sendToObserver(env.ObserverID, protocol.ActResultMsg{
			Type:      protocol.TypeActResult,
			ID:        act.ID,
			Tick:      nowTick,
			OK:        false,
			ErrorCode: code,
			Detail:    detail,
		})
	}

	switch act.Op {
	case "PLACE":
		blockID, ok := w.catalogs.Blocks.Index[act.Block]
		if !ok {
			fail(protocol.ErrUnknownBlock, act.Block)
			return
		}
		cur, loaded := w.chunks.GetBlock(pos)
		if loaded && cur != w.airID() {
			fail(protocol.ErrInvalidTarget, "occupied")
			return
		}
		if !w.chunks.SetBlock(pos, blockID) {
			fail(protocol.ErrInvalidTarget, "out of bounds")
			return
		}
		w.onPlace(nowTick, env.ObserverID, pos, act.Block, blockID)
	case "BREAK":
		cur, loaded := w.chunks.GetBlock(pos)
		if !loaded {
			fail(protocol.ErrNotLoaded, "")
			return
		}
		if cur == w.airID() {
			fail(protocol.ErrInvalidTarget, "empty")
			return
		}
		caps := w.catalogs.Blocks.Caps[cur]
		if !w.blockBreakable(cur) {
			fail(protocol.ErrInvalidTarget, "unbreakable")
			return
		}
		w.chunks.SetBlock(pos, w.airID())
		w.onBreak(nowTick, env.ObserverID, pos, cur, caps.Terminal)
	default:
		fail(protocol.ErrBadRequest, "op must be PLACE or BREAK")
		return
	}

	w.sendToObserver(env.ObserverID, protocol.ActResultMsg{
		Type: protocol.TypeActResult,
		ID:   act.ID,
		Tick: nowTick,
		OK:   true,
	})
}

func (w *World) onPlace(nowTick uint64, actor string, pos Vec3i, block string, blockID uint16) {
	caps := w.catalogs.Blocks.Caps[blockID]
	if caps.Terminal {
		// Ledger/inventory is created zeroed at placement.
		switch caps.Tag {
		case catalogs.TagEnergy:
			w.ledgers[pos] = &Ledger{Capacity: caps.Capacity}
			w.persistLedger(pos, w.ledgers[pos])
		case catalogs.TagItem:
			w.containers[pos] = &Container{Block: block, Pos: pos, Capacity: int(caps.Capacity)}
		}
	}
	w.persistBlock(pos, block)
	w.onTopologyChanged(nowTick, pos)
	w.auditEvent(nowTick, actor, "PLACE", pos, "", map[string]any{"block": block})
}

func (w *World) onBreak(nowTick uint64, actor string, pos Vec3i, prev uint16, wasTerminal bool) {
	if wasTerminal {
		w.dropLedger(pos)
		delete(w.containers, pos)
	}
	w.unregisterSource(nowTick, pos, "removed")
	w.clearBlock(pos)
	w.onTopologyChanged(nowTick, pos)
	w.auditEvent(nowTick, actor, "BREAK", pos, "", map[string]any{
		"block": w.catalogs.Blocks.Palette[prev],
	})
}

func (w *World) airID() uint16 { return w.chunks.gen.Air }

func (w *World) blockBreakable(id uint16) bool {
	name := w.catalogs.Blocks.Palette[id]
	return w.catalogs.Blocks.Defs[name].Breakable
}

func (w *World) answerQuery(nowTick uint64, q QueryEnvelope) {
	switch {
	case q.Conn != nil:
		w.answerConnQuery(nowTick, q.ObserverID, q.Conn)
	case q.Network != nil:
		w.answerNetworkQuery(nowTick, q.ObserverID, q.Network)
	}
}

func (w *World) answerConnQuery(nowTick uint64, observerID string, q *protocol.QueryConnMsg) {
	pos := FromArray(q.Pos)
	msg := protocol.ConnInfoMsg{
		Type: protocol.TypeConnInfo,
		ID:   q.ID,
		Tick: nowTick,
		Pos:  q.Pos,
	}
	if b, ok := w.chunks.GetBlock(pos); ok {
		msg.Block = w.catalogs.Blocks.Palette[b]
	}
	cs, ok := w.connState(pos)
	if ok {
		for d := Dir(0); d < DirCount; d++ {
			msg.Links[d] = cs.Links[d].String()
		}
		msg.Pattern = string(cs.Pattern())
	} else {
		for d := Dir(0); d < DirCount; d++ {
			msg.Links[d] = LinkNone.String()
		}
		msg.Pattern = string(PatternIsolated)
	}
	w.sendToObserver(observerID, msg)
}

func (w *World) answerNetworkQuery(nowTick uint64, observerID string, q *protocol.QueryNetworkMsg) {
	pos := FromArray(q.Pos)
	net := w.discoverNetwork(pos, false)
	msg := protocol.NetworkInfoMsg{
		Type:      protocol.TypeNetworkInfo,
		ID:        q.ID,
		Tick:      nowTick,
		Seed:      q.Pos,
		Truncated: net.Truncated,
		Terminals: make([]protocol.NetworkTerminal, 0, len(net.Order)),
	}
	for _, p := range net.Order {
		caps := net.Terminals[p]
		t := protocol.NetworkTerminal{
			Pos:       p.ToArray(),
			CanInput:  caps.CanInput,
			CanOutput: caps.CanOutput,
			IsStorage: caps.IsStorage,
			Capacity:  caps.Capacity,
		}
		if b, ok := w.chunks.GetBlock(p); ok {
			t.Block = w.catalogs.Blocks.Palette[b]
		}
		if l := w.ledgers[p]; l != nil {
			t.Amount = l.Amount
		} else if c := w.containers[p]; c != nil {
			t.Amount = int64(c.TotalUnits())
			t.Capacity = int64(c.Capacity)
		}
		msg.Terminals = append(msg.Terminals, t)
	}
	w.sendToObserver(observerID, msg)
}

func (w *World) sendToObserver(id string, v any) {
	if id == "" {
		return
	}
	o := w.observers[id]
	if o == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case o.Out <- b:
	default:
	}
}
