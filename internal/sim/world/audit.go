package world

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type TickLogEntry struct {
	Tick          uint64 `json:"tick"`
	EnergySources int    `json:"energy_sources"`
	ItemSources   int    `json:"item_sources"`
	EnergyMoved   int64  `json:"energy_moved"`
	ItemsMoved    int64  `json:"items_moved"`
	Digest        string `json:"digest"`
}

type AuditEntry struct {
	Tick   uint64         `json:"tick"`
	Actor  string         `json:"actor"`
	Action string         `json:"action"` // e.g. "PLACE", "FLOW", "ITEM_ROUTE"
	Pos    [3]int         `json:"pos"`
	Reason string         `json:"reason,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

func (w *World) auditEvent(nowTick uint64, actor, action string, pos Vec3i, reason string, extra map[string]any) {
	if w.auditLogger == nil {
		return
	}
	entry := AuditEntry{
		Tick:   nowTick,
		Actor:  actor,
		Action: action,
		Pos:    pos.ToArray(),
		Reason: reason,
		Extra:  extra,
	}
	// A failing log sink must never stall the tick.
	_ = w.auditLogger.WriteAudit(entry)
}
