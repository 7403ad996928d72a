package world

// Store is the durable key-value backing for ledgers and source
// registrations. Implemented in internal/persistence/ledgerdb; may be
// nil (tests, ephemeral worlds).
type Store interface {
	WriteBlock(pos [3]int, block string) error
	ClearBlock(pos [3]int) error
	WriteLedger(pos [3]int, amount, capacity int64) error
	ClearLedger(pos [3]int) error
	WriteRegistration(rec RegistrationRecord) error
	ClearRegistration(pos [3]int) error
}

// BlockRecord is a persisted player-placed (or broken-to-air) block.
type BlockRecord struct {
	Pos   [3]int
	Block string
}

// LedgerRecord is the persisted form of a terminal's resource account.
type LedgerRecord struct {
	Pos      [3]int
	Amount   int64
	Capacity int64
}

// RegistrationRecord is the wire form of a Registration for the store.
type RegistrationRecord struct {
	Pos            [3]int
	Tag            string
	RegionCX       int
	RegionCZ       int
	RRIndex        int
	RegisteredTick uint64
}

func (w *World) persistRegistration(reg *Registration) {
	if w.store == nil {
		return
	}
	rec := RegistrationRecord{
		Pos:            reg.Pos.ToArray(),
		Tag:            string(reg.Tag),
		RegionCX:       reg.Region.CX,
		RegionCZ:       reg.Region.CZ,
		RRIndex:        reg.RRIndex,
		RegisteredTick: reg.RegisteredTick,
	}
	if err := w.store.WriteRegistration(rec); err != nil {
		w.auditEvent(w.tick.Load(), "WORLD", "STORE_ERROR", reg.Pos, err.Error(), nil)
	}
}

func (w *World) persistBlock(pos Vec3i, block string) {
	if w.store == nil {
		return
	}
	if err := w.store.WriteBlock(pos.ToArray(), block); err != nil {
		w.auditEvent(w.tick.Load(), "WORLD", "STORE_ERROR", pos, err.Error(), nil)
	}
}

func (w *World) clearBlock(pos Vec3i) {
	if w.store == nil {
		return
	}
	if err := w.store.ClearBlock(pos.ToArray()); err != nil {
		w.auditEvent(w.tick.Load(), "WORLD", "STORE_ERROR", pos, err.Error(), nil)
	}
}

func (w *World) clearRegistration(pos Vec3i) {
	if w.store == nil {
		return
	}
	if err := w.store.ClearRegistration(pos.ToArray()); err != nil {
		w.auditEvent(w.tick.Load(), "WORLD", "STORE_ERROR", pos, err.Error(), nil)
	}
}
