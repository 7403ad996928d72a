package world

import "sort"

// Ledger is the persistent resource account of an energy terminal.
// Every mutation path clamps so 0 <= Amount <= Capacity holds at rest.
type Ledger struct {
	Amount   int64
	Capacity int64
}

func (l *Ledger) Headroom() int64 { return l.Capacity - l.Amount }

// Add credits up to n and returns the amount actually applied.
func (l *Ledger) Add(n int64) int64 {
	if n <= 0 {
		return 0
	}
	if n > l.Headroom() {
		n = l.Headroom()
	}
	l.Amount += n
	return n
}

// Remove debits up to n and returns the amount actually removed.
func (l *Ledger) Remove(n int64) int64 {
	if n <= 0 {
		return 0
	}
	if n > l.Amount {
		n = l.Amount
	}
	l.Amount -= n
	return n
}

func (l *Ledger) FillFraction() float64 {
	if l.Capacity <= 0 {
		return 1
	}
	return float64(l.Amount) / float64(l.Capacity)
}

// ledgerAdd credits the ledger at pos and mirrors the new balance to the
// durable store.
func (w *World) ledgerAdd(pos Vec3i, n int64) int64 {
	l := w.ledgers[pos]
	if l == nil {
		return 0
	}
	applied := l.Add(n)
	if applied != 0 {
		w.persistLedger(pos, l)
	}
	return applied
}

func (w *World) ledgerRemove(pos Vec3i, n int64) int64 {
	l := w.ledgers[pos]
	if l == nil {
		return 0
	}
	removed := l.Remove(n)
	if removed != 0 {
		w.persistLedger(pos, l)
	}
	return removed
}

func (w *World) persistLedger(pos Vec3i, l *Ledger) {
	if w.store == nil {
		return
	}
	if err := w.store.WriteLedger(pos.ToArray(), l.Amount, l.Capacity); err != nil {
		w.auditEvent(w.tick.Load(), "WORLD", "STORE_ERROR", pos, err.Error(), nil)
	}
}

// dropLedger clears the entry entirely (not merely zeroes it) so stale
// keys are not retained after unregistration.
func (w *World) dropLedger(pos Vec3i) {
	if _, ok := w.ledgers[pos]; !ok {
		return
	}
	delete(w.ledgers, pos)
	if w.store != nil {
		if err := w.store.ClearLedger(pos.ToArray()); err != nil {
			w.auditEvent(w.tick.Load(), "WORLD", "STORE_ERROR", pos, err.Error(), nil)
		}
	}
}

func (w *World) sortedLedgerKeys() []Vec3i {
	keys := make([]Vec3i, 0, len(w.ledgers))
	for p := range w.ledgers {
		keys = append(keys, p)
	}
	sort.Slice(keys, func(i, j int) bool { return lessVec3i(keys[i], keys[j]) })
	return keys
}

func sortVec3i(keys []Vec3i) {
	sort.Slice(keys, func(i, j int) bool { return lessVec3i(keys[i], keys[j]) })
}

func lessVec3i(a, b Vec3i) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.Z < b.Z
}
