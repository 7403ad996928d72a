package world

import (
	"sort"

	"fluxgrid.dev/internal/sim/catalogs"
)

type energyReceiver struct {
	pos   Vec3i
	caps  catalogs.Caps
	led   *Ledger
	score int
}

// distributeEnergy apportions up to available units from the source
// terminal among the receivers of its discovered network and returns the
// amount consumed. The caller debits exactly that amount from the source
// ledger. Never fabricates energy: the sum of receiver credits equals
// the return value, and no receiver exceeds its capacity.
func (w *World) distributeEnergy(source Vec3i, available int64) int64 {
	if available <= 0 {
		return 0
	}
	srcCaps, ok := w.capsAt(source)
	if !ok || !srcCaps.CanOutput || srcCaps.Tag != catalogs.TagEnergy {
		return 0
	}

	net := w.discoverNetwork(source, true)
	receivers := w.eligibleEnergyReceivers(net)
	if len(receivers) == 0 {
		return 0
	}

	// Single receiver: hand over everything that fits, no splitting.
	if len(receivers) == 1 {
		applied := receivers[0].led.Add(available)
		if applied > 0 {
			w.persistLedger(receivers[0].pos, receivers[0].led)
		}
		return applied
	}

	// Ranked equal-share pass.
	share := available / int64(len(receivers))
	remaining := available
	var consumed int64
	for _, r := range receivers {
		if remaining <= 0 {
			break
		}
		give := share
		if give > remaining {
			give = remaining
		}
		applied := r.led.Add(give)
		if applied > 0 {
			w.persistLedger(r.pos, r.led)
		}
		consumed += applied
		remaining -= applied
	}

	// Storage sources push leftover (from headroom-capped shares) to the
	// first receiver that can still take it, without re-ranking.
	if remaining > 0 && srcCaps.IsStorage {
		for _, r := range receivers {
			if r.led.Headroom() <= 0 {
				continue
			}
			applied := r.led.Add(remaining)
			if applied > 0 {
				w.persistLedger(r.pos, r.led)
			}
			consumed += applied
			remaining -= applied
			break
		}
	}
	return consumed
}

// eligibleEnergyReceivers filters the network to input-capable terminals
// with headroom and ranks them: catalog base priority minus a fill-level
// penalty, so nearly-empty receivers come first. Stable sort keeps
// discovery order on ties.
func (w *World) eligibleEnergyReceivers(net *Network) []energyReceiver {
	receivers := make([]energyReceiver, 0, len(net.Order))
	for _, pos := range net.Order {
		caps := net.Terminals[pos]
		if !caps.CanInput || caps.Tag != catalogs.TagEnergy {
			continue
		}
		led := w.ledgers[pos]
		if led == nil || led.Headroom() <= 0 {
			continue
		}
		score := caps.BasePriority - int(led.FillFraction()*float64(w.cfg.FillPenaltyScale))
		receivers = append(receivers, energyReceiver{pos: pos, caps: caps, led: led, score: score})
	}
	sort.SliceStable(receivers, func(i, j int) bool {
		return receivers[i].score > receivers[j].score
	})
	return receivers
}
