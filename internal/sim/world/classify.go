package world

import (
	"fluxgrid.dev/internal/sim/catalogs"
)

// LinkState classifies one direction of a conduit's connection record.
type LinkState uint8

const (
	LinkNone LinkState = iota
	LinkConduit
	LinkTerminal
)

func (s LinkState) String() string {
	switch s {
	case LinkConduit:
		return "conduit"
	case LinkTerminal:
		return "terminal"
	default:
		return "none"
	}
}

// ConnState is the cached six-direction connection record of a conduit.
type ConnState struct {
	Links [6]LinkState
}

func (cs ConnState) LinkedCount() int {
	n := 0
	for _, l := range cs.Links {
		if l != LinkNone {
			n++
		}
	}
	return n
}

// Pattern is the display shape derived from a connection record.
type Pattern string

const (
	PatternIsolated  Pattern = "isolated"
	PatternTerminal  Pattern = "terminal"
	PatternStraight  Pattern = "straight"
	PatternCorner    Pattern = "corner"
	PatternTJunction Pattern = "tjunction"
	PatternCross     Pattern = "cross"
	PatternFiveWay   Pattern = "fiveway"
	PatternAll       Pattern = "all"
)

func (cs ConnState) Pattern() Pattern {
	switch cs.LinkedCount() {
	case 0:
		return PatternIsolated
	case 1:
		return PatternTerminal
	case 2:
		// Opposite pairs share all direction bits but the lowest.
		var linked []Dir
		for d := Dir(0); d < DirCount; d++ {
			if cs.Links[d] != LinkNone {
				linked = append(linked, d)
			}
		}
		if linked[0].Opposite() == linked[1] {
			return PatternStraight
		}
		return PatternCorner
	case 3:
		return PatternTJunction
	case 4:
		return PatternCross
	case 5:
		return PatternFiveWay
	default:
		return PatternAll
	}
}

// PolarityRules are the resource-kind-specific predicates that decide
// whether a dedicated conduit pairs with a given terminal. Energy and
// item transport supply different predicates; the classifier itself
// stays resource-agnostic.
type PolarityRules struct {
	// AcceptsDelivery reports whether the terminal at pos can take the
	// resource handed over by an adjacent output-dedicated conduit.
	AcceptsDelivery func(pos Vec3i, caps catalogs.Caps) bool
	// SuppliesPickup reports whether the terminal at pos can hand the
	// resource to an adjacent input-dedicated conduit.
	SuppliesPickup func(pos Vec3i, caps catalogs.Caps) bool
}

// capsAt resolves the capability set of the occupant at pos. ok=false
// means transient absence (region unloaded or out of bounds); callers
// treat that as "no occupant".
func (w *World) capsAt(pos Vec3i) (catalogs.Caps, bool) {
	b, ok := w.chunks.GetBlock(pos)
	if !ok {
		return catalogs.Caps{}, false
	}
	return w.catalogs.Blocks.Caps[b], true
}

// classify computes the link state of one direction of the conduit at
// pos. Rules, in order: absent neighbor never links; dedicated conduits
// never chain to other dedicated conduits; plain conduits link to any
// same-tag conduit and never directly to a terminal; dedicated conduits
// link to plain conduits unconditionally and to terminals iff the
// polarity predicate for the resource kind passes.
func (w *World) classify(pos Vec3i, caps catalogs.Caps, d Dir) LinkState {
	np := neighborPos(pos, d)
	ncaps, ok := w.capsAt(np)
	if !ok {
		return LinkNone
	}

	if ncaps.Conduit() && ncaps.Tag == caps.Tag {
		if caps.Dedicated() && ncaps.Dedicated() {
			return LinkNone
		}
		return LinkConduit
	}

	if !caps.Dedicated() {
		return LinkNone
	}
	if !ncaps.Terminal || ncaps.Tag != caps.Tag {
		return LinkNone
	}
	rules, ok := w.rules[caps.Tag]
	if !ok {
		return LinkNone
	}
	switch caps.ConduitKind {
	case catalogs.ConduitOutput:
		// An output conduit feeds terminals that accept delivery, and is
		// also the push-out port of supplying terminals (a source counts
		// an adjacent output conduit as its network entry).
		if rules.AcceptsDelivery(np, ncaps) || rules.SuppliesPickup(np, ncaps) {
			return LinkTerminal
		}
	case catalogs.ConduitInput:
		if rules.SuppliesPickup(np, ncaps) {
			return LinkTerminal
		}
	}
	return LinkNone
}

// connState returns the six-direction record for the conduit at pos,
// serving from the cache when valid. ok=false when pos does not hold a
// conduit (or is absent).
func (w *World) connState(pos Vec3i) (ConnState, bool) {
	caps, ok := w.capsAt(pos)
	if !ok || !caps.Conduit() {
		return ConnState{}, false
	}
	if cs, ok := w.connCache[pos]; ok {
		return cs, true
	}
	var cs ConnState
	for d := Dir(0); d < DirCount; d++ {
		cs.Links[d] = w.classify(pos, caps, d)
	}
	w.connCache[pos] = cs
	return cs, true
}

// invalidateConn drops the cached connection records of pos and its six
// neighbors. Must be called synchronously on every topology change;
// stale records are the only correctness hazard in this single-threaded
// model.
func (w *World) invalidateConn(pos Vec3i) {
	delete(w.connCache, pos)
	for d := Dir(0); d < DirCount; d++ {
		delete(w.connCache, neighborPos(pos, d))
	}
}
