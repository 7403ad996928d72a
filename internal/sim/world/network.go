package world

import (
	"fluxgrid.dev/internal/sim/catalogs"
)

// Network is the ephemeral result of one discovery call: the terminals
// reachable from a seed through connected conduits. It is rebuilt fresh
// per distribution pass and never persisted.
type Network struct {
	Terminals map[Vec3i]catalogs.Caps
	// Order preserves discovery order; the distribution sort uses it as
	// the stable tie-break.
	Order     []Vec3i
	Truncated bool
}

func (n *Network) record(pos Vec3i, caps catalogs.Caps) {
	if _, ok := n.Terminals[pos]; ok {
		return
	}
	n.Terminals[pos] = caps
	n.Order = append(n.Order, pos)
}

// discoverNetwork runs a breadth-first traversal over conduits starting
// at seed, collecting reachable terminals. Two hard caps bound the work:
// the network terminal cap and the visited budget (so a pure-conduit
// flood larger than the cap still terminates). The traversal only reads
// the grid; ledgers and inventories are untouched.
//
// Edges follow the classifier: plain conduits chain to any same-tag
// conduit, dedicated conduits never chain to another dedicated conduit,
// and terminals attach only through a dedicated conduit whose polarity
// predicate passes.
func (w *World) discoverNetwork(seed Vec3i, excludeSeed bool) *Network {
	net := &Network{Terminals: map[Vec3i]catalogs.Caps{}}

	seedCaps, ok := w.capsAt(seed)
	if !ok || (!seedCaps.Conduit() && !seedCaps.Terminal) {
		return net
	}

	visited := map[Vec3i]bool{seed: true}
	queue := []Vec3i{seed}

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		caps, ok := w.capsAt(p)
		if !ok {
			continue
		}

		if caps.Terminal {
			if !excludeSeed || p != seed {
				net.record(p, caps)
				if len(net.Terminals) >= w.cfg.NetworkMaxTerminals {
					net.Truncated = true
					return net
				}
			}
		}

		for d := Dir(0); d < DirCount; d++ {
			np := neighborPos(p, d)
			if visited[np] {
				continue
			}
			if !w.networkEdge(p, caps, d) {
				continue
			}
			if len(visited) >= w.cfg.NetworkVisitBudget {
				net.Truncated = true
				return net
			}
			visited[np] = true
			queue = append(queue, np)
		}
	}
	return net
}

// networkEdge reports whether traversal may step from p to its neighbor
// in direction d.
func (w *World) networkEdge(p Vec3i, caps catalogs.Caps, d Dir) bool {
	if caps.Conduit() {
		cs, ok := w.connState(p)
		if !ok {
			return false
		}
		return cs.Links[d] != LinkNone
	}
	if !caps.Terminal {
		return false
	}
	// From a terminal, the only valid step is onto a dedicated conduit
	// that itself links back to this terminal.
	np := neighborPos(p, d)
	ncaps, ok := w.capsAt(np)
	if !ok || !ncaps.Dedicated() || ncaps.Tag != caps.Tag {
		return false
	}
	cs, ok := w.connState(np)
	if !ok {
		return false
	}
	return cs.Links[d.Opposite()] == LinkTerminal
}
