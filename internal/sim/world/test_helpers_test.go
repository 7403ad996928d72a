package world

import (
	"testing"

	"fluxgrid.dev/internal/sim/catalogs"
)

func mustWorld(t *testing.T, cfg WorldConfig) *World {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	if cfg.ID == "" {
		cfg.ID = "test"
	}
	w, err := New(cfg, cats)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	return w
}

// mustPlace installs a block bypassing the act queue, with the same side
// effects a PLACE act has (ledger/container creation, topology refresh,
// source registration).
func mustPlace(t *testing.T, w *World, pos Vec3i, block string) {
	t.Helper()
	id, ok := w.catalogs.Blocks.Index[block]
	if !ok {
		t.Fatalf("unknown block %q", block)
	}
	if cur, loaded := w.chunks.GetBlock(pos); loaded && cur != w.airID() {
		t.Fatalf("occupied at %+v by %s", pos, w.catalogs.Blocks.Palette[cur])
	}
	if !w.chunks.SetBlock(pos, id) {
		t.Fatalf("out of bounds: %+v", pos)
	}
	w.onPlace(w.CurrentTick(), "T1", pos, block, id)
}

func mustBreak(t *testing.T, w *World, pos Vec3i) {
	t.Helper()
	cur, loaded := w.chunks.GetBlock(pos)
	if !loaded {
		t.Fatalf("region not loaded at %+v", pos)
	}
	if cur == w.airID() {
		t.Fatalf("nothing to break at %+v", pos)
	}
	caps := w.catalogs.Blocks.Caps[cur]
	w.chunks.SetBlock(pos, w.airID())
	w.onBreak(w.CurrentTick(), "T1", pos, cur, caps.Terminal)
}

// lineX places blocks along +X starting at from, one block per id.
func lineX(t *testing.T, w *World, from Vec3i, blocks ...string) []Vec3i {
	t.Helper()
	out := make([]Vec3i, 0, len(blocks))
	for i, b := range blocks {
		p := Vec3i{X: from.X + i, Y: from.Y, Z: from.Z}
		mustPlace(t, w, p, b)
		out = append(out, p)
	}
	return out
}

func stepN(w *World, n int) {
	for i := 0; i < n; i++ {
		w.step(nil, nil, nil)
	}
}
