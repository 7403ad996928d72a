package world

import (
	"testing"
)

// Generator -> output cable -> plain cables -> output cable -> assembler.
// A single receiver gets everything that fits, in one tick.
func TestEnergyFlow_SingleReceiverFullTransfer(t *testing.T) {
	w := mustWorld(t, WorldConfig{Height: 32})
	gen := Vec3i{X: 0, Y: 10, Z: 0}
	asm := Vec3i{X: 5, Y: 10, Z: 0}
	lineX(t, w, gen, "GENERATOR", "CABLE_OUT", "CABLE", "CABLE", "CABLE_OUT", "ASSEMBLER")

	if w.energySources.Len() != 1 {
		t.Fatalf("energy sources=%d want 1", w.energySources.Len())
	}

	w.ledgers[gen].Amount = 100
	w.step(nil, nil, nil)

	// Production first (+40 gen), then the whole balance moves.
	if got := w.ledgers[gen].Amount; got != 0 {
		t.Fatalf("generator amount=%d want 0", got)
	}
	if got := w.ledgers[asm].Amount; got != 140 {
		t.Fatalf("assembler amount=%d want 140", got)
	}
	if w.energyMovedThisTick != 140 {
		t.Fatalf("energy moved=%d want 140", w.energyMovedThisTick)
	}
}

func TestEnergyFlow_RespectsReceiverCapacity(t *testing.T) {
	w := mustWorld(t, WorldConfig{Height: 32})
	gen := Vec3i{X: 0, Y: 10, Z: 0}
	asm := Vec3i{X: 2, Y: 10, Z: 0}
	lineX(t, w, gen, "GENERATOR", "CABLE_OUT", "ASSEMBLER")

	w.ledgers[gen].Amount = 60
	w.ledgers[asm].Amount = 1990
	w.step(nil, nil, nil)

	// Production: generator 60+40, assembler 1990-20. The transfer then
	// fills the assembler to capacity and not a unit beyond.
	if got := w.ledgers[asm].Amount; got != 2000 {
		t.Fatalf("assembler amount=%d want 2000", got)
	}
	if got := w.ledgers[gen].Amount; got != 70 {
		t.Fatalf("generator amount=%d want 70", got)
	}
}

// twoBranchNet wires one source terminal to two assemblers via a plain
// spine. The first assembler (along +X) is discovered before the second
// (along +Z).
func twoBranchNet(t *testing.T, w *World, source string) (src, asm1, asm2 Vec3i) {
	t.Helper()
	src = Vec3i{X: 0, Y: 10, Z: 0}
	asm1 = Vec3i{X: 4, Y: 10, Z: 0}
	asm2 = Vec3i{X: 2, Y: 10, Z: 3}
	mustPlace(t, w, src, source)
	mustPlace(t, w, Vec3i{X: 1, Y: 10, Z: 0}, "CABLE_OUT")
	mustPlace(t, w, Vec3i{X: 2, Y: 10, Z: 0}, "CABLE")
	mustPlace(t, w, Vec3i{X: 3, Y: 10, Z: 0}, "CABLE_OUT")
	mustPlace(t, w, asm1, "ASSEMBLER")
	mustPlace(t, w, Vec3i{X: 2, Y: 10, Z: 1}, "CABLE")
	mustPlace(t, w, Vec3i{X: 2, Y: 10, Z: 2}, "CABLE_OUT")
	mustPlace(t, w, asm2, "ASSEMBLER")
	return src, asm1, asm2
}

func TestEnergyFlow_StorageSourcePushesLeftover(t *testing.T) {
	w := mustWorld(t, WorldConfig{Height: 32})
	src, asm1, asm2 := twoBranchNet(t, w, "BATTERY")

	w.ledgers[src].Amount = 101
	w.step(nil, nil, nil)

	// Equal shares floor to 50; the odd unit goes to the first ranked
	// receiver because the source is storage.
	if got := w.ledgers[asm1].Amount; got != 51 {
		t.Fatalf("first receiver amount=%d want 51", got)
	}
	if got := w.ledgers[asm2].Amount; got != 50 {
		t.Fatalf("second receiver amount=%d want 50", got)
	}
	if got := w.ledgers[src].Amount; got != 0 {
		t.Fatalf("battery amount=%d want 0", got)
	}
}

func TestEnergyFlow_GeneratorKeepsLeftover(t *testing.T) {
	w := mustWorld(t, WorldConfig{Height: 32})
	src, asm1, asm2 := twoBranchNet(t, w, "GENERATOR")

	w.ledgers[src].Amount = 61
	w.step(nil, nil, nil)

	// Available 101 after production. Shares of 50 each; the odd unit
	// stays on the generator.
	if got := w.ledgers[asm1].Amount; got != 50 {
		t.Fatalf("first receiver amount=%d want 50", got)
	}
	if got := w.ledgers[asm2].Amount; got != 50 {
		t.Fatalf("second receiver amount=%d want 50", got)
	}
	if got := w.ledgers[src].Amount; got != 1 {
		t.Fatalf("generator amount=%d want 1", got)
	}
}

func TestDistributeEnergy_ConservesAndClamps(t *testing.T) {
	w := mustWorld(t, WorldConfig{Height: 32})
	src, asm1, asm2 := twoBranchNet(t, w, "BATTERY")

	w.ledgers[asm1].Amount = 1990 // headroom 10
	before := w.ledgers[asm1].Amount + w.ledgers[asm2].Amount

	consumed := w.distributeEnergy(src, 500)

	after := w.ledgers[asm1].Amount + w.ledgers[asm2].Amount
	if after-before != consumed {
		t.Fatalf("credited %d but consumed %d", after-before, consumed)
	}
	if consumed > 500 {
		t.Fatalf("consumed=%d exceeds available", consumed)
	}
	if w.ledgers[asm1].Amount > 2000 || w.ledgers[asm2].Amount > 2000 {
		t.Fatalf("receiver over capacity: %d/%d", w.ledgers[asm1].Amount, w.ledgers[asm2].Amount)
	}
	// Nearly-full asm1 ranks below empty asm2; it still only takes its
	// headroom, and the storage leftover lands on asm2.
	if got := w.ledgers[asm1].Amount; got != 2000 {
		t.Fatalf("asm1 amount=%d want 2000", got)
	}
	if got := w.ledgers[asm2].Amount; got != 490 {
		t.Fatalf("asm2 amount=%d want 490", got)
	}
	if consumed != 500 {
		t.Fatalf("consumed=%d want 500", consumed)
	}
}

func TestDistributeEnergy_NoReceiversOrNoAmount(t *testing.T) {
	w := mustWorld(t, WorldConfig{Height: 32})
	gen := Vec3i{X: 0, Y: 10, Z: 0}
	lineX(t, w, gen, "GENERATOR", "CABLE_OUT", "CABLE")

	if got := w.distributeEnergy(gen, 100); got != 0 {
		t.Fatalf("consumed=%d with no receivers", got)
	}
	if got := w.distributeEnergy(gen, 0); got != 0 {
		t.Fatalf("consumed=%d with nothing available", got)
	}
	// Not a source position at all.
	if got := w.distributeEnergy(Vec3i{X: 9, Y: 10, Z: 9}, 100); got != 0 {
		t.Fatalf("consumed=%d from empty cell", got)
	}
}

func TestEligibleReceivers_RankByPriorityAndFill(t *testing.T) {
	w := mustWorld(t, WorldConfig{Height: 32})

	// Source feeds a battery (base priority 10) and an assembler (20).
	src := Vec3i{X: 0, Y: 10, Z: 0}
	bat := Vec3i{X: 2, Y: 10, Z: 3}
	asm := Vec3i{X: 4, Y: 10, Z: 0}
	mustPlace(t, w, src, "GENERATOR")
	mustPlace(t, w, Vec3i{X: 1, Y: 10, Z: 0}, "CABLE_OUT")
	mustPlace(t, w, Vec3i{X: 2, Y: 10, Z: 0}, "CABLE")
	mustPlace(t, w, Vec3i{X: 3, Y: 10, Z: 0}, "CABLE_OUT")
	mustPlace(t, w, asm, "ASSEMBLER")
	mustPlace(t, w, Vec3i{X: 2, Y: 10, Z: 1}, "CABLE")
	mustPlace(t, w, Vec3i{X: 2, Y: 10, Z: 2}, "CABLE_OUT")
	mustPlace(t, w, bat, "BATTERY")

	net := w.discoverNetwork(src, true)

	// Empty assembler outranks the battery outright.
	rec := w.eligibleEnergyReceivers(net)
	if len(rec) != 2 || rec[0].pos != asm || rec[1].pos != bat {
		t.Fatalf("order=%v want [asm bat]", receiverPositions(rec))
	}

	// A nearly full assembler pays a fill penalty but 20-9 still beats
	// the empty battery's 10.
	w.ledgers[asm].Amount = 1990
	rec = w.eligibleEnergyReceivers(net)
	if len(rec) != 2 || rec[0].pos != asm {
		t.Fatalf("order=%v want asm first", receiverPositions(rec))
	}

	// At capacity it drops out entirely.
	w.ledgers[asm].Amount = 2000
	rec = w.eligibleEnergyReceivers(net)
	if len(rec) != 1 || rec[0].pos != bat {
		t.Fatalf("order=%v want [bat]", receiverPositions(rec))
	}
}

func receiverPositions(rec []energyReceiver) []Vec3i {
	out := make([]Vec3i, len(rec))
	for i, r := range rec {
		out[i] = r.pos
	}
	return out
}
