package ledgerdb

import (
	"path/filepath"
	"sync"
	"testing"

	"fluxgrid.dev/internal/sim/world"
)

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := db.WriteBlock([3]int{1, 10, 2}, "GENERATOR"); err != nil {
		t.Fatalf("write block: %v", err)
	}
	if err := db.WriteBlock([3]int{3, 10, 2}, "CABLE"); err != nil {
		t.Fatalf("write block: %v", err)
	}
	if err := db.ClearBlock([3]int{3, 10, 2}); err != nil {
		t.Fatalf("clear block: %v", err)
	}

	if err := db.WriteLedger([3]int{1, 10, 2}, 100, 4000); err != nil {
		t.Fatalf("write ledger: %v", err)
	}
	// Later balance overwrites, never appends.
	if err := db.WriteLedger([3]int{1, 10, 2}, 250, 4000); err != nil {
		t.Fatalf("write ledger: %v", err)
	}

	if err := db.WriteRegistration(world.RegistrationRecord{
		Pos: [3]int{1, 10, 2}, Tag: "energy", RegionCX: 0, RegionCZ: 0,
		RRIndex: 3, RegisteredTick: 17,
	}); err != nil {
		t.Fatalf("write registration: %v", err)
	}
	if err := db.WriteRegistration(world.RegistrationRecord{
		Pos: [3]int{9, 10, 9}, Tag: "item", RegisteredTick: 5,
	}); err != nil {
		t.Fatalf("write registration: %v", err)
	}

	// Close drains the writer queue; reopen reads the durable state.
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	blocks, err := db.LoadBlocks()
	if err != nil {
		t.Fatalf("load blocks: %v", err)
	}
	if len(blocks) != 1 || blocks[0].Block != "GENERATOR" || blocks[0].Pos != [3]int{1, 10, 2} {
		t.Fatalf("blocks=%+v", blocks)
	}

	ledgers, err := db.LoadLedgers()
	if err != nil {
		t.Fatalf("load ledgers: %v", err)
	}
	if len(ledgers) != 1 || ledgers[0].Amount != 250 || ledgers[0].Capacity != 4000 {
		t.Fatalf("ledgers=%+v", ledgers)
	}

	regs, err := db.LoadRegistrations()
	if err != nil {
		t.Fatalf("load registrations: %v", err)
	}
	if len(regs) != 2 {
		t.Fatalf("registrations=%+v", regs)
	}
	// Ordered by registration tick so restore keeps scheduler order.
	if regs[0].Tag != "item" || regs[1].RRIndex != 3 {
		t.Fatalf("registration order=%+v", regs)
	}
}

func TestClearRegistration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := db.WriteRegistration(world.RegistrationRecord{Pos: [3]int{1, 2, 3}, Tag: "energy"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := db.ClearRegistration([3]int{1, 2, 3}); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	regs, err := db.LoadRegistrations()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(regs) != 0 {
		t.Fatalf("registrations=%+v want empty", regs)
	}
}

func TestWriteAfterCloseIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// Late writes from a winding-down world must not panic.
	if err := db.WriteLedger([3]int{0, 0, 0}, 1, 1); err != nil {
		t.Fatalf("write after close: %v", err)
	}
}

func TestCloseDuringConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	// A tick loop mid-step keeps writing while Close runs; the overlap
	// must never hit a closed channel.
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				_ = db.WriteLedger([3]int{g, 10, i}, int64(i), 4000)
				_ = db.WriteBlock([3]int{g, 10, i}, "CABLE")
			}
		}(g)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	wg.Wait()
}
