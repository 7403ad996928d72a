// Package ledgerdb is the durable store for the simulation: placed
// blocks, terminal resource ledgers, and source registrations survive
// process restarts here. Writes are funneled through a single writer
// goroutine so the tick loop never waits on fsync.
package ledgerdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"fluxgrid.dev/internal/sim/world"
)

type DB struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	// mu orders send against Close: a send holds the read lock for the
	// whole check-then-send, so Close cannot close ch underneath it.
	mu     sync.RWMutex
	closed bool
}

type reqKind int

const (
	reqBlock reqKind = iota + 1
	reqBlockClear
	reqLedger
	reqLedgerClear
	reqRegistration
	reqRegistrationClear
)

type req struct {
	kind reqKind

	pos   [3]int
	block string

	amount   int64
	capacity int64

	reg world.RegistrationRecord
}

func Open(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &DB{
		db: db,
		// Large buffer: a busy tick may rewrite many ledgers at once.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the steady upsert workload; NORMAL is a fair
	// durability/perf tradeoff for state we can also rebuild from audit
	// logs.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS blocks (
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			block TEXT NOT NULL,
			PRIMARY KEY (x, y, z)
		);`,
		`CREATE TABLE IF NOT EXISTS ledgers (
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			amount INTEGER NOT NULL,
			capacity INTEGER NOT NULL,
			PRIMARY KEY (x, y, z)
		);`,
		`CREATE TABLE IF NOT EXISTS registrations (
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			tag TEXT NOT NULL,
			region_cx INTEGER NOT NULL,
			region_cz INTEGER NOT NULL,
			rr_index INTEGER NOT NULL,
			registered_tick INTEGER NOT NULL,
			PRIMARY KEY (x, y, z)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_registrations_region ON registrations(region_cx, region_cz);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *DB) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *DB) loop() {
	for r := range s.ch {
		var err error
		switch r.kind {
		case reqBlock:
			_, err = s.db.Exec(
				`INSERT INTO blocks(x,y,z,block) VALUES(?,?,?,?)
				 ON CONFLICT(x,y,z) DO UPDATE SET block=excluded.block`,
				r.pos[0], r.pos[1], r.pos[2], r.block)
		case reqBlockClear:
			_, err = s.db.Exec(`DELETE FROM blocks WHERE x=? AND y=? AND z=?`,
				r.pos[0], r.pos[1], r.pos[2])
		case reqLedger:
			_, err = s.db.Exec(
				`INSERT INTO ledgers(x,y,z,amount,capacity) VALUES(?,?,?,?,?)
				 ON CONFLICT(x,y,z) DO UPDATE SET amount=excluded.amount, capacity=excluded.capacity`,
				r.pos[0], r.pos[1], r.pos[2], r.amount, r.capacity)
		case reqLedgerClear:
			_, err = s.db.Exec(`DELETE FROM ledgers WHERE x=? AND y=? AND z=?`,
				r.pos[0], r.pos[1], r.pos[2])
		case reqRegistration:
			_, err = s.db.Exec(
				`INSERT INTO registrations(x,y,z,tag,region_cx,region_cz,rr_index,registered_tick)
				 VALUES(?,?,?,?,?,?,?,?)
				 ON CONFLICT(x,y,z) DO UPDATE SET
					tag=excluded.tag, region_cx=excluded.region_cx, region_cz=excluded.region_cz,
					rr_index=excluded.rr_index, registered_tick=excluded.registered_tick`,
				r.reg.Pos[0], r.reg.Pos[1], r.reg.Pos[2], r.reg.Tag,
				r.reg.RegionCX, r.reg.RegionCZ, r.reg.RRIndex, r.reg.RegisteredTick)
		case reqRegistrationClear:
			_, err = s.db.Exec(`DELETE FROM registrations WHERE x=? AND y=? AND z=?`,
				r.pos[0], r.pos[1], r.pos[2])
		}
		// Best effort; the JSONL audit stream remains the replayable
		// record if a write is lost.
		_ = err
	}
}

func (s *DB) send(r req) error {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil
	}
	s.ch <- r
	return nil
}

func (s *DB) WriteBlock(pos [3]int, block string) error {
	return s.send(req{kind: reqBlock, pos: pos, block: block})
}

func (s *DB) ClearBlock(pos [3]int) error {
	return s.send(req{kind: reqBlockClear, pos: pos})
}

func (s *DB) WriteLedger(pos [3]int, amount, capacity int64) error {
	return s.send(req{kind: reqLedger, pos: pos, amount: amount, capacity: capacity})
}

func (s *DB) ClearLedger(pos [3]int) error {
	return s.send(req{kind: reqLedgerClear, pos: pos})
}

func (s *DB) WriteRegistration(rec world.RegistrationRecord) error {
	return s.send(req{kind: reqRegistration, reg: rec})
}

func (s *DB) ClearRegistration(pos [3]int) error {
	return s.send(req{kind: reqRegistrationClear, pos: pos})
}

// LoadBlocks returns every persisted block, ordered for determinism.
func (s *DB) LoadBlocks() ([]world.BlockRecord, error) {
	rows, err := s.db.Query(`SELECT x,y,z,block FROM blocks ORDER BY x,y,z`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []world.BlockRecord
	for rows.Next() {
		var r world.BlockRecord
		if err := rows.Scan(&r.Pos[0], &r.Pos[1], &r.Pos[2], &r.Block); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *DB) LoadLedgers() ([]world.LedgerRecord, error) {
	rows, err := s.db.Query(`SELECT x,y,z,amount,capacity FROM ledgers ORDER BY x,y,z`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []world.LedgerRecord
	for rows.Next() {
		var r world.LedgerRecord
		if err := rows.Scan(&r.Pos[0], &r.Pos[1], &r.Pos[2], &r.Amount, &r.Capacity); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *DB) LoadRegistrations() ([]world.RegistrationRecord, error) {
	rows, err := s.db.Query(
		`SELECT x,y,z,tag,region_cx,region_cz,rr_index,registered_tick
		 FROM registrations ORDER BY registered_tick,x,y,z`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []world.RegistrationRecord
	for rows.Next() {
		var r world.RegistrationRecord
		if err := rows.Scan(&r.Pos[0], &r.Pos[1], &r.Pos[2], &r.Tag,
			&r.RegionCX, &r.RegionCZ, &r.RRIndex, &r.RegisteredTick); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
