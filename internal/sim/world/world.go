package world

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"fluxgrid.dev/internal/protocol"
	"fluxgrid.dev/internal/sim/catalogs"
)

// ActEnvelope is a grid mutation request queued for the next tick.
type ActEnvelope struct {
	ObserverID string
	Act        protocol.ActMsg
}

type ObserverJoinRequest struct {
	Name string
	Out  chan []byte
	Resp chan ObserverJoinResponse
}

type ObserverJoinResponse struct {
	Welcome protocol.WelcomeMsg
}

type observerClient struct {
	ID  string
	Out chan []byte
}

// World is a single-threaded authoritative simulation of a block grid
// with energy and item transport networks. All state must be accessed
// only from the world loop goroutine.
type World struct {
	cfg      WorldConfig
	catalogs *catalogs.Catalogs

	tick atomic.Uint64

	chunks *ChunkStore
	rules  map[catalogs.ResourceTag]PolarityRules

	// Derived, cached, invalidated on topology change.
	connCache map[Vec3i]ConnState

	ledgers    map[Vec3i]*Ledger
	containers map[Vec3i]*Container

	energySources *Registry
	itemSources   *Registry
	// Registrations parked because their region is unloaded; reclaimed by
	// the periodic rescan or a movement report.
	pending map[Vec3i]*Registration

	acts          chan ActEnvelope
	queries       chan QueryEnvelope
	moved         chan Vec3i
	observerJoin  chan ObserverJoinRequest
	observerLeave chan string
	stop          chan struct{}
	stopOnce      sync.Once
	done          chan struct{}

	nextObserverNum atomic.Uint64
	observers       map[string]*observerClient

	// Optional sinks (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	auditLogger AuditLogger
	store       Store

	energyMovedThisTick int64
	itemsMovedThisTick  int64
}

func New(cfg WorldConfig, cats *catalogs.Catalogs) (*World, error) {
	cfg.applyDefaults()

	b := func(id string) (uint16, error) {
		v, ok := cats.Blocks.Index[id]
		if !ok {
			return 0, fmt.Errorf("missing block id in palette: %s", id)
		}
		return v, nil
	}
	air, err := b("AIR")
	if err != nil {
		return nil, err
	}
	stone, err := b("STONE")
	if err != nil {
		return nil, err
	}
	coal, err := b("COAL_ORE")
	if err != nil {
		return nil, err
	}
	iron, err := b("IRON_ORE")
	if err != nil {
		return nil, err
	}

	gen := WorldGen{
		Seed:      cfg.Seed,
		Height:    cfg.Height,
		BoundaryR: cfg.BoundaryR,
		Air:       air,
		Stone:     stone,
		CoalOre:   coal,
		IronOre:   iron,
	}

	w := &World{
		cfg:           cfg,
		catalogs:      cats,
		chunks:        NewChunkStore(gen),
		connCache:     map[Vec3i]ConnState{},
		ledgers:       map[Vec3i]*Ledger{},
		containers:    map[Vec3i]*Container{},
		energySources: NewRegistry(catalogs.TagEnergy),
		itemSources:   NewRegistry(catalogs.TagItem),
		pending:       map[Vec3i]*Registration{},
		acts:          make(chan ActEnvelope, 1024),
		queries:       make(chan QueryEnvelope, 256),
		moved:         make(chan Vec3i, 256),
		observerJoin:  make(chan ObserverJoinRequest, 16),
		observerLeave: make(chan string, 16),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
		observers:     map[string]*observerClient{},
	}
	w.rules = map[catalogs.ResourceTag]PolarityRules{
		catalogs.TagEnergy: {
			AcceptsDelivery: func(pos Vec3i, c catalogs.Caps) bool {
				return c.CanInput && w.ledgers[pos] != nil
			},
			SuppliesPickup: func(pos Vec3i, c catalogs.Caps) bool {
				return c.CanOutput && w.ledgers[pos] != nil
			},
		},
		catalogs.TagItem: {
			AcceptsDelivery: func(pos Vec3i, c catalogs.Caps) bool {
				return c.CanInput && w.containers[pos] != nil
			},
			SuppliesPickup: func(pos Vec3i, c catalogs.Caps) bool {
				return c.CanOutput && w.containers[pos] != nil
			},
		},
	}
	return w, nil
}

func (w *World) SetTickLogger(l TickLogger)   { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger) { w.auditLogger = l }
func (w *World) SetStore(s Store)             { w.store = s }

func (w *World) Acts() chan<- ActEnvelope                 { return w.acts }
func (w *World) Queries() chan<- QueryEnvelope            { return w.queries }
func (w *World) Moved() chan<- Vec3i                      { return w.moved }
func (w *World) ObserverJoin() chan<- ObserverJoinRequest { return w.observerJoin }
func (w *World) ObserverLeave() chan<- string             { return w.observerLeave }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) Config() WorldConfig { return w.cfg }

// Run drives the tick loop until ctx is done or Stop is called. Done
// reports when the loop has exited.
func (w *World) Run(ctx context.Context) error {
	defer close(w.done)
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingActs []ActEnvelope
	var pendingQueries []QueryEnvelope
	var pendingMoves []Vec3i

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case id := <-w.observerLeave:
			delete(w.observers, id)
		case env := <-w.acts:
			pendingActs = append(pendingActs, env)
		case q := <-w.queries:
			pendingQueries = append(pendingQueries, q)
		case pos := <-w.moved:
			pendingMoves = append(pendingMoves, pos)
		case <-ticker.C:
			w.step(pendingActs, pendingQueries, pendingMoves)
			pendingActs = pendingActs[:0]
			pendingQueries = pendingQueries[:0]
			pendingMoves = pendingMoves[:0]
		}
	}
}

// Stop asks the tick loop to exit. Safe to call more than once.
func (w *World) Stop() { w.stopOnce.Do(func() { close(w.stop) }) }

// Done is closed once Run has returned. Transports use it so channel
// sends toward the world cannot block forever during shutdown.
func (w *World) Done() <-chan struct{} { return w.done }

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	id := fmt.Sprintf("O%d", w.nextObserverNum.Add(1))
	if req.Out != nil {
		w.observers[id] = &observerClient{ID: id, Out: req.Out}
	}
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		ObserverID:      id,
		WorldParams: protocol.WorldParams{
			TickRateHz:          w.cfg.TickRateHz,
			Height:              w.cfg.Height,
			Seed:                w.cfg.Seed,
			NetworkMaxTerminals: w.cfg.NetworkMaxTerminals,
		},
		BlockPalette: protocol.DigestRef{
			Digest: w.catalogs.Blocks.PaletteDigest,
			Count:  len(w.catalogs.Blocks.Palette),
		},
	}
	if req.Resp != nil {
		req.Resp <- ObserverJoinResponse{Welcome: welcome}
	}
}

// stateDigest hashes ledger and container state in sorted key order so
// two runs over the same history agree.
func (w *World) stateDigest() string {
	h := sha256.New()
	var buf [8]byte
	writeInt := func(n int64) {
		binary.LittleEndian.PutUint64(buf[:], uint64(n))
		h.Write(buf[:])
	}
	for _, p := range w.sortedLedgerKeys() {
		l := w.ledgers[p]
		writeInt(int64(p.X))
		writeInt(int64(p.Y))
		writeInt(int64(p.Z))
		writeInt(l.Amount)
		writeInt(l.Capacity)
	}
	for _, p := range w.sortedContainerKeys() {
		c := w.containers[p]
		writeInt(int64(p.X))
		writeInt(int64(p.Y))
		writeInt(int64(p.Z))
		writeInt(int64(c.TotalUnits()))
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:8])
}
