package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"fluxgrid.dev/internal/persistence/ledgerdb"
	persistlog "fluxgrid.dev/internal/persistence/log"
	"fluxgrid.dev/internal/protocol"
	"fluxgrid.dev/internal/sim/catalogs"
	"fluxgrid.dev/internal/sim/tuning"
	"fluxgrid.dev/internal/sim/world"
	"fluxgrid.dev/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id")
		seed       = flag.Int64("seed", 1337, "world seed (used only when starting a fresh world)")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "run without the durable ledger store (state is lost on exit)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", tp)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	w, err := world.New(world.WorldConfig{
		ID:                  *worldID,
		TickRateHz:          tune.TickRateHz,
		Seed:                *seed,
		NetworkMaxTerminals: tune.NetworkMaxTerminals,
		NetworkVisitBudget:  tune.NetworkVisitBudget,
		ItemRouteEveryTicks: tune.ItemRouteEveryTicks,
		RescanEveryTicks:    tune.RescanEveryTicks,
		StatusEveryTicks:    tune.StatusEveryTicks,
		FillPenaltyScale:    tune.FillPenaltyScale,
	}, cats)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	var store *ledgerdb.DB
	if !*disableDB {
		store, err = ledgerdb.Open(filepath.Join(worldDir, "ledger.db"))
		if err != nil {
			logger.Fatalf("open ledger db: %v", err)
		}
		defer store.Close()

		blocks, err := store.LoadBlocks()
		if err != nil {
			logger.Fatalf("load blocks: %v", err)
		}
		ledgers, err := store.LoadLedgers()
		if err != nil {
			logger.Fatalf("load ledgers: %v", err)
		}
		regs, err := store.LoadRegistrations()
		if err != nil {
			logger.Fatalf("load registrations: %v", err)
		}
		w.Bootstrap(blocks, ledgers, regs)
		logger.Printf("resumed %d blocks, %d ledgers, %d registrations", len(blocks), len(ledgers), len(regs))

		w.SetStore(store)
	}

	tickLog := persistlog.NewTickLogger(worldDir)
	defer tickLog.Close()
	auditLog := persistlog.NewAuditLogger(worldDir)
	defer auditLog.Close()
	w.SetTickLogger(tickLog)
	w.SetAuditLogger(auditLog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Printf("world loop: %v", err)
		}
	}()

	validator, err := protocol.NewValidator(filepath.Join(*configDir, "schemas"))
	if err != nil {
		logger.Fatalf("compile protocol schemas: %v", err)
	}
	wsServer := ws.NewServer(w, logger, validator)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/observe", wsServer.Handler())
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/status", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{
			"world_id": *worldID,
			"tick":     w.CurrentTick(),
		})
	})
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	srv := &http.Server{
		Addr:    *addr,
		Handler: mux,
	}

	go func() {
		logger.Printf("listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Printf("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	w.Stop()
	// Join the tick loop before the deferred store/log closes run, so no
	// persistence write races the store shutdown.
	<-w.Done()
	cancel()
}
