package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordduel/internal/config"
	"github.com/robalobadob/wordduel/internal/game"
	"github.com/robalobadob/wordduel/internal/httpserver"
	"github.com/robalobadob/wordduel/internal/results"
	"github.com/robalobadob/wordduel/internal/store"
	"github.com/robalobadob/wordduel/internal/transport"
	"github.com/robalobadob/wordduel/internal/words"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	if err := words.Init(cfg.LetterSetsFile); err != nil {
		log.Fatal().Err(err).Msg("failed to load letter sets")
	}

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("open database")
	}
	defer db.Close()
	if err := store.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	snapshots := store.NewSQLiteStore(db)
	if cfg.InMemory() {
		snapshots = store.NewMemoryStore()
	}
	outbox := transport.NewOutbox([]byte(cfg.PeerSecret), cfg.OutboxSize, cfg.PeerTimeout, log.Logger)
	replica := game.NewReplica(cfg.ReplicaID, outbox,
		game.WithLogger(log.Logger),
		game.WithPersister(snapshots),
	)
	switch snap, err := snapshots.Load(ctx, cfg.ReplicaID); {
	case err == nil:
		replica.Restore(snap)
		log.Info().Bool("inMatch", snap.Match != nil).Msg("restored replica state")
	case !errors.Is(err, store.ErrNotFound):
		log.Fatal().Err(err).Msg("load replica state")
	}

	ledger := results.NewStore(db)
	recorder := results.NewRecorder(ledger, log.Logger)
	replica.OnChange(recorder.Observe)

	srv := httpserver.New(cfg, replica, ledger, log.Logger)
	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	idle := make(chan struct{})
	go func() {
		defer close(idle)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Close()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("port", cfg.Port).Str("replica", cfg.ReplicaID).Msg("starting wordduel replica")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server exited")
	}
	<-idle
	outbox.Close()
	recorder.Close()
	log.Info().Msg("stopped")
}
