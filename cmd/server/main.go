package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/moonlitgames/werewolf-backend/internal/config"
	"github.com/moonlitgames/werewolf-backend/internal/httpapi"
	"github.com/moonlitgames/werewolf-backend/internal/pubsub"
	"github.com/moonlitgames/werewolf-backend/internal/store"
	"github.com/moonlitgames/werewolf-backend/internal/txn"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	var log *zap.Logger
	if cfg.Dev {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	var rooms store.RoomStore
	if cfg.DatabaseURL != "" {
		pg, err := store.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("postgres", zap.Error(err))
		}
		rooms = pg
	} else {
		log.Warn("DATABASE_URL not set, using in-memory store")
		rooms = store.NewMemoryStore()
	}

	ctx := context.Background()
	hub := pubsub.NewHub(ctx, log)
	coord := txn.New(rooms, hub, log)
	api := httpapi.NewServer(rooms, hub, coord, cfg.WolfVoteWindow, log)

	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.SetupRoutes(api)}

	go func() {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("serve", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	hub.Shutdown()
	log.Info("bye")
}
