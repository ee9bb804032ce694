// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/cabogame/cabo-service/internal/config"
	"github.com/cabogame/cabo-service/internal/handlers"
	"github.com/cabogame/cabo-service/internal/history"
	"github.com/cabogame/cabo-service/internal/middleware"
	"github.com/cabogame/cabo-service/internal/room"
	"github.com/cabogame/cabo-service/internal/store"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st store.Store
	if cfg.Store.DatabaseURL != "" {
		pg, err := store.ConnectPostgres(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer pg.Close()
		st = pg
		logger.Info("using postgres store")
	} else {
		st = store.NewMemory()
		logger.Warn("DATABASE_URL not set, using in-memory store")
	}

	var historian *history.Historian
	if cfg.Redis.Addr != "" {
		historian, err = history.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Queue, logger)
		if err != nil {
			logger.Warnf("redis historian unavailable, actions will not be journaled: %v", err)
			historian = nil
		} else {
			defer historian.Close()
		}
	}

	registry := room.NewRegistry(cfg, st, historian, logger)
	if err := registry.Reconcile(ctx); err != nil {
		logger.Warnf("room reconciliation failed: %v", err)
	}
	defer registry.Shutdown()

	srv := handlers.NewServer(registry, logger)

	mux := http.NewServeMux()
	logged := middleware.LogMiddleware(logger)

	mux.Handle("/room/create", logged(srv.CreateRoomHandler()))
	mux.Handle("/room/join", logged(srv.JoinRoomHandler()))
	mux.Handle("/room/leave", logged(srv.LeaveRoomHandler()))
	mux.Handle("/room/start", logged(srv.StartGameHandler()))
	mux.Handle("/room/state", logged(srv.RoomStateHandler()))

	// The WS route skips LogMiddleware: the upgrade needs the raw
	// ResponseWriter, and the handler logs connects itself.
	mux.Handle("/game/ws/", srv.GameWSHandler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpSrv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutCtx)
	}()

	logger.Infof("Running on %s", addr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server exited: %v", err)
	}
}
