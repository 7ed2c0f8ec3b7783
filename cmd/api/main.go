package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pulse/api/internal/app"
	"pulse/api/internal/config"
	"pulse/api/internal/export"
	"pulse/api/internal/netinfo"
	"pulse/api/internal/room"
	"pulse/api/internal/store"
)

func main() {
	cfg := config.Load()

	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = fmt.Sprintf("http://%s:%s", netinfo.LocalIP(), portOf(cfg.Addr))
	}

	sessionStore := store.New(cfg.SessionCodeLength)
	hub := room.NewHub()

	// With a redis backplane every node sees every room's events; without
	// one the local hub is the whole fan-out.
	var rooms app.Broadcaster = hub
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using redis fan-out at %s", cfg.RedisURL)
		bridge, err := room.NewBridge(cfg.RedisURL, hub)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer bridge.Close()
		rooms = bridge
	}

	service := app.New(cfg, sessionStore, rooms, export.NewService())
	httpServer := app.NewHTTPServer(service, hub, cfg.CORSOrigin)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// No read/write timeouts: websocket connections stay open for the
		// whole session.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("Pulse API listening on %s", cfg.Addr)
		log.Printf("Local:   http://localhost:%s", portOf(cfg.Addr))
		log.Printf("Network: %s", cfg.BaseURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func portOf(addr string) string {
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[i+1:]
	}
	return addr
}
