package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"registry-console/internal/config"
	"registry-console/internal/gateway"
	"registry-console/internal/ids"
	"registry-console/internal/notify"
	"registry-console/internal/obs"
	"registry-console/internal/session"
	"registry-console/internal/stream"
	"registry-console/internal/web"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// The store supplies tokens to the client and the client performs the
	// store's logins, so they are wired in two steps.
	store := session.NewStore(cfg.StateFile)
	client, err := gateway.NewClient(gateway.Options{
		BaseURL: cfg.GatewayURL,
		Tokens:  store,
		Timeout: cfg.HTTPTimeout,
		IDGen:   ids.New,
	})
	if err != nil {
		log.Fatalf("gateway: %v", err)
	}
	store.Bind(client)

	events := stream.New()
	poller := notify.NewPoller(client, events, cfg.PollInterval)

	// Polling runs only while a session is signed in.
	store.OnChange(func(state session.State) {
		if state == session.StateAuthenticated {
			poller.Start()
		} else {
			poller.Stop()
		}
	})
	if err := store.Restore(); err != nil {
		log.Printf("session restore: %v", err)
	}

	ui, err := web.NewServer(store, client, poller, events)
	if err != nil {
		log.Fatalf("web: %v", err)
	}

	// No WriteTimeout: the notification stream holds its response open.
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           ui.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting registry-console %s on %s (gateway %s)", version, cfg.Addr, cfg.GatewayURL)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	poller.Stop()
	log.Println("Stopped")
}
