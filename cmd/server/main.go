package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"github.com/quickroom/quickroom/internal/server"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("Starting QuickRoom relay...")

	// Load configuration from the environment and activate it.
	config := server.NewConfigFromEnv()
	server.SetConfig(config)

	// The hub owns the room registry and rate limiter and runs the fan-out loop.
	hub := server.NewHub()
	go hub.Run()

	router := server.NewRouter(hub)
	httpServer := server.CreateServer(config.Port, router)

	go func() {
		if err := server.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Handle SIGINT/SIGTERM: stop accepting connections first, then drain the hub.
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				return server.ShutdownServer(httpServer, shutdownTimeout)
			},
			"hub": func(ctx context.Context) error {
				return hub.Shutdown(shutdownTimeout)
			},
		},
	)

	exitCode := <-wait
	log.Printf("QuickRoom relay exited with code: %d", exitCode)
	os.Exit(exitCode)
}
