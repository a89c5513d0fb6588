package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"github.com/Tyrowin/gochat-presence/internal/server"
)

// Exit codes reported to the process supervisor.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Chat server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// A missing .env is fine; the environment alone is enough.
	_ = godotenv.Load()

	config, err := server.LoadConfig()
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	logger.Info("Starting chat server...", "addr", config.Addr())

	hub := server.NewHub(logger)
	server.StartHub(hub)

	mux := server.SetupRoutes(hub, *config, logger)
	httpServer := server.CreateServer(config.Addr(), mux)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.StartServer(httpServer, logger)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = hub.Shutdown(config.ShutdownTimeout)
			return exitRuntime, fmt.Errorf("http server: %w", err)
		}
	case sig := <-stop:
		logger.Info("Received signal, shutting down", "signal", sig.String())
	}

	code := exitOK
	if err := server.ShutdownServer(httpServer, config.ShutdownTimeout, logger); err != nil {
		code = exitRuntime
	}
	if err := hub.Shutdown(config.ShutdownTimeout); err != nil {
		return exitRuntime, fmt.Errorf("hub shutdown: %w", err)
	}
	return code, nil
}
