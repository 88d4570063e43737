package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/codepathfinder/repocontext/internal/cli"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// A missing .env is fine; real environment variables take precedence
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- cli.Execute(ctx, cli.BuildInfo{Version: version, BuildTime: buildTime})
	}()

	var err error
	select {
	case sig := <-sigChan:
		fmt.Fprintf(os.Stderr, "Received signal %v, shutting down gracefully...\n", sig)
		cancel()
		err = <-errChan
	case err = <-errChan:
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		os.Exit(1)
	}
}
