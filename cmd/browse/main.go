// Command browse is a terminal client for the blog search browser.
//
// It loads the collection with the same source configuration as the browser
// service and offers one-shot searches, an interactive match-navigation
// session, database seeding and a load generator for a running service.
//
// Usage:
//
//	go run ./cmd/browse search --file posts.json alpha
//	go run ./cmd/browse interactive --config configs/development.yaml
//	go run ./cmd/browse seed --config configs/development.yaml posts.json
//	go run ./cmd/browse loadtest --url http://localhost:8080
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
