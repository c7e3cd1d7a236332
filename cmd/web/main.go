// Package main is the entry point for the planner API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/commitment-planner/internal/config"
	"github.com/commitment-planner/internal/web"
)

func main() {
	configPath := flag.String("config", os.Getenv(config.EnvConfigFile), "Path to config.yaml")
	port := flag.Int("port", 0, "Port to run the API on (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	fmt.Println("🚀 Commitment Planner - API")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	server, err := web.NewServer(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
