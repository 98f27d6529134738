package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"bigpartner/internal/cli"
)

func main() {
	log.SetPrefix("[ADMINCTL] ")
	log.SetFlags(log.Ldate | log.Ltime)

	env, err := cli.DefaultEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand(env).ExecuteContext(ctx); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}
