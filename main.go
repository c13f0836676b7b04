package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/thiagokokada/tmplstore/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx); err != nil {
		cancel()
		log.Fatalf("tmplstore: %v", err)
	}
}
