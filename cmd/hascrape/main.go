// cmd/hascrape/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/omipheo/home-advisor-scraping/internal/cli"
)

func main() {
	// First interrupt cancels the run context so buffered records get
	// flushed; a second one kills the process.
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Warn().Msg("Interrupt received, flushing and shutting down...")
		cancel()
		<-sigCh
		os.Exit(1)
	}()

	cli.Execute(ctx)
}
