// Command ippserver runs the IPP print server: one process, one or
// more listen addresses, one printer registry. Grounded on the root
// main.go idiom of flag.Parse, signal.NotifyContext, and a
// run(ctx, cfg) split so main itself stays a thin wrapper around
// log.Fatal.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	ippserver "github.com/gopherprint/ippserver"
	"github.com/gopherprint/ippserver/config"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	srv, err := ippserver.New(cfg)
	if err != nil {
		return err
	}
	slog.Info("starting ippserver", "listen", cfg.ListenAddrs, "printer", cfg.Printer.Name, "base_uri", cfg.BaseURI)
	return srv.Run(ctx)
}
