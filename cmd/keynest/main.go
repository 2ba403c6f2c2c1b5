package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/keynest/internal/client/cli"
	"github.com/dmitrijs2005/keynest/internal/client/clipboard"
	"github.com/dmitrijs2005/keynest/internal/client/config"
	"github.com/dmitrijs2005/keynest/internal/client/services"
	"github.com/dmitrijs2005/keynest/internal/client/storage"
	"github.com/dmitrijs2005/keynest/internal/filex"
	"github.com/dmitrijs2005/keynest/internal/logging"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("%v", err)
	}
}

func run() error {
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		return err
	}

	ctx := context.Background()
	logger := logging.New(cfg.LogLevel, os.Stderr)

	if _, err := filex.EnsureParentDir(cfg.VaultPath); err != nil {
		return err
	}

	db, err := storage.Open(ctx, storage.DSN(cfg.VaultPath))
	if err != nil {
		return fmt.Errorf("error initializing database: %w", err)
	}
	defer db.Close()

	backend := services.NewVaultService(db, logger)
	app := cli.NewApp(cfg, backend, clipboard.Default(), logger)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		app.Close()
		db.Close()
		os.Exit(1)
	}()

	return app.Run(ctx)
}
