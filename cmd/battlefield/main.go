package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeusync/battlefield/internal/config"
	"github.com/zeusync/battlefield/internal/core/observability/log"
	"github.com/zeusync/battlefield/internal/injector"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML or JSON config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintln(os.Stderr, "battlefield:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	a, err := injector.InitializeApp(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if l, ok := a.Logger.(*log.Logger); ok {
			_ = l.Sync()
		}
	}()

	a.Seed()
	return a.Run(ctx)
}
