package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeusync/virtualcam/internal/config"
	"github.com/zeusync/virtualcam/internal/core/fault"
	"github.com/zeusync/virtualcam/internal/core/observability/log"
	"github.com/zeusync/virtualcam/internal/injector"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to a YAML config file")
	logLevel := flag.String("log-level", "", "override log.level (debug, info, warn, error)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading config:", err)
		return 1
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
		if err = cfg.Validate(); err != nil {
			fmt.Fprintln(os.Stderr, "Error loading config:", err)
			return 1
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := injector.InitializeApp(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error building app:", err)
		return 1
	}

	err = app.Run(ctx)
	switch {
	case err == nil, fault.Is(err, fault.KindInterrupted):
		app.Logger().Info("Shutting down virtual camera")
		return 0
	default:
		app.Logger().Error("Virtual camera stopped", log.Error(err))
		return 1
	}
}
