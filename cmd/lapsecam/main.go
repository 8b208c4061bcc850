package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"lapsecam/internal/app"
	logx "lapsecam/pkg/logx"
)

func main() {
	var (
		cfgPath string
		debug   bool
		forever bool
		cronRun bool
	)
	flag.StringVar(&cfgPath, "config", "./config.json", "path to config (json or yaml)")
	flag.BoolVar(&debug, "debug", false, "force debug logging")
	flag.BoolVar(&forever, "forever", false, "run the capture loop without a time budget")
	flag.BoolVar(&cronRun, "cron", false, "run the capture loop bounded by cron.duration")
	flag.Parse()

	if forever && cronRun {
		fmt.Fprintln(os.Stderr, "fatal: -forever and -cron are mutually exclusive")
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath, debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
	defer a.Close()

	switch {
	case forever:
		err = a.RunForever(ctx)
	case cronRun:
		err = a.RunCron(ctx)
	default:
		err = a.RunOnce(ctx)
	}

	// Interruption during a sleep or capture is a clean exit, not a crash.
	if errors.Is(err, context.Canceled) {
		a.Log().Info("interrupted; shutting down")
		return
	}
	if err != nil {
		a.Log().Error("capture run failed", logx.Err(err))
		os.Exit(1)
	}
}
