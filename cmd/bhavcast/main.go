package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"bhavcast/internal/app"
	"bhavcast/internal/config"
	"bhavcast/internal/logger"
)

const usage = `usage: bhavcast <command>

commands:
  features   build the labeled training extract
  predict    run one forecast batch over the latest session
  backtest   score the most recent forecast run against realized bars
  serve      run the HTTP API with the daily scheduler and watcher

config path comes from BHAVCAST_CONFIG (default configs/config.yaml).`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	cmd := strings.ToLower(strings.TrimSpace(os.Args[1]))

	cfgPath := os.Getenv("BHAVCAST_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("init log file: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("config loaded (env=%s, horizon=%s)", cfg.App.Env, cfg.Features.Horizon)

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("init app: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "serve":
		err = a.Run(ctx)
	case "features":
		defer a.Close()
		res, ferr := a.Service().BuildTrainingSet(ctx)
		if ferr == nil {
			logger.Infof("training extract written: %s (%d rows)", res.Path, res.Rows)
		}
		err = ferr
	case "predict":
		defer a.Close()
		res, perr := a.Service().RunForecast(ctx)
		if perr == nil {
			logger.Infof("forecast run %s: %d records for %s", res.RunID, len(res.Records), res.RunDate)
		}
		err = perr
	case "backtest":
		defer a.Close()
		res, berr := a.Service().RunBacktest(ctx)
		if berr == nil {
			s := res.Result.Summary
			logger.Infof("backtest %s: %d scored, %d unmatched, accuracy %.2f%%",
				res.RunDate, s.Total, s.Unmatched, s.Accuracy*100)
		}
		err = berr
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil && err != context.Canceled {
		log.Fatalf("%s failed: %v", cmd, err)
	}
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}
