package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fittrainer/pro/internal/app"
	"fittrainer/pro/internal/cli"
	"fittrainer/pro/internal/config"
	"fittrainer/pro/internal/logging"

	"github.com/alecthomas/kong"
	log "github.com/sirupsen/logrus"
)

var CLI struct {
	Config   string `help:"Directory holding config.yaml." type:"path" default:"."`
	LogLevel string `help:"Log level override."`

	Sweep    cli.SweepCmd    `cmd:"" help:"Run one sweep: expire plans, flag overdue invoices, skip stale sessions."`
	Plans    cli.PlansCmd    `cmd:"" help:"List the plans a client sees on a date."`
	Progress cli.ProgressCmd `cmd:"" help:"Show progress of a plan."`
	Today    cli.TodayCmd    `cmd:"" help:"Open or show a client's session for a date."`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("fitctl"),
		kong.Description("Operator tool for FitTrainer Pro"),
		kong.UsageOnError(),
	)

	cfg, err := config.LoadConfig(CLI.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: load config: %v\n", err)
		os.Exit(1)
	}
	level := cfg.Log.Level
	if CLI.LogLevel != "" {
		level = CLI.LogLevel
	}
	logging.Setup(logging.LoggerSetupParams{
		LogFileName:   cfg.Log.File,
		LogToStdout:   cfg.Log.Stdout,
		LogLevel:      level,
		LogFormatJSON: cfg.Log.JSON,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	runErr := kctx.Run(&cli.Context{Ctx: ctx, App: a, Out: os.Stdout})
	if err := a.Close(); err != nil {
		log.Errorf("close: %s", err)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
}
