package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/pflag"

	"schedula/client/internal/config"
	"schedula/client/internal/state/auth"
)

const appName = "schedula"

func main() {
	fs := pflag.NewFlagSet(appName, pflag.ContinueOnError)
	config.RegisterFlags(fs)
	banner := fs.Bool("banner", false, "print the banner before running")
	envFile := fs.String("env-file", ".env", "dotenv file to load before reading the environment")
	fs.SetInterspersed(false)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <command> [args]\n\n%s\nflags:\n", appName, commandHelp)
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", "schedula-client"),
	)
	slog.SetDefault(log)

	if err := config.LoadDotEnv(*envFile); err != nil {
		log.Warn("dotenv load failed", slog.Any("err", err), slog.String("path", *envFile))
	}

	cfg, err := config.Load(fs)
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", "schedula-client"),
	)
	slog.SetDefault(log)

	if *banner {
		figure.NewFigure(appName, "cybermedium", true).Print()
		fmt.Println()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, cleanup, err := newApp(ctx, cfg, log, os.Stdout)
	if err != nil {
		log.Error("startup failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer cleanup()

	if err := a.run(ctx, fs.Args()); err != nil {
		var authErr *auth.Error
		if errors.As(err, &authErr) {
			fmt.Fprintln(os.Stderr, authErr.Reason)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		cleanup()
		os.Exit(1)
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
