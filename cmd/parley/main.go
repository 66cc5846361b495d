// ABOUTME: Entry point for the parley conversation server
// ABOUTME: Provides serve, init, user and token subcommands

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/parleyhq/parley/internal/api"
	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/conversation"
	"github.com/parleyhq/parley/internal/identity"
	"github.com/parleyhq/parley/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                       _
  _ __   __ _ _ __ ___| | ___ _   _
 | '_ \ / _' | '__/ __| |/ _ \ | | |
 | |_) | (_| | |  \__ \ |  __/ |_| |
 | .__/ \__,_|_|  |___/_|\___|\__, |
 |_|                          |___/
`

const starterConfig = `server:
  http_addr: ":8080"

database:
  path: "${HOME}/.local/share/parley/parley.db"

auth:
  jwt_secret: "${PARLEY_JWT_SECRET}"

logging:
  level: info
  format: text
`

// getConfigPath returns the path to the parley config file.
// Priority: PARLEY_CONFIG env var > XDG_CONFIG_HOME/parley/parley.yaml > ~/.config/parley/parley.yaml
func getConfigPath() string {
	if envPath := os.Getenv("PARLEY_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "parley.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "parley", "parley.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: parley <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                          Start the conversation server")
		fmt.Println("  init                           Create a starter config file")
		fmt.Println("  user --username NAME [--name]  Create a user")
		fmt.Println("  token --user ID [--ttl]        Mint an API token for a user")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "user":
		err = runUser(ctx, os.Args[2:])
	case "token":
		err = runToken(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return err
	}

	logger := config.NewLogger(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	broadcaster := conversation.NewBroadcaster(logger)
	defer broadcaster.Close()

	svc := conversation.NewService(st, identity.NewStoreResolver(st), broadcaster, logger)
	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	srv := api.NewServer(svc, st, verifier, logger)

	httpServer := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func runInit() error {
	path := getConfigPath()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(starterConfig), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("Wrote starter config to %s\n", path)
	fmt.Println("Set PARLEY_JWT_SECRET before starting the server.")
	return nil
}

func runUser(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("user", flag.ExitOnError)
	username := fs.String("username", "", "unique username (required)")
	name := fs.String("name", "", "optional display name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" {
		return fmt.Errorf("--username is required")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return err
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	user, err := st.CreateUser(ctx, *username, *name)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("Created user %d (%s)\n", user.ID, user.Username)
	return nil
}

func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	userID := fs.Int64("user", 0, "user id (required)")
	ttl := fs.Duration("ttl", 30*24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID <= 0 {
		return fmt.Errorf("--user is required")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return err
	}

	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	token, err := verifier.Generate(*userID, *ttl)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}
