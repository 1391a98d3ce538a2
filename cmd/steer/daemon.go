package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/1broseidon/steer/internal/daemon"
	"github.com/1broseidon/steer/internal/ipc"
	"github.com/1broseidon/steer/internal/runtimepath"
)

func runDaemon(args []string) int {
	fs := flag.NewFlagSet("daemon", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("config", "", "Config file path (default: ~/.config/steer/config.yaml)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: steer daemon [--config PATH]")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "daemon takes no arguments")
		fs.Usage()
		return 2
	}

	res, err := loadConfig(*path)
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return 1
	}
	cfg := res.Config
	logger := newLogger(cfg)
	log.Printf("Configuration loaded (policy: %s)", cfg.Policy())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStack(ctx, cfg, logger)
	if err != nil {
		log.Printf("Failed to start: %v", err)
		return 1
	}
	defer st.Close()

	statePath, err := runtimepath.IdentityStatePath()
	if err != nil {
		log.Printf("Failed to resolve state path: %v", err)
		return 1
	}
	store := daemon.NewStateStore(statePath)
	if n, err := store.Load(st.table); err != nil {
		logger.Warn("ignoring saved handle mappings", "path", statePath, "error", err)
	} else if n > 0 {
		logger.Info("restored handle mappings", "count", n)
	}

	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		log.Printf("Failed to resolve socket path: %v", err)
		return 1
	}
	ipcServer := ipc.NewServer(socketPath, st.engine, st.backend, cfg.Policy(), logger)
	if err := ipcServer.Start(); err != nil {
		log.Printf("Failed to start IPC server: %v", err)
		return 1
	}

	refresher := daemon.NewRefresher(daemon.RefresherConfig{
		Interval: cfg.RefreshInterval(),
		Logger:   logger,
		Store:    store,
	}, st.backend, st.table)

	log.Println("steer daemon started successfully")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return refresher.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down steer daemon...")
		ipcServer.Stop()
		return nil
	})
	err = g.Wait()

	if saveErr := store.Save(st.table); saveErr != nil {
		logger.Warn("failed to save handle mappings", "path", statePath, "error", saveErr)
	}
	if err != nil {
		log.Printf("Daemon error: %v", err)
		return 1
	}
	return 0
}
