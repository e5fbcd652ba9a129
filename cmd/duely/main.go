package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"duely/internal/agenda"
	"duely/internal/config"
	"duely/internal/reminder"
	"duely/internal/storage"
	"duely/internal/store"
	"duely/internal/ui"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Printf("failed to read .env: %v\n", err)
	}

	configPath := config.ResolveConfigPath()
	cfg, err := config.LoadOrCreate(configPath)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, closeLog, err := openLog(cfg.LogPath)
	if err != nil {
		fmt.Printf("failed to open log: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx := context.Background()
	backend, err := storage.Open(ctx, cfg.DBDriver, cfg.DBPath, cfg.PostgresDSN)
	if err != nil {
		fmt.Printf("failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer backend.Close()

	delivery := reminder.NewLocal(
		reminder.WithAuthorized(cfg.Notifications.Enabled),
		reminder.WithLocalLogger(logger),
	)
	defer delivery.Close()

	sched := reminder.NewScheduler(delivery, reminder.WithLogger(logger))
	tasks := store.New(backend, sched, store.WithLogger(logger))
	if err := tasks.Load(ctx); err != nil {
		fmt.Printf("failed to load tasks: %v\n", err)
		os.Exit(1)
	}

	if len(os.Args) > 1 {
		if err := runCommand(os.Args[1], tasks); err != nil {
			fmt.Printf("%v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := ui.Run(tasks, delivery, cfg); err != nil {
		fmt.Printf("error running program: %v\n", err)
		os.Exit(1)
	}
}

func runCommand(name string, tasks *store.Store) error {
	switch name {
	case "agenda":
		return agenda.Write(os.Stdout, tasks.List(), time.Now())
	case "overdue":
		now := time.Now()
		for _, t := range tasks.List() {
			if t.Overdue(now) {
				fmt.Printf("%s\t%s\t%s\n", t.ID, t.Due.Format("2006-01-02 15:04"), t.Title)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q (want agenda or overdue)", name)
	}
}

// openLog keeps log output out of the terminal the UI draws on.
func openLog(path string) (*log.Logger, func(), error) {
	if path == "" {
		return log.New(io.Discard, "", 0), func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return log.New(f, "duely ", log.LstdFlags), func() { f.Close() }, nil
}
