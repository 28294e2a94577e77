package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"todo-sync-go/internal/app"
	"todo-sync-go/internal/config"
	"todo-sync-go/internal/domain/todos"
	"todo-sync-go/internal/transport/httpclient"
	"todo-sync-go/internal/tui"
	"todo-sync-go/pkg/logger"

	tea "github.com/charmbracelet/bubbletea"
)

const activateTimeout = 15 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	log, closeLog, err := openLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer closeLog.Close()

	cfg, err := config.Load(log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}

	store, user, closeStore, err := openStore(cfg, log)
	if err != nil {
		log.Critical("tui: open store failed", "err", err)
		fmt.Fprintln(os.Stderr, "store:", err)
		return 1
	}
	defer closeStore()

	changes := tui.NewChanges()
	engine := todos.NewEngine(store, log, todos.Options{
		Path:     cfg.Todo.Path,
		Order:    cfg.Todo.Order,
		OnChange: changes.Notify,
	})

	ctx, cancel := context.WithTimeout(context.Background(), activateTimeout)
	if err := engine.Activate(ctx); err != nil {
		// The screen shows the unavailable state; keep going.
		log.Warn("tui: todos unavailable", "err", err)
	}
	cancel()

	program := tea.NewProgram(tui.New(engine, changes, tui.Options{User: user}), tea.WithAltScreen())
	_, runErr := program.Run()

	engine.Deactivate()
	engine.Wait()

	if runErr != nil {
		log.Critical("tui: program failed", "err", runErr)
		fmt.Fprintln(os.Stderr, runErr)
		return 1
	}
	return 0
}

// openLogger writes to LOG_FILE when set; otherwise logs are dropped so they
// do not draw over the screen.
func openLogger() (logger.Logger, io.Closer, error) {
	path := os.Getenv("LOG_FILE")
	if path == "" {
		return logger.NewDiscard(), io.NopCloser(nil), nil
	}
	return logger.NewFile(path, "todo-tui")
}

// openStore connects to TODO_SERVER_URL when set and otherwise embeds the
// store in process, on sqlite unless DB_DRIVER says otherwise. It also returns
// the label of the signed-in user for the header.
func openStore(cfg config.Config, log logger.Logger) (todos.Store, string, func(), error) {
	if cfg.Client.ServerURL != "" {
		client, err := httpclient.New(cfg.Client.ServerURL, log, httpclient.Options{Token: cfg.Client.AuthToken})
		if err != nil {
			return nil, "", nil, err
		}
		log.Info("tui: using remote store", "url", cfg.Client.ServerURL)

		ctx, cancel := context.WithTimeout(context.Background(), activateTimeout)
		defer cancel()
		user, err := client.Me(ctx)
		if err != nil {
			return nil, "", nil, fmt.Errorf("sign in: %w", err)
		}
		return client, firstNonEmpty(user.Email, user.Name, user.ID), func() {}, nil
	}

	dbCfg := cfg.DB
	if os.Getenv("DB_DRIVER") == "" {
		dbCfg.Driver = config.DriverSQLite
	}
	embedded, err := app.OpenStore(dbCfg, log)
	if err != nil {
		return nil, "", nil, err
	}
	return embedded.Service, firstNonEmpty(cfg.Supabase.MockUserEmail, "local"), func() {
		if err := embedded.Close(); err != nil {
			log.Error("tui: close store failed", "err", err)
		}
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
