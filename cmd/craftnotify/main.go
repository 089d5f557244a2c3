package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/nhle/craftnotify/internal/app"
	"github.com/nhle/craftnotify/internal/credential"
	"github.com/nhle/craftnotify/internal/feed"
	"github.com/nhle/craftnotify/internal/logging"
	"github.com/nhle/craftnotify/internal/marketplace"
	"github.com/nhle/craftnotify/internal/model"
	"github.com/nhle/craftnotify/internal/store"
	appsync "github.com/nhle/craftnotify/internal/sync"
)

type options struct {
	configPath string
	badge      bool
	setToken   bool
	filter     string
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "craftnotify: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	v := model.NewViper()

	var opts options
	fs := pflag.NewFlagSet("craftnotify", pflag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", model.DefaultConfigPath(), "path to the YAML config file")
	fs.BoolVar(&opts.badge, "badge", false, "print the unread count and exit")
	fs.BoolVar(&opts.setToken, "set-token", false, "store the marketplace API token in the keyring")
	fs.StringVar(&opts.filter, "filter", feed.FilterAll.String(), "initial filter: all, unread or read")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := v.BindPFlag("log.level", fs.Lookup("log-level")); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}

	cfg, err := model.LoadConfig(v, opts.configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	creds, err := credential.Open()
	if err != nil {
		return err
	}

	if opts.setToken {
		return promptToken(creds, cfg.Marketplace.Account)
	}

	filter, err := feed.ParseFilter(opts.filter)
	if err != nil {
		return err
	}

	token, err := creds.Resolve(cfg.Marketplace.Account)
	if err != nil {
		if !errors.Is(err, credential.ErrNoToken) {
			return err
		}
		logger.Warn("no marketplace token; requests will be unauthenticated",
			zap.String("account", cfg.Marketplace.Account),
		)
	}

	client := marketplace.NewClient(cfg.Marketplace.BaseURL, token, marketplace.ClientOptions{
		Timeout:    cfg.Marketplace.Timeout,
		MaxRetries: cfg.Marketplace.MaxRetries,
		Logger:     logger,
	})
	adapter := marketplace.NewAdapter(client, logger)

	if opts.badge {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Sync.FetchTimeout)
		defer cancel()
		fmt.Println(adapter.UnreadCount(ctx))
		return nil
	}

	loopOpts := appsync.Options{
		PollInterval:   cfg.Sync.PollInterval,
		ReconcileDelay: cfg.Sync.ReconcileDelay,
		FetchTimeout:   cfg.Sync.FetchTimeout,
		Logger:         logger,
	}

	if cfg.Journal.Path != "" {
		journal, err := openJournal(cfg.Journal, logger)
		if err != nil {
			return err
		}
		defer journal.Close()
		loopOpts.Journal = journal
	}

	loop := appsync.New(adapter, loopOpts)
	defer loop.Stop()

	logger.Info("starting",
		zap.String("base_url", cfg.Marketplace.BaseURL),
		zap.Duration("poll_interval", cfg.Sync.PollInterval),
	)

	p := tea.NewProgram(app.New(loop, filter, logger), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running ui: %w", err)
	}
	return nil
}

// openJournal opens the sync journal and drops entries past retention.
func openJournal(cfg model.JournalConfig, logger *zap.Logger) (*store.SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating journal dir: %w", err)
	}

	journal, err := store.NewSQLiteStore(cfg.Path)
	if err != nil {
		return nil, err
	}

	if cfg.Retention > 0 {
		pruned, err := journal.Prune(context.Background(), time.Now().Add(-cfg.Retention))
		if err != nil {
			logger.Warn("pruning journal", zap.Error(err))
		} else if pruned > 0 {
			logger.Debug("pruned journal", zap.Int64("rows", pruned))
		}
	}
	return journal, nil
}

func promptToken(creds *credential.Store, account string) error {
	var token string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(fmt.Sprintf("Marketplace API token for %q", account)).
				EchoMode(huh.EchoModePassword).
				Value(&token),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("reading token: %w", err)
	}

	if err := creds.SetToken(account, token); err != nil {
		return err
	}
	fmt.Printf("Token stored for %s\n", account)
	return nil
}
