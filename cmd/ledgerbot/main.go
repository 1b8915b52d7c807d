package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	coreconfig "github.com/avelezco/ledgerbot/core/config"
	"github.com/avelezco/ledgerbot/core/database"
	"github.com/avelezco/ledgerbot/core/logger"
	coretelegram "github.com/avelezco/ledgerbot/core/telegram"
	"github.com/avelezco/ledgerbot/internal/bot"
	"github.com/avelezco/ledgerbot/internal/entry"
	"github.com/avelezco/ledgerbot/internal/journal"
	"github.com/avelezco/ledgerbot/internal/ledger"

	"github.com/joho/godotenv"
	tele "gopkg.in/telebot.v4"
	"log/slog"
)

const sweepInterval = time.Minute

func main() {
	if err := run(); err != nil {
		log.Fatalf("ledgerbot: %v", err)
	}
}

func run() error {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := coreconfig.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	if err := logger.InitLogger(cfg); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		if err := logger.Shutdown(); err != nil {
			log.Printf("logger shutdown: %v", err)
		}
	}()

	var journalStore journal.Store = journal.Nop{}
	if cfg.Journal.Enabled {
		dbCfg := database.Config{
			Host:           cfg.Journal.Host,
			Port:           cfg.Journal.Port,
			User:           cfg.Journal.User,
			Password:       cfg.Journal.Password,
			Name:           cfg.Journal.Name,
			SSLMode:        cfg.Journal.SSLMode,
			MaxConnections: cfg.Journal.MaxConnections,
		}
		if err := database.RunMigrations(dbCfg); err != nil {
			return fmt.Errorf("journal migrations: %w", err)
		}
		db, err := database.Connect(dbCfg)
		if err != nil {
			return fmt.Errorf("journal connect: %w", err)
		}
		journalStore = journal.NewPostgres(db)
	}
	defer func() {
		if err := journalStore.Close(); err != nil {
			log.Printf("journal close: %v", err)
		}
	}()

	client := ledger.NewClient(cfg.Ledger.URL, time.Duration(cfg.Ledger.TimeoutSeconds)*time.Second)
	var submitter entry.Submitter = client
	if cfg.Journal.Enabled {
		submitter = journal.NewSubmitter(client, journalStore, ledger.Function)
	}

	convs := entry.NewStore()
	machine := entry.NewMachine(convs, submitter)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Entry.IdleExpiryMinutes > 0 {
		go sweepIdle(ctx, convs, time.Duration(cfg.Entry.IdleExpiryMinutes)*time.Minute)
	}

	app := bot.New(cfg, machine)
	startedAt := time.Now()

	return coretelegram.Run(ctx, coretelegram.RunOptions{
		Config:      cfg,
		Middlewares: app.Middlewares(),
		Routes:      app.Routes(),
		Commands:    app.Commands(),
		OnStart: func(ctx context.Context, _ *tele.Bot) error {
			logger.Info(ctx, "app", "ready",
				slog.Duration("duration", logger.RoundMS(time.Since(startedAt))),
			)
			return nil
		},
		OnStop: func(ctx context.Context, _ *tele.Bot) error {
			logger.Info(ctx, "app", "shutdown")
			return nil
		},
	})
}

// sweepIdle drops conversations open for longer than maxAge so an
// abandoned /income does not block the chat forever.
func sweepIdle(ctx context.Context, store *entry.Store, maxAge time.Duration) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Expire(time.Now().Add(-maxAge)); n > 0 {
				logger.Info(logger.Background(), "entry", "conversation.expired",
					slog.Int("count", n),
				)
			}
		}
	}
}
