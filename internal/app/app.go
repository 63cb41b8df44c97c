package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"promo-stop-alerts/internal/config"
	"promo-stop-alerts/internal/marketplace"
	"promo-stop-alerts/internal/notify"
	"promo-stop-alerts/internal/scheduler"
	"promo-stop-alerts/internal/service"
	"promo-stop-alerts/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newClients() []marketplace.Client {
	retry := marketplace.RetryOptions{
		Attempts: a.Config.Actions.RetryAttempts,
		Backoff:  a.Config.Actions.RetryBackoff,
	}

	ozon := marketplace.NewOzon(marketplace.OzonOptions{
		BaseURL:   a.Config.Ozon.BaseURL,
		Timeout:   a.Config.Ozon.RequestTimeout,
		UserAgent: a.Config.Ozon.UserAgent,
	}, a.Logger)

	wb := marketplace.NewWB(marketplace.WBOptions{
		BaseURL:   a.Config.Wildberries.BaseURL,
		Timeout:   a.Config.Wildberries.RequestTimeout,
		UserAgent: a.Config.Wildberries.UserAgent,
	}, a.Logger)

	return []marketplace.Client{
		marketplace.WithRetry(ozon, retry, a.Logger),
		marketplace.WithRetry(wb, retry, a.Logger),
	}
}

func (a *App) newNotifier() (notify.Notifier, error) {
	if !a.Config.Telegram.Enabled {
		return nil, nil
	}
	return notify.NewTelegram(notify.TelegramOptions{
		BotToken: a.Config.Telegram.BotToken,
		APIBase:  a.Config.Telegram.APIBase,
		Timeout:  10 * time.Second,
	}, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}

	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running reconciliation engine: the poll cycle and
// the sweep cycle on independent schedules under one signal context.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn is required to run the engine")
	}
	if closeStore != nil {
		defer closeStore()
	}

	notifier, err := a.newNotifier()
	if err != nil {
		return err
	}
	if notifier == nil {
		return errors.New("telegram notifications must be enabled to run the engine")
	}

	svc := service.New(a.Config, a.newClients(), store, store, store, store, notifier, a.Logger)

	pollSched := scheduler.New(scheduler.Options{
		Name:         "poll",
		Interval:     a.Config.Poll.Interval,
		StartupDelay: a.Config.Poll.StartupDelay,
	}, a.Logger)

	sweepSched := scheduler.New(scheduler.Options{
		Name:         "sweep",
		Interval:     a.Config.Sweep.Interval,
		StartupDelay: a.Config.Sweep.StartupDelay,
	}, a.Logger)

	a.Logger.Info().
		Dur("poll_interval", a.Config.Poll.Interval).
		Dur("sweep_interval", a.Config.Sweep.Interval).
		Msg("starting reconciliation engine")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pollSched.Run(ctx, svc.PollTick)
	})
	g.Go(func() error {
		return sweepSched.Run(ctx, svc.SweepTick)
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("engine terminated with error")
		return err
	}

	a.Logger.Info().Msg("reconciliation engine stopped")
	return nil
}

// ExportOptions hold parameters for exporting the remediation log.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit   int
	Pending bool
}

// SimulateOptions configure the simulate-notify command.
type SimulateOptions struct {
	UserID      int64
	Marketplace string
	ProductID   string
	ProductName string
}
