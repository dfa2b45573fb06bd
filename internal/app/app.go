package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/serpens2/weather-bot/internal/chart"
	"github.com/serpens2/weather-bot/internal/config"
	"github.com/serpens2/weather-bot/internal/domain"
	"github.com/serpens2/weather-bot/internal/forecast"
	"github.com/serpens2/weather-bot/internal/geo"
	"github.com/serpens2/weather-bot/internal/httpapi"
	"github.com/serpens2/weather-bot/internal/httpx"
	"github.com/serpens2/weather-bot/internal/registration"
	"github.com/serpens2/weather-bot/internal/scheduler"
	"github.com/serpens2/weather-bot/internal/store"
	"github.com/serpens2/weather-bot/internal/subscription"
	"github.com/serpens2/weather-bot/internal/telegram"
	"github.com/serpens2/weather-bot/internal/weather"
)

const (
	updateTimeout   = time.Minute
	chatIdleTimeout = time.Minute
	shutdownTimeout = 5 * time.Second
	minReapInterval = time.Minute
)

type App struct {
	cfg config.Config
	log *zap.Logger
	bot *tgbotapi.BotAPI
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	return &App{cfg: cfg, log: log, bot: bot}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting weather-bot",
		zap.String("bot", a.bot.Self.UserName),
		zap.String("db", a.cfg.DBDriver),
		zap.String("http", a.cfg.HTTPAddr),
		zap.Int("systemOffset", domain.LocalSystemOffset()),
	)

	repo, err := store.Open(ctx, a.cfg.DBDriver, a.cfg.DBDSN)
	if err != nil {
		a.log.Error("open store failed", zap.Error(err))
		return err
	}
	defer func() { _ = repo.Close() }()
	repo.SetLogger(a.log.Named("store"))
	a.log.Info("store ready")

	hc := &http.Client{}
	backoff := httpx.BackoffConfig{
		MaxRetries:      a.cfg.HTTPRetries,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
	geoClient := httpx.New(hc, httpx.Config{Name: "geocoding", Timeout: a.cfg.HTTPTimeout, Backoff: backoff})
	weatherClient := httpx.New(hc, httpx.Config{Name: "open-meteo", Timeout: a.cfg.HTTPTimeout, Backoff: backoff})

	resolver := geo.NewResolver(geoClient, a.cfg.GeoapifyKey, a.cfg.OpenWeatherKey)
	charts := chart.New(a.cfg.ChartDir)
	assembler := forecast.New(repo, weather.NewOpenMeteo(weatherClient, ""), charts, a.log.Named("forecast"))

	jobs := scheduler.New(time.Local, a.log.Named("scheduler"))

	// Jobs call back into the router, which is built last.
	var router *telegram.Router
	notify := func(chatID string) { router.Notify(chatID) }

	accounts := subscription.New(repo, jobs, notify, domain.LocalSystemOffset, a.log.Named("subscription"))
	machine := registration.New(resolver, accounts, a.log.Named("registration"),
		registration.WithTTL(a.cfg.SessionTTL))
	router = telegram.NewRouter(a.bot, a.log.Named("telegram"), machine, assembler)

	if err := jobs.Daily("artifact-sweep", "00:00", func() {
		if err := charts.Sweep(); err != nil {
			a.log.Warn("chart sweep failed", zap.Error(err))
			return
		}
		a.log.Info("chart cache swept", zap.String("dir", charts.Dir()))
	}); err != nil {
		return err
	}
	if a.cfg.SessionTTL > 0 {
		every := a.cfg.SessionTTL / 2
		if every < minReapInterval {
			every = minReapInterval
		}
		if err := jobs.Every("session-reaper", every, func() {
			if n := machine.Reap(); n > 0 {
				a.log.Info("expired sessions dropped", zap.Int("sessions", n))
			}
		}); err != nil {
			return err
		}
	}

	if _, err := jobs.Rebuild(ctx, repo, notify, domain.LocalSystemOffset()); err != nil {
		a.log.Error("rebuild jobs failed", zap.Error(err))
		return err
	}
	jobs.Start()
	defer jobs.Stop()

	var srv *fiber.App
	if a.cfg.HTTPAddr != "" {
		srv = httpapi.New(httpapi.Deps{Store: repo, Jobs: jobs, Sessions: machine, Log: a.log.Named("http")})
		go func() {
			if err := srv.Listen(a.cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("http server error", zap.Error(err))
			}
		}()
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := a.bot.GetUpdatesChan(u)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher := telegram.NewDispatcher(func(upd tgbotapi.Update) {
		uctx, cancel := context.WithTimeout(ctx, updateTimeout)
		defer cancel()
		router.HandleUpdate(uctx, upd)
	}, chatIdleTimeout)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")
			a.bot.StopReceivingUpdates()
			dispatcher.Close()

			if srv != nil {
				shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				err := srv.ShutdownWithContext(shCtx)
				cancel()
				if err != nil {
					a.log.Warn("http server shutdown error", zap.Error(err))
				}
			}
			return nil

		case upd := <-updCh:
			dispatcher.Dispatch(upd)
		}
	}
}
