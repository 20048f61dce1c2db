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
	"go.uber.org/zap"

	"github.com/ykvlv/runready/internal/config"
	"github.com/ykvlv/runready/internal/metrics"
	"github.com/ykvlv/runready/internal/scheduler"
	"github.com/ykvlv/runready/internal/store"
	"github.com/ykvlv/runready/internal/telegram"
)

type App struct {
	cfg     config.Config
	log     *zap.Logger
	bot     *tgbotapi.BotAPI
	metrics *metrics.Metrics
	httpSrv *http.Server
	repo    store.Repo
	router  *telegram.Router
	sched   *scheduler.Scheduler
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	m := metrics.New()
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      newMux(m),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	return &App{cfg: cfg, log: log, bot: bot, metrics: m, httpSrv: srv}, nil
}

func newMux(m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", m.Handler())
	return mux
}

func (a *App) Run(ctx context.Context) error {
	loc := a.cfg.Location()
	a.log.Info("starting runready",
		zap.String("http", a.cfg.HTTPAddr),
		zap.String("tz", loc.String()),
		zap.Duration("poll", a.cfg.PollInterval),
	)

	// Open SQLite and run migrations.
	repo, err := store.OpenSQLite(ctx, a.cfg.DBPath)
	if err != nil {
		a.log.Error("open sqlite failed", zap.Error(err))
		return err
	}
	a.repo = repo
	a.log.Info("sqlite ready", zap.String("path", a.cfg.DBPath))

	// The scheduler sends through the router, which is built right after.
	a.sched = scheduler.New(repo, a.log, scheduler.SenderFunc(func(chatID int64, text string) error {
		return a.router.SendMessage(chatID, text)
	}), scheduler.Options{
		Interval: a.cfg.PollInterval,
		Batch:    a.cfg.DueBatch,
		Location: loc,
		Metrics:  a.metrics,
	})
	a.router = telegram.NewRouter(a.bot, a.log, a.repo, a.sched, loc, a.metrics)

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := a.bot.GetUpdatesChan(u)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.sched.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")
			a.bot.StopReceivingUpdates()

			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := a.httpSrv.Shutdown(shCtx)
			cancel()

			if err != nil {
				a.log.Warn("http server shutdown error", zap.Error(err))
			}
			if a.repo != nil {
				_ = a.repo.Close()
			}
			return nil

		case upd := <-updCh:
			a.router.HandleUpdate(ctx, upd)
		}
	}
}
