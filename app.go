package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/taskflow/pkg/auth"
	"github.com/harrisonrobin/taskflow/pkg/config"
	"github.com/harrisonrobin/taskflow/pkg/google"
	"github.com/harrisonrobin/taskflow/pkg/logging"
	"github.com/harrisonrobin/taskflow/pkg/model"
	"github.com/harrisonrobin/taskflow/pkg/notify"
	"github.com/harrisonrobin/taskflow/pkg/reminder"
	"github.com/harrisonrobin/taskflow/pkg/scheduler"
	"github.com/harrisonrobin/taskflow/pkg/service"
	"github.com/harrisonrobin/taskflow/pkg/store"
	"github.com/harrisonrobin/taskflow/pkg/syncer"
)

const calendarTimeout = 30 * time.Second

type taskStore interface {
	service.Store
	EnsureSchema(ctx context.Context) error
}

// app holds the wired process. close releases everything opened by
// newApp in reverse order.
type app struct {
	logger    zerolog.Logger
	cfg       *config.Config
	store     taskStore
	service   *service.TaskService
	syncer    *syncer.Syncer
	scheduler *scheduler.Scheduler

	closers []func()
}

func loadConfig(configPath string) (*config.Config, zerolog.Logger, io.Closer, error) {
	logger := logging.NewDefault()

	path, err := config.GetConfigPath(configPath)
	if err != nil {
		logger.Error().Err(err).Msg("failed to resolve config path")
		return nil, logger, nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("failed to read config")
		return nil, logger, nil, err
	}

	appLogger, closer, err := logging.New(cfg.Env, cfg.Log)
	if err != nil {
		logger.Error().Err(err).Str("env", cfg.Env).Msg("failed to init application logger")
		return nil, logger, nil, err
	}
	appLogger.Info().Str("env", cfg.Env).Str("path", path).Msg("read config")
	return cfg, appLogger, closer, nil
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, logger, logCloser, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	a := &app{logger: logger, cfg: cfg}
	a.closers = append(a.closers, func() { _ = logCloser.Close() })

	if err := a.connectStore(ctx); err != nil {
		a.close()
		return nil, err
	}

	var notifier service.Notifier = notify.NewLogNotifier(logger)
	var lockOpts []scheduler.Option
	if cfg.Redis.Enabled() {
		client, err := a.connectRedis(ctx)
		if err != nil {
			a.close()
			return nil, err
		}
		notifier = notify.NewRedisNotifier(logger, client, cfg.Redis.Channel)
		lockOpts = append(lockOpts, scheduler.WithLocker(
			scheduler.NewRedisLock(logger, client, cfg.Redis.LockKey, cfg.Redis.LockTTL),
		))
	}

	provider := a.calendarProvider(ctx)

	a.service = service.NewTaskService(logger, a.store, notifier, service.Settings{
		DefaultCalendarID: cfg.Calendar.DefaultCalendarID,
		UserCalendarMap:   cfg.Calendar.UserCalendarMap,
		GlobalVerifiers:   cfg.Calendar.GlobalVerifiers,
		ReminderCooldown:  cfg.Reminder.Cooldown(),
	}, service.WithCalendarWriter(provider))

	a.syncer = syncer.New(logger, provider, a.service, reminder.NewDispatcher(logger, a.service))
	a.scheduler = scheduler.New(logger, a.syncer, cfg.Sync.Interval, cfg.Sync.RunOnStart, lockOpts...)
	return a, nil
}

func (a *app) connectStore(ctx context.Context) error {
	cfg := a.cfg.Postgres
	if !cfg.Enabled() {
		a.logger.Warn().Msg("postgres not configured, using in-memory store")
		a.store = store.NewMemory()
		return nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnURL())
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to parse postgres config")
		return err
	}
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to connect to postgres")
		return err
	}
	a.closers = append(a.closers, func() {
		pool.Close()
		a.logger.Info().Msg("disconnected from postgres")
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		a.logger.Error().Err(err).Msg("failed to ping postgres")
		return err
	}
	a.logger.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Msg("connected to postgres")

	a.store = store.NewPostgres(a.logger, pool)
	return nil
}

func (a *app) connectRedis(ctx context.Context) (*redis.Client, error) {
	cfg := a.cfg.Redis
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	a.closers = append(a.closers, func() { _ = client.Close() })

	if err := client.Ping(ctx).Err(); err != nil {
		a.logger.Error().Err(err).Str("addr", cfg.Addr).Msg("failed to ping redis")
		return nil, err
	}
	a.logger.Info().Str("addr", cfg.Addr).Msg("connected to redis")
	return client, nil
}

// calendarProvider connects to Google Calendar. Without credentials the
// process still serves the API and sweeps reminders; every calendar call
// fails with the auth error instead.
func (a *app) calendarProvider(ctx context.Context) calendarBackend {
	srv, err := a.calendarService(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("google calendar unavailable")
		return offlineCalendar{err: err}
	}
	return google.NewProvider(a.logger, srv, google.Window{
		Lookback:  a.cfg.Calendar.Lookback(),
		Lookahead: a.cfg.Calendar.Lookahead(),
	})
}

func (a *app) calendarService(ctx context.Context) (*calendar.Service, error) {
	client, err := auth.GetClient(ctx, a.logger, googleFiles(a.cfg), google.Scopes)
	if err != nil {
		return nil, err
	}
	client.Timeout = calendarTimeout
	return google.NewService(ctx, client)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func googleFiles(cfg *config.Config) auth.Files {
	return auth.Files{
		CredentialsFile:    cfg.Google.CredentialsFile,
		TokenFile:          cfg.Google.TokenFile,
		ServiceAccountFile: cfg.Google.ServiceAccountFile,
	}
}

type calendarBackend interface {
	syncer.Provider
	service.CalendarWriter
}

type offlineCalendar struct {
	err error
}

func (o offlineCalendar) ListSchedules(context.Context, string) ([]model.ScheduleRef, error) {
	return nil, o.unavailable()
}

func (o offlineCalendar) GetSchedule(context.Context, string, string) (model.ExternalSchedule, error) {
	return model.ExternalSchedule{}, o.unavailable()
}

func (o offlineCalendar) CreateSchedule(context.Context, string, model.ScheduleDraft) (string, error) {
	return "", o.unavailable()
}

func (o offlineCalendar) unavailable() error {
	if errors.Is(o.err, auth.ErrNoToken) {
		return o.err
	}
	return fmt.Errorf("calendar unavailable: %w", o.err)
}
