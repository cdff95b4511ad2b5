// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, репозитории, сервисы, планировщик,
// HTTP-обработчики и собирает всё в один объект App.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/rewards-engine/internal/api"
	"serotonyl.ru/rewards-engine/internal/api/middleware"
	"serotonyl.ru/rewards-engine/internal/config"
	"serotonyl.ru/rewards-engine/internal/db/postgres"
	"serotonyl.ru/rewards-engine/internal/features/activity"
	"serotonyl.ru/rewards-engine/internal/features/admin"
	"serotonyl.ru/rewards-engine/internal/features/announce"
	"serotonyl.ru/rewards-engine/internal/features/antigaming"
	"serotonyl.ru/rewards-engine/internal/features/leaderboard"
	"serotonyl.ru/rewards-engine/internal/features/members"
	"serotonyl.ru/rewards-engine/internal/features/streak"
	"serotonyl.ru/rewards-engine/internal/jobs"
	"serotonyl.ru/rewards-engine/internal/settings"
)

// App содержит все компоненты приложения.
type App struct {
	Server    *http.Server
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool

	cfg     *config.Config
	sqlDB   *sql.DB
	redis   *redis.Client
	limiter *middleware.RateLimiter
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}
	if err := postgres.RunMigrations(ctx, pool, postgres.Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	a := &App{DB: pool, cfg: cfg, sqlDB: postgres.SQLDB(pool)}

	// === 2. Настройки ===
	settingsStore := settings.NewStore(a.sqlDB)
	if cfg.SettingsSeedEnabled {
		if err := seedSettings(ctx, settingsStore); err != nil {
			a.Close()
			return nil, err
		}
	}
	provider := settings.NewProvider(settingsStore, cfg.SettingsRefreshInterval)

	// === 3. Репозитории ===
	memberRepo := members.NewRepository(pool)
	activityRepo := activity.NewRepository(pool)
	streakRepo := streak.NewRepository(pool)
	leaderboardRepo := leaderboard.NewRepository(pool)
	adminRepo := admin.NewRepository(pool)

	// === 4. Сервисы ===
	var gate antigaming.Gate = antigaming.AllowAll{}
	if cfg.AntiGamingEnabled {
		gate = antigaming.NewHeuristicGate(antigaming.NewRepository(pool), provider)
	}

	memberService := members.NewService(memberRepo)
	streakService := streak.NewService(streakRepo)
	activityService := activity.NewService(activityRepo, memberService, gate, streakService, leaderboardRepo, provider)
	engine := leaderboard.NewEngine(leaderboardRepo, provider)
	adminService := admin.NewService(adminRepo, cfg)

	// === 5. Планировщик ===
	announcer, err := newAnnouncer(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Scheduler = jobs.NewScheduler(engine, announcer, a.newLocker(ctx), provider, cfg.LeaderboardRetentionWeeks)

	// === 6. HTTP ===
	a.limiter = middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	handler := api.NewHandler(activityService, engine, a.Scheduler, adminService, provider)

	a.Server = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api.NewRouter(handler, a.limiter),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	return a, nil
}

// Run запускает планировщик (если включён) и HTTP-сервер.
// Блокируется до остановки сервера.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.SchedulerEnabled {
		if err := a.Scheduler.Start(ctx); err != nil {
			return fmt.Errorf("ошибка запуска планировщика: %w", err)
		}
	}

	log.WithField("addr", a.Server.Addr).Info("HTTP-сервер слушает")
	if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ошибка HTTP-сервера: %w", err)
	}
	return nil
}

// Shutdown останавливает сервер, планировщик и закрывает соединения.
func (a *App) Shutdown(ctx context.Context) {
	if err := a.Server.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("HTTP-сервер остановлен с ошибкой")
	}
	if a.Scheduler.State() == jobs.StateRunning {
		if err := a.Scheduler.Stop(); err != nil {
			log.WithError(err).Warn("Ошибка остановки планировщика")
		}
	}
	a.Close()
}

// Close освобождает ресурсы. Пул закрывается последним.
func (a *App) Close() {
	if a.limiter != nil {
		a.limiter.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.WithError(err).Debug("Ошибка закрытия Redis")
		}
	}
	if a.sqlDB != nil {
		_ = a.sqlDB.Close()
	}
	a.DB.Close()
}

func seedSettings(ctx context.Context, store *settings.Store) error {
	entries, err := settings.DefaultSeed()
	if err != nil {
		return fmt.Errorf("ошибка чтения настроек по умолчанию: %w", err)
	}
	n, err := store.SeedMissing(ctx, entries)
	if err != nil {
		return fmt.Errorf("ошибка заполнения system_settings: %w", err)
	}
	if n > 0 {
		log.WithField("inserted", n).Info("Добавлены настройки по умолчанию")
	}
	return nil
}

// newAnnouncer — Telegram, если заданы токен и чат, иначе только лог.
func newAnnouncer(cfg *config.Config) (announce.Announcer, error) {
	if !cfg.AnnouncerEnabled() {
		return announce.Noop{}, nil
	}
	tg, err := announce.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации анонсов: %w", err)
	}
	log.WithField("chat_id", cfg.TelegramChatID).Info("Анонсы победителей включены")
	return tg, nil
}

// newLocker — блокировка через Redis, когда инстансов несколько.
// Недоступный Redis не мешает старту: работаем с локальной блокировкой.
func (a *App) newLocker(ctx context.Context) jobs.Locker {
	if a.cfg.RedisAddr == "" {
		return jobs.LocalLocker{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.RedisAddr,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).WithField("addr", a.cfg.RedisAddr).
			Warn("Redis недоступен, планировщик работает без распределённой блокировки")
		_ = client.Close()
		return jobs.LocalLocker{}
	}

	a.redis = client
	log.WithField("addr", a.cfg.RedisAddr).Info("Распределённая блокировка планировщика через Redis")
	return jobs.NewRedisLocker(client)
}
