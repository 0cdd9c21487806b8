package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"tutorbase/core/config"
	"tutorbase/core/database"
	"tutorbase/core/logger"
	"tutorbase/core/middleware"
	"tutorbase/core/validator"
	"tutorbase/modules/org"
	"tutorbase/modules/reminder"
	remindersvc "tutorbase/modules/reminder/service"
	"tutorbase/modules/schedule"
	schedcache "tutorbase/modules/schedule/cache"
	schedsvc "tutorbase/modules/schedule/service"
)

// Run boots the API server and blocks until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.LogLevel)

	db, err := database.InitDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.CORS())
	e.Validator = validator.New()

	mw := middleware.NewMiddleware(cfg)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	var reminders schedsvc.ReminderScheduler
	if cfg.Reminder.Enabled {
		client := asynq.NewClient(redisOpt)
		defer client.Close()
		reminders = remindersvc.NewReminderService(client, time.Duration(cfg.Reminder.LeadMinutes)*time.Minute)
		go func() {
			if err := reminder.RunWorker(redisOpt, db); err != nil {
				logger.Error("Server:ReminderWorker:Stopped", err)
			}
		}()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	conflictCache := schedcache.NewConflictCache(rdb)

	orgSvc := org.Init(e, db, mw)
	schedule.Init(e, db, mw, orgSvc, reminders, conflictCache)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("Server:Shutdown", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(ctx)
	}
}
