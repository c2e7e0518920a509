// Package scheduler содержит приложение планировщика: догоняющий пересчёт
// дат списания и напоминания о предстоящих списаниях по тикерам.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/subtrack/internal/config"
	"github.com/magabrotheeeer/subtrack/internal/lib/sl"
	"github.com/magabrotheeeer/subtrack/internal/rabbitmq"
	schedulerservice "github.com/magabrotheeeer/subtrack/internal/services/scheduler"
	"github.com/magabrotheeeer/subtrack/internal/storage/repository"
)

// App представляет приложение планировщика.
type App struct {
	schedulerService *schedulerservice.SchedulerService
	db               *repository.Storage
	conn             *amqp.Connection
	ch               *amqp.Channel
	catchUpEvery     time.Duration
	remindEvery      time.Duration
	logger           *slog.Logger
}

// New создает новый экземпляр приложения планировщика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "scheduler.New"

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect RabbitMQ: %w", op, err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetQueues())
	if err != nil {
		closeResources(nil, conn, nil, logger)
		return nil, fmt.Errorf("%s: failed to setup RabbitMQ channel: %w", op, err)
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		closeResources(ch, conn, nil, logger)
		return nil, fmt.Errorf("%s: failed to connect storage: %w", op, err)
	}

	if err := repository.WaitReady(ctx, db, 10, 3*time.Second); err != nil {
		closeResources(ch, conn, db, logger)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	svc := schedulerservice.NewSchedulerService(db, rabbitmq.NewPublisher(ch), cfg.Workers, logger)

	return &App{
		schedulerService: svc,
		db:               db,
		conn:             conn,
		ch:               ch,
		catchUpEvery:     cfg.CatchUpInterval,
		remindEvery:      cfg.ReminderInterval,
		logger:           logger,
	}, nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, db *repository.Storage, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if db != nil {
		if err := db.Close(); err != nil {
			logger.Error("failed to close storage", sl.Err(err))
		}
	}
}

// Run запускает задачи планировщика и блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		Every(ctx, a.catchUpEvery, func(ctx context.Context) {
			if _, err := a.schedulerService.CatchUp(ctx); err != nil {
				a.logger.Error("catch-up failed", sl.Err(err))
			}
		})
	}()
	go func() {
		defer wg.Done()
		Every(ctx, a.remindEvery, func(ctx context.Context) {
			if _, err := a.schedulerService.RemindUpcoming(ctx); err != nil {
				a.logger.Error("reminders failed", sl.Err(err))
			}
		})
	}()

	<-ctx.Done()
	wg.Wait()

	a.logger.Info("shutting down scheduler service")
	closeResources(a.ch, a.conn, a.db, a.logger)
	return nil
}

// Every вызывает job сразу и затем с интервалом interval, пока ctx не отменён.
// Запуски не перекрываются.
func Every(ctx context.Context, interval time.Duration, job func(ctx context.Context)) {
	if interval <= 0 {
		interval = time.Hour
	}
	job(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job(ctx)
		}
	}
}
