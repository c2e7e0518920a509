// Package scheduler содержит фоновые задачи над подписками: догоняющий
// пересчёт дат списания и напоминания о предстоящих списаниях.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/magabrotheeeer/subtrack/internal/lib/billingcycle"
	"github.com/magabrotheeeer/subtrack/internal/lib/metrics"
	"github.com/magabrotheeeer/subtrack/internal/lib/sl"
	"github.com/magabrotheeeer/subtrack/internal/models"
	"github.com/magabrotheeeer/subtrack/internal/rabbitmq"
)

// Repository методы хранилища, нужные планировщику.
type Repository interface {
	FindOverdueEntries(ctx context.Context, today time.Time) ([]*models.Entry, error)
	UpdateNextBillingDate(ctx context.Context, id int, previous, next time.Time) (int, error)
	FindBillingOn(ctx context.Context, day time.Time) ([]*models.EntryInfo, error)
}

// Publisher публикует события в брокер.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// CatchUpResult итог одного прохода догоняющего пересчёта.
type CatchUpResult struct {
	Found    int
	Advanced int
	Skipped  int
	Failed   int
}

// SchedulerService выполняет периодические задачи. Расписание запусков
// задаёт вызывающая сторона.
type SchedulerService struct {
	repo    Repository
	pub     Publisher
	workers int
	log     *slog.Logger
	now     func() time.Time
}

// NewSchedulerService создает новый экземпляр SchedulerService.
func NewSchedulerService(repo Repository, pub Publisher, workers int, log *slog.Logger) *SchedulerService {
	return &SchedulerService{
		repo:    repo,
		pub:     pub,
		workers: max(workers, 1),
		log:     log,
		now:     time.Now,
	}
}

// WithClock подменяет источник текущего времени.
func (s *SchedulerService) WithClock(now func() time.Time) *SchedulerService {
	s.now = now
	return s
}

// CatchUp переносит устаревшие даты списания автопродлеваемых подписок
// на ближайшую дату после сегодняшней. Новая дата считается от
// сохранённой даты списания, а не от даты начала.
func (s *SchedulerService) CatchUp(ctx context.Context) (CatchUpResult, error) {
	const op = "scheduler.CatchUp"
	log := s.log.With(sl.Op(op))

	now := s.now()
	today := billingcycle.Midnight(now)
	entries, err := s.repo.FindOverdueEntries(ctx, today)
	if err != nil {
		return CatchUpResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if len(entries) == 0 {
		log.Info("no overdue subscriptions found")
		return CatchUpResult{}, nil
	}
	log.Info("found overdue subscriptions", slog.Int("count", len(entries)))

	var advanced, skipped, failed atomic.Int64
	p := pool.New().WithMaxGoroutines(s.workers)
	for _, entry := range entries {
		p.Go(func() {
			switch ok, err := s.advance(ctx, entry, now); {
			case err != nil:
				failed.Add(1)
				metrics.CatchUpFailed.Inc()
				log.Error("failed to advance subscription", slog.Int("id", entry.ID), sl.Err(err))
			case ok:
				advanced.Add(1)
				metrics.CatchUpAdvanced.Inc()
			default:
				skipped.Add(1)
			}
		})
	}
	p.Wait()

	res := CatchUpResult{
		Found:    len(entries),
		Advanced: int(advanced.Load()),
		Skipped:  int(skipped.Load()),
		Failed:   int(failed.Load()),
	}
	log.Info("catch-up finished",
		slog.Int("advanced", res.Advanced),
		slog.Int("skipped", res.Skipped),
		slog.Int("failed", res.Failed))
	return res, nil
}

// advance возвращает false, если запись уже обновил другой процесс.
func (s *SchedulerService) advance(ctx context.Context, entry *models.Entry, now time.Time) (bool, error) {
	next, err := billingcycle.NextOnOrAfter(entry.NextBillingDate, entry.Cycle, entry.RepeatEvery, now)
	if err != nil {
		return false, err
	}
	n, err := s.repo.UpdateNextBillingDate(ctx, entry.ID, entry.NextBillingDate, next)
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	event := models.RenewedEvent{
		EventID:         uuid.NewString(),
		SubscriptionID:  entry.ID,
		Username:        entry.Username,
		ServiceName:     entry.ServiceName,
		PreviousBilling: entry.NextBillingDate,
		NextBillingDate: next,
	}
	if err := s.pub.Publish(rabbitmq.RoutingRenewed, event); err != nil {
		// Дата уже сохранена, событие можно потерять.
		s.log.Warn("failed to publish renewed event", slog.Int("id", entry.ID), sl.Err(err))
	}
	return true, nil
}

// RemindUpcoming публикует напоминания о списаниях, которые наступят завтра.
func (s *SchedulerService) RemindUpcoming(ctx context.Context) (int, error) {
	const op = "scheduler.RemindUpcoming"
	log := s.log.With(sl.Op(op))

	tomorrow := billingcycle.Midnight(s.now()).AddDate(0, 0, 1)
	entriesInfo, err := s.repo.FindBillingOn(ctx, tomorrow)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if len(entriesInfo) == 0 {
		log.Info("no upcoming charges found")
		return 0, nil
	}

	published := 0
	for _, entryInfo := range entriesInfo {
		if err := s.pub.Publish(rabbitmq.RoutingUpcoming, entryInfo); err != nil {
			log.Error("failed to publish message", sl.Err(err))
			continue
		}
		published++
		metrics.RemindersPublished.Inc()
	}
	log.Info("published reminders", slog.Int("count", published), slog.Int("found", len(entriesInfo)))
	return published, nil
}
