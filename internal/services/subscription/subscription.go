// Package subscription содержит бизнес-логику для управления
// отслеживаемыми подписками: расчёт даты следующего списания,
// кеширование и календарь предстоящих списаний.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/magabrotheeeer/subtrack/internal/lib/billingcycle"
	"github.com/magabrotheeeer/subtrack/internal/lib/sl"
	"github.com/magabrotheeeer/subtrack/internal/models"
	"github.com/magabrotheeeer/subtrack/internal/storage/repository"
)

// RoleAdmin роль, которой доступны чужие подписки.
const RoleAdmin = "admin"

var (
	// ErrNotFound подписка не существует или принадлежит другому пользователю.
	ErrNotFound = errors.New("subscription not found")
	// ErrInvalidDate дата в запросе не в формате 02-01-2006.
	ErrInvalidDate = errors.New("invalid date, expected DD-MM-YYYY")
	// ErrInvalidPeriod конец периода раньше начала.
	ErrInvalidPeriod = errors.New("period end is before period start")
)

// Repository определяет методы для работы с подписками в хранилище.
type Repository interface {
	// CreateEntry добавляет новую подписку и возвращает её ID.
	CreateEntry(ctx context.Context, entry models.Entry) (int, error)
	// RemoveEntry удаляет подписку по ID и возвращает количество удалённых записей.
	RemoveEntry(ctx context.Context, id int) (int, error)
	// ReadEntry возвращает подписку по ID.
	ReadEntry(ctx context.Context, id int) (*models.Entry, error)
	// UpdateEntry обновляет данные подписки по ID.
	UpdateEntry(ctx context.Context, entry models.Entry, id int) (int, error)
	// ListEntries возвращает подписки пользователя с пагинацией.
	ListEntries(ctx context.Context, username string, limit, offset int) ([]*models.Entry, error)
	// ListAllEntries возвращает все подписки с пагинацией.
	ListAllEntries(ctx context.Context, limit, offset int) ([]*models.Entry, error)
	// ListActiveEntries возвращает активные подписки пользователя.
	ListActiveEntries(ctx context.Context, username string) ([]*models.Entry, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// Service реализует работу с подписками, включая кеширование.
type Service struct {
	repo  Repository
	cache Cache
	ttl   time.Duration
	log   *slog.Logger
	now   func() time.Time
}

// NewService создает новый экземпляр Service.
func NewService(repo Repository, cache Cache, ttl time.Duration, log *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Service{
		repo:  repo,
		cache: cache,
		ttl:   ttl,
		log:   log,
		now:   time.Now,
	}
}

// WithClock подменяет источник текущего времени.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func cacheKey(id int) string {
	return "subscription:" + strconv.Itoa(id)
}

func parseDate(value string) (time.Time, error) {
	t, err := time.Parse(models.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return t, nil
}

// schedule разобранные из запроса поля расписания.
type schedule struct {
	start    time.Time
	cycle    billingcycle.Cycle
	repeat   int
	explicit *time.Time
}

func parseSchedule(req models.DummyEntry) (schedule, error) {
	var sc schedule
	var err error
	if sc.start, err = parseDate(req.StartDate); err != nil {
		return sc, err
	}
	if sc.cycle, err = billingcycle.ParseCycle(req.Cycle); err != nil {
		return sc, err
	}
	sc.repeat = max(req.RepeatEvery, 1)
	if req.NextBillingDate != "" {
		next, err := parseDate(req.NextBillingDate)
		if err != nil {
			return sc, err
		}
		sc.explicit = &next
	}
	return sc, nil
}

// Create сохраняет новую подписку. Если дата следующего списания не
// указана, она вычисляется от даты начала.
func (s *Service) Create(ctx context.Context, username, userUID string, req models.DummyEntry) (*models.Entry, error) {
	const op = "subscription.Create"
	log := s.log.With(sl.Op(op), slog.String("username", username))

	sc, err := parseSchedule(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	next := lo.FromPtr(sc.explicit)
	if sc.explicit == nil {
		next, err = billingcycle.NextOnOrAfter(sc.start, sc.cycle, sc.repeat, s.now())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	entry := models.Entry{
		ServiceName:     req.ServiceName,
		Price:           req.Price,
		Username:        username,
		UserUID:         userUID,
		StartDate:       sc.start,
		Cycle:           sc.cycle,
		RepeatEvery:     sc.repeat,
		NextBillingDate: next,
		AutoRenew:       lo.FromPtrOr(req.AutoRenew, true),
		IsActive:        true,
	}

	id, err := s.repo.CreateEntry(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	entry.ID = id
	log.Info("created subscription", slog.Int("id", id), slog.Time("next_billing_date", next))

	s.store(ctx, log, &entry)
	return &entry, nil
}

// Read возвращает подписку по ID, используя кеш или репозиторий.
// Чужая подписка для обычного пользователя выглядит как несуществующая.
func (s *Service) Read(ctx context.Context, username, role string, id int) (*models.Entry, error) {
	const op = "subscription.Read"
	log := s.log.With(sl.Op(op), slog.Int("id", id))

	entry, err := s.load(ctx, log, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !canAccess(entry, username, role) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return entry, nil
}

// Update обновляет подписку. Дата следующего списания пересчитывается от
// даты начала, только если изменилось расписание и явная дата не указана.
func (s *Service) Update(ctx context.Context, username, role string, id int, req models.DummyEntry) (*models.Entry, error) {
	const op = "subscription.Update"
	log := s.log.With(sl.Op(op), slog.Int("id", id))

	current, err := s.Read(ctx, username, role, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sc, err := parseSchedule(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	updated := *current
	updated.ServiceName = req.ServiceName
	updated.Price = req.Price
	updated.StartDate = sc.start
	updated.Cycle = sc.cycle
	updated.RepeatEvery = sc.repeat
	updated.AutoRenew = lo.FromPtrOr(req.AutoRenew, current.AutoRenew)

	scheduleChanged := !sc.start.Equal(current.StartDate) ||
		sc.cycle != current.Cycle ||
		sc.repeat != current.RepeatEvery
	switch {
	case sc.explicit != nil:
		updated.NextBillingDate = *sc.explicit
	case scheduleChanged:
		updated.NextBillingDate, err = billingcycle.NextOnOrAfter(sc.start, sc.cycle, sc.repeat, s.now())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	n, err := s.repo.UpdateEntry(ctx, updated, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	log.Info("updated subscription",
		slog.Bool("recomputed", sc.explicit == nil && scheduleChanged),
		slog.Time("next_billing_date", updated.NextBillingDate))

	s.store(ctx, log, &updated)
	return &updated, nil
}

// Remove удаляет подписку по ID и инвалидирует кеш.
func (s *Service) Remove(ctx context.Context, username, role string, id int) error {
	const op = "subscription.Remove"
	log := s.log.With(sl.Op(op), slog.Int("id", id))

	if _, err := s.Read(ctx, username, role, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Invalidate(ctx, cacheKey(id)); err != nil {
		log.Warn("failed to remove from cache", sl.Err(err))
	}
	n, err := s.repo.RemoveEntry(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	log.Info("removed subscription")
	return nil
}

// List возвращает список подписок в зависимости от роли пользователя.
func (s *Service) List(ctx context.Context, username, role string, limit, offset int) ([]*models.Entry, error) {
	const op = "subscription.List"

	var entries []*models.Entry
	var err error
	if role == RoleAdmin {
		entries, err = s.repo.ListAllEntries(ctx, limit, offset)
	} else {
		entries, err = s.repo.ListEntries(ctx, username, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return entries, nil
}

// Calendar перечисляет списания активных подписок пользователя в отрезке
// [from, to] и их сумму. Прогноз строится от сохранённой даты следующего
// списания, прошедшие списания в него не попадают.
func (s *Service) Calendar(ctx context.Context, username, from, to string) (*models.Calendar, error) {
	const op = "subscription.Calendar"

	start, err := parseDate(from)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	end, err := parseDate(to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidPeriod)
	}

	entries, err := s.repo.ListActiveEntries(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	charges := make([]models.Charge, 0)
	for _, e := range entries {
		dates, err := billingcycle.Occurrences(e.NextBillingDate, e.Cycle, e.RepeatEvery, start, end)
		if err != nil {
			s.log.Warn("skipping subscription with broken schedule",
				sl.Op(op), slog.Int("id", e.ID), sl.Err(err))
			continue
		}
		charges = append(charges, lo.Map(dates, func(d time.Time, _ int) models.Charge {
			return models.Charge{
				SubscriptionID: e.ID,
				ServiceName:    e.ServiceName,
				Date:           d,
				Price:          e.Price,
			}
		})...)
	}
	sortCharges(charges)

	return &models.Calendar{
		From:    start,
		To:      end,
		Charges: charges,
		Total:   lo.SumBy(charges, func(c models.Charge) int64 { return c.Price }),
	}, nil
}

func (s *Service) load(ctx context.Context, log *slog.Logger, id int) (*models.Entry, error) {
	var cached models.Entry
	found, err := s.cache.Get(ctx, cacheKey(id), &cached)
	if err != nil {
		log.Warn("failed to read from cache", sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	entry, err := s.repo.ReadEntry(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.store(ctx, log, entry)
	return entry, nil
}

func (s *Service) store(ctx context.Context, log *slog.Logger, entry *models.Entry) {
	if err := s.cache.Set(ctx, cacheKey(entry.ID), entry, s.ttl); err != nil {
		log.Warn("failed to cache subscription", slog.String("key", cacheKey(entry.ID)), sl.Err(err))
	}
}

func sortCharges(charges []models.Charge) {
	slices.SortStableFunc(charges, func(a, b models.Charge) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return a.SubscriptionID - b.SubscriptionID
	})
}

func canAccess(entry *models.Entry, username, role string) bool {
	return role == RoleAdmin || entry.Username == username
}
