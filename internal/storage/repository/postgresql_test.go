package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subtrack/internal/lib/billingcycle"
	"github.com/magabrotheeeer/subtrack/internal/lib/proration"
	"github.com/magabrotheeeer/subtrack/internal/migrations"
	"github.com/magabrotheeeer/subtrack/internal/models"
	"github.com/magabrotheeeer/subtrack/internal/storage/pgtest"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func setupStorage(t *testing.T) *Storage {
	t.Helper()
	storage, err := New(pgtest.Start(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })
	require.NoError(t, migrations.Run(storage.DB, pgtest.MigrationsPath(t)))
	require.NoError(t, CheckDatabaseReady(context.Background(), storage))
	return storage
}

func createUser(t *testing.T, s *Storage, username string) string {
	t.Helper()
	uid := uuid.NewString()
	_, err := s.DB.Exec(`INSERT INTO users (uid, username, email) VALUES ($1, $2, $3)`,
		uid, username, username+"@example.com")
	require.NoError(t, err)
	return uid
}

func newEntry(username, uid, service string, next time.Time) models.Entry {
	return models.Entry{
		ServiceName:     service,
		Price:           999,
		Username:        username,
		UserUID:         uid,
		StartDate:       date(2024, 1, 15),
		Cycle:           billingcycle.Monthly,
		RepeatEvery:     1,
		NextBillingDate: next,
		AutoRenew:       true,
		IsActive:        true,
	}
}

func TestStorage_EntryLifecycle(t *testing.T) {
	s := setupStorage(t)
	ctx := context.Background()
	uid := createUser(t, s, "alice")

	id, err := s.CreateEntry(ctx, newEntry("alice", uid, "Netflix", date(2024, 4, 15)))
	require.NoError(t, err)
	require.Positive(t, id)

	got, err := s.ReadEntry(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Netflix", got.ServiceName)
	assert.Equal(t, billingcycle.Monthly, got.Cycle)
	assert.Equal(t, uid, got.UserUID)
	assert.True(t, date(2024, 4, 15).Equal(got.NextBillingDate))

	upd := *got
	upd.Cycle = billingcycle.Yearly
	upd.NextBillingDate = date(2025, 1, 15)
	n, err := s.UpdateEntry(ctx, upd, id)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err = s.ReadEntry(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, billingcycle.Yearly, got.Cycle)

	list, err := s.ListEntries(ctx, "alice", 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	n, err = s.RemoveEntry(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.ReadEntry(ctx, id)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStorage_OverdueAndCatchUpUpdate(t *testing.T) {
	s := setupStorage(t)
	ctx := context.Background()
	uid := createUser(t, s, "bob")
	today := date(2024, 3, 10)

	overdue, err := s.CreateEntry(ctx, newEntry("bob", uid, "Spotify", date(2024, 2, 15)))
	require.NoError(t, err)
	_, err = s.CreateEntry(ctx, newEntry("bob", uid, "Future", date(2024, 3, 20)))
	require.NoError(t, err)
	manual := newEntry("bob", uid, "Manual", date(2024, 1, 1))
	manual.AutoRenew = false
	_, err = s.CreateEntry(ctx, manual)
	require.NoError(t, err)

	found, err := s.FindOverdueEntries(ctx, today)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, overdue, found[0].ID)

	n, err := s.UpdateNextBillingDate(ctx, overdue, date(2024, 2, 15), date(2024, 3, 15))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Дата уже перенесена, повторное обновление со старым значением не применяется.
	n, err = s.UpdateNextBillingDate(ctx, overdue, date(2024, 2, 15), date(2024, 3, 15))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	found, err = s.FindOverdueEntries(ctx, today)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestStorage_FindBillingOn(t *testing.T) {
	s := setupStorage(t)
	ctx := context.Background()
	uid := createUser(t, s, "carol")

	_, err := s.CreateEntry(ctx, newEntry("carol", uid, "iCloud", date(2024, 3, 11)))
	require.NoError(t, err)
	_, err = s.CreateEntry(ctx, newEntry("carol", uid, "YouTube", date(2024, 3, 12)))
	require.NoError(t, err)

	infos, err := s.FindBillingOn(ctx, date(2024, 3, 11))
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "carol@example.com", infos[0].Email)
	assert.Equal(t, "iCloud", infos[0].ServiceName)
}

func TestStorage_Billing(t *testing.T) {
	s := setupStorage(t)
	ctx := context.Background()
	uid := createUser(t, s, "dave")

	plans, err := s.ListPlans(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 4)
	assert.Equal(t, proration.CycleFree, plans[0].Cycle)

	_, err = s.GetUserBilling(ctx, "dave")
	require.ErrorIs(t, err, ErrNotFound)

	var pro *models.Plan
	for _, p := range plans {
		if p.Cycle == proration.CycleMonthly {
			pro = p
		}
	}
	require.NotNil(t, pro)

	expires := time.Now().Add(10 * 24 * time.Hour).UTC().Truncate(time.Second)
	_, err = s.DB.Exec(`INSERT INTO user_billing (user_uid, plan_id, expires_at, provider_subscription_id)
		VALUES ($1, $2, $3, 'sub_123')`, uid, pro.ID, expires)
	require.NoError(t, err)

	ub, err := s.GetUserBilling(ctx, "dave")
	require.NoError(t, err)
	assert.Equal(t, uid, ub.UserUID)
	assert.Equal(t, "Pro", ub.Plan.Name)
	assert.Equal(t, "sub_123", ub.ProviderSubscriptionID)
	require.NotNil(t, ub.ExpiresAt)
	assert.True(t, expires.Equal(*ub.ExpiresAt))

	got, err := s.GetPlan(ctx, pro.ID)
	require.NoError(t, err)
	assert.Equal(t, pro, got)

	_, err = s.GetPlan(ctx, 9999)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SavePendingPlanChange(ctx, uid, plans[3].ID, "pay_1"))
	var pending int
	require.NoError(t, s.DB.QueryRow(`SELECT pending_plan_id FROM user_billing WHERE user_uid = $1`, uid).Scan(&pending))
	assert.Equal(t, plans[3].ID, pending)

	gotUID, err := s.GetUserUID(ctx, "dave")
	require.NoError(t, err)
	assert.Equal(t, uid, gotUID)
}
