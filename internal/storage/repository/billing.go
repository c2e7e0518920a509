package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/subtrack/internal/models"
)

// ListPlans возвращает тарифы сервиса, отсортированные по цене.
func (s *Storage) ListPlans(ctx context.Context) ([]*models.Plan, error) {
	const op = "storage.ListPlans"

	rows, err := s.DB.QueryContext(ctx, `SELECT id, name, price_cents, billing_cycle
			  FROM plans
			  ORDER BY price_cents, id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Plan
	for rows.Next() {
		var p models.Plan
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Cycle); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// GetPlan возвращает тариф по ID или ErrNotFound.
func (s *Storage) GetPlan(ctx context.Context, id int) (*models.Plan, error) {
	const op = "storage.GetPlan"

	var p models.Plan
	err := s.DB.QueryRowContext(ctx, `SELECT id, name, price_cents, billing_cycle
			  FROM plans WHERE id = $1`, id).Scan(&p.ID, &p.Name, &p.PriceCents, &p.Cycle)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return &p, nil
}

// GetUserBilling возвращает текущий тариф пользователя или ErrNotFound,
// если пользователь ни разу ничего не оформлял.
func (s *Storage) GetUserBilling(ctx context.Context, username string) (*models.UserBilling, error) {
	const op = "storage.GetUserBilling"

	query := `SELECT u.uid, u.username, p.id, p.name, p.price_cents, p.billing_cycle,
			      b.expires_at, COALESCE(b.provider_subscription_id, '')
			  FROM user_billing b
			  JOIN users u ON u.uid = b.user_uid
			  JOIN plans p ON p.id = b.plan_id
			  WHERE u.username = $1`
	var ub models.UserBilling
	err := s.DB.QueryRowContext(ctx, query, username).Scan(&ub.UserUID, &ub.Username,
		&ub.Plan.ID, &ub.Plan.Name, &ub.Plan.PriceCents, &ub.Plan.Cycle,
		&ub.ExpiresAt, &ub.ProviderSubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return &ub, nil
}

// GetUserUID возвращает UID пользователя по имени.
func (s *Storage) GetUserUID(ctx context.Context, username string) (string, error) {
	const op = "storage.GetUserUID"

	var uid string
	err := s.DB.QueryRowContext(ctx, `SELECT uid FROM users WHERE username = $1`, username).Scan(&uid)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, notFound(err))
	}
	return uid, nil
}

// SavePendingPlanChange запоминает подтверждённую, но ещё не оплаченную
// смену тарифа. Тариф переключает обработчик уведомлений провайдера.
func (s *Storage) SavePendingPlanChange(ctx context.Context, userUID string, planID int, paymentID string) error {
	const op = "storage.SavePendingPlanChange"

	query := `INSERT INTO user_billing (user_uid, plan_id, pending_plan_id, last_payment_id)
			  VALUES ($1, (SELECT id FROM plans WHERE billing_cycle = 'free' ORDER BY id LIMIT 1), $2, $3)
			  ON CONFLICT (user_uid) DO UPDATE
			  SET pending_plan_id = EXCLUDED.pending_plan_id,
			      last_payment_id = EXCLUDED.last_payment_id,
			      updated_at = NOW()`
	_, err := s.DB.ExecContext(ctx, query, userUID, planID, sql.NullString{String: paymentID, Valid: paymentID != ""})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
