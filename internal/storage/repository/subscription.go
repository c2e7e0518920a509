package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/subtrack/internal/models"
)

const entryColumns = `id, service_name, price, username, user_uid, start_date,
	cycle, repeat_every, next_billing_date, auto_renew, is_active`

func scanEntry(row scanner) (*models.Entry, error) {
	var e models.Entry
	var userUID sql.NullString
	if err := row.Scan(&e.ID, &e.ServiceName, &e.Price, &e.Username, &userUID, &e.StartDate,
		&e.Cycle, &e.RepeatEvery, &e.NextBillingDate, &e.AutoRenew, &e.IsActive); err != nil {
		return nil, err
	}
	e.UserUID = userUID.String
	return &e, nil
}

func scanEntries(rows *sql.Rows) ([]*models.Entry, error) {
	defer func() {
		_ = rows.Close()
	}()
	var result []*models.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func nullUID(uid string) sql.NullString {
	return sql.NullString{String: uid, Valid: uid != ""}
}

// CreateEntry вставляет новую запись подписки и возвращает её ID.
func (s *Storage) CreateEntry(ctx context.Context, entry models.Entry) (int, error) {
	const op = "storage.CreateEntry"

	query := `INSERT INTO subscriptions (service_name, price, username, user_uid, start_date,
			      cycle, repeat_every, next_billing_date, auto_renew, is_active)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			  RETURNING id`
	var newID int
	err := s.DB.QueryRowContext(ctx, query,
		entry.ServiceName, entry.Price, entry.Username, nullUID(entry.UserUID), entry.StartDate,
		entry.Cycle, entry.RepeatEvery, entry.NextBillingDate, entry.AutoRenew, entry.IsActive).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// RemoveEntry удаляет подписку по ID и возвращает количество удалённых строк.
func (s *Storage) RemoveEntry(ctx context.Context, id int) (int, error) {
	const op = "storage.RemoveEntry"

	result, err := s.DB.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ReadEntry возвращает подписку по ID или ErrNotFound.
func (s *Storage) ReadEntry(ctx context.Context, id int) (*models.Entry, error) {
	const op = "storage.ReadEntry"

	row := s.DB.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM subscriptions WHERE id = $1`, id)
	entry, err := scanEntry(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return entry, nil
}

// UpdateEntry обновляет подписку по ID и возвращает количество изменённых строк.
func (s *Storage) UpdateEntry(ctx context.Context, entry models.Entry, id int) (int, error) {
	const op = "storage.UpdateEntry"

	query := `UPDATE subscriptions
			  SET service_name = $1, price = $2, start_date = $3, cycle = $4,
			      repeat_every = $5, next_billing_date = $6, auto_renew = $7, is_active = $8
			  WHERE id = $9`
	result, err := s.DB.ExecContext(ctx, query,
		entry.ServiceName, entry.Price, entry.StartDate, entry.Cycle,
		entry.RepeatEvery, entry.NextBillingDate, entry.AutoRenew, entry.IsActive, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ListEntries возвращает подписки пользователя с пагинацией.
func (s *Storage) ListEntries(ctx context.Context, username string, limit, offset int) ([]*models.Entry, error) {
	const op = "storage.ListEntries"

	rows, err := s.DB.QueryContext(ctx, `SELECT `+entryColumns+`
			  FROM subscriptions
			  WHERE username = $1
			  ORDER BY id
			  LIMIT $2 OFFSET $3`, username, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	result, err := scanEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListAllEntries возвращает все подписки с пагинацией.
func (s *Storage) ListAllEntries(ctx context.Context, limit, offset int) ([]*models.Entry, error) {
	const op = "storage.ListAllEntries"

	rows, err := s.DB.QueryContext(ctx, `SELECT `+entryColumns+`
			  FROM subscriptions
			  ORDER BY id
			  LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	result, err := scanEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListActiveEntries возвращает все активные подписки пользователя.
func (s *Storage) ListActiveEntries(ctx context.Context, username string) ([]*models.Entry, error) {
	const op = "storage.ListActiveEntries"

	rows, err := s.DB.QueryContext(ctx, `SELECT `+entryColumns+`
			  FROM subscriptions
			  WHERE username = $1 AND is_active = true
			  ORDER BY next_billing_date, id`, username)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	result, err := scanEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// FindOverdueEntries находит активные автопродлеваемые подписки,
// дата следующего списания которых раньше today.
func (s *Storage) FindOverdueEntries(ctx context.Context, today time.Time) ([]*models.Entry, error) {
	const op = "storage.FindOverdueEntries"

	rows, err := s.DB.QueryContext(ctx, `SELECT `+entryColumns+`
			  FROM subscriptions
			  WHERE next_billing_date < $1
			    AND is_active = true
			    AND auto_renew = true
			  ORDER BY id`, today)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	result, err := scanEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpdateNextBillingDate переносит дату следующего списания. Запись
// обновляется, только если дата не изменилась с момента чтения.
func (s *Storage) UpdateNextBillingDate(ctx context.Context, id int, previous, next time.Time) (int, error) {
	const op = "storage.UpdateNextBillingDate"

	res, err := s.DB.ExecContext(ctx, `UPDATE subscriptions
		      SET next_billing_date = $1
		      WHERE id = $2 AND next_billing_date = $3`, next, id, previous)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// FindBillingOn находит активные подписки со списанием в день day.
func (s *Storage) FindBillingOn(ctx context.Context, day time.Time) ([]*models.EntryInfo, error) {
	const op = "storage.FindBillingOn"

	query := `SELECT u.email, s.username, s.service_name, s.next_billing_date, s.price
			  FROM subscriptions s
		      JOIN users u ON s.username = u.username
		      WHERE s.next_billing_date = $1::date
		        AND s.is_active = true
		      ORDER BY s.id`
	rows, err := s.DB.QueryContext(ctx, query, day)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.EntryInfo
	for rows.Next() {
		var si models.EntryInfo
		if err = rows.Scan(&si.Email, &si.Username, &si.ServiceName,
			&si.NextBillingDate, &si.Price); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &si)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
