package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jinzhu/now"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	// postgres driver
	_ "github.com/lib/pq"

	"github.com/Rx5v/catatan-pengeluaran-harian/internal/entity/expense"
	"github.com/Rx5v/catatan-pengeluaran-harian/internal/entity/user"
	"github.com/Rx5v/catatan-pengeluaran-harian/internal/logger"
	"github.com/Rx5v/catatan-pengeluaran-harian/internal/model/customerr"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const expenseColumns = "id, amount, description, category, transaction_date, recorded_at"

// PostgresStorage is the user registry and the expense ledger. Every
// public operation re-acquires the handle through the manager and reports
// failures back to it; no call site carries its own readiness check.
type PostgresStorage struct {
	manager *Manager
}

func NewPostgresStorage(manager *Manager) *PostgresStorage {
	return &PostgresStorage{manager: manager}
}

// ResolveUser upserts the sender identity keyed on the Telegram user id
// and returns the internal id. Display fields are refreshed on every
// call; joined_at is written only on the first insert.
func (s *PostgresStorage) ResolveUser(ctx context.Context, id user.Identity) (int64, error) {
	db, err := s.manager.Acquire(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "resolve user")
	}

	query := psql.Insert("users").
		Columns("telegram_id", "first_name", "last_name", "username", "joined_at").
		Values(id.TelegramID, id.FirstName, id.LastName, id.UserName, time.Now()).
		Suffix("ON CONFLICT (telegram_id) DO UPDATE SET " +
			"first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name, username = EXCLUDED.username " +
			"RETURNING id")

	var userID int64
	if err = query.RunWith(db).QueryRowContext(ctx).Scan(&userID); err != nil {
		s.manager.NoteError(err)
		return 0, &customerr.StoreError{Err: errors.Wrap(err, "resolve user")}
	}
	return userID, nil
}

// SaveExpense validates and appends one expense row, returning its id.
// Validation failures never reach the store.
func (s *PostgresStorage) SaveExpense(ctx context.Context, userID int64, rec expense.Record) (int64, error) {
	if !rec.Amount.IsPositive() {
		return 0, &customerr.ValidationError{Msg: "amount must be positive"}
	}
	if strings.TrimSpace(rec.Description) == "" {
		return 0, &customerr.ValidationError{Msg: "description must not be empty"}
	}
	if rec.Category == "" {
		rec.Category = expense.DefaultCategory
	}
	if rec.Date.IsZero() {
		rec.Date = time.Now()
	}

	db, err := s.manager.Acquire(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "save expense")
	}

	query := psql.Insert("expenses").
		Columns("user_id", "amount", "description", "category", "transaction_date", "recorded_at").
		Values(userID, rec.Amount, rec.Description, rec.Category, rec.Date, time.Now()).
		Suffix("RETURNING id")

	var expenseID int64
	if err = query.RunWith(db).QueryRowContext(ctx).Scan(&expenseID); err != nil {
		s.manager.NoteError(err)
		return 0, &customerr.StoreError{Err: errors.Wrap(err, "save expense")}
	}
	return expenseID, nil
}

// TodayExpenses returns the user's expenses whose transaction date falls
// within the current calendar day in loc, most recently recorded first.
func (s *PostgresStorage) TodayExpenses(ctx context.Context, userID int64, loc *time.Location) ([]expense.Record, error) {
	db, err := s.manager.Acquire(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "today expenses")
	}

	dayStart, nextDay := dayBounds(time.Now().In(loc))

	query := psql.Select(strings.Split(expenseColumns, ", ")...).
		From("expenses").
		Where(sq.Eq{"user_id": userID}).
		Where(sq.GtOrEq{"transaction_date": dayStart}).
		Where(sq.Lt{"transaction_date": nextDay}).
		OrderBy("recorded_at DESC")

	return s.queryExpenses(ctx, db, userID, query)
}

// RecentExpenses returns the user's most recent expenses across all
// dates, newest transaction date first, ties broken by recording time.
func (s *PostgresStorage) RecentExpenses(ctx context.Context, userID int64, limit int) ([]expense.Record, error) {
	db, err := s.manager.Acquire(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "recent expenses")
	}

	query := psql.Select(strings.Split(expenseColumns, ", ")...).
		From("expenses").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("transaction_date DESC", "recorded_at DESC").
		Limit(uint64(limit))

	return s.queryExpenses(ctx, db, userID, query)
}

// dayBounds returns the half-open [midnight, next midnight) range of the
// calendar day t falls into, in t's location.
func dayBounds(t time.Time) (time.Time, time.Time) {
	start := now.With(t).BeginningOfDay()
	return start, start.AddDate(0, 0, 1)
}

func (s *PostgresStorage) queryExpenses(ctx context.Context, db *sql.DB, userID int64, query sq.SelectBuilder) ([]expense.Record, error) {
	rows, err := query.RunWith(db).QueryContext(ctx)
	if err != nil {
		s.manager.NoteError(err)
		return nil, &customerr.StoreError{Err: errors.Wrap(err, "query expenses")}
	}
	defer func() {
		if rowErr := rows.Close(); rowErr != nil {
			logger.Error("error closing rows", zap.Error(rowErr))
		}
	}()

	exps := make([]expense.Record, 0)
	for rows.Next() {
		var e expense.Record
		err = rows.Scan(&e.ID, &e.Amount, &e.Description, &e.Category, &e.Date, &e.RecordedAt)
		if err != nil {
			return nil, &customerr.StoreError{Err: errors.Wrap(err, "query expenses")}
		}
		e.UserID = userID
		exps = append(exps, e)
	}
	if err = rows.Err(); err != nil {
		s.manager.NoteError(err)
		return nil, &customerr.StoreError{Err: errors.Wrap(err, "query expenses")}
	}
	return exps, nil
}
