package storage

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rx5v/catatan-pengeluaran-harian/internal/entity/expense"
	"github.com/Rx5v/catatan-pengeluaran-harian/internal/entity/user"
	"github.com/Rx5v/catatan-pengeluaran-harian/internal/model/customerr"
)

const (
	upsertUserQuery = "INSERT INTO users (telegram_id,first_name,last_name,username,joined_at) " +
		"VALUES ($1,$2,$3,$4,$5) " +
		"ON CONFLICT (telegram_id) DO UPDATE SET " +
		"first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name, username = EXCLUDED.username " +
		"RETURNING id"
	insertExpenseQuery = "INSERT INTO expenses (user_id,amount,description,category,transaction_date,recorded_at) " +
		"VALUES ($1,$2,$3,$4,$5,$6) RETURNING id"
	todayQuery = "SELECT id, amount, description, category, transaction_date, recorded_at FROM expenses " +
		"WHERE user_id = $1 AND transaction_date >= $2 AND transaction_date < $3 " +
		"ORDER BY recorded_at DESC"
	recentQuery = "SELECT id, amount, description, category, transaction_date, recorded_at FROM expenses " +
		"WHERE user_id = $1 ORDER BY transaction_date DESC, recorded_at DESC LIMIT 5"
)

func newStorageWithMock(t *testing.T) (*PostgresStorage, sqlmock.Sqlmock, *Manager) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	m := newTestManager(func(ctx context.Context, dsn string) (*sql.DB, error) {
		return db, nil
	})
	return NewPostgresStorage(m), mock, m
}

func Test_ResolveUser_UpsertsKeyedOnTelegramIDWithoutTouchingJoinedAt(t *testing.T) {
	s, mock, _ := newStorageWithMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(upsertUserQuery)).
		WithArgs(int64(123), "Budi", "Santoso", "budi", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := s.ResolveUser(context.Background(), user.Identity{
		TelegramID: 123,
		FirstName:  "Budi",
		LastName:   "Santoso",
		UserName:   "budi",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_ResolveUser_RepeatedResolutionKeepsInternalID(t *testing.T) {
	s, mock, _ := newStorageWithMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(upsertUserQuery)).
		WithArgs(int64(123), "Budi", "Santoso", "budi", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectQuery(regexp.QuoteMeta(upsertUserQuery)).
		WithArgs(int64(123), "Budi S.", "", "budi_baru", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	first, err := s.ResolveUser(context.Background(), user.Identity{
		TelegramID: 123, FirstName: "Budi", LastName: "Santoso", UserName: "budi",
	})
	require.NoError(t, err)

	second, err := s.ResolveUser(context.Background(), user.Identity{
		TelegramID: 123, FirstName: "Budi S.", UserName: "budi_baru",
	})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_SaveExpense_RejectsNonPositiveAmountBeforeTheStore(t *testing.T) {
	s, mock, _ := newStorageWithMock(t)

	_, err := s.SaveExpense(context.Background(), 7, expense.Record{
		Amount:      decimal.Zero,
		Description: "Free lunch",
	})

	assert.True(t, customerr.IsValidation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_SaveExpense_RejectsEmptyDescriptionBeforeTheStore(t *testing.T) {
	s, mock, _ := newStorageWithMock(t)

	_, err := s.SaveExpense(context.Background(), 7, expense.Record{
		Amount:      decimal.NewFromInt(50000),
		Description: "   ",
	})

	assert.True(t, customerr.IsValidation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_SaveExpense_InsertsRowWithDefaultCategory(t *testing.T) {
	s, mock, _ := newStorageWithMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(insertExpenseQuery)).
		WithArgs(int64(7), "50000", "Makan siang mie ayam", "Lain-lain", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	id, err := s.SaveExpense(context.Background(), 7, expense.Record{
		Amount:      decimal.NewFromInt(50000),
		Description: "Makan siang mie ayam",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_SaveExpense_StoreRejectionBecomesStoreError(t *testing.T) {
	s, mock, _ := newStorageWithMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(insertExpenseQuery)).
		WillReturnError(&pq.Error{Code: "23503"})

	_, err := s.SaveExpense(context.Background(), 7, expense.Record{
		Amount:      decimal.NewFromInt(10000),
		Description: "Kopi",
	})
	assert.True(t, customerr.IsStore(err))
}

func Test_TodayExpenses_QueriesCurrentDayBoundsOrderedByRecordedAt(t *testing.T) {
	s, mock, _ := newStorageWithMock(t)
	wib := time.FixedZone("WIB", 7*60*60)
	dayStart, nextDay := dayBounds(time.Now().In(wib))

	rows := sqlmock.NewRows([]string{"id", "amount", "description", "category", "transaction_date", "recorded_at"}).
		AddRow(int64(2), "25000", "Kopi susu", "minuman", time.Now(), time.Now()).
		AddRow(int64(1), "50000", "Makan siang mie ayam", "Lain-lain", time.Now(), time.Now().Add(-time.Hour))

	mock.ExpectQuery(regexp.QuoteMeta(todayQuery)).
		WithArgs(int64(7), dayStart, nextDay).
		WillReturnRows(rows)

	exps, err := s.TodayExpenses(context.Background(), 7, wib)
	require.NoError(t, err)
	require.Len(t, exps, 2)
	assert.Equal(t, "Kopi susu", exps[0].Description)
	assert.Equal(t, int64(7), exps[0].UserID)
	assert.True(t, exps[0].Amount.Equal(decimal.NewFromInt(25000)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_DayBounds_JustAfterMidnightExcludesYesterday(t *testing.T) {
	wib := time.FixedZone("WIB", 7*60*60)
	justPastMidnight := time.Date(2024, 5, 2, 0, 0, 30, 0, wib)

	dayStart, nextDay := dayBounds(justPastMidnight)

	assert.Equal(t, time.Date(2024, 5, 2, 0, 0, 0, 0, wib), dayStart)
	assert.Equal(t, dayStart.AddDate(0, 0, 1), nextDay)

	lateYesterday := time.Date(2024, 5, 1, 23, 59, 59, 0, wib)
	assert.True(t, lateYesterday.Before(dayStart))
	assert.False(t, justPastMidnight.Before(dayStart))
	assert.True(t, justPastMidnight.Before(nextDay))
}

func Test_DayBounds_FollowsTheGivenLocationNotUTC(t *testing.T) {
	wib := time.FixedZone("WIB", 7*60*60)
	// 18:30 UTC on May 1st is already 01:30 on May 2nd in WIB
	instant := time.Date(2024, 5, 1, 18, 30, 0, 0, time.UTC).In(wib)

	dayStart, _ := dayBounds(instant)

	assert.Equal(t, time.Date(2024, 5, 2, 0, 0, 0, 0, wib), dayStart)
}

func Test_TodayExpenses_NoRowsIsAnEmptySliceNotAnError(t *testing.T) {
	s, mock, _ := newStorageWithMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(todayQuery)).
		WithArgs(int64(7), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "amount", "description", "category", "transaction_date", "recorded_at"}))

	exps, err := s.TodayExpenses(context.Background(), 7, time.UTC)
	require.NoError(t, err)
	assert.NotNil(t, exps)
	assert.Empty(t, exps)
}

func Test_RecentExpenses_OrdersByDateThenRecordingTimeWithLimit(t *testing.T) {
	s, mock, _ := newStorageWithMock(t)

	rows := sqlmock.NewRows([]string{"id", "amount", "description", "category", "transaction_date", "recorded_at"}).
		AddRow(int64(3), "15000", "Parkir", "transportasi", time.Now(), time.Now())

	mock.ExpectQuery(regexp.QuoteMeta(recentQuery)).
		WithArgs(int64(7)).
		WillReturnRows(rows)

	exps, err := s.RecentExpenses(context.Background(), 7, 5)
	require.NoError(t, err)
	require.Len(t, exps, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_QueryFailure_OnDeadConnectionMarksManagerNotReady(t *testing.T) {
	s, mock, m := newStorageWithMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(recentQuery)).
		WillReturnError(&pq.Error{Code: "08006"})

	_, err := s.RecentExpenses(context.Background(), 7, 5)
	assert.True(t, customerr.IsStore(err))

	m.mu.Lock()
	ready := m.ready
	m.mu.Unlock()
	assert.False(t, ready)
}
