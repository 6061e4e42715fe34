package repository_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"simbot/internal/domain"
	"simbot/internal/repository"
	"simbot/traits/database"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.CreateTables(db, zap.NewNop()))
	require.NoError(t, database.CreateViews(db, zap.NewNop()))
	return db
}

func newRecord(id string, chatID int64, created time.Time, items ...domain.OrderItem) *domain.OrderRecord {
	return &domain.OrderRecord{
		ID:        id,
		ChatID:    chatID,
		UserName:  "jane",
		FullName:  "Jane Doe",
		Phone:     "099 123 4567",
		Delivery:  domain.Delivery{City: "Kyiv", Branch: "30"},
		Items:     items,
		Total:     650,
		Signature: "abc",
		CreatedAt: created,
	}
}

func TestOrderRepositoryCreateAndGet(t *testing.T) {
	repo := repository.NewOrderRepository(newTestDB(t))
	ctx := context.Background()
	created := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)

	rec := newRecord("o-1", 1, created, domain.OrderItem{Country: "GB", Quantity: 2, Operator: "Vodafone"})
	require.NoError(t, repo.Create(ctx, rec))

	got, err := repo.GetByID(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, *rec, *got)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)
}

func TestOrderRepositoryListsNewestFirst(t *testing.T) {
	repo := repository.NewOrderRepository(newTestDB(t))
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, newRecord("a", 1, base, domain.OrderItem{Country: "GB", Quantity: 1})))
	require.NoError(t, repo.Create(ctx, newRecord("b", 2, base.Add(time.Hour), domain.OrderItem{Country: "PL", Quantity: 1})))
	require.NoError(t, repo.Create(ctx, newRecord("c", 1, base.Add(2*time.Hour), domain.OrderItem{Country: "US", Quantity: 1})))

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{all[0].ID, all[1].ID, all[2].ID})

	byChat, err := repo.GetByChatID(ctx, 1)
	require.NoError(t, err)
	require.Len(t, byChat, 2)
	assert.Equal(t, "c", byChat[0].ID)
	assert.Equal(t, "a", byChat[1].ID)

	none, err := repo.GetByChatID(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestOrderRepositoryMarkPaid(t *testing.T) {
	repo := repository.NewOrderRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newRecord("a", 1, time.Now(), domain.OrderItem{Country: "GB", Quantity: 1})))
	require.NoError(t, repo.Create(ctx, newRecord("b", 1, time.Now(), domain.OrderItem{Country: "GB", Quantity: 1})))

	require.NoError(t, repo.MarkPaid(ctx, "b"))
	assert.ErrorIs(t, repo.MarkPaid(ctx, "zzz"), repository.ErrOrderNotFound)

	paid, err := repo.GetByPaidStatus(ctx, true)
	require.NoError(t, err)
	require.Len(t, paid, 1)
	assert.Equal(t, "b", paid[0].ID)
	assert.True(t, paid[0].Paid)

	unpaid, err := repo.GetByPaidStatus(ctx, false)
	require.NoError(t, err)
	require.Len(t, unpaid, 1)
	assert.Equal(t, "a", unpaid[0].ID)
}

func TestOrderRepositoryStaffMessageLink(t *testing.T) {
	repo := repository.NewOrderRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newRecord("a", 1, time.Now(), domain.OrderItem{Country: "GB", Quantity: 1})))
	require.NoError(t, repo.LinkStaffMessage(ctx, "a", 41))
	assert.ErrorIs(t, repo.LinkStaffMessage(ctx, "zzz", 42), repository.ErrOrderNotFound)

	require.NoError(t, repo.RelinkStaffMessage(ctx, 41, 43))
	assert.ErrorIs(t, repo.RelinkStaffMessage(ctx, 41, 44), repository.ErrOrderNotFound)

	_, err := repo.MarkPaidByStaffMessage(ctx, 41)
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)
	_, err = repo.MarkPaidByStaffMessage(ctx, 0)
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)

	id, err := repo.MarkPaidByStaffMessage(ctx, 43)
	require.NoError(t, err)
	assert.Equal(t, "a", id)

	order, err := repo.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.True(t, order.Paid)
}

func TestOrderRepositoryStats(t *testing.T) {
	repo := repository.NewOrderRepository(newTestDB(t))
	ctx := context.Background()
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, newRecord("a", 1, old,
		domain.OrderItem{Country: "GB", Quantity: 2}, domain.OrderItem{Country: "PL", Quantity: 3})))
	require.NoError(t, repo.Create(ctx, newRecord("b", 2, time.Now(), domain.OrderItem{Country: "US", Quantity: 1})))
	require.NoError(t, repo.MarkPaid(ctx, "a"))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStats{
		TotalOrders: 2,
		PaidOrders:  1,
		TotalSims:   6,
		TotalAmount: 1300,
		TodayOrders: 1,
	}, stats)
}

func TestOrderRepositoryDaily(t *testing.T) {
	repo := repository.NewOrderRepository(newTestDB(t))
	ctx := context.Background()
	day1 := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	require.NoError(t, repo.Create(ctx, newRecord("a", 1, day1, domain.OrderItem{Country: "GB", Quantity: 2})))
	require.NoError(t, repo.Create(ctx, newRecord("b", 1, day1.Add(time.Hour), domain.OrderItem{Country: "GB", Quantity: 1})))
	require.NoError(t, repo.Create(ctx, newRecord("c", 2, day2, domain.OrderItem{Country: "PL", Quantity: 4})))
	require.NoError(t, repo.MarkPaid(ctx, "c"))

	days, err := repo.Daily(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, []repository.DailyStat{
		{Date: "2024-05-02", TotalOrders: 1, TotalSims: 4, TotalAmount: 650, PaidOrders: 1},
		{Date: "2024-05-01", TotalOrders: 2, TotalSims: 3, TotalAmount: 1300, PaidOrders: 0},
	}, days)

	latest, err := repo.Daily(ctx, 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "2024-05-02", latest[0].Date)
}
