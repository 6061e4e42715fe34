package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"simbot/internal/domain"
	"simbot/traits/database"
)

var ErrOrderNotFound = errors.New("order not found")

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, chat_id, user_name, full_name, phone, delivery, items, total, signature, paid, created_at`

// Create stores an accepted order
func (r *OrderRepository) Create(ctx context.Context, order *domain.OrderRecord) error {
	delivery, err := json.Marshal(order.Delivery)
	if err != nil {
		return fmt.Errorf("marshal delivery: %w", err)
	}
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}

	sims := 0
	for _, it := range order.Items {
		sims += it.Quantity
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	created := order.CreatedAt.UTC().Format(database.TimeLayout)

	query := `
		INSERT INTO orders (id, chat_id, user_name, full_name, phone, delivery, items, total_sims, total, signature, paid, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		order.ID,
		order.ChatID,
		order.UserName,
		order.FullName,
		order.Phone,
		string(delivery),
		string(items),
		sims,
		order.Total,
		order.Signature,
		order.Paid,
		created,
		created)
	return err
}

// GetByID retrieves an order by ID
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.OrderRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

// GetByChatID retrieves the orders of one customer chat, newest first
func (r *OrderRepository) GetByChatID(ctx context.Context, chatID int64) ([]domain.OrderRecord, error) {
	return r.query(ctx, `SELECT `+orderColumns+` FROM orders WHERE chat_id = ? ORDER BY created_at DESC`, chatID)
}

// GetAll retrieves all orders, newest first
func (r *OrderRepository) GetAll(ctx context.Context) ([]domain.OrderRecord, error) {
	return r.query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
}

// GetByPaidStatus retrieves orders by payment status
func (r *OrderRepository) GetByPaidStatus(ctx context.Context, paid bool) ([]domain.OrderRecord, error) {
	return r.query(ctx, `SELECT `+orderColumns+` FROM orders WHERE paid = ? ORDER BY created_at DESC`, paid)
}

// MarkPaid updates order payment status
func (r *OrderRepository) MarkPaid(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET paid = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(database.TimeLayout), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// LinkStaffMessage remembers which staff chat message announces the order
func (r *OrderRepository) LinkStaffMessage(ctx context.Context, id string, messageID int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET staff_message_id = ?, updated_at = ? WHERE id = ?`,
		messageID, time.Now().UTC().Format(database.TimeLayout), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// RelinkStaffMessage moves the link when a staff message is reposted
func (r *OrderRepository) RelinkStaffMessage(ctx context.Context, oldID, newID int) error {
	if oldID == 0 {
		return ErrOrderNotFound
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET staff_message_id = ?, updated_at = ? WHERE staff_message_id = ?`,
		newID, time.Now().UTC().Format(database.TimeLayout), oldID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// MarkPaidByStaffMessage marks the order announced by a staff chat message
// as paid and returns its ID
func (r *OrderRepository) MarkPaidByStaffMessage(ctx context.Context, messageID int) (string, error) {
	if messageID == 0 {
		return "", ErrOrderNotFound
	}
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM orders WHERE staff_message_id = ?`, messageID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrOrderNotFound
	}
	if err != nil {
		return "", err
	}
	return id, r.MarkPaid(ctx, id)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// Stats returns order statistics
func (r *OrderRepository) Stats(ctx context.Context) (domain.OrderStats, error) {
	var stats domain.OrderStats

	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(CASE WHEN paid = 1 THEN 1 END),
			COALESCE(SUM(total_sims), 0),
			COALESCE(SUM(total), 0)
		FROM orders
	`).Scan(&stats.TotalOrders, &stats.PaidOrders, &stats.TotalSims, &stats.TotalAmount)
	if err != nil {
		return stats, err
	}

	today := time.Now().UTC().Format("2006-01-02")
	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE substr(created_at, 1, 10) = ?`, today).Scan(&stats.TodayOrders)
	if err != nil {
		return stats, err
	}

	return stats, nil
}

// DailyStat is one row of daily_stats_view
type DailyStat struct {
	Date        string `json:"date"`
	TotalOrders int    `json:"total_orders"`
	TotalSims   int    `json:"total_sims"`
	TotalAmount int    `json:"total_amount"`
	PaidOrders  int    `json:"paid_orders"`
}

// Daily returns per-day totals, newest first
func (r *OrderRepository) Daily(ctx context.Context, days int) ([]DailyStat, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT order_date, total_orders, total_sims, total_amount, paid_orders
		FROM daily_stats_view
		LIMIT ?
	`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DailyStat
	for rows.Next() {
		var d DailyStat
		if err := rows.Scan(&d.Date, &d.TotalOrders, &d.TotalSims, &d.TotalAmount, &d.PaidOrders); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *OrderRepository) query(ctx context.Context, query string, args ...interface{}) ([]domain.OrderRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.OrderRecord
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(s scanner) (*domain.OrderRecord, error) {
	var order domain.OrderRecord
	var delivery, items, createdAt string
	var userName, signature sql.NullString

	err := s.Scan(
		&order.ID,
		&order.ChatID,
		&userName,
		&order.FullName,
		&order.Phone,
		&delivery,
		&items,
		&order.Total,
		&signature,
		&order.Paid,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	// Handle nullable fields
	if userName.Valid {
		order.UserName = userName.String
	}
	if signature.Valid {
		order.Signature = signature.String
	}

	if err := json.Unmarshal([]byte(delivery), &order.Delivery); err != nil {
		return nil, fmt.Errorf("order %s delivery: %w", order.ID, err)
	}
	if err := json.Unmarshal([]byte(items), &order.Items); err != nil {
		return nil, fmt.Errorf("order %s items: %w", order.ID, err)
	}
	if t, err := time.ParseInLocation(database.TimeLayout, createdAt, time.UTC); err == nil {
		order.CreatedAt = t
	}

	return &order, nil
}
