package database

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// TimeLayout is how timestamps are stored in TEXT columns, always UTC.
const TimeLayout = "2006-01-02 15:04:05"

// CreateTables creates all required tables for the bot
func CreateTables(db *sql.DB, logger *zap.Logger) error {
	tables := []struct {
		name string
		fn   func(*sql.DB) error
	}{
		{"dialogs", createDialogsTable},
		{"orders", CreateOrderTable},
	}

	for _, table := range tables {
		logger.Debug("Creating table", zap.String("table", table.name))
		if err := table.fn(db); err != nil {
			return fmt.Errorf("create %s table: %w", table.name, err)
		}
	}

	logger.Info("All tables and indexes created successfully")
	return nil
}

// createDialogsTable stores one serialized conversation state per chat
func createDialogsTable(db *sql.DB) error {
	const stmt = `
	CREATE TABLE IF NOT EXISTS dialogs (
		chat_id BIGINT PRIMARY KEY,
		state TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_dialogs_updated_at ON dialogs(updated_at);
	`
	_, err := db.Exec(stmt)
	return err
}

// CreateOrderTable creates the archive of accepted orders
func CreateOrderTable(db *sql.DB) error {
	const stmt = `
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		chat_id BIGINT NOT NULL,
		user_name VARCHAR(255) NOT NULL DEFAULT '',
		full_name TEXT NOT NULL,
		phone VARCHAR(50) NOT NULL,
		delivery TEXT NOT NULL,
		items TEXT NOT NULL,
		total_sims INT NOT NULL DEFAULT 0,
		total INT NOT NULL DEFAULT 0,
		signature VARCHAR(32) NOT NULL DEFAULT '',
		paid BOOLEAN DEFAULT FALSE,
		staff_message_id INT NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_orders_chat_id ON orders(chat_id);
	CREATE INDEX IF NOT EXISTS idx_orders_paid ON orders(paid);
	CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at);
	CREATE INDEX IF NOT EXISTS idx_orders_staff_message_id ON orders(staff_message_id);
	`
	_, err := db.Exec(stmt)
	return err
}

// CreateViews creates useful views for reporting
func CreateViews(db *sql.DB, logger *zap.Logger) error {
	views := []struct {
		name string
		sql  string
	}{
		{
			"daily_stats_view",
			`CREATE VIEW IF NOT EXISTS daily_stats_view AS
			SELECT
				substr(created_at, 1, 10) as order_date,
				COUNT(*) as total_orders,
				SUM(total_sims) as total_sims,
				SUM(total) as total_amount,
				COUNT(CASE WHEN paid = 1 THEN 1 END) as paid_orders
			FROM orders
			GROUP BY substr(created_at, 1, 10)
			ORDER BY order_date DESC`,
		},
	}

	for _, view := range views {
		logger.Debug("Creating view", zap.String("view", view.name))
		if _, err := db.Exec(view.sql); err != nil {
			return fmt.Errorf("create view %s: %w", view.name, err)
		}
	}

	return nil
}

// CleanupOldData removes conversation states idle for more than daysOld days.
// Orders are never removed.
func CleanupOldData(db *sql.DB, daysOld int, logger *zap.Logger) error {
	if daysOld <= 0 {
		return fmt.Errorf("daysOld must be positive")
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -daysOld).Format(TimeLayout)
	result, err := db.Exec(`DELETE FROM dialogs WHERE updated_at < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("cleanup old dialogs: %w", err)
	}

	affected, _ := result.RowsAffected()
	logger.Info("Cleaned up idle dialogs", zap.Int64("removed", affected), zap.Int("days", daysOld))

	return nil
}
