package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"simbot/internal/domain"
	"simbot/traits/database"
)

// MemoryStateRepository keeps conversation state in process memory. State is
// lost on restart.
type MemoryStateRepository struct {
	mu     sync.RWMutex
	states map[int64][]byte
}

func NewMemoryStateRepository() *MemoryStateRepository {
	return &MemoryStateRepository{states: map[int64][]byte{}}
}

// Load returns a copy, so callers never share state with the store.
func (r *MemoryStateRepository) Load(_ context.Context, chatID int64) (*domain.ConversationState, error) {
	r.mu.RLock()
	data, ok := r.states[chatID]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	var state domain.ConversationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation state: %w", err)
	}
	return &state, nil
}

func (r *MemoryStateRepository) Save(_ context.Context, state *domain.ConversationState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation state: %w", err)
	}
	r.mu.Lock()
	r.states[state.ChatID] = data
	r.mu.Unlock()
	return nil
}

// SQLiteStateRepository stores conversation state as JSON in the dialogs
// table.
type SQLiteStateRepository struct {
	db *sql.DB
}

func NewSQLiteStateRepository(db *sql.DB) *SQLiteStateRepository {
	return &SQLiteStateRepository{db: db}
}

func (r *SQLiteStateRepository) Load(ctx context.Context, chatID int64) (*domain.ConversationState, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT state FROM dialogs WHERE chat_id = ?`, chatID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dialog %d: %w", chatID, err)
	}

	var state domain.ConversationState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dialog %d: %w", chatID, err)
	}
	return &state, nil
}

func (r *SQLiteStateRepository) Save(ctx context.Context, state *domain.ConversationState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation state: %w", err)
	}

	updated := state.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO dialogs (chat_id, state, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at
	`, state.ChatID, string(data), updated.UTC().Format(database.TimeLayout))
	if err != nil {
		return fmt.Errorf("failed to save dialog %d: %w", state.ChatID, err)
	}
	return nil
}
