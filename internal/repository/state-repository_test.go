package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"simbot/internal/domain"
	"simbot/internal/repository"
	"simbot/internal/service"
	"simbot/traits/database"
)

func sampleState(chatID int64) *domain.ConversationState {
	s := domain.NewConversationState(chatID)
	s.Draft = domain.OrderDraft{
		FullName: "Jane Doe",
		Delivery: domain.Delivery{City: "Kyiv", Branch: "30"},
		Items:    []domain.OrderItem{{Country: "GB", Quantity: 2}},
	}
	s.LastPriceCountries = []string{"GB"}
	s.AwaitingMissing = []domain.Field{domain.FieldPhone}
	s.LastOrderAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.LastOrderSignature = "f00d"
	s.History = []domain.Turn{{Role: "user", Content: "привіт"}, {Role: "assistant", Content: "Вітаю!"}}
	s.UpdatedAt = time.Date(2024, 5, 1, 12, 5, 0, 0, time.UTC)
	return s
}

// every backend must satisfy the conversation's store contract
var (
	_ service.StateStore = (*repository.MemoryStateRepository)(nil)
	_ service.StateStore = (*repository.SQLiteStateRepository)(nil)
	_ service.StateStore = (*repository.RedisRepository)(nil)
)

func TestStateStores(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	stores := map[string]service.StateStore{
		"memory": repository.NewMemoryStateRepository(),
		"sqlite": repository.NewSQLiteStateRepository(newTestDB(t)),
		"redis":  repository.NewRedisRepository(client),
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			missing, err := store.Load(ctx, 1)
			require.NoError(t, err)
			assert.Nil(t, missing)

			want := sampleState(1)
			require.NoError(t, store.Save(ctx, want))

			got, err := store.Load(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, want, got)

			want.Draft.Items = nil
			want.History = append(want.History, domain.Turn{Role: "user", Content: "ще"})
			require.NoError(t, store.Save(ctx, want))

			got, err = store.Load(ctx, 1)
			require.NoError(t, err)
			assert.Empty(t, got.Draft.Items)
			assert.Len(t, got.History, 3)
		})
	}
}

func TestMemoryStateRepositoryReturnsCopies(t *testing.T) {
	repo := repository.NewMemoryStateRepository()
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, sampleState(1)))

	first, err := repo.Load(ctx, 1)
	require.NoError(t, err)
	first.Draft.Items[0].Quantity = 99

	second, err := repo.Load(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Draft.Items[0].Quantity)
}

func TestRedisRepositoryExpiresIdleChats(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	repo := repository.NewRedisRepository(client)
	ctx := context.Background()
	require.NoError(t, repo.Ping(ctx))
	require.NoError(t, repo.Save(ctx, sampleState(7)))

	assert.True(t, mr.Exists("conversation_state:7"))
	assert.Equal(t, 24*time.Hour, mr.TTL("conversation_state:7"))

	mr.FastForward(25 * time.Hour)
	got, err := repo.Load(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.Save(ctx, sampleState(7)))
	require.NoError(t, repo.Delete(ctx, 7))
	assert.False(t, mr.Exists("conversation_state:7"))
}

func TestCleanupOldDataRemovesIdleDialogs(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewSQLiteStateRepository(db)
	ctx := context.Background()

	stale := sampleState(1)
	stale.UpdatedAt = time.Now().AddDate(0, 0, -40)
	fresh := sampleState(2)
	fresh.UpdatedAt = time.Now()
	require.NoError(t, repo.Save(ctx, stale))
	require.NoError(t, repo.Save(ctx, fresh))

	require.NoError(t, database.CleanupOldData(db, 30, zap.NewNop()))

	got, err := repo.Load(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = repo.Load(ctx, 2)
	require.NoError(t, err)
	assert.NotNil(t, got)

	assert.Error(t, database.CleanupOldData(db, 0, zap.NewNop()))
}
