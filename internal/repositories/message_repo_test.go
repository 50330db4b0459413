package repositories

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/MessageBoard/config"
	"github.com/Gopher0727/MessageBoard/internal/storage"
)

func setupTestRepo(t *testing.T) (MessageRepository, func() error) {
	t.Helper()
	db, err := storage.InitDatabase(&config.StorageConfig{Driver: "sqlite", DSN: ":memory:", LogLevel: "silent"})
	require.NoError(t, err)

	closeDB := func() error { return storage.Close(db) }
	t.Cleanup(func() { _ = closeDB() })
	return NewMessageRepository(db), closeDB
}

func TestMessageRepository_ListRecent_Empty(t *testing.T) {
	repo, _ := setupTestRepo(t)

	messages, err := repo.ListRecent(context.Background(), DefaultListLimit)
	require.NoError(t, err)
	assert.NotNil(t, messages)
	assert.Empty(t, messages)
}

func TestMessageRepository_CreateThenList(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, "hello")
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "hello", created.Content)

	messages, err := repo.ListRecent(ctx, DefaultListLimit)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, created.ID, messages[0].ID)
	assert.Equal(t, "hello", messages[0].Content)
}

func TestMessageRepository_CreateAcceptsEmptyContent(t *testing.T) {
	repo, _ := setupTestRepo(t)

	created, err := repo.Create(context.Background(), "")
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Empty(t, created.Content)
}

func TestMessageRepository_ListRecent_CapsAndOrders(t *testing.T) {
	tests := []struct {
		inserts int
		want    int
	}{
		{inserts: 1, want: 1},
		{inserts: 9, want: 9},
		{inserts: 10, want: 10},
		{inserts: 11, want: 10},
		{inserts: 25, want: 10},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d inserts", tt.inserts), func(t *testing.T) {
			repo, _ := setupTestRepo(t)
			ctx := context.Background()

			var lastID uint64
			for i := 0; i < tt.inserts; i++ {
				created, err := repo.Create(ctx, fmt.Sprintf("message %d", i))
				require.NoError(t, err)
				require.Greater(t, created.ID, lastID, "ids must increase in submission order")
				lastID = created.ID
			}

			messages, err := repo.ListRecent(ctx, DefaultListLimit)
			require.NoError(t, err)
			require.Len(t, messages, tt.want)

			assert.Equal(t, lastID, messages[0].ID, "newest message comes first")
			assert.Equal(t, fmt.Sprintf("message %d", tt.inserts-1), messages[0].Content)
			for i := 1; i < len(messages); i++ {
				assert.Greater(t, messages[i-1].ID, messages[i].ID)
			}
		})
	}
}

func TestMessageRepository_ListRecent_NonPositiveLimitUsesDefault(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		_, err := repo.Create(ctx, fmt.Sprint(i))
		require.NoError(t, err)
	}

	for _, limit := range []int{0, -1} {
		messages, err := repo.ListRecent(ctx, limit)
		require.NoError(t, err)
		assert.Len(t, messages, DefaultListLimit)
	}

	messages, err := repo.ListRecent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, messages, 3)
}

func TestMessageRepository_ConcurrentCreateAssignsDistinctIDs(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()

	const writers = 20
	ids := make(chan uint64, writers)
	errs := make(chan error, writers)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			created, err := repo.Create(ctx, fmt.Sprintf("writer %d", n))
			if err != nil {
				errs <- err
				return
			}
			ids <- created.ID
		}(i)
	}
	wg.Wait()
	close(ids)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	seen := make(map[uint64]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, writers)
}

func TestMessageRepository_BrokenStorage(t *testing.T) {
	repo, closeDB := setupTestRepo(t)
	ctx := context.Background()
	require.NoError(t, closeDB())

	_, err := repo.ListRecent(ctx, DefaultListLimit)
	assert.Error(t, err)

	_, err = repo.Create(ctx, "lost")
	assert.Error(t, err)

	assert.Error(t, repo.Ping(ctx))
}
