package storage

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Gopher0727/MessageBoard/config"
	"github.com/Gopher0727/MessageBoard/internal/models"
)

func memoryConfig() *config.StorageConfig {
	return &config.StorageConfig{Driver: "sqlite", DSN: ":memory:", LogLevel: "silent"}
}

func countMessages(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Message{}).Count(&n).Error)
	return n
}

func TestInitDatabase(t *testing.T) {
	t.Run("creates messages table in memory", func(t *testing.T) {
		db, err := InitDatabase(memoryConfig())
		require.NoError(t, err)
		t.Cleanup(func() { _ = Close(db) })

		assert.True(t, db.Migrator().HasTable(&models.Message{}))
		assert.True(t, db.Migrator().HasColumn(&models.Message{}, "content"))
	})

	t.Run("initialize is idempotent and keeps rows", func(t *testing.T) {
		db, err := InitDatabase(memoryConfig())
		require.NoError(t, err)
		t.Cleanup(func() { _ = Close(db) })

		require.NoError(t, db.Create(&models.Message{Content: "kept"}).Error)
		require.NoError(t, Initialize(db))
		require.NoError(t, Initialize(db))

		assert.Equal(t, int64(1), countMessages(t, db))
	})

	t.Run("memory database is shared by every query", func(t *testing.T) {
		db, err := InitDatabase(memoryConfig())
		require.NoError(t, err)
		t.Cleanup(func() { _ = Close(db) })

		sqlDB, err := db.DB()
		require.NoError(t, err)
		assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
	})

	t.Run("file database survives reopen", func(t *testing.T) {
		cfg := &config.StorageConfig{
			Driver:   "sqlite",
			DSN:      filepath.Join(t.TempDir(), "board.db"),
			LogLevel: "silent",
		}

		db, err := InitDatabase(cfg)
		require.NoError(t, err)
		require.NoError(t, db.Create(&models.Message{Content: "durable"}).Error)
		require.NoError(t, Close(db))

		db, err = InitDatabase(cfg)
		require.NoError(t, err)
		t.Cleanup(func() { _ = Close(db) })

		var got models.Message
		require.NoError(t, db.First(&got).Error)
		assert.Equal(t, "durable", got.Content)
		assert.Equal(t, uint64(1), got.ID)
	})

	t.Run("rejects unknown driver", func(t *testing.T) {
		db, err := InitDatabase(&config.StorageConfig{Driver: "oracle"})
		assert.Error(t, err)
		assert.Nil(t, db)
	})
}

func TestPingAndClose(t *testing.T) {
	db, err := InitDatabase(memoryConfig())
	require.NoError(t, err)

	assert.NoError(t, Ping(context.Background(), db))
	require.NoError(t, Close(db))
	assert.Error(t, Ping(context.Background(), db))
}

func TestIsMemoryDSN(t *testing.T) {
	tests := []struct {
		dsn  string
		want bool
	}{
		{":memory:", true},
		{"", true},
		{"file::memory:?cache=shared&mode=memory", true},
		{"/var/lib/board/board.db", false},
		{"board.db", false},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			assert.Equal(t, tt.want, IsMemoryDSN(tt.dsn))
		})
	}
}

func TestInitRedis(t *testing.T) {
	t.Run("connects to running server", func(t *testing.T) {
		mr := miniredis.RunT(t)

		client, err := InitRedis(&config.RedisConfig{Host: mr.Host(), Port: atoiPort(t, mr.Port()), PoolSize: 2})
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })

		assert.NoError(t, client.Ping(context.Background()).Err())
	})

	t.Run("fails when server is down", func(t *testing.T) {
		mr := miniredis.RunT(t)
		host, port := mr.Host(), atoiPort(t, mr.Port())
		mr.Close()

		client, err := InitRedis(&config.RedisConfig{Host: host, Port: port})
		assert.Error(t, err)
		assert.Nil(t, client)
	})
}

func atoiPort(t *testing.T, port string) int {
	t.Helper()
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return p
}
