//go:generate go run go.uber.org/mock/mockgen -source=message_repo.go -destination=../mocks/mock_message_repo.go -package=mocks
package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/Gopher0727/MessageBoard/internal/models"
	"github.com/Gopher0727/MessageBoard/internal/storage"
)

// DefaultListLimit 列表接口返回的最大条数
const DefaultListLimit = 10

// MessageRepository 消息仓储
type MessageRepository interface {
	// ListRecent 按 id 倒序返回最近 limit 条消息，limit <= 0 时使用 DefaultListLimit
	ListRecent(ctx context.Context, limit int) ([]models.Message, error)
	// Create 插入一条消息，id 由数据库分配
	Create(ctx context.Context, content string) (*models.Message, error)
	Ping(ctx context.Context) error
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建消息仓储实例
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) ListRecent(ctx context.Context, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	messages := make([]models.Message, 0, limit)
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *messageRepository) Create(ctx context.Context, content string) (*models.Message, error) {
	message := &models.Message{Content: content}
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return nil, err
	}
	return message, nil
}

func (r *messageRepository) Ping(ctx context.Context) error {
	return storage.Ping(ctx, r.db)
}

var _ MessageRepository = (*messageRepository)(nil)
