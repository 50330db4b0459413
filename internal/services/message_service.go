package services

import (
	"context"
	"errors"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/Gopher0727/MessageBoard/internal/models"
	"github.com/Gopher0727/MessageBoard/internal/repositories"
	logger "github.com/Gopher0727/MessageBoard/middleware/log"
)

// ErrStorage 标记所有来自存储层的失败
var ErrStorage = errors.New("storage failure")

// StorageError 保留底层错误文本，同时可以用 errors.Is(err, ErrStorage) 判断
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return e.Err.Error()
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStorage, e.Err}
}

// ValidationError 请求体不合法（缺字段、类型不对、JSON 格式错误）
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + " " + e.Reason
}

// MessageService 消息服务
type MessageService struct {
	messageRepo repositories.MessageRepository
	logger      *logger.Logger
}

// NewMessageService 创建消息服务实例
func NewMessageService(messageRepo repositories.MessageRepository, log *logger.Logger) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		logger:      log,
	}
}

// CreateMessageRequest 创建消息请求，只校验 content 字段是否存在（允许空字符串）
type CreateMessageRequest struct {
	Content *string `json:"content" binding:"required"`
}

// MessageDTO 消息数据传输对象
type MessageDTO struct {
	ID      uint64 `json:"id"`
	Content string `json:"content"`
}

func toMessageDTO(m models.Message) MessageDTO {
	return MessageDTO{ID: m.ID, Content: m.Content}
}

// ListRecent 返回最近 10 条消息，新消息在前
func (s *MessageService) ListRecent(ctx context.Context) ([]MessageDTO, error) {
	messages, err := s.messageRepo.ListRecent(ctx, repositories.DefaultListLimit)
	if err != nil {
		return nil, &StorageError{Op: "list messages", Err: err}
	}

	return lo.Map(messages, func(item models.Message, _ int) MessageDTO {
		return toMessageDTO(item)
	}), nil
}

// Create 保存一条消息
func (s *MessageService) Create(ctx context.Context, req *CreateMessageRequest) (*MessageDTO, error) {
	if req == nil || req.Content == nil {
		return nil, &ValidationError{Field: "content", Reason: "is required"}
	}

	message, err := s.messageRepo.Create(ctx, *req.Content)
	if err != nil {
		return nil, &StorageError{Op: "create message", Err: err}
	}

	s.logger.DebugContext(ctx, "message created",
		zap.Uint64("id", message.ID),
		zap.Int("length", len(message.Content)),
	)

	dto := toMessageDTO(*message)
	return &dto, nil
}

// Health 检查存储是否可用
func (s *MessageService) Health(ctx context.Context) error {
	if err := s.messageRepo.Ping(ctx); err != nil {
		return &StorageError{Op: "ping", Err: err}
	}
	return nil
}
