package models

// Message 留言板消息，id 由数据库自增分配
type Message struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Content string `gorm:"type:text;not null" json:"content"`
}

func (Message) TableName() string {
	return "messages"
}
