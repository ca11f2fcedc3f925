package model

import "time"

// Chat 1:1 会话
type Chat struct {
	ID             string `gorm:"primaryKey;type:varchar(36)"`
	CreatedAt      time.Time
	LastActivityAt time.Time `gorm:"index"`
}

func (Chat) TableName() string { return "chats" }

// ChatParticipant 会话成员（两人）
type ChatParticipant struct {
	ID     string `gorm:"primaryKey;type:varchar(36)"`
	ChatID string `gorm:"type:varchar(36);index:idx_cp_chat;index:idx_cp_pair,unique"`
	UserID string `gorm:"type:varchar(36);index:idx_cp_user;index:idx_cp_pair,unique"`
	CreatedAt time.Time
}

func (ChatParticipant) TableName() string { return "chat_participants" }

// ChatMessage 消息主体
type ChatMessage struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	ChatID    string `gorm:"type:varchar(36);index:idx_cm_chat_created"`
	SenderID  string `gorm:"type:varchar(36);index"`
	Body      string `gorm:"type:text"`
	CreatedAt time.Time `gorm:"index:idx_cm_chat_created"`
}

func (ChatMessage) TableName() string { return "chat_messages" }
