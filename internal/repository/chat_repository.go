package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/feedpulse/internal/model"
)

type ChatRepository interface {
	Create(ctx context.Context, chatID string, participantIDs []string) error
	Participants(ctx context.Context, chatID string) ([]string, error)
	AppendMessage(ctx context.Context, msg *model.ChatMessage) error
	ListMessages(ctx context.Context, chatID string, offset, limit int) ([]*model.ChatMessage, error)
	Delete(ctx context.Context, chatID string) error
}

type chatRepository struct{ db *gorm.DB }

func NewChatRepository(db *gorm.DB) ChatRepository { return &chatRepository{db: db} }

// Create 会话与成员在一个事务内落地
func (r *chatRepository) Create(ctx context.Context, chatID string, participantIDs []string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		chat := &model.Chat{ID: chatID, CreatedAt: now, LastActivityAt: now}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(chat).Error; err != nil {
			return err
		}
		for _, uid := range participantIDs {
			cp := &model.ChatParticipant{ID: uuid.New().String(), ChatID: chatID, UserID: uid, CreatedAt: now}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(cp).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *chatRepository) Participants(ctx context.Context, chatID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.ChatParticipant{}).
		Where("chat_id = ?", chatID).
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *chatRepository) AppendMessage(ctx context.Context, msg *model.ChatMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&model.Chat{}).
			Where("id = ?", msg.ChatID).
			Update("last_activity_at", msg.CreatedAt).Error
	})
}

func (r *chatRepository) ListMessages(ctx context.Context, chatID string, offset, limit int) ([]*model.ChatMessage, error) {
	var res []*model.ChatMessage
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&res).Error
	return res, err
}

func (r *chatRepository) Delete(ctx context.Context, chatID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ?", chatID).Delete(&model.ChatParticipant{}).Error; err != nil {
			return err
		}
		if err := tx.Where("chat_id = ?", chatID).Delete(&model.ChatMessage{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", chatID).Delete(&model.Chat{}).Error
	})
}
