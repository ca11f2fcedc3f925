package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/d60-Lab/feedpulse/internal/model"
)

type FeedRepository interface {
	Create(ctx context.Context, feed *model.Feed) error
	GetByID(ctx context.Context, feedID string) (*model.Feed, error)
	ListByAuthor(ctx context.Context, authorID string, offset, limit int) ([]*model.Feed, error)
	ListChildren(ctx context.Context, parentID string) ([]*model.Feed, error)
	UpdateFields(ctx context.Context, feedID string, updates map[string]interface{}) error
	Delete(ctx context.Context, feedIDs []string) error
}

type feedRepository struct{ db *gorm.DB }

func NewFeedRepository(db *gorm.DB) FeedRepository { return &feedRepository{db: db} }

func (r *feedRepository) Create(ctx context.Context, feed *model.Feed) error {
	return r.db.WithContext(ctx).Create(feed).Error
}

// GetByID 未找到返回 (nil, nil)
func (r *feedRepository) GetByID(ctx context.Context, feedID string) (*model.Feed, error) {
	var feed model.Feed
	err := r.db.WithContext(ctx).Where("id = ?", feedID).First(&feed).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &feed, nil
}

func (r *feedRepository) ListByAuthor(ctx context.Context, authorID string, offset, limit int) ([]*model.Feed, error) {
	var res []*model.Feed
	err := r.db.WithContext(ctx).
		Where("author_id = ? AND parent_id = ''", authorID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&res).Error
	return res, err
}

func (r *feedRepository) ListChildren(ctx context.Context, parentID string) ([]*model.Feed, error) {
	var res []*model.Feed
	err := r.db.WithContext(ctx).Where("parent_id = ?", parentID).Find(&res).Error
	return res, err
}

func (r *feedRepository) UpdateFields(ctx context.Context, feedID string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&model.Feed{}).Where("id = ?", feedID).Updates(updates).Error
}

func (r *feedRepository) Delete(ctx context.Context, feedIDs []string) error {
	if len(feedIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("id IN ?", feedIDs).Delete(&model.Feed{}).Error
}
