package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/d60-Lab/feedpulse/internal/model"
)

// Rebuilder repopulates cache projections lazily from the durable store.
// Cold start assumes an empty cache; nothing is re-derived automatically,
// each projection is rebuilt on its first miss.
type Rebuilder struct {
	db  *gorm.DB
	rdb redis.UniversalClient

	followerLoads atomic.Int64
	profileLoads  atomic.Int64
	feedLoads     atomic.Int64
}

func NewRebuilder(db *gorm.DB, rdb redis.UniversalClient) *Rebuilder {
	return &Rebuilder{db: db, rdb: rdb}
}

// EnsureFollowers backfills the follower set from the fans table on miss.
func (r *Rebuilder) EnsureFollowers(ctx context.Context, userID string) error {
	exists, err := r.rdb.Exists(ctx, keyFollowers(userID)).Result()
	if err != nil || exists == 1 {
		return err
	}
	r.followerLoads.Add(1)

	var fanIDs []string
	if err := r.db.WithContext(ctx).
		Table("fans").
		Select("fan_id").
		Where("user_id = ?", userID).
		Scan(&fanIDs).Error; err != nil {
		return err
	}
	if len(fanIDs) == 0 {
		return nil
	}
	members := make([]interface{}, len(fanIDs))
	for i, id := range fanIDs {
		members[i] = id
	}
	return r.rdb.SAdd(ctx, keyFollowers(userID), members...).Err()
}

// EnsureProfile backfills the profile projection from the users table.
func (r *Rebuilder) EnsureProfile(ctx context.Context, userID string) error {
	exists, err := r.rdb.Exists(ctx, keyProfile(userID)).Result()
	if err != nil || exists == 1 {
		return err
	}
	r.profileLoads.Add(1)

	var user model.User
	if err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return err
	}
	return r.rdb.HSet(ctx, keyProfile(userID), map[string]interface{}{
		"id":         user.ID,
		"name":       user.Name,
		"username":   user.Username,
		"avatar_url": user.AvatarURL,
	}).Err()
}

// EnsureFeedMeta backfills one feed hash from the feeds table on miss.
func (r *Rebuilder) EnsureFeedMeta(ctx context.Context, feedID string) error {
	exists, err := r.rdb.Exists(ctx, keyFeedMeta(feedID)).Result()
	if err != nil || exists == 1 {
		return err
	}
	r.feedLoads.Add(1)

	var feed model.Feed
	if err := r.db.WithContext(ctx).Where("id = ? AND parent_id = ''", feedID).First(&feed).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return err
	}
	meta := feedMetaFromModel(&feed)
	return r.rdb.HSet(ctx, keyFeedMeta(feedID), meta.mapping()).Err()
}

func feedMetaFromModel(f *model.Feed) *FeedMeta {
	m := &FeedMeta{
		ID:            f.ID,
		AuthorID:      f.AuthorID,
		ParentID:      f.ParentID,
		Body:          f.Body,
		VideoURL:      f.VideoURL,
		Visibility:    f.Visibility,
		CommentPolicy: f.CommentPolicy,
		CategoryID:    f.CategoryID,
		QuoteID:       f.QuoteID,
		CreatedAt:     f.CreatedAt.Unix(),
		UpdatedAt:     f.UpdatedAt.Unix(),
		ImageURLs:     []string{},
	}
	if f.ImageURLs != "" {
		_ = json.Unmarshal([]byte(f.ImageURLs), &m.ImageURLs)
	}
	if f.ScheduledAt != nil {
		m.ScheduledAt = f.ScheduledAt.Unix()
	}
	return m
}

// Counters reports how many durable-store loads each projection required.
type RebuildCounters struct {
	FollowerLoads int64
	ProfileLoads  int64
	FeedLoads     int64
}

func (r *Rebuilder) Counters() RebuildCounters {
	return RebuildCounters{
		FollowerLoads: r.followerLoads.Load(),
		ProfileLoads:  r.profileLoads.Load(),
		FeedLoads:     r.feedLoads.Load(),
	}
}

func (r *Rebuilder) ResetCounters() {
	r.followerLoads.Store(0)
	r.profileLoads.Store(0)
	r.feedLoads.Store(0)
}
