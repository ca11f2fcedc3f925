package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/d60-Lab/feedpulse/internal/cache"
	"github.com/d60-Lab/feedpulse/internal/model"
	"github.com/d60-Lab/feedpulse/internal/realtime"
	"github.com/d60-Lab/feedpulse/pkg/logger"
)

var (
	ErrInvalidVisibility    = errors.New("invalid visibility")
	ErrInvalidCommentPolicy = errors.New("invalid comment policy")
	ErrFeedNotFound         = errors.New("feed not found")
	ErrNotFeedAuthor        = errors.New("not the feed author")
)

// CreateFeedInput 发布内容的入参；ParentID 非空时为评论
type CreateFeedInput struct {
	Body          string
	ImageURLs     []string
	VideoURL      string
	Visibility    model.FeedVisibility
	CommentPolicy model.CommentPolicy
	CategoryID    string
	TagIDs        []string
	QuoteID       string
	ParentID      string
	ScheduledAt   int64
}

// FeedService 内容服务：缓存先行（单一事实源），持久层异步落地，
// 在线粉丝实时推送
type FeedService interface {
	CreateFeed(ctx context.Context, authorID string, input *CreateFeedInput) (*cache.FeedMeta, error)
	UpdateFeed(ctx context.Context, authorID, feedID string, updates map[string]interface{}) error
	DeleteFeed(ctx context.Context, authorID, feedID string) error
	Discover(ctx context.Context, viewerID string, start, end int) (*cache.TimelinePage, error)
	Following(ctx context.Context, userID string, start, end int) (*cache.TimelinePage, error)
	UserFeeds(ctx context.Context, userID string, start, end int) (*cache.TimelinePage, error)
	Engage(ctx context.Context, userID, entityID string, etype model.EngagementType, isComment bool) (*cache.Engagement, error)
	Disengage(ctx context.Context, userID, entityID string, etype model.EngagementType, isComment bool) (*cache.Engagement, error)
	Engagement(ctx context.Context, viewerID, entityID string, isComment bool) (*cache.Engagement, error)
	Rescore(ctx context.Context, authorID, feedID string) error
}

type feedService struct {
	feedCache   *cache.FeedCache
	followCache *cache.FollowCache
	presence    *cache.ChatCache
	stats       *cache.StatsCache
	bus         *cache.Bus
	rebuilder   *cache.Rebuilder
	writeback   *Writeback
}

func NewFeedService(feedCache *cache.FeedCache, followCache *cache.FollowCache, presence *cache.ChatCache, stats *cache.StatsCache, bus *cache.Bus, rebuilder *cache.Rebuilder, writeback *Writeback) FeedService {
	return &feedService{
		feedCache:   feedCache,
		followCache: followCache,
		presence:    presence,
		stats:       stats,
		bus:         bus,
		rebuilder:   rebuilder,
		writeback:   writeback,
	}
}

func (s *feedService) CreateFeed(ctx context.Context, authorID string, input *CreateFeedInput) (*cache.FeedMeta, error) {
	if input.Visibility != "" && !input.Visibility.Valid() {
		return nil, ErrInvalidVisibility
	}
	if input.CommentPolicy != "" && !input.CommentPolicy.Valid() {
		return nil, ErrInvalidCommentPolicy
	}

	// 冷启动：粉丝集合与画像按需从持久层回填
	if err := s.rebuilder.EnsureFollowers(ctx, authorID); err != nil {
		return nil, err
	}
	if err := s.rebuilder.EnsureProfile(ctx, authorID); err != nil {
		return nil, err
	}

	now := time.Now()
	meta := &cache.FeedMeta{
		ID:            uuid.New().String(),
		AuthorID:      authorID,
		ParentID:      input.ParentID,
		Body:          input.Body,
		ImageURLs:     input.ImageURLs,
		VideoURL:      input.VideoURL,
		Visibility:    input.Visibility,
		CommentPolicy: input.CommentPolicy,
		CategoryID:    input.CategoryID,
		TagIDs:        input.TagIDs,
		QuoteID:       input.QuoteID,
		ScheduledAt:   input.ScheduledAt,
		CreatedAt:     now.Unix(),
	}
	if err := s.feedCache.CreateFeed(ctx, meta); err != nil {
		return nil, err
	}

	s.writeback.EnqueueFeed(feedModelFromMeta(meta, now))

	if err := s.stats.Incr(ctx); err != nil {
		logger.Warn("stats incr failed", zap.Error(err))
	}
	s.publishStats(ctx)

	if meta.ParentID == "" {
		s.notifyFollowers(ctx, authorID, realtime.EventNewFeed, map[string]interface{}{
			"feed_id":   meta.ID,
			"author_id": authorID,
		})
	}
	return meta, nil
}

// updatableFeedFields 可编辑的元数据字段，缓存 hash 与 feeds 表同名
var updatableFeedFields = map[string]struct{}{
	"body":           {},
	"image_urls":     {},
	"video_url":      {},
	"visibility":     {},
	"comment_policy": {},
	"category_id":    {},
	"scheduled_at":   {},
}

func (s *feedService) UpdateFeed(ctx context.Context, authorID, feedID string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	for field := range updates {
		if _, ok := updatableFeedFields[field]; !ok {
			return fmt.Errorf("feed field %q is not updatable", field)
		}
	}
	if v, ok := updates["visibility"].(string); ok && !model.FeedVisibility(v).Valid() {
		return ErrInvalidVisibility
	}
	if v, ok := updates["comment_policy"].(string); ok && !model.CommentPolicy(v).Valid() {
		return ErrInvalidCommentPolicy
	}

	author, err := s.feedCache.FeedAuthor(ctx, feedID, false)
	if err != nil {
		return err
	}
	if author == "" {
		return ErrFeedNotFound
	}
	if author != authorID {
		return ErrNotFeedAuthor
	}

	now := time.Now()
	for field, value := range updates {
		if err := s.feedCache.UpdateFeedField(ctx, feedID, field, value); err != nil {
			return err
		}
	}
	if err := s.feedCache.UpdateFeedField(ctx, feedID, "updated_at", now.Unix()); err != nil {
		return err
	}
	s.writeback.EnqueueFeedUpdate(feedID, durableFeedUpdates(updates, now))
	return nil
}

func (s *feedService) DeleteFeed(ctx context.Context, authorID, feedID string) error {
	removed, err := s.feedCache.DeleteFeed(ctx, authorID, feedID)
	if err != nil {
		return err
	}
	if len(removed) > 0 {
		s.writeback.EnqueueFeedDelete(removed)
	}
	s.notifyFollowers(ctx, authorID, realtime.EventDeletedFeed, map[string]interface{}{
		"feed_id":   feedID,
		"author_id": authorID,
	})
	return nil
}

func (s *feedService) Discover(ctx context.Context, viewerID string, start, end int) (*cache.TimelinePage, error) {
	return s.feedCache.DiscoverTimeline(ctx, viewerID, start, end)
}

func (s *feedService) Following(ctx context.Context, userID string, start, end int) (*cache.TimelinePage, error) {
	return s.feedCache.FollowingTimeline(ctx, userID, start, end)
}

func (s *feedService) UserFeeds(ctx context.Context, userID string, start, end int) (*cache.TimelinePage, error) {
	return s.feedCache.UserTimeline(ctx, userID, start, end)
}

func (s *feedService) Engage(ctx context.Context, userID, entityID string, etype model.EngagementType, isComment bool) (*cache.Engagement, error) {
	eng, err := s.feedCache.SetEngagement(ctx, userID, entityID, etype, isComment)
	if err != nil {
		return nil, err
	}
	s.afterEngagement(ctx, userID, entityID, etype, isComment)
	return eng, nil
}

func (s *feedService) Disengage(ctx context.Context, userID, entityID string, etype model.EngagementType, isComment bool) (*cache.Engagement, error) {
	eng, err := s.feedCache.RemoveEngagement(ctx, userID, entityID, etype, isComment)
	if err != nil {
		return nil, err
	}
	s.afterEngagement(ctx, userID, entityID, etype, isComment)
	return eng, nil
}

func (s *feedService) Engagement(ctx context.Context, viewerID, entityID string, isComment bool) (*cache.Engagement, error) {
	return s.feedCache.GetEngagement(ctx, viewerID, entityID, isComment)
}

func (s *feedService) Rescore(ctx context.Context, authorID, feedID string) error {
	return s.feedCache.RescoreFeed(ctx, authorID, feedID)
}

// afterEngagement re-ranks the affected post and pushes the live engagement
// update to its author. Best effort: delivery failures never fail the write.
func (s *feedService) afterEngagement(ctx context.Context, userID, entityID string, etype model.EngagementType, isComment bool) {
	author, err := s.feedCache.FeedAuthor(ctx, entityID, isComment)
	if err != nil || author == "" {
		return
	}
	if !isComment {
		if err := s.feedCache.RescoreFeed(ctx, author, entityID); err != nil {
			logger.Warn("rescore after engagement failed", zap.String("feed", entityID), zap.Error(err))
		}
	}
	if author == userID {
		return
	}
	online, err := s.presence.IsOnlineInFeeds(ctx, author)
	if err != nil || !online {
		return
	}
	s.publish(ctx, cache.TopicHomeTimeline(author), realtime.EventEngagement, map[string]interface{}{
		"entity_id": entityID,
		"etype":     string(etype),
		"user_id":   userID,
	})
}

// notifyFollowers pushes one event to every follower currently online on the
// feed surface, each on their own home-timeline topic.
func (s *feedService) notifyFollowers(ctx context.Context, authorID string, etype realtime.EventType, fields map[string]interface{}) {
	followers, err := s.followCache.Followers(ctx, authorID)
	if err != nil {
		logger.Warn("load followers for notify failed", zap.String("author", authorID), zap.Error(err))
		return
	}
	online, err := s.presence.FilterOnlineInFeeds(ctx, followers)
	if err != nil {
		logger.Warn("filter online followers failed", zap.Error(err))
		return
	}
	for _, uid := range online {
		s.publish(ctx, cache.TopicHomeTimeline(uid), etype, fields)
	}
}

func (s *feedService) publishStats(ctx context.Context) {
	stats, err := s.stats.Statistics(ctx)
	if err != nil {
		logger.Warn("statistics rollup failed", zap.Error(err))
		return
	}
	s.publish(ctx, cache.TopicSettingsStats, realtime.EventStatsUpdated, map[string]interface{}{
		"stats": stats,
	})
}

func (s *feedService) publish(ctx context.Context, topic string, etype realtime.EventType, fields map[string]interface{}) {
	if err := s.bus.Publish(ctx, topic, realtime.Event{Type: etype, Fields: fields}); err != nil {
		logger.Warn("publish failed", zap.String("topic", topic), zap.Error(err))
	}
}

// durableFeedUpdates 把缓存字段值规整成 feeds 表的列值
func durableFeedUpdates(updates map[string]interface{}, now time.Time) map[string]interface{} {
	out := make(map[string]interface{}, len(updates)+1)
	for field, value := range updates {
		switch v := value.(type) {
		case []string:
			raw, _ := json.Marshal(v)
			out[field] = string(raw)
		case int64:
			if field == "scheduled_at" {
				t := time.Unix(v, 0)
				out[field] = &t
				continue
			}
			out[field] = value
		default:
			out[field] = value
		}
	}
	out["updated_at"] = now
	return out
}

func feedModelFromMeta(m *cache.FeedMeta, now time.Time) *model.Feed {
	feed := &model.Feed{
		ID:            m.ID,
		AuthorID:      m.AuthorID,
		ParentID:      m.ParentID,
		Body:          m.Body,
		VideoURL:      m.VideoURL,
		Visibility:    m.Visibility,
		CommentPolicy: m.CommentPolicy,
		CategoryID:    m.CategoryID,
		QuoteID:       m.QuoteID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if len(m.ImageURLs) > 0 {
		raw, _ := json.Marshal(m.ImageURLs)
		feed.ImageURLs = string(raw)
	}
	if m.ScheduledAt != 0 {
		t := time.Unix(m.ScheduledAt, 0)
		feed.ScheduledAt = &t
	}
	return feed
}
