package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/feedpulse/config"
	"github.com/d60-Lab/feedpulse/internal/model"
)

// FeedMeta is the cached projection of a post or comment. The durable store
// owns canonical truth; this hash is rebuildable from it.
type FeedMeta struct {
	ID            string               `json:"id"`
	AuthorID      string               `json:"author_id,omitempty"`
	ParentID      string               `json:"parent_id,omitempty"`
	Body          string               `json:"body"`
	ImageURLs     []string             `json:"image_urls"`
	VideoURL      string               `json:"video_url,omitempty"`
	Visibility    model.FeedVisibility `json:"visibility,omitempty"`
	CommentPolicy model.CommentPolicy  `json:"comment_policy,omitempty"`
	CategoryID    string               `json:"category_id,omitempty"`
	TagIDs        []string             `json:"tag_ids,omitempty"`
	QuoteID       string               `json:"quote_id,omitempty"`
	ScheduledAt   int64                `json:"scheduled_at,omitempty"`
	CreatedAt     int64                `json:"created_at"`
	UpdatedAt     int64                `json:"updated_at,omitempty"`
}

// Engagement is the sparse per-entity snapshot: zero counters and false flags
// are omitted on the wire.
type Engagement struct {
	Comments  int64 `json:"comments,omitempty"`
	Likes     int64 `json:"likes,omitempty"`
	Views     int64 `json:"views,omitempty"`
	Reposts   int64 `json:"reposts,omitempty"`
	Quotes    int64 `json:"quotes,omitempty"`
	Bookmarks int64 `json:"bookmarks,omitempty"`

	Liked      bool `json:"liked,omitempty"`
	Viewed     bool `json:"viewed,omitempty"`
	Reposted   bool `json:"reposted,omitempty"`
	Quoted     bool `json:"quoted,omitempty"`
	Bookmarked bool `json:"bookmarked,omitempty"`
}

func (e *Engagement) counts() EngagementCounts {
	return EngagementCounts{Comments: e.Comments, Likes: e.Likes, Views: e.Views, Reposts: e.Reposts, Quotes: e.Quotes}
}

func (e *Engagement) setCount(t model.EngagementType, v int64) {
	switch t {
	case model.EngagementLikes:
		e.Likes = v
	case model.EngagementViews:
		e.Views = v
	case model.EngagementReposts:
		e.Reposts = v
	case model.EngagementQuotes:
		e.Quotes = v
	case model.EngagementBookmarks:
		e.Bookmarks = v
	}
}

func (e *Engagement) setFlag(t model.EngagementType, v bool) {
	switch t {
	case model.EngagementLikes:
		e.Liked = v
	case model.EngagementViews:
		e.Viewed = v
	case model.EngagementReposts:
		e.Reposted = v
	case model.EngagementQuotes:
		e.Quoted = v
	case model.EngagementBookmarks:
		e.Bookmarked = v
	}
}

// FeedView is a hydrated timeline entry.
type FeedView struct {
	FeedMeta
	Engagement *Engagement `json:"engagement"`
	Author     *Profile    `json:"author"`
}

// TimelinePage 一页时间线；Total 为该时间线当前长度
type TimelinePage struct {
	Feeds []*FeedView `json:"feeds"`
	Total int64       `json:"total"`
}

// FeedCache owns feed metadata, ranked timelines, engagement sets, the cached
// follow graph fan-out and the comment forest.
type FeedCache struct {
	rdb    redis.UniversalClient
	scorer *Scorer
	caps   config.TimelineConfig
}

func NewFeedCache(rdb redis.UniversalClient, scorer *Scorer, caps config.TimelineConfig) *FeedCache {
	return &FeedCache{rdb: rdb, scorer: scorer, caps: caps}
}

func entityKind(isComment bool) string {
	if isComment {
		return entityComments
	}
	return entityFeeds
}

func (m *FeedMeta) mapping() map[string]interface{} {
	out := map[string]interface{}{
		"id":         m.ID,
		"author_id":  m.AuthorID,
		"body":       m.Body,
		"created_at": m.CreatedAt,
	}
	if len(m.ImageURLs) > 0 {
		raw, _ := json.Marshal(m.ImageURLs)
		out["image_urls"] = string(raw)
	}
	if len(m.TagIDs) > 0 {
		raw, _ := json.Marshal(m.TagIDs)
		out["tag_ids"] = string(raw)
	}
	if m.VideoURL != "" {
		out["video_url"] = m.VideoURL
	}
	if m.Visibility != "" {
		out["visibility"] = string(m.Visibility)
	}
	if m.CommentPolicy != "" {
		out["comment_policy"] = string(m.CommentPolicy)
	}
	if m.CategoryID != "" {
		out["category_id"] = m.CategoryID
	}
	if m.QuoteID != "" {
		out["quote_id"] = m.QuoteID
	}
	if m.ParentID != "" {
		out["parent_id"] = m.ParentID
	}
	if m.ScheduledAt != 0 {
		out["scheduled_at"] = m.ScheduledAt
	}
	if m.UpdatedAt != 0 {
		out["updated_at"] = m.UpdatedAt
	}
	return out
}

func parseFeedMeta(h map[string]string) *FeedMeta {
	m := &FeedMeta{
		ID:            h["id"],
		AuthorID:      h["author_id"],
		ParentID:      h["parent_id"],
		Body:          h["body"],
		VideoURL:      h["video_url"],
		Visibility:    model.FeedVisibility(h["visibility"]),
		CommentPolicy: model.CommentPolicy(h["comment_policy"]),
		CategoryID:    h["category_id"],
		QuoteID:       h["quote_id"],
		ImageURLs:     []string{},
	}
	if raw := h["image_urls"]; raw != "" {
		_ = json.Unmarshal([]byte(raw), &m.ImageURLs)
	}
	if raw := h["tag_ids"]; raw != "" {
		_ = json.Unmarshal([]byte(raw), &m.TagIDs)
	}
	m.ScheduledAt, _ = strconv.ParseInt(h["scheduled_at"], 10, 64)
	m.CreatedAt, _ = strconv.ParseInt(h["created_at"], 10, 64)
	m.UpdatedAt, _ = strconv.ParseInt(h["updated_at"], 10, 64)
	return m
}

// CreateFeed materialises a new post into the cache. Comments are registered
// in the comment forest and never enter the ranked timelines. Top-level posts
// fan out to the global timeline, the author's own timeline and every current
// follower's following-timeline in one pipelined submission (at-least-once;
// a concurrent unfollow race is accepted).
func (c *FeedCache) CreateFeed(ctx context.Context, meta *FeedMeta) error {
	if meta.CreatedAt == 0 {
		meta.CreatedAt = time.Now().Unix()
	}

	if meta.ParentID != "" {
		return c.createComment(ctx, meta)
	}

	followers, err := c.rdb.SMembers(ctx, keyFollowers(meta.AuthorID)).Result()
	if err != nil {
		return fmt.Errorf("create feed %s: load followers: %w", meta.ID, err)
	}

	score := c.scorer.Score(EngagementCounts{}, time.Unix(meta.CreatedAt, 0))
	member := redis.Z{Score: score, Member: meta.ID}

	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, keyFeedMeta(meta.ID), meta.mapping())

	pipe.ZAdd(ctx, keyGlobalTimeline, member)
	pipe.ZRemRangeByRank(ctx, keyGlobalTimeline, 0, int64(-c.caps.GlobalCap-1))

	pipe.ZAdd(ctx, keyUserTimeline(meta.AuthorID), member)
	pipe.ZRemRangeByRank(ctx, keyUserTimeline(meta.AuthorID), 0, int64(-c.caps.OwnCap-1))

	for _, followerID := range followers {
		pipe.ZAdd(ctx, keyFollowingTimeline(followerID), member)
		pipe.ZRemRangeByRank(ctx, keyFollowingTimeline(followerID), 0, int64(-c.caps.FollowingCap-1))
	}

	pipe.HIncrBy(ctx, keyProfile(meta.AuthorID), "posts_count", 1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("create feed %s: fan-out pipeline: %w", meta.ID, err)
	}
	return nil
}

func (c *FeedCache) createComment(ctx context.Context, meta *FeedMeta) error {
	parentIsFeed, err := c.rdb.Exists(ctx, keyFeedMeta(meta.ParentID)).Result()
	if err != nil {
		return fmt.Errorf("create comment %s: resolve parent: %w", meta.ID, err)
	}
	parentKind := entityKind(parentIsFeed == 0)

	pipe := c.rdb.Pipeline()
	pipe.SAdd(ctx, keyChildComments(parentKind, meta.ParentID), meta.ID)
	pipe.HSet(ctx, keyCommentMeta(meta.ID), map[string]interface{}{
		"id":         meta.ID,
		"author_id":  meta.AuthorID,
		"parent_id":  meta.ParentID,
		"body":       meta.Body,
		"created_at": meta.CreatedAt,
	})
	pipe.SAdd(ctx, keyUserComments(meta.AuthorID), meta.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("create comment %s: %w", meta.ID, err)
	}
	return nil
}

// UpdateFeedField upserts one metadata field; nil deletes it (sparse hash).
// No fan-out: readers re-hydrate from the hash on the next page load.
func (c *FeedCache) UpdateFeedField(ctx context.Context, feedID, field string, value interface{}) error {
	if value == nil {
		return c.rdb.HDel(ctx, keyFeedMeta(feedID), field).Err()
	}
	if list, ok := value.([]string); ok {
		raw, err := json.Marshal(list)
		if err != nil {
			return err
		}
		value = string(raw)
	}
	return c.rdb.HSet(ctx, keyFeedMeta(feedID), field, value).Err()
}

// DeleteFeed removes a post or comment and its entire nested comment closure,
// returning every removed id so the caller can mirror the delete durably.
// Traversal is an explicit queue, not recursion: thread depth is unbounded.
func (c *FeedCache) DeleteFeed(ctx context.Context, authorID, feedID string) ([]string, error) {
	exists, err := c.rdb.Exists(ctx, keyFeedMeta(feedID)).Result()
	if err != nil {
		return nil, fmt.Errorf("delete feed %s: %w", feedID, err)
	}
	isTopLevel := exists == 1
	rootKind := entityKind(!isTopLevel)

	comments, err := c.collectCommentClosure(ctx, rootKind, feedID)
	if err != nil {
		return nil, fmt.Errorf("delete feed %s: collect comments: %w", feedID, err)
	}
	if !isTopLevel {
		// the root itself is a comment and must be scrubbed like its children
		comments = append(comments, feedID)
	}

	if err := c.purgeComments(ctx, comments); err != nil {
		return nil, fmt.Errorf("delete feed %s: purge comments: %w", feedID, err)
	}

	if isTopLevel {
		if err := c.deleteTopLevel(ctx, authorID, feedID); err != nil {
			return nil, err
		}
		return append(comments, feedID), nil
	}
	if err := c.unlinkComment(ctx, feedID); err != nil {
		return nil, err
	}
	return comments, nil
}

// collectCommentClosure BFS-walks the adjacency sets under (kind, rootID).
func (c *FeedCache) collectCommentClosure(ctx context.Context, rootKind, rootID string) ([]string, error) {
	type node struct{ kind, id string }
	queue := []node{{kind: rootKind, id: rootID}}
	var closure []string

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		children, err := c.rdb.SMembers(ctx, keyChildComments(n.kind, n.id)).Result()
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			closure = append(closure, child)
			queue = append(queue, node{kind: entityComments, id: child})
		}
	}
	return closure, nil
}

func (c *FeedCache) purgeComments(ctx context.Context, commentIDs []string) error {
	if len(commentIDs) == 0 {
		return nil
	}

	// one read pipeline: author of each comment + members of each engagement set
	read := c.rdb.Pipeline()
	authorCmds := make([]*redis.StringCmd, len(commentIDs))
	memberCmds := make([][]*redis.StringSliceCmd, len(commentIDs))
	for i, id := range commentIDs {
		authorCmds[i] = read.HGet(ctx, keyCommentMeta(id), "author_id")
		memberCmds[i] = make([]*redis.StringSliceCmd, len(model.EngagementTypes))
		for j, t := range model.EngagementTypes {
			memberCmds[i][j] = read.SMembers(ctx, keyEngagement(entityComments, id, string(t)))
		}
	}
	if _, err := read.Exec(ctx); err != nil && err != redis.Nil {
		return err
	}

	del := c.rdb.Pipeline()
	for i, id := range commentIDs {
		for j, t := range model.EngagementTypes {
			for _, userID := range memberCmds[i][j].Val() {
				del.SRem(ctx, keyUserEngaged(userID, entityComments, string(t)), id)
			}
			del.Del(ctx, keyEngagement(entityComments, id, string(t)))
		}
		if author := authorCmds[i].Val(); author != "" {
			del.SRem(ctx, keyUserComments(author), id)
		}
		del.Del(ctx, keyCommentMeta(id), keyChildComments(entityComments, id))
	}
	_, err := del.Exec(ctx)
	return err
}

func (c *FeedCache) deleteTopLevel(ctx context.Context, authorID, feedID string) error {
	followers, err := c.rdb.SMembers(ctx, keyFollowers(authorID)).Result()
	if err != nil {
		return err
	}

	read := c.rdb.Pipeline()
	memberCmds := make([]*redis.StringSliceCmd, len(model.EngagementTypes))
	for j, t := range model.EngagementTypes {
		memberCmds[j] = read.SMembers(ctx, keyEngagement(entityFeeds, feedID, string(t)))
	}
	if _, err := read.Exec(ctx); err != nil && err != redis.Nil {
		return err
	}

	pipe := c.rdb.Pipeline()
	pipe.ZRem(ctx, keyGlobalTimeline, feedID)
	pipe.ZRem(ctx, keyUserTimeline(authorID), feedID)
	pipe.ZRem(ctx, keyFollowingTimeline(authorID), feedID)
	for _, followerID := range followers {
		pipe.ZRem(ctx, keyFollowingTimeline(followerID), feedID)
	}
	for j, t := range model.EngagementTypes {
		for _, userID := range memberCmds[j].Val() {
			pipe.SRem(ctx, keyUserEngaged(userID, entityFeeds, string(t)), feedID)
		}
		pipe.Del(ctx, keyEngagement(entityFeeds, feedID, string(t)))
	}
	pipe.Del(ctx, keyFeedMeta(feedID), keyChildComments(entityFeeds, feedID))
	pipe.HIncrBy(ctx, keyProfile(authorID), "posts_count", -1)
	_, err = pipe.Exec(ctx)
	return err
}

// unlinkComment detaches a deleted comment from its parent's adjacency set;
// the parent's own data is untouched.
func (c *FeedCache) unlinkComment(ctx context.Context, commentID string) error {
	parentID, err := c.rdb.HGet(ctx, keyCommentMeta(commentID), "parent_id").Result()
	if err == redis.Nil || parentID == "" {
		return nil
	}
	if err != nil {
		return err
	}
	parentIsFeed, err := c.rdb.Exists(ctx, keyFeedMeta(parentID)).Result()
	if err != nil {
		return err
	}
	return c.rdb.SRem(ctx, keyChildComments(entityKind(parentIsFeed == 0), parentID), commentID).Err()
}

/* ---------------------------------- reads ---------------------------------- */

// DiscoverTimeline pages the shared global timeline by rank, inclusive
// [start, end] offsets.
func (c *FeedCache) DiscoverTimeline(ctx context.Context, viewerID string, start, end int) (*TimelinePage, error) {
	total, err := c.rdb.ZCard(ctx, keyGlobalTimeline).Result()
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return &TimelinePage{Feeds: []*FeedView{}}, nil
	}
	ids, err := c.rdb.ZRevRange(ctx, keyGlobalTimeline, int64(start), int64(end)).Result()
	if err != nil {
		return nil, err
	}
	feeds, err := c.getFeeds(ctx, ids, viewerID)
	if err != nil {
		return nil, err
	}
	return &TimelinePage{Feeds: feeds, Total: total}, nil
}

// FollowingTimeline pages the user's fan-out timeline; a short page is padded
// from the global timeline with duplicate suppression, which covers users
// whose fan-out history is sparse (fresh follows) without a full re-derive.
func (c *FeedCache) FollowingTimeline(ctx context.Context, userID string, start, end int) (*TimelinePage, error) {
	ids, err := c.rdb.ZRevRange(ctx, keyFollowingTimeline(userID), int64(start), int64(end)).Result()
	if err != nil {
		return nil, err
	}

	pageSize := end - start + 1
	if len(ids) < pageSize {
		globalIDs, err := c.rdb.ZRevRange(ctx, keyGlobalTimeline, 0, int64(end+pageSize)).Result()
		if err != nil {
			return nil, err
		}
		seen := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			seen[id] = struct{}{}
		}
		for _, id := range globalIDs {
			if len(ids) >= pageSize {
				break
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	total, err := c.rdb.ZCard(ctx, keyFollowingTimeline(userID)).Result()
	if err != nil {
		return nil, err
	}
	feeds, err := c.getFeeds(ctx, ids, userID)
	if err != nil {
		return nil, err
	}
	return &TimelinePage{Feeds: feeds, Total: total}, nil
}

// UserTimeline pages the author's own posts.
func (c *FeedCache) UserTimeline(ctx context.Context, userID string, start, end int) (*TimelinePage, error) {
	total, err := c.rdb.ZCard(ctx, keyUserTimeline(userID)).Result()
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return &TimelinePage{Feeds: []*FeedView{}}, nil
	}
	ids, err := c.rdb.ZRevRange(ctx, keyUserTimeline(userID), int64(start), int64(end)).Result()
	if err != nil {
		return nil, err
	}
	feeds, err := c.getFeeds(ctx, ids, userID)
	if err != nil {
		return nil, err
	}
	return &TimelinePage{Feeds: feeds, Total: total}, nil
}

// getFeeds hydrates a page in exactly three pipelined round-trips: metadata,
// engagement, author profiles. O(1) round-trips per page is the central
// performance contract of the engine; never loop-with-await-per-item.
func (c *FeedCache) getFeeds(ctx context.Context, feedIDs []string, viewerID string) ([]*FeedView, error) {
	if len(feedIDs) == 0 {
		return []*FeedView{}, nil
	}

	// 1: metadata hashes
	metaPipe := c.rdb.Pipeline()
	metaCmds := make([]*redis.MapStringStringCmd, len(feedIDs))
	for i, id := range feedIDs {
		metaCmds[i] = metaPipe.HGetAll(ctx, keyFeedMeta(id))
	}
	if _, err := metaPipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	feeds := make([]*FeedView, 0, len(feedIDs))
	for _, cmd := range metaCmds {
		h := cmd.Val()
		if len(h) == 0 {
			continue // already deleted, skip
		}
		feeds = append(feeds, &FeedView{FeedMeta: *parseFeedMeta(h)})
	}

	// 2: engagement cardinalities + viewer interaction flags
	engPipe := c.rdb.Pipeline()
	type engCmds struct {
		comments *redis.IntCmd
		counts   []*redis.IntCmd
		flags    []*redis.BoolCmd
	}
	perFeed := make([]engCmds, len(feeds))
	for i, f := range feeds {
		perFeed[i].comments = engPipe.SCard(ctx, keyChildComments(entityFeeds, f.ID))
		perFeed[i].counts = make([]*redis.IntCmd, len(model.EngagementTypes))
		for j, t := range model.EngagementTypes {
			perFeed[i].counts[j] = engPipe.SCard(ctx, keyEngagement(entityFeeds, f.ID, string(t)))
		}
		if viewerID != "" {
			perFeed[i].flags = make([]*redis.BoolCmd, len(model.EngagementTypes))
			for j, t := range model.EngagementTypes {
				perFeed[i].flags[j] = engPipe.SIsMember(ctx, keyEngagement(entityFeeds, f.ID, string(t)), viewerID)
			}
		}
	}
	if _, err := engPipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}
	for i, f := range feeds {
		eng := &Engagement{Comments: perFeed[i].comments.Val()}
		for j, t := range model.EngagementTypes {
			eng.setCount(t, perFeed[i].counts[j].Val())
			if perFeed[i].flags != nil {
				eng.setFlag(t, perFeed[i].flags[j].Val())
			}
		}
		f.Engagement = eng
	}

	// 3: author profiles for the distinct authors on the page
	authorSet := make(map[string]*redis.SliceCmd)
	profPipe := c.rdb.Pipeline()
	for _, f := range feeds {
		if _, ok := authorSet[f.AuthorID]; !ok {
			authorSet[f.AuthorID] = profPipe.HMGet(ctx, keyProfile(f.AuthorID), "id", "name", "username", "avatar_url")
		}
	}
	if _, err := profPipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}
	for _, f := range feeds {
		f.Author = parseProfileSlice(authorSet[f.AuthorID].Val())
	}
	return feeds, nil
}

/* ------------------------------- engagement -------------------------------- */

// SetEngagement idempotently records a typed engagement plus its reverse index
// and returns the fresh snapshot (read-after-write for this call).
func (c *FeedCache) SetEngagement(ctx context.Context, userID, entityID string, etype model.EngagementType, isComment bool) (*Engagement, error) {
	if !etype.Valid() {
		return nil, fmt.Errorf("invalid engagement type: %q", etype)
	}
	entity := entityKind(isComment)

	pipe := c.rdb.Pipeline()
	pipe.SAdd(ctx, keyEngagement(entity, entityID, string(etype)), userID)
	pipe.SAdd(ctx, keyUserEngaged(userID, entity, string(etype)), entityID)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return c.GetEngagement(ctx, userID, entityID, isComment)
}

// RemoveEngagement is a no-op on a non-member.
func (c *FeedCache) RemoveEngagement(ctx context.Context, userID, entityID string, etype model.EngagementType, isComment bool) (*Engagement, error) {
	if !etype.Valid() {
		return nil, fmt.Errorf("invalid engagement type: %q", etype)
	}
	entity := entityKind(isComment)

	pipe := c.rdb.Pipeline()
	pipe.SRem(ctx, keyEngagement(entity, entityID, string(etype)), userID)
	pipe.SRem(ctx, keyUserEngaged(userID, entity, string(etype)), entityID)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return c.GetEngagement(ctx, userID, entityID, isComment)
}

// GetEngagement reads the sparse snapshot for one entity in one round-trip.
func (c *FeedCache) GetEngagement(ctx context.Context, viewerID, entityID string, isComment bool) (*Engagement, error) {
	entity := entityKind(isComment)

	pipe := c.rdb.Pipeline()
	commentsCmd := pipe.SCard(ctx, keyChildComments(entity, entityID))
	counts := make([]*redis.IntCmd, len(model.EngagementTypes))
	var flags []*redis.BoolCmd
	for j, t := range model.EngagementTypes {
		counts[j] = pipe.SCard(ctx, keyEngagement(entity, entityID, string(t)))
	}
	if viewerID != "" {
		flags = make([]*redis.BoolCmd, len(model.EngagementTypes))
		for j, t := range model.EngagementTypes {
			flags[j] = pipe.SIsMember(ctx, keyEngagement(entity, entityID, string(t)), viewerID)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	eng := &Engagement{Comments: commentsCmd.Val()}
	for j, t := range model.EngagementTypes {
		eng.setCount(t, counts[j].Val())
		if flags != nil {
			eng.setFlag(t, flags[j].Val())
		}
	}
	return eng, nil
}

// FeedAuthor resolves the author of a post or comment; "" when unknown.
func (c *FeedCache) FeedAuthor(ctx context.Context, entityID string, isComment bool) (string, error) {
	key := keyFeedMeta(entityID)
	if isComment {
		key = keyCommentMeta(entityID)
	}
	author, err := c.rdb.HGet(ctx, key, "author_id").Result()
	if err == redis.Nil {
		return "", nil
	}
	return author, err
}

// RescoreFeed recomputes and re-ranks one feed across all timelines holding
// it. Used by the periodic rescore pass for aging posts.
func (c *FeedCache) RescoreFeed(ctx context.Context, authorID, feedID string) error {
	eng, err := c.GetEngagement(ctx, "", feedID, false)
	if err != nil {
		return err
	}
	createdAtRaw, err := c.rdb.HGet(ctx, keyFeedMeta(feedID), "created_at").Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	createdAt, _ := strconv.ParseInt(createdAtRaw, 10, 64)
	score := c.scorer.Score(eng.counts(), time.Unix(createdAt, 0))

	followers, err := c.rdb.SMembers(ctx, keyFollowers(authorID)).Result()
	if err != nil {
		return err
	}

	pipe := c.rdb.Pipeline()
	pipe.ZAddXX(ctx, keyGlobalTimeline, redis.Z{Score: score, Member: feedID})
	pipe.ZAddXX(ctx, keyUserTimeline(authorID), redis.Z{Score: score, Member: feedID})
	for _, followerID := range followers {
		pipe.ZAddXX(ctx, keyFollowingTimeline(followerID), redis.Z{Score: score, Member: feedID})
	}
	_, err = pipe.Exec(ctx)
	return err
}
