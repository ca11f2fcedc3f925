package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Profile 用户画像投影（请求层逐字段维护，本引擎只消费）
type Profile struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Username        string `json:"username"`
	AvatarURL       string `json:"avatar_url"`
	FollowersCount  int64  `json:"followers_count,omitempty"`
	FollowingsCount int64  `json:"followings_count,omitempty"`
	PostsCount      int64  `json:"posts_count,omitempty"`
	LastSeenAt      int64  `json:"last_seen_at,omitempty"`
}

func parseProfileSlice(vals []interface{}) *Profile {
	get := func(i int) string {
		if i < len(vals) {
			if s, ok := vals[i].(string); ok {
				return s
			}
		}
		return ""
	}
	// field order matches the HMGet in getFeeds: id, name, username, avatar_url
	p := &Profile{ID: get(0), Name: get(1), Username: get(2), AvatarURL: get(3)}
	if p.ID == "" {
		return nil
	}
	return p
}

type ProfileCache struct {
	rdb redis.UniversalClient
}

func NewProfileCache(rdb redis.UniversalClient) *ProfileCache { return &ProfileCache{rdb: rdb} }

func (c *ProfileCache) CreateProfile(ctx context.Context, p *Profile) error {
	return c.rdb.HSet(ctx, keyProfile(p.ID), map[string]interface{}{
		"id":         p.ID,
		"name":       p.Name,
		"username":   p.Username,
		"avatar_url": p.AvatarURL,
	}).Err()
}

// UpdateProfileField: nil 删除字段；time/bool 归一化为字符串字段模型
func (c *ProfileCache) UpdateProfileField(ctx context.Context, userID, field string, value interface{}) error {
	if value == nil {
		return c.rdb.HDel(ctx, keyProfile(userID), field).Err()
	}
	switch v := value.(type) {
	case time.Time:
		value = v.Unix()
	case bool:
		if v {
			value = 1
		} else {
			value = 0
		}
	}
	return c.rdb.HSet(ctx, keyProfile(userID), field, value).Err()
}

// Profile 未找到返回 (nil, nil)
func (c *ProfileCache) Profile(ctx context.Context, userID string) (*Profile, error) {
	h, err := c.rdb.HGetAll(ctx, keyProfile(userID)).Result()
	if err != nil {
		return nil, err
	}
	if len(h) == 0 {
		return nil, nil
	}
	p := &Profile{
		ID:        h["id"],
		Name:      h["name"],
		Username:  h["username"],
		AvatarURL: h["avatar_url"],
	}
	p.FollowersCount, _ = strconv.ParseInt(h["followers_count"], 10, 64)
	p.FollowingsCount, _ = strconv.ParseInt(h["followings_count"], 10, 64)
	p.PostsCount, _ = strconv.ParseInt(h["posts_count"], 10, 64)
	p.LastSeenAt, _ = strconv.ParseInt(h["last_seen_at"], 10, 64)
	return p, nil
}

func (c *ProfileCache) AvatarURL(ctx context.Context, userID string) (string, error) {
	url, err := c.rdb.HGet(ctx, keyProfile(userID), "avatar_url").Result()
	if err == redis.Nil {
		return "", nil
	}
	return url, err
}

// DeleteProfile cascades: unlink follow edges both ways, drop the user's
// posts from the global timeline and from every follower's
// following-timeline, then delete the user's own keys.
func (c *ProfileCache) DeleteProfile(ctx context.Context, userID string) error {
	followers, err := c.rdb.SMembers(ctx, keyFollowers(userID)).Result()
	if err != nil {
		return err
	}
	followings, err := c.rdb.SMembers(ctx, keyFollowings(userID)).Result()
	if err != nil {
		return err
	}
	feedIDs, err := c.rdb.ZRevRange(ctx, keyUserTimeline(userID), 0, -1).Result()
	if err != nil {
		return err
	}

	pipe := c.rdb.Pipeline()
	pipe.Del(ctx,
		keyProfile(userID),
		keyUserTimeline(userID),
		keyFollowingTimeline(userID),
		keyFollowers(userID),
		keyFollowings(userID),
	)
	for _, followerID := range followers {
		pipe.SRem(ctx, keyFollowings(followerID), userID)
	}
	for _, followingID := range followings {
		pipe.SRem(ctx, keyFollowers(followingID), userID)
	}
	for _, feedID := range feedIDs {
		pipe.ZRem(ctx, keyGlobalTimeline, feedID)
		for _, followerID := range followers {
			pipe.ZRem(ctx, keyFollowingTimeline(followerID), feedID)
		}
		pipe.Del(ctx, keyFeedMeta(feedID), keyChildComments(entityFeeds, feedID))
	}
	_, err = pipe.Exec(ctx)
	return err
}
