package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// FollowCache mirrors the durable follow graph so fan-out never needs a
// relational query per write.
type FollowCache struct {
	rdb redis.UniversalClient
}

func NewFollowCache(rdb redis.UniversalClient) *FollowCache { return &FollowCache{rdb: rdb} }

// AddFollower: userID 关注 followingID
func (c *FollowCache) AddFollower(ctx context.Context, userID, followingID string) error {
	pipe := c.rdb.Pipeline()
	pipe.SAdd(ctx, keyFollowers(followingID), userID)
	pipe.SAdd(ctx, keyFollowings(userID), followingID)
	pipe.HIncrBy(ctx, keyProfile(followingID), "followers_count", 1)
	pipe.HIncrBy(ctx, keyProfile(userID), "followings_count", 1)
	_, err := pipe.Exec(ctx)
	return err
}

// RemoveFollower drops the edge and scrubs the unfollowed author's recent
// posts out of the follower's following-timeline.
func (c *FollowCache) RemoveFollower(ctx context.Context, userID, followingID string) error {
	authoredIDs, err := c.rdb.ZRevRange(ctx, keyUserTimeline(followingID), 0, -1).Result()
	if err != nil {
		return err
	}

	pipe := c.rdb.Pipeline()
	pipe.SRem(ctx, keyFollowers(followingID), userID)
	pipe.SRem(ctx, keyFollowings(userID), followingID)
	pipe.HIncrBy(ctx, keyProfile(followingID), "followers_count", -1)
	pipe.HIncrBy(ctx, keyProfile(userID), "followings_count", -1)
	if len(authoredIDs) > 0 {
		members := make([]interface{}, len(authoredIDs))
		for i, id := range authoredIDs {
			members[i] = id
		}
		pipe.ZRem(ctx, keyFollowingTimeline(userID), members...)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (c *FollowCache) Followers(ctx context.Context, userID string) ([]string, error) {
	return c.rdb.SMembers(ctx, keyFollowers(userID)).Result()
}

func (c *FollowCache) Followings(ctx context.Context, userID string) ([]string, error) {
	return c.rdb.SMembers(ctx, keyFollowings(userID)).Result()
}

func (c *FollowCache) IsFollowing(ctx context.Context, userID, targetID string) (bool, error) {
	return c.rdb.SIsMember(ctx, keyFollowings(userID), targetID).Result()
}
