package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/feedpulse/config"
	"github.com/d60-Lab/feedpulse/internal/model"
)

func seedFollowers(t *testing.T, fc *FollowCache, author string, n int) []string {
	t.Helper()
	ctx := context.Background()
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		ids[i] = fmt.Sprintf("fan-%d", i)
		require.NoError(t, fc.AddFollower(ctx, ids[i], author))
	}
	return ids
}

func TestCreateFeedFansOutToAllTimelines(t *testing.T) {
	_, client, fc := newTestFeedCache(t, defaultCaps())
	followCache := NewFollowCache(client)
	ctx := context.Background()

	fans := seedFollowers(t, followCache, "alice", 3)
	require.NoError(t, fc.CreateFeed(ctx, &FeedMeta{ID: "f1", AuthorID: "alice", Body: "hello"}))

	assert.Equal(t, []string{"f1"}, client.ZRevRange(ctx, "global_timeline", 0, -1).Val())
	assert.Equal(t, []string{"f1"}, client.ZRevRange(ctx, "users:alice:user_timeline", 0, -1).Val())
	for _, fan := range fans {
		assert.Equal(t, []string{"f1"}, client.ZRevRange(ctx, "users:"+fan+":following_timeline", 0, -1).Val(), fan)
	}
	// author's own following-timeline stays clean
	assert.Empty(t, client.ZRevRange(ctx, "users:alice:following_timeline", 0, -1).Val())
	assert.Equal(t, "1", client.HGet(ctx, "users:alice:profile", "posts_count").Val())
}

func TestCreateFeedRespectsTimelineCaps(t *testing.T) {
	caps := config.TimelineConfig{GlobalCap: 5, FollowingCap: 3, OwnCap: 4}
	_, client, fc := newTestFeedCache(t, caps)
	followCache := NewFollowCache(client)
	ctx := context.Background()

	seedFollowers(t, followCache, "alice", 1)
	base := time.Now().Unix()
	for i := 0; i < 10; i++ {
		require.NoError(t, fc.CreateFeed(ctx, &FeedMeta{
			ID:       fmt.Sprintf("f%02d", i),
			AuthorID: "alice",
			Body:     "post",
			// strictly increasing so eviction order is deterministic
			CreatedAt: base + int64(i),
		}))
	}

	assert.EqualValues(t, 5, client.ZCard(ctx, "global_timeline").Val())
	assert.EqualValues(t, 4, client.ZCard(ctx, "users:alice:user_timeline").Val())
	assert.EqualValues(t, 3, client.ZCard(ctx, "users:fan-0:following_timeline").Val())
	// the survivors are the highest ranked, not the oldest
	assert.Equal(t, []string{"f09", "f08", "f07"}, client.ZRevRange(ctx, "users:fan-0:following_timeline", 0, -1).Val())
}

func TestCommentsNeverEnterTimelines(t *testing.T) {
	_, client, fc := newTestFeedCache(t, defaultCaps())
	ctx := context.Background()

	require.NoError(t, fc.CreateFeed(ctx, &FeedMeta{ID: "f1", AuthorID: "alice", Body: "post"}))
	require.NoError(t, fc.CreateFeed(ctx, &FeedMeta{ID: "c1", AuthorID: "bob", ParentID: "f1", Body: "comment"}))

	assert.EqualValues(t, 1, client.ZCard(ctx, "global_timeline").Val())
	assert.Equal(t, []string{"c1"}, client.SMembers(ctx, "feeds:f1:comments").Val())
	assert.Equal(t, []string{"c1"}, client.SMembers(ctx, "users:bob:comments").Val())
	assert.Equal(t, "f1", client.HGet(ctx, "comments:c1:meta", "parent_id").Val())
}

func TestNestedCommentAttachesToCommentParent(t *testing.T) {
	_, client, fc := newTestFeedCache(t, defaultCaps())
	ctx := context.Background()

	require.NoError(t, fc.CreateFeed(ctx, &FeedMeta{ID: "f1", AuthorID: "alice", Body: "post"}))
	require.NoError(t, fc.CreateFeed(ctx, &FeedMeta{ID: "c1", AuthorID: "bob", ParentID: "f1", Body: "c"}))
	require.NoError(t, fc.CreateFeed(ctx, &FeedMeta{ID: "c2", AuthorID: "carol", ParentID: "c1", Body: "cc"}))

	assert.Equal(t, []string{"c2"}, client.SMembers(ctx, "comments:c1:comments").Val())
}

func TestDeleteFeedCascadesWholeCommentTree(t *testing.T) {
	_, client, fc := newTestFeedCache(t, defaultCaps())
	followCache := NewFollowCache(client)
	ctx := context.Background()

	seedFollowers(t, followCache, "alice", 2)
	require.NoError(t, fc.CreateFeed(ctx, &FeedMeta{ID: "f1", AuthorID: "alice", Body: "post"}))
	require.NoError(t, fc.CreateFeed(ctx, &FeedMeta{ID: "c1", AuthorID: "bob", ParentID: "f1", Body: "c"}))
	require.NoError(t, fc.CreateFeed(ctx, &FeedMeta{ID: "c2", AuthorID: "carol", ParentID: "c1", Body: "cc"}))
	require.NoError(t, fc.CreateFeed(ctx, &FeedMeta{ID: "c3", AuthorID: "dave", ParentID: "c2", Body: "ccc"}))

	// engagement on the post and on a nested comment, with reverse indices
	_, err := fc.SetEngagement(ctx, "bob", "f1", model.EngagementLikes, false)
	require.NoError(t, err)
	_, err = fc.SetEngagement(ctx, "alice", "c2", model.EngagementLikes, true)
	require.NoError(t, err)

	removed, err := fc.DeleteFeed(ctx, "alice", "f1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"f1", "c1", "c2", "c3"}, removed)

	for _, key := range []string{
		"feeds:f1:meta", "comments:c1:meta", "comments:c2:meta", "comments:c3:meta",
		"feeds:f1:comments", "comments:c1:comments", "comments:c2:comments",
		"feeds:f1:likes", "comments:c2:likes",
	} {
		assert.EqualValues(t, 0, client.Exists(ctx, key).Val(), key)
	}
	// reverse indices scrubbed
	assert.Empty(t, client.SMembers(ctx, "users:bob:feeds:likes").Val())
	assert.Empty(t, client.SMembers(ctx, "users:alice:comments:likes").Val())
	assert.Empty(t, client.SMembers(ctx, "users:bob:comments").Val())
	// gone from every timeline
	assert.EqualValues(t, 0, client.ZCard(ctx, "global_timeline").Val())
	assert.EqualValues(t, 0, client.ZCard(ctx, "users:fan-0:following_timeline").Val())
	assert.Equal(t, "0", client.HGet(ctx, "users:alice:profile", "posts_count").Val())
}

func TestDeleteCommentUnlinksFromParentOnly(t *testing.T) {
	_, client, fc := newTestFeedCache(t, defaultCaps())
	ctx := context.Background()

	require.NoError(t, fc.CreateFeed(ctx, &FeedMeta{ID: "f1", AuthorID: "alice", Body: "post"}))
	require.NoError(t, fc.CreateFeed(ctx, &FeedMeta{ID: "c1", AuthorID: "bob", ParentID: "f1", Body: "c"}))
	require.NoError(t, fc.CreateFeed(ctx, &FeedMeta{ID: "c2", AuthorID: "carol", ParentID: "c1", Body: "cc"}))

	removed, err := fc.DeleteFeed(ctx, "bob", "c1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c1", "c2"}, removed)

	// parent post untouched, adjacency cleaned
	assert.EqualValues(t, 1, client.Exists(ctx, "feeds:f1:meta").Val())
	assert.Empty(t, client.SMembers(ctx, "feeds:f1:comments").Val())
	assert.EqualValues(t, 1, client.ZCard(ctx, "global_timeline").Val())
}

func TestEngagementIsIdempotent(t *testing.T) {
	_, _, fc := newTestFeedCache(t, defaultCaps())
	ctx := context.Background()

	require.NoError(t, fc.CreateFeed(ctx, &FeedMeta{ID: "f1", AuthorID: "alice", Body: "post"}))

	for i := 0; i < 3; i++ {
		eng, err := fc.SetEngagement(ctx, "bob", "f1", model.EngagementLikes, false)
		require.NoError(t, err)
		assert.EqualValues(t, 1, eng.Likes)
		assert.True(t, eng.Liked)
	}

	eng, err := fc.RemoveEngagement(ctx, "bob", "f1", model.EngagementLikes, false)
	require.NoError(t, err)
	assert.EqualValues(t, 0, eng.Likes)
	assert.False(t, eng.Liked)

	// removing a non-member is a no-op
	eng, err = fc.RemoveEngagement(ctx, "bob", "f1", model.EngagementLikes, false)
	require.NoError(t, err)
	assert.EqualValues(t, 0, eng.Likes)
}

func TestEngagementTypesAreIndependent(t *testing.T) {
	_, _, fc := newTestFeedCache(t, defaultCaps())
	ctx := context.Background()

	require.NoError(t, fc.CreateFeed(ctx, &FeedMeta{ID: "f1", AuthorID: "alice", Body: "post"}))
	_, err := fc.SetEngagement(ctx, "bob", "f1", model.EngagementLikes, false)
	require.NoError(t, err)
	_, err = fc.SetEngagement(ctx, "bob", "f1", model.EngagementReposts, false)
	require.NoError(t, err)

	eng, err := fc.GetEngagement(ctx, "bob", "f1", false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, eng.Likes)
	assert.EqualValues(t, 1, eng.Reposts)
	assert.EqualValues(t, 0, eng.Views)
	assert.True(t, eng.Liked)
	assert.True(t, eng.Reposted)
	assert.False(t, eng.Viewed)
}

func TestSetEngagementRejectsUnknownType(t *testing.T) {
	_, _, fc := newTestFeedCache(t, defaultCaps())
	_, err := fc.SetEngagement(context.Background(), "bob", "f1", model.EngagementType("stars"), false)
	assert.Error(t, err)
}

func TestDiscoverTimelineHydratesPage(t *testing.T) {
	_, client, fc := newTestFeedCache(t, defaultCaps())
	profiles := NewProfileCache(client)
	ctx := context.Background()

	require.NoError(t, profiles.CreateProfile(ctx, &Profile{ID: "alice", Name: "Alice", Username: "alice", AvatarURL: "http://a/p.png"}))
	base := time.Now().Unix()
	for i := 0; i < 3; i++ {
		require.NoError(t, fc.CreateFeed(ctx, &FeedMeta{
			ID: fmt.Sprintf("f%d", i), AuthorID: "alice", Body: fmt.Sprintf("post %d", i),
			ImageURLs: []string{"http://a/img.png"}, CreatedAt: base + int64(i),
		}))
	}
	_, err := fc.SetEngagement(ctx, "bob", "f2", model.EngagementLikes, false)
	require.NoError(t, err)

	page, err := fc.DiscoverTimeline(ctx, "bob", 0, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	require.Len(t, page.Feeds, 2)

	top := page.Feeds[0]
	assert.Equal(t, "f2", top.ID)
	assert.Equal(t, []string{"http://a/img.png"}, top.ImageURLs)
	require.NotNil(t, top.Author)
	assert.Equal(t, "Alice", top.Author.Name)
	require.NotNil(t, top.Engagement)
	assert.EqualValues(t, 1, top.Engagement.Likes)
	assert.True(t, top.Engagement.Liked)
}

func TestTimelinePageRoundTripsAreConstant(t *testing.T) {
	_, client, fc := newTestFeedCache(t, defaultCaps())
	ctx := context.Background()

	base := time.Now().Unix()
	for i := 0; i < 20; i++ {
		require.NoError(t, fc.CreateFeed(ctx, &FeedMeta{
			ID: fmt.Sprintf("f%02d", i), AuthorID: fmt.Sprintf("a%d", i%5), Body: "post", CreatedAt: base + int64(i),
		}))
	}

	counter := &roundTripCounter{}
	client.AddHook(counter)

	small, err := fc.DiscoverTimeline(ctx, "bob", 0, 4)
	require.NoError(t, err)
	require.Len(t, small.Feeds, 5)
	tripsSmall := counter.trips.Load()

	counter.trips.Store(0)
	large, err := fc.DiscoverTimeline(ctx, "bob", 0, 19)
	require.NoError(t, err)
	require.Len(t, large.Feeds, 20)
	tripsLarge := counter.trips.Load()

	// round-trips must not grow with page size
	assert.Equal(t, tripsSmall, tripsLarge)
}

func TestFollowingTimelineBackfillsFromGlobal(t *testing.T) {
	_, client, fc := newTestFeedCache(t, defaultCaps())
	followCache := NewFollowCache(client)
	ctx := context.Background()

	// bob follows alice, but only one of alice's posts fanned out to him
	base := time.Now().Unix()
	require.NoError(t, fc.CreateFeed(ctx, &FeedMeta{ID: "old1", AuthorID: "carol", Body: "pre", CreatedAt: base - 10}))
	require.NoError(t, fc.CreateFeed(ctx, &FeedMeta{ID: "old2", AuthorID: "carol", Body: "pre", CreatedAt: base - 9}))
	require.NoError(t, followCache.AddFollower(ctx, "bob", "alice"))
	require.NoError(t, fc.CreateFeed(ctx, &FeedMeta{ID: "new1", AuthorID: "alice", Body: "post", CreatedAt: base}))

	page, err := fc.FollowingTimeline(ctx, "bob", 0, 2)
	require.NoError(t, err)
	require.Len(t, page.Feeds, 3)
	// fanned-out entry first, then global padding without duplicates
	assert.Equal(t, "new1", page.Feeds[0].ID)
	ids := []string{page.Feeds[0].ID, page.Feeds[1].ID, page.Feeds[2].ID}
	assert.ElementsMatch(t, []string{"new1", "old2", "old1"}, ids)
}

func TestFollowingTimelineDropsDeletedEntries(t *testing.T) {
	_, client, fc := newTestFeedCache(t, defaultCaps())
	followCache := NewFollowCache(client)
	ctx := context.Background()

	require.NoError(t, followCache.AddFollower(ctx, "bob", "alice"))
	base := time.Now().Unix()
	require.NoError(t, fc.CreateFeed(ctx, &FeedMeta{ID: "f1", AuthorID: "alice", Body: "a", CreatedAt: base}))
	require.NoError(t, fc.CreateFeed(ctx, &FeedMeta{ID: "f2", AuthorID: "alice", Body: "b", CreatedAt: base + 1}))

	_, err := fc.DeleteFeed(ctx, "alice", "f2")
	require.NoError(t, err)

	page, err := fc.FollowingTimeline(ctx, "bob", 0, 9)
	require.NoError(t, err)
	require.Len(t, page.Feeds, 1)
	assert.Equal(t, "f1", page.Feeds[0].ID)
}

func TestRescoreFeedReordersTimelines(t *testing.T) {
	_, client, fc := newTestFeedCache(t, defaultCaps())
	ctx := context.Background()

	base := time.Now().Unix()
	require.NoError(t, fc.CreateFeed(ctx, &FeedMeta{ID: "f1", AuthorID: "alice", Body: "a", CreatedAt: base - 400}))
	require.NoError(t, fc.CreateFeed(ctx, &FeedMeta{ID: "f2", AuthorID: "alice", Body: "b", CreatedAt: base}))
	assert.Equal(t, []string{"f2", "f1"}, client.ZRevRange(ctx, "global_timeline", 0, -1).Val())

	// heavy engagement on the older post, then re-rank it
	for i := 0; i < 30; i++ {
		_, err := fc.SetEngagement(ctx, fmt.Sprintf("u%d", i), "f1", model.EngagementLikes, false)
		require.NoError(t, err)
	}
	require.NoError(t, fc.RescoreFeed(ctx, "alice", "f1"))

	assert.Equal(t, []string{"f1", "f2"}, client.ZRevRange(ctx, "global_timeline", 0, -1).Val())
}

func TestRescoreFeedNeverResurrects(t *testing.T) {
	_, client, fc := newTestFeedCache(t, defaultCaps())
	ctx := context.Background()

	require.NoError(t, fc.CreateFeed(ctx, &FeedMeta{ID: "f1", AuthorID: "alice", Body: "a"}))
	_, err := fc.DeleteFeed(ctx, "alice", "f1")
	require.NoError(t, err)

	require.NoError(t, fc.RescoreFeed(ctx, "alice", "f1"))
	assert.EqualValues(t, 0, client.ZCard(ctx, "global_timeline").Val())
}

func TestUpdateFeedField(t *testing.T) {
	_, client, fc := newTestFeedCache(t, defaultCaps())
	ctx := context.Background()

	require.NoError(t, fc.CreateFeed(ctx, &FeedMeta{ID: "f1", AuthorID: "alice", Body: "a"}))
	require.NoError(t, fc.UpdateFeedField(ctx, "f1", "body", "edited"))
	assert.Equal(t, "edited", client.HGet(ctx, "feeds:f1:meta", "body").Val())

	require.NoError(t, fc.UpdateFeedField(ctx, "f1", "image_urls", []string{"http://a/1.png"}))
	assert.Equal(t, `["http://a/1.png"]`, client.HGet(ctx, "feeds:f1:meta", "image_urls").Val())

	require.NoError(t, fc.UpdateFeedField(ctx, "f1", "body", nil))
	assert.EqualValues(t, false, client.HExists(ctx, "feeds:f1:meta", "body").Val())
}

func TestFeedAuthor(t *testing.T) {
	_, _, fc := newTestFeedCache(t, defaultCaps())
	ctx := context.Background()

	require.NoError(t, fc.CreateFeed(ctx, &FeedMeta{ID: "f1", AuthorID: "alice", Body: "a"}))
	require.NoError(t, fc.CreateFeed(ctx, &FeedMeta{ID: "c1", AuthorID: "bob", ParentID: "f1", Body: "c"}))

	author, err := fc.FeedAuthor(ctx, "f1", false)
	require.NoError(t, err)
	assert.Equal(t, "alice", author)

	author, err = fc.FeedAuthor(ctx, "c1", true)
	require.NoError(t, err)
	assert.Equal(t, "bob", author)

	author, err = fc.FeedAuthor(ctx, "missing", false)
	require.NoError(t, err)
	assert.Empty(t, author)
}
