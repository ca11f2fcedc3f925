package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/d60-Lab/feedpulse/internal/model"
)

func newTestRebuilder(t *testing.T) (*gorm.DB, *Rebuilder, *FollowCache) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Follow{}, &model.Fan{}, &model.Feed{}))
	_, client := newTestRedis(t)
	return db, NewRebuilder(db, client), NewFollowCache(client)
}

func TestEnsureFollowersBackfillsFromFansTable(t *testing.T) {
	db, rebuilder, followCache := newTestRebuilder(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&[]model.Fan{
		{ID: "e1", UserID: "alice", FanID: "bob"},
		{ID: "e2", UserID: "alice", FanID: "carol"},
	}).Error)

	require.NoError(t, rebuilder.EnsureFollowers(ctx, "alice"))

	followers, err := followCache.Followers(ctx, "alice")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bob", "carol"}, followers)
	assert.EqualValues(t, 1, rebuilder.Counters().FollowerLoads)

	// 第二次命中缓存，不再回源
	require.NoError(t, rebuilder.EnsureFollowers(ctx, "alice"))
	assert.EqualValues(t, 1, rebuilder.Counters().FollowerLoads)
}

func TestEnsureFollowersNoFansIsNotAnError(t *testing.T) {
	_, rebuilder, followCache := newTestRebuilder(t)
	ctx := context.Background()

	require.NoError(t, rebuilder.EnsureFollowers(ctx, "loner"))

	followers, err := followCache.Followers(ctx, "loner")
	require.NoError(t, err)
	assert.Empty(t, followers)
}

func TestEnsureProfileBackfillsFromUsersTable(t *testing.T) {
	db, rebuilder, _ := newTestRebuilder(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&model.User{
		ID: "alice", Username: "alice", Email: "a@b.c", Password: "x",
		Name: "Alice", AvatarURL: "http://a/p.png",
	}).Error)

	require.NoError(t, rebuilder.EnsureProfile(ctx, "alice"))

	p, err := NewProfileCache(rebuilder.rdb).Profile(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Alice", p.Name)
	assert.Equal(t, "http://a/p.png", p.AvatarURL)
	assert.EqualValues(t, 1, rebuilder.Counters().ProfileLoads)

	require.NoError(t, rebuilder.EnsureProfile(ctx, "alice"))
	assert.EqualValues(t, 1, rebuilder.Counters().ProfileLoads)

	// 库里没有的用户：静默跳过
	require.NoError(t, rebuilder.EnsureProfile(ctx, "ghost"))
}

func TestEnsureFeedMetaBackfillsTopLevelOnly(t *testing.T) {
	db, rebuilder, _ := newTestRebuilder(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&model.Feed{
		ID: "f1", AuthorID: "alice", Body: "hello",
		ImageURLs: `["http://a/1.png"]`, Visibility: model.VisibilityPublic,
	}).Error)
	require.NoError(t, db.Create(&model.Feed{ID: "c1", AuthorID: "bob", ParentID: "f1", Body: "reply"}).Error)

	require.NoError(t, rebuilder.EnsureFeedMeta(ctx, "f1"))
	require.NoError(t, rebuilder.EnsureFeedMeta(ctx, "c1")) // 评论不按帖子回填

	assert.Equal(t, "hello", rebuilder.rdb.HGet(ctx, keyFeedMeta("f1"), "body").Val())
	assert.EqualValues(t, 0, rebuilder.rdb.Exists(ctx, keyFeedMeta("c1")).Val())

	rebuilder.ResetCounters()
	require.NoError(t, rebuilder.EnsureFeedMeta(ctx, "f1"))
	assert.EqualValues(t, 0, rebuilder.Counters().FeedLoads)
}
