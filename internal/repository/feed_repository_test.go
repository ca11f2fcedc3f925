package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/feedpulse/internal/model"
)

func TestFeedRepositoryCreateAndGet(t *testing.T) {
	repo := NewFeedRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &model.Feed{ID: "f1", AuthorID: "alice", Body: "hello"}))

	feed, err := repo.GetByID(ctx, "f1")
	require.NoError(t, err)
	require.NotNil(t, feed)
	assert.Equal(t, "alice", feed.AuthorID)

	missing, err := repo.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFeedRepositoryListByAuthorSkipsComments(t *testing.T) {
	repo := NewFeedRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &model.Feed{ID: "f1", AuthorID: "alice", Body: "post"}))
	require.NoError(t, repo.Create(ctx, &model.Feed{ID: "c1", AuthorID: "alice", ParentID: "f1", Body: "self reply"}))

	feeds, err := repo.ListByAuthor(ctx, "alice", 0, 10)
	require.NoError(t, err)
	require.Len(t, feeds, 1)
	assert.Equal(t, "f1", feeds[0].ID)
}

func TestFeedRepositoryListChildren(t *testing.T) {
	repo := NewFeedRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &model.Feed{ID: "f1", AuthorID: "alice", Body: "root"}))
	require.NoError(t, repo.Create(ctx, &model.Feed{ID: "c1", AuthorID: "bob", ParentID: "f1", Body: "a"}))
	require.NoError(t, repo.Create(ctx, &model.Feed{ID: "c2", AuthorID: "carol", ParentID: "f1", Body: "b"}))
	require.NoError(t, repo.Create(ctx, &model.Feed{ID: "c3", AuthorID: "dave", ParentID: "c1", Body: "nested"}))

	children, err := repo.ListChildren(ctx, "f1")
	require.NoError(t, err)
	ids := make([]string, len(children))
	for i, c := range children {
		ids[i] = c.ID
	}
	assert.ElementsMatch(t, []string{"c1", "c2"}, ids)
}

func TestFeedRepositoryDeleteBatch(t *testing.T) {
	repo := NewFeedRepository(setupTestDB(t))
	ctx := context.Background()

	for _, id := range []string{"f1", "c1", "c2"} {
		require.NoError(t, repo.Create(ctx, &model.Feed{ID: id, AuthorID: "alice", Body: id}))
	}

	require.NoError(t, repo.Delete(ctx, []string{"f1", "c1"}))
	require.NoError(t, repo.Delete(ctx, nil)) // 空集合是 no-op

	gone, err := repo.GetByID(ctx, "f1")
	require.NoError(t, err)
	assert.Nil(t, gone)
	kept, err := repo.GetByID(ctx, "c2")
	require.NoError(t, err)
	assert.NotNil(t, kept)
}
