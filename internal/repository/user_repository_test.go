package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/feedpulse/internal/model"
)

func newUser(id string) *model.User {
	return &model.User{ID: id, Username: id, Email: id + "@example.com", Password: "hash", Name: id}
}

func TestUserRepositoryCreateAndLookups(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newUser("alice")))
	// 重复提交同一主键：静默跳过
	require.NoError(t, repo.Create(ctx, newUser("alice")))

	byID, err := repo.GetByID(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, byID)

	byEmail, err := repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, "alice", byEmail.ID)

	byUsername, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, byUsername)

	missing, err := repo.GetByEmail(ctx, "ghost@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUserRepositoryUpdatePassword(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newUser("alice")))
	require.NoError(t, repo.UpdatePassword(ctx, "alice", "new-hash"))

	user, err := repo.GetByID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "new-hash", user.Password)
}

func TestUserRepositoryDeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newUser("alice")))
	require.NoError(t, repo.Create(ctx, newUser("bob")))
	require.NoError(t, db.Create(&model.Feed{ID: "f1", AuthorID: "alice", Body: "post"}).Error)
	require.NoError(t, db.Create(&model.Follow{ID: "e1", FollowerID: "alice", FolloweeID: "bob"}).Error)
	require.NoError(t, db.Create(&model.Follow{ID: "e2", FollowerID: "bob", FolloweeID: "alice"}).Error)
	require.NoError(t, db.Create(&model.Fan{ID: "e3", UserID: "bob", FanID: "alice"}).Error)
	require.NoError(t, db.Create(&model.Fan{ID: "e4", UserID: "alice", FanID: "bob"}).Error)

	require.NoError(t, repo.Delete(ctx, "alice"))

	var feedCount, followCount, fanCount int64
	db.Model(&model.Feed{}).Count(&feedCount)
	db.Model(&model.Follow{}).Count(&followCount)
	db.Model(&model.Fan{}).Count(&fanCount)
	assert.Zero(t, feedCount)
	assert.Zero(t, followCount)
	assert.Zero(t, fanCount)

	gone, err := repo.GetByID(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, gone)
	kept, err := repo.GetByID(ctx, "bob")
	require.NoError(t, err)
	assert.NotNil(t, kept)
}
