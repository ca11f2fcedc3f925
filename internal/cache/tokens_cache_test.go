package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrationTokenLifecycle(t *testing.T) {
	_, client := newTestRedis(t)
	tc := NewTokenCache(client)
	ctx := context.Background()

	token, expiresAt, err := tc.SetRegistration(ctx, map[string]string{
		"email":    "a@b.c",
		"username": "alice",
		"password": "$2a$bcrypt-hash",
	}, time.Hour)
	require.NoError(t, err)
	assert.Len(t, token, 32)
	assert.WithinDuration(t, time.Now().UTC().Add(time.Hour), expiresAt, 5*time.Second)

	creds, err := tc.Registration(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, "alice", creds["username"])

	require.NoError(t, tc.RemoveRegistration(ctx, token))
	creds, err = tc.Registration(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, creds)
}

func TestRegistrationTokenExpires(t *testing.T) {
	m, client := newTestRedis(t)
	tc := NewTokenCache(client)
	ctx := context.Background()

	token, _, err := tc.SetRegistration(ctx, map[string]string{"email": "a@b.c"}, time.Minute)
	require.NoError(t, err)

	m.FastForward(2 * time.Minute)

	creds, err := tc.Registration(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, creds)
}

func TestForgotPasswordTokenIsSeparateNamespace(t *testing.T) {
	_, client := newTestRedis(t)
	tc := NewTokenCache(client)
	ctx := context.Background()

	token, _, err := tc.SetForgotPassword(ctx, map[string]string{"user_id": "u1"}, time.Hour)
	require.NoError(t, err)

	// 同一 token 在注册命名空间下查不到
	reg, err := tc.Registration(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, reg)

	fp, err := tc.ForgotPassword(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, fp)
	assert.Equal(t, "u1", fp["user_id"])

	require.NoError(t, tc.RemoveForgotPassword(ctx, token))
	fp, err = tc.ForgotPassword(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, fp)
}
