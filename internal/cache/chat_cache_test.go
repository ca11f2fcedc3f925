package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateChatRegistersBothParticipants(t *testing.T) {
	_, client := newTestRedis(t)
	cc := NewChatCache(client)
	ctx := context.Background()

	at := time.Now()
	require.NoError(t, cc.CreateChat(ctx, "alice", "bob", "chat1", "hi bob", at))

	assert.Equal(t, []string{"chat1"}, client.ZRevRange(ctx, "users:alice:chats", 0, -1).Val())
	assert.Equal(t, []string{"chat1"}, client.ZRevRange(ctx, "users:bob:chats", 0, -1).Val())
	assert.ElementsMatch(t, []string{"alice", "bob"}, client.SMembers(ctx, "chats:chat1:participants").Val())
	assert.Equal(t, "hi bob", client.HGet(ctx, "chats:chat1:last_message", "body").Val())
	assert.Equal(t, "alice", client.HGet(ctx, "chats:chat1:last_message", "sender_id").Val())
}

func TestUpdateLastMessageBumpsRecencyForEveryone(t *testing.T) {
	_, client := newTestRedis(t)
	cc := NewChatCache(client)
	ctx := context.Background()

	t0 := time.Unix(1700000000, 0)
	require.NoError(t, cc.CreateChat(ctx, "alice", "bob", "chat1", "first", t0))
	require.NoError(t, cc.CreateChat(ctx, "alice", "carol", "chat2", "later", t0.Add(time.Minute)))
	assert.Equal(t, []string{"chat2", "chat1"}, client.ZRevRange(ctx, "users:alice:chats", 0, -1).Val())

	// a reply in chat1 moves it back on top for both sides
	require.NoError(t, cc.UpdateLastMessage(ctx, "chat1", "bob", "reply", t0.Add(2*time.Minute)))
	assert.Equal(t, []string{"chat1", "chat2"}, client.ZRevRange(ctx, "users:alice:chats", 0, -1).Val())
	assert.Equal(t, "reply", client.HGet(ctx, "chats:chat1:last_message", "body").Val())
	assert.Equal(t, "bob", client.HGet(ctx, "chats:chat1:last_message", "sender_id").Val())
}

func TestChatsPageDerivesCounterpartAndPresence(t *testing.T) {
	_, client := newTestRedis(t)
	cc := NewChatCache(client)
	profiles := NewProfileCache(client)
	ctx := context.Background()

	require.NoError(t, profiles.CreateProfile(ctx, &Profile{ID: "bob", Name: "Bob", Username: "bob"}))
	require.NoError(t, profiles.CreateProfile(ctx, &Profile{ID: "carol", Name: "Carol", Username: "carol"}))

	t0 := time.Unix(1700000000, 0)
	require.NoError(t, cc.CreateChat(ctx, "alice", "bob", "chat1", "hi", t0))
	require.NoError(t, cc.CreateChat(ctx, "alice", "carol", "chat2", "yo", t0.Add(time.Minute)))
	_, err := cc.AddUserToChats(ctx, "bob")
	require.NoError(t, err)

	page, err := cc.Chats(ctx, "alice", 0, 9)
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
	require.Len(t, page.Chats, 2)

	newest := page.Chats[0]
	assert.Equal(t, "chat2", newest.ChatID)
	require.NotNil(t, newest.Participant)
	assert.Equal(t, "Carol", newest.Participant.Name)
	assert.False(t, newest.Online)

	older := page.Chats[1]
	assert.Equal(t, "chat1", older.ChatID)
	assert.Equal(t, "Bob", older.Participant.Name)
	assert.True(t, older.Online)
}

func TestChatsPageRoundTripsAreConstant(t *testing.T) {
	_, client := newTestRedis(t)
	cc := NewChatCache(client)
	ctx := context.Background()

	t0 := time.Unix(1700000000, 0)
	for i := 0; i < 12; i++ {
		require.NoError(t, cc.CreateChat(ctx, "alice", "peer", string(rune('a'+i)), "m", t0.Add(time.Duration(i)*time.Second)))
	}

	counter := &roundTripCounter{}
	client.AddHook(counter)

	_, err := cc.Chats(ctx, "alice", 0, 2)
	require.NoError(t, err)
	small := counter.trips.Load()

	counter.trips.Store(0)
	_, err = cc.Chats(ctx, "alice", 0, 11)
	require.NoError(t, err)
	large := counter.trips.Load()

	assert.Equal(t, small, large)
}

func TestDeleteChatRemovesAllKeys(t *testing.T) {
	_, client := newTestRedis(t)
	cc := NewChatCache(client)
	ctx := context.Background()

	require.NoError(t, cc.CreateChat(ctx, "alice", "bob", "chat1", "hi", time.Now()))
	require.NoError(t, cc.AddTyping(ctx, "chat1", "alice"))

	require.NoError(t, cc.DeleteChat(ctx, []string{"alice", "bob"}, "chat1"))

	assert.Empty(t, client.ZRevRange(ctx, "users:alice:chats", 0, -1).Val())
	assert.Empty(t, client.ZRevRange(ctx, "users:bob:chats", 0, -1).Val())
	for _, key := range []string{"chats:chat1:meta", "chats:chat1:last_message", "chats:chat1:participants", "typing:chat1"} {
		assert.EqualValues(t, 0, client.Exists(ctx, key).Val(), key)
	}
}

func TestTypingSet(t *testing.T) {
	_, client := newTestRedis(t)
	cc := NewChatCache(client)
	ctx := context.Background()

	require.NoError(t, cc.AddTyping(ctx, "chat1", "alice"))
	require.NoError(t, cc.AddTyping(ctx, "chat1", "alice")) // idempotent
	require.NoError(t, cc.AddTyping(ctx, "chat1", "bob"))

	users, err := cc.TypingUsers(ctx, "chat1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, users)

	require.NoError(t, cc.RemoveTyping(ctx, "chat1", "alice"))
	users, err = cc.TypingUsers(ctx, "chat1")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, users)
}

func TestPresenceSurfacesAreIndependent(t *testing.T) {
	_, client := newTestRedis(t)
	cc := NewChatCache(client)
	ctx := context.Background()

	_, err := cc.AddUserToChats(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, cc.AddUserToFeeds(ctx, "bob"))

	inChats, err := cc.IsOnlineInChats(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, inChats)

	inFeeds, err := cc.IsOnlineInFeeds(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, inFeeds)

	online, err := cc.FilterOnlineInFeeds(ctx, []string{"alice", "bob", "carol"})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, online)
}

func TestRemoveUserFromChatsStampsLastSeen(t *testing.T) {
	_, client := newTestRedis(t)
	cc := NewChatCache(client)
	ctx := context.Background()

	_, err := cc.AddUserToChats(ctx, "alice")
	require.NoError(t, err)
	_, err = cc.RemoveUserFromChats(ctx, "alice")
	require.NoError(t, err)

	online, err := cc.IsOnlineInChats(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, online)
	assert.NotEmpty(t, client.HGet(ctx, "users:alice:profile", "last_seen_at").Val())
}

func TestPeersOfDeduplicatesAcrossChats(t *testing.T) {
	_, client := newTestRedis(t)
	cc := NewChatCache(client)
	ctx := context.Background()

	t0 := time.Now()
	require.NoError(t, cc.CreateChat(ctx, "alice", "bob", "chat1", "a", t0))
	require.NoError(t, cc.CreateChat(ctx, "alice", "carol", "chat2", "b", t0))
	require.NoError(t, cc.CreateChat(ctx, "bob", "alice", "chat3", "c", t0))

	peers, err := cc.PeersOf(ctx, "alice")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bob", "carol"}, peers)
}
