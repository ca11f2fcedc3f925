package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ChatTile is everything the chat list needs to render one row without a
// per-chat lookup.
type ChatTile struct {
	ChatID         string   `json:"chat_id"`
	Participant    *Profile `json:"participant"`
	LastMessage    string   `json:"last_message"`
	LastSenderID   string   `json:"last_sender_id,omitempty"`
	LastActivityAt int64    `json:"last_activity_at"`
	Online         bool     `json:"online"`
}

// ChatPage 一页会话列表
type ChatPage struct {
	Chats []*ChatTile `json:"chats"`
	Total int64       `json:"total"`
}

// ChatCache owns chat metadata, per-user recency-ordered chat lists, typing
// indicators and online presence for the two realtime surfaces.
type ChatCache struct {
	rdb redis.UniversalClient
}

func NewChatCache(rdb redis.UniversalClient) *ChatCache { return &ChatCache{rdb: rdb} }

// CreateChat registers the chat for both participants, keyed by current
// timestamp, in one pipelined batch.
func (c *ChatCache) CreateChat(ctx context.Context, userID, participantID, chatID string, lastMessage string, at time.Time) error {
	score := float64(at.Unix())

	pipe := c.rdb.Pipeline()
	pipe.ZAdd(ctx, keyUserChats(userID), redis.Z{Score: score, Member: chatID})
	pipe.ZAdd(ctx, keyUserChats(participantID), redis.Z{Score: score, Member: chatID})
	pipe.HSet(ctx, keyChatMeta(chatID), map[string]interface{}{
		"id":               chatID,
		"created_at":       at.Unix(),
		"last_activity_at": at.Unix(),
	})
	pipe.HSet(ctx, keyChatLastMessage(chatID), map[string]interface{}{
		"body":      lastMessage,
		"sender_id": userID,
		"sent_at":   at.Unix(),
	})
	pipe.SAdd(ctx, keyChatParticipants(chatID), userID, participantID)
	_, err := pipe.Exec(ctx)
	return err
}

// UpdateLastMessage refreshes the snapshot and bumps recency for everyone in
// the chat.
func (c *ChatCache) UpdateLastMessage(ctx context.Context, chatID, senderID, body string, at time.Time) error {
	participants, err := c.rdb.SMembers(ctx, keyChatParticipants(chatID)).Result()
	if err != nil {
		return err
	}

	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, keyChatLastMessage(chatID), map[string]interface{}{
		"body":      body,
		"sender_id": senderID,
		"sent_at":   at.Unix(),
	})
	pipe.HSet(ctx, keyChatMeta(chatID), "last_activity_at", at.Unix())
	for _, uid := range participants {
		pipe.ZAdd(ctx, keyUserChats(uid), redis.Z{Score: float64(at.Unix()), Member: chatID})
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Chats pages the user's chat list by recency. Round-trips are O(1) in page
// size: one zset read, one batch for meta/last-message/participants, one
// batch for the counterpart profiles and presence.
func (c *ChatCache) Chats(ctx context.Context, userID string, start, end int) (*ChatPage, error) {
	total, err := c.rdb.ZCard(ctx, keyUserChats(userID)).Result()
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return &ChatPage{Chats: []*ChatTile{}}, nil
	}
	chatIDs, err := c.rdb.ZRevRange(ctx, keyUserChats(userID), int64(start), int64(end)).Result()
	if err != nil {
		return nil, err
	}

	read := c.rdb.Pipeline()
	metaCmds := make([]*redis.MapStringStringCmd, len(chatIDs))
	lastCmds := make([]*redis.MapStringStringCmd, len(chatIDs))
	partCmds := make([]*redis.StringSliceCmd, len(chatIDs))
	for i, chatID := range chatIDs {
		metaCmds[i] = read.HGetAll(ctx, keyChatMeta(chatID))
		lastCmds[i] = read.HGetAll(ctx, keyChatLastMessage(chatID))
		partCmds[i] = read.SMembers(ctx, keyChatParticipants(chatID))
	}
	if _, err := read.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	tiles := make([]*ChatTile, 0, len(chatIDs))
	others := make([]string, 0, len(chatIDs))
	for i, chatID := range chatIDs {
		meta := metaCmds[i].Val()
		if len(meta) == 0 {
			continue // tile deleted under us
		}
		other := ""
		for _, pid := range partCmds[i].Val() {
			if pid != userID {
				other = pid
				break
			}
		}
		last := lastCmds[i].Val()
		tile := &ChatTile{
			ChatID:       chatID,
			LastMessage:  last["body"],
			LastSenderID: last["sender_id"],
		}
		tile.LastActivityAt, _ = strconv.ParseInt(meta["last_activity_at"], 10, 64)
		tiles = append(tiles, tile)
		others = append(others, other)
	}

	prof := c.rdb.Pipeline()
	profCmds := make([]*redis.SliceCmd, len(tiles))
	onlineCmds := make([]*redis.BoolCmd, len(tiles))
	for i, other := range others {
		profCmds[i] = prof.HMGet(ctx, keyProfile(other), "id", "name", "username", "avatar_url")
		onlineCmds[i] = prof.SIsMember(ctx, keyOnlineChats, other)
	}
	if _, err := prof.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}
	for i, tile := range tiles {
		tile.Participant = parseProfileSlice(profCmds[i].Val())
		tile.Online = onlineCmds[i].Val()
	}
	return &ChatPage{Chats: tiles, Total: total}, nil
}

// DeleteChat removes the chat from every participant's list and drops its
// keys in one pipeline.
func (c *ChatCache) DeleteChat(ctx context.Context, participantIDs []string, chatID string) error {
	pipe := c.rdb.Pipeline()
	for _, uid := range participantIDs {
		pipe.ZRem(ctx, keyUserChats(uid), chatID)
	}
	pipe.Del(ctx, keyChatMeta(chatID), keyChatLastMessage(chatID), keyChatParticipants(chatID), keyChatTyping(chatID))
	_, err := pipe.Exec(ctx)
	return err
}

func (c *ChatCache) Participants(ctx context.Context, chatID string) ([]string, error) {
	return c.rdb.SMembers(ctx, keyChatParticipants(chatID)).Result()
}

func (c *ChatCache) IsParticipant(ctx context.Context, userID, chatID string) (bool, error) {
	return c.rdb.SIsMember(ctx, keyChatParticipants(chatID), userID).Result()
}

/* --------------------------------- typing ---------------------------------- */

func (c *ChatCache) AddTyping(ctx context.Context, chatID, userID string) error {
	return c.rdb.SAdd(ctx, keyChatTyping(chatID), userID).Err()
}

func (c *ChatCache) RemoveTyping(ctx context.Context, chatID, userID string) error {
	return c.rdb.SRem(ctx, keyChatTyping(chatID), userID).Err()
}

func (c *ChatCache) TypingUsers(ctx context.Context, chatID string) ([]string, error) {
	return c.rdb.SMembers(ctx, keyChatTyping(chatID)).Result()
}

/* -------------------------------- presence --------------------------------- */

// AddUserToChats marks the user online on the chat surface and returns their
// full chat-id list so the caller can notify every counterpart.
func (c *ChatCache) AddUserToChats(ctx context.Context, userID string) ([]string, error) {
	if err := c.rdb.SAdd(ctx, keyOnlineChats, userID).Err(); err != nil {
		return nil, err
	}
	return c.rdb.ZRevRange(ctx, keyUserChats(userID), 0, -1).Result()
}

// RemoveUserFromChats clears presence and stamps last_seen_at on the profile.
func (c *ChatCache) RemoveUserFromChats(ctx context.Context, userID string) ([]string, error) {
	chatIDs, err := c.rdb.ZRevRange(ctx, keyUserChats(userID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	pipe := c.rdb.Pipeline()
	pipe.SRem(ctx, keyOnlineChats, userID)
	pipe.HSet(ctx, keyProfile(userID), "last_seen_at", time.Now().Unix())
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return chatIDs, nil
}

func (c *ChatCache) AddUserToFeeds(ctx context.Context, userID string) error {
	return c.rdb.SAdd(ctx, keyOnlineFeeds, userID).Err()
}

func (c *ChatCache) RemoveUserFromFeeds(ctx context.Context, userID string) error {
	return c.rdb.SRem(ctx, keyOnlineFeeds, userID).Err()
}

func (c *ChatCache) OnlineInChats(ctx context.Context) ([]string, error) {
	return c.rdb.SMembers(ctx, keyOnlineChats).Result()
}

func (c *ChatCache) IsOnlineInChats(ctx context.Context, userID string) (bool, error) {
	return c.rdb.SIsMember(ctx, keyOnlineChats, userID).Result()
}

func (c *ChatCache) IsOnlineInFeeds(ctx context.Context, userID string) (bool, error) {
	return c.rdb.SIsMember(ctx, keyOnlineFeeds, userID).Result()
}

// FilterOnlineInFeeds keeps only the ids currently online on the feed
// surface; one SMISMEMBER round-trip.
func (c *ChatCache) FilterOnlineInFeeds(ctx context.Context, userIDs []string) ([]string, error) {
	return c.filterOnline(ctx, keyOnlineFeeds, userIDs)
}

func (c *ChatCache) FilterOnlineInChats(ctx context.Context, userIDs []string) ([]string, error) {
	return c.filterOnline(ctx, keyOnlineChats, userIDs)
}

func (c *ChatCache) filterOnline(ctx context.Context, key string, userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	members := make([]interface{}, len(userIDs))
	for i, id := range userIDs {
		members[i] = id
	}
	flags, err := c.rdb.SMIsMember(ctx, key, members...).Result()
	if err != nil {
		return nil, err
	}
	var online []string
	for i, ok := range flags {
		if ok {
			online = append(online, userIDs[i])
		}
	}
	return online, nil
}

// PeersOf returns the distinct counterparts across all of the user's chats.
func (c *ChatCache) PeersOf(ctx context.Context, userID string) ([]string, error) {
	chatIDs, err := c.rdb.ZRevRange(ctx, keyUserChats(userID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(chatIDs) == 0 {
		return nil, nil
	}
	pipe := c.rdb.Pipeline()
	cmds := make([]*redis.StringSliceCmd, len(chatIDs))
	for i, chatID := range chatIDs {
		cmds[i] = pipe.SMembers(ctx, keyChatParticipants(chatID))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}
	seen := map[string]struct{}{userID: {}}
	var peers []string
	for _, cmd := range cmds {
		for _, pid := range cmd.Val() {
			if _, dup := seen[pid]; dup {
				continue
			}
			seen[pid] = struct{}{}
			peers = append(peers, pid)
		}
	}
	return peers, nil
}
