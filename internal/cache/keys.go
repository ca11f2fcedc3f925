package cache

import "fmt"

// Every cache key format lives here. Key layout mirrors the durable schema as
// a rebuildable projection: hashes for metadata, sets for engagement and
// follow edges, sorted sets for ranked timelines and chat recency.

const (
	keyGlobalTimeline = "global_timeline"
	keyOnlineChats    = "online:chats"
	keyOnlineFeeds    = "online:feeds"
	keyStatistics     = "statistics"

	entityFeeds    = "feeds"
	entityComments = "comments"
)

func keyFeedMeta(feedID string) string { return "feeds:" + feedID + ":meta" }
func keyCommentMeta(commentID string) string { return "comments:" + commentID + ":meta" }

// keyEngagement: feeds:{id}:likes / comments:{id}:views ...
func keyEngagement(entity, entityID, etype string) string {
	return entity + ":" + entityID + ":" + etype
}

// keyChildComments: adjacency set for the comment forest; entity is the
// parent's kind (feeds for top-level, comments for nested).
func keyChildComments(entity, entityID string) string {
	return entity + ":" + entityID + ":comments"
}

// keyUserEngaged: reverse index, entity ids the user engaged with by type.
func keyUserEngaged(userID, entity, etype string) string {
	return "users:" + userID + ":" + entity + ":" + etype
}

func keyUserComments(userID string) string { return "users:" + userID + ":comments" }

func keyFollowingTimeline(userID string) string { return "users:" + userID + ":following_timeline" }
func keyUserTimeline(userID string) string { return "users:" + userID + ":user_timeline" }

func keyFollowers(userID string) string { return "users:" + userID + ":followers" }
func keyFollowings(userID string) string { return "users:" + userID + ":followings" }

func keyProfile(userID string) string { return "users:" + userID + ":profile" }

func keyUserChats(userID string) string { return "users:" + userID + ":chats" }
func keyChatMeta(chatID string) string { return "chats:" + chatID + ":meta" }
func keyChatLastMessage(chatID string) string { return "chats:" + chatID + ":last_message" }
func keyChatParticipants(chatID string) string { return "chats:" + chatID + ":participants" }
func keyChatTyping(chatID string) string { return "typing:" + chatID }

func keyRegistrationToken(token string) string   { return "tokens:registration:" + token }
func keyForgotPasswordToken(token string) string { return "tokens:forgot_password:" + token }

// Pub/sub topic convention. Callers must use the exact strings.

func TopicHomeTimeline(userID string) string { return fmt.Sprintf("home-timeline:%s", userID) }
func TopicChat(userID string) string { return fmt.Sprintf("chat:%s", userID) }

const TopicSettingsStats = "settings:stats"
