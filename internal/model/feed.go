package model

import "time"

// FeedVisibility 可见性
type FeedVisibility string

const (
	VisibilityPublic    FeedVisibility = "public"
	VisibilityFollowers FeedVisibility = "followers"
	VisibilityPrivate   FeedVisibility = "private"
	VisibilityArchived  FeedVisibility = "archived"
)

func (v FeedVisibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityFollowers, VisibilityPrivate, VisibilityArchived:
		return true
	}
	return false
}

// CommentPolicy 评论权限
type CommentPolicy string

const (
	CommentEveryone  CommentPolicy = "everyone"
	CommentFollowers CommentPolicy = "followers"
	CommentMentioned CommentPolicy = "mentioned"
	CommentNone      CommentPolicy = "none"
)

func (p CommentPolicy) Valid() bool {
	switch p {
	case CommentEveryone, CommentFollowers, CommentMentioned, CommentNone:
		return true
	}
	return false
}

// EngagementType 互动类型（集合成员语义，幂等）
type EngagementType string

const (
	EngagementLikes     EngagementType = "likes"
	EngagementViews     EngagementType = "views"
	EngagementReposts   EngagementType = "reposts"
	EngagementQuotes    EngagementType = "quotes"
	EngagementBookmarks EngagementType = "bookmarks"
)

// EngagementTypes 固定顺序，供批量读取时切片对齐
var EngagementTypes = []EngagementType{
	EngagementLikes,
	EngagementViews,
	EngagementReposts,
	EngagementQuotes,
	EngagementBookmarks,
}

func (t EngagementType) Valid() bool {
	for _, v := range EngagementTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Feed 内容主体；ParentID 非空时为评论（递归成树）
type Feed struct {
	ID            string `gorm:"primaryKey;type:varchar(36)"`
	AuthorID      string `gorm:"type:varchar(36);index:idx_feed_author"`
	ParentID      string `gorm:"type:varchar(36);index:idx_feed_parent"`
	Body          string `gorm:"type:text"`
	ImageURLs     string `gorm:"type:text"` // JSON array
	VideoURL      string `gorm:"type:varchar(256)"`
	Visibility    FeedVisibility `gorm:"type:varchar(16);default:public"`
	CommentPolicy CommentPolicy  `gorm:"type:varchar(16);default:everyone"`
	CategoryID    string `gorm:"type:varchar(36)"`
	QuoteID       string `gorm:"type:varchar(36)"`
	ScheduledAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (Feed) TableName() string { return "feeds" }
