package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/feedpulse/internal/api/middleware"
	"github.com/d60-Lab/feedpulse/internal/model"
	"github.com/d60-Lab/feedpulse/internal/service"
	"github.com/d60-Lab/feedpulse/pkg/response"
)

type createFeedRequest struct {
	Body          string   `json:"body" binding:"required"`
	ImageURLs     []string `json:"image_urls"`
	VideoURL      string   `json:"video_url"`
	Visibility    string   `json:"visibility" binding:"omitempty,visibility"`
	CommentPolicy string   `json:"comment_policy" binding:"omitempty,comment_policy"`
	CategoryID    string   `json:"category_id"`
	TagIDs        []string `json:"tag_ids"`
	QuoteID       string   `json:"quote_id"`
	ParentID      string   `json:"parent_id"`
	ScheduledAt   int64    `json:"scheduled_at"`
}

type updateFeedRequest struct {
	Body          *string   `json:"body"`
	ImageURLs     *[]string `json:"image_urls"`
	VideoURL      *string   `json:"video_url"`
	Visibility    *string   `json:"visibility" binding:"omitempty,visibility"`
	CommentPolicy *string   `json:"comment_policy" binding:"omitempty,comment_policy"`
	CategoryID    *string   `json:"category_id"`
	ScheduledAt   *int64    `json:"scheduled_at"`
}

// pageRange 把 page/page_size 换算成闭区间 [start, end]
func pageRange(c *gin.Context, defaultSize int) (int, int, int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultSize)))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultSize
	}
	start := (page - 1) * pageSize
	return start, start + pageSize - 1, page, pageSize
}

// CreateFeed 发布帖子或评论（parent_id 非空为评论）
// @Summary 发布内容
// @Tags 内容
// @Accept json
// @Produce json
// @Param request body createFeedRequest true "内容"
// @Success 200 {object} response.Response{data=cache.FeedMeta}
// @Failure 400 {object} response.Response
// @Router /api/v1/feeds [post]
func (h *Handler) CreateFeed(c *gin.Context) {
	var req createFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	meta, err := h.feedService.CreateFeed(c.Request.Context(), middleware.UserID(c), &service.CreateFeedInput{
		Body:          req.Body,
		ImageURLs:     req.ImageURLs,
		VideoURL:      req.VideoURL,
		Visibility:    model.FeedVisibility(req.Visibility),
		CommentPolicy: model.CommentPolicy(req.CommentPolicy),
		CategoryID:    req.CategoryID,
		TagIDs:        req.TagIDs,
		QuoteID:       req.QuoteID,
		ParentID:      req.ParentID,
		ScheduledAt:   req.ScheduledAt,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidVisibility) || errors.Is(err, service.ErrInvalidCommentPolicy) {
			response.BadRequest(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Success(c, meta)
}

// UpdateFeed 编辑帖子元数据（仅作者本人；只传需要修改的字段）
// @Summary 编辑内容
// @Tags 内容
// @Accept json
// @Produce json
// @Param feed_id path string true "内容ID"
// @Param request body updateFeedRequest true "要修改的字段"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/feeds/{feed_id} [patch]
func (h *Handler) UpdateFeed(c *gin.Context) {
	var req updateFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	updates := map[string]interface{}{}
	if req.Body != nil {
		updates["body"] = *req.Body
	}
	if req.ImageURLs != nil {
		updates["image_urls"] = *req.ImageURLs
	}
	if req.VideoURL != nil {
		updates["video_url"] = *req.VideoURL
	}
	if req.Visibility != nil {
		updates["visibility"] = *req.Visibility
	}
	if req.CommentPolicy != nil {
		updates["comment_policy"] = *req.CommentPolicy
	}
	if req.CategoryID != nil {
		updates["category_id"] = *req.CategoryID
	}
	if req.ScheduledAt != nil {
		updates["scheduled_at"] = *req.ScheduledAt
	}

	err := h.feedService.UpdateFeed(c.Request.Context(), middleware.UserID(c), c.Param("feed_id"), updates)
	switch {
	case errors.Is(err, service.ErrFeedNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrNotFeedAuthor):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, service.ErrInvalidVisibility), errors.Is(err, service.ErrInvalidCommentPolicy):
		response.BadRequest(c, err.Error())
	case err != nil:
		response.InternalError(c, err)
	default:
		response.Success(c, nil)
	}
}

// DeleteFeed 删除帖子或评论（级联删除整棵评论树）
// @Summary 删除内容
// @Tags 内容
// @Param feed_id path string true "内容ID"
// @Success 200 {object} response.Response
// @Router /api/v1/feeds/{feed_id} [delete]
func (h *Handler) DeleteFeed(c *gin.Context) {
	if err := h.feedService.DeleteFeed(c.Request.Context(), middleware.UserID(c), c.Param("feed_id")); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, nil)
}

// Discover 全局发现时间线
// @Summary 发现时间线
// @Tags 时间线
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=cache.TimelinePage}
// @Router /api/v1/timelines/discover [get]
func (h *Handler) Discover(c *gin.Context) {
	start, end, page, pageSize := pageRange(c, 20)
	tp, err := h.feedService.Discover(c.Request.Context(), middleware.UserID(c), start, end)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "feeds": tp.Feeds, "total": tp.Total})
}

// Following 关注时间线（不足一页从全局补齐）
// @Summary 关注时间线
// @Tags 时间线
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=cache.TimelinePage}
// @Router /api/v1/timelines/following [get]
func (h *Handler) Following(c *gin.Context) {
	start, end, page, pageSize := pageRange(c, 20)
	tp, err := h.feedService.Following(c.Request.Context(), middleware.UserID(c), start, end)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "feeds": tp.Feeds, "total": tp.Total})
}

// UserFeeds 某用户自己的帖子
// @Summary 用户时间线
// @Tags 时间线
// @Param user_id path string true "用户ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=cache.TimelinePage}
// @Router /api/v1/users/{user_id}/feeds [get]
func (h *Handler) UserFeeds(c *gin.Context) {
	start, end, page, pageSize := pageRange(c, 20)
	tp, err := h.feedService.UserFeeds(c.Request.Context(), c.Param("user_id"), start, end)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "feeds": tp.Feeds, "total": tp.Total})
}

func engagementParams(c *gin.Context) (string, model.EngagementType, bool) {
	entityID := c.Param("feed_id")
	etype := model.EngagementType(c.Param("etype"))
	isComment := c.Query("entity") == "comments"
	return entityID, etype, isComment
}

// Engage 记录一次互动（集合语义，幂等）
// @Summary 添加互动
// @Tags 互动
// @Param feed_id path string true "实体ID"
// @Param etype path string true "互动类型" Enums(likes, views, reposts, quotes, bookmarks)
// @Param entity query string false "实体种类" Enums(feeds, comments) default(feeds)
// @Success 200 {object} response.Response{data=cache.Engagement}
// @Failure 400 {object} response.Response
// @Router /api/v1/feeds/{feed_id}/engagements/{etype} [post]
func (h *Handler) Engage(c *gin.Context) {
	entityID, etype, isComment := engagementParams(c)
	if !etype.Valid() {
		response.BadRequest(c, "invalid engagement type")
		return
	}
	eng, err := h.feedService.Engage(c.Request.Context(), middleware.UserID(c), entityID, etype, isComment)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, eng)
}

// Disengage 撤销一次互动（非成员为 no-op）
// @Summary 移除互动
// @Tags 互动
// @Param feed_id path string true "实体ID"
// @Param etype path string true "互动类型" Enums(likes, views, reposts, quotes, bookmarks)
// @Param entity query string false "实体种类" Enums(feeds, comments) default(feeds)
// @Success 200 {object} response.Response{data=cache.Engagement}
// @Router /api/v1/feeds/{feed_id}/engagements/{etype} [delete]
func (h *Handler) Disengage(c *gin.Context) {
	entityID, etype, isComment := engagementParams(c)
	if !etype.Valid() {
		response.BadRequest(c, "invalid engagement type")
		return
	}
	eng, err := h.feedService.Disengage(c.Request.Context(), middleware.UserID(c), entityID, etype, isComment)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, eng)
}

// GetEngagement 读取一个实体的互动快照（单次批量往返）
// @Summary 查询互动
// @Tags 互动
// @Param feed_id path string true "实体ID"
// @Param entity query string false "实体种类" Enums(feeds, comments) default(feeds)
// @Success 200 {object} response.Response{data=cache.Engagement}
// @Router /api/v1/feeds/{feed_id}/engagements [get]
func (h *Handler) GetEngagement(c *gin.Context) {
	entityID := c.Param("feed_id")
	isComment := c.Query("entity") == "comments"
	eng, err := h.feedService.Engagement(c.Request.Context(), middleware.UserID(c), entityID, isComment)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, eng)
}
