package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/feedpulse/internal/api/middleware"
	"github.com/d60-Lab/feedpulse/internal/service"
	"github.com/d60-Lab/feedpulse/pkg/response"
)

// Follow 当前用户关注目标用户（粉丝表异步冗余）
// @Summary 关注用户
// @Tags 关系链
// @Produce json
// @Param user_id path string true "目标用户ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /api/v1/relations/{user_id}/follow [post]
func (h *Handler) Follow(c *gin.Context) {
	fromUserID := middleware.UserID(c)
	toUserID := c.Param("user_id")
	if err := h.relService.Follow(c.Request.Context(), fromUserID, toUserID); err != nil {
		if errors.Is(err, service.ErrFollowSelf) {
			response.BadRequest(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Success(c, nil)
}

// Unfollow 取消关注（同时清理 following-timeline 中该作者的帖子）
// @Summary 取消关注
// @Tags 关系链
// @Produce json
// @Param user_id path string true "目标用户ID"
// @Success 200 {object} response.Response
// @Router /api/v1/relations/{user_id}/unfollow [post]
func (h *Handler) Unfollow(c *gin.Context) {
	fromUserID := middleware.UserID(c)
	toUserID := c.Param("user_id")
	if err := h.relService.Unfollow(c.Request.Context(), fromUserID, toUserID); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, nil)
}

// IsFollowing 查询当前用户是否关注目标用户（走缓存边）
// @Summary 查询关注状态
// @Tags 关系链
// @Param user_id path string true "目标用户ID"
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/relations/{user_id}/status [get]
func (h *Handler) IsFollowing(c *gin.Context) {
	fromUserID := middleware.UserID(c)
	toUserID := c.Param("user_id")
	following, err := h.relService.IsFollowing(c.Request.Context(), fromUserID, toUserID)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"following": following})
}

// ListFollowing 查询某用户关注的人
// @Summary 查询关注列表
// @Tags 关系链
// @Param user_id path string true "用户ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/relations/{user_id}/following [get]
func (h *Handler) ListFollowing(c *gin.Context) {
	userID := c.Param("user_id")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	list, err := h.relService.ListFollowing(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": list})
}

// ListFans 查询某用户的粉丝
// @Summary 查询粉丝列表（来自冗余表）
// @Tags 关系链
// @Param user_id path string true "用户ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/relations/{user_id}/fans [get]
func (h *Handler) ListFans(c *gin.Context) {
	userID := c.Param("user_id")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	list, err := h.relService.ListFans(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": list})
}
