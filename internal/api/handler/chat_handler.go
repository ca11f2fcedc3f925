package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/feedpulse/internal/api/middleware"
	"github.com/d60-Lab/feedpulse/internal/service"
	"github.com/d60-Lab/feedpulse/pkg/response"
)

type createChatRequest struct {
	ParticipantID string `json:"participant_id" binding:"required"`
	FirstMessage  string `json:"first_message"`
}

type sendMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

// CreateChat 创建 1:1 会话
// @Summary 创建会话
// @Tags 会话
// @Accept json
// @Produce json
// @Param request body createChatRequest true "会话信息"
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Failure 400 {object} response.Response
// @Router /api/v1/chats [post]
func (h *Handler) CreateChat(c *gin.Context) {
	var req createChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	chatID, err := h.chatService.CreateChat(c.Request.Context(), middleware.UserID(c), req.ParticipantID, req.FirstMessage)
	if err != nil {
		if errors.Is(err, service.ErrChatWithSelf) {
			response.BadRequest(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"chat_id": chatID})
}

// Chats 按最近活跃分页会话列表
// @Summary 会话列表
// @Tags 会话
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=cache.ChatPage}
// @Router /api/v1/chats [get]
func (h *Handler) Chats(c *gin.Context) {
	start, end, page, pageSize := pageRange(c, 20)
	cp, err := h.chatService.Chats(c.Request.Context(), middleware.UserID(c), start, end)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "chats": cp.Chats, "total": cp.Total})
}

// SendMessage 发送消息（缓存快照即时更新，消息异步落库）
// @Summary 发送消息
// @Tags 会话
// @Accept json
// @Produce json
// @Param chat_id path string true "会话ID"
// @Param request body sendMessageRequest true "消息"
// @Success 200 {object} response.Response{data=model.ChatMessage}
// @Failure 400 {object} response.Response
// @Router /api/v1/chats/{chat_id}/messages [post]
func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	msg, err := h.chatService.SendMessage(c.Request.Context(), middleware.UserID(c), c.Param("chat_id"), req.Body)
	if err != nil {
		if errors.Is(err, service.ErrNotParticipant) {
			response.BadRequest(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Success(c, msg)
}

// Messages 倒序分页历史消息（持久层）
// @Summary 历史消息
// @Tags 会话
// @Param chat_id path string true "会话ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(50)
// @Success 200 {object} response.Response{data=[]model.ChatMessage}
// @Router /api/v1/chats/{chat_id}/messages [get]
func (h *Handler) Messages(c *gin.Context) {
	_, _, page, pageSize := pageRange(c, 50)
	msgs, err := h.chatService.Messages(c.Request.Context(), middleware.UserID(c), c.Param("chat_id"), page, pageSize)
	if err != nil {
		if errors.Is(err, service.ErrNotParticipant) {
			response.BadRequest(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "messages": msgs})
}

// DeleteChat 删除会话（双端列表与消息一并移除）
// @Summary 删除会话
// @Tags 会话
// @Param chat_id path string true "会话ID"
// @Success 200 {object} response.Response
// @Router /api/v1/chats/{chat_id} [delete]
func (h *Handler) DeleteChat(c *gin.Context) {
	if err := h.chatService.DeleteChat(c.Request.Context(), middleware.UserID(c), c.Param("chat_id")); err != nil {
		if errors.Is(err, service.ErrNotParticipant) {
			response.BadRequest(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Success(c, nil)
}
