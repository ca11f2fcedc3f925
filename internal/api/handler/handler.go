package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/d60-Lab/feedpulse/config"
	"github.com/d60-Lab/feedpulse/internal/cache"
	"github.com/d60-Lab/feedpulse/internal/realtime"
	"github.com/d60-Lab/feedpulse/internal/service"
)

// Handler 聚合全部 HTTP / WebSocket 入口依赖
type Handler struct {
	userService service.UserService
	relService  service.RelationshipService
	feedService service.FeedService
	chatService service.ChatService

	statsCache *cache.StatsCache
	bus        *cache.Bus
	hub        *realtime.Hub

	realtimeCfg config.RealtimeConfig
	upgrader    websocket.Upgrader
}

func NewHandler(
	userService service.UserService,
	relService service.RelationshipService,
	feedService service.FeedService,
	chatService service.ChatService,
	statsCache *cache.StatsCache,
	bus *cache.Bus,
	hub *realtime.Hub,
	realtimeCfg config.RealtimeConfig,
) *Handler {
	return &Handler{
		userService: userService,
		relService:  relService,
		feedService: feedService,
		chatService: chatService,
		statsCache:  statsCache,
		bus:         bus,
		hub:         hub,
		realtimeCfg: realtimeCfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 鉴权走 token 查询参数，跨源由网关裁决
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}
