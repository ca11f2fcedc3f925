package handler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/d60-Lab/feedpulse/internal/api/middleware"
	"github.com/d60-Lab/feedpulse/internal/cache"
	"github.com/d60-Lab/feedpulse/internal/realtime"
	"github.com/d60-Lab/feedpulse/pkg/logger"
)

// wsConn adapts one gorilla connection to both the session transport and the
// hub write surface. gorilla allows a single concurrent writer, so every
// outgoing frame goes through the mutex.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) Read() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
}

func (c *wsConn) Close() error { return c.conn.Close() }

// Send satisfies realtime.Conn for addressed hub delivery.
func (c *wsConn) Send(data []byte) error { return c.Write(data) }

func stringField(ev realtime.Event, key string) string {
	if v, ok := ev.Fields[key].(string); ok {
		return v
	}
	return ""
}

// forward relays a subscribed frame to the client unchanged.
func forward(_ context.Context, s *realtime.Session, ev realtime.Event) error {
	return s.Write(ev)
}

func (h *Handler) upgrade(c *gin.Context) (*wsConn, error) {
	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return nil, err
	}
	return &wsConn{conn: raw}, nil
}

func (h *Handler) runSession(c *gin.Context, cfg realtime.SessionConfig) {
	sess := realtime.NewSession(cfg)
	if err := sess.Run(c.Request.Context()); err != nil && !errors.Is(err, realtime.ErrIdleTimeout) {
		logger.Debug("session ended", zap.String("user", cfg.UserID), zap.Error(err))
	}
}

// FeedSocket 内容面实时通道：标记在线、订阅个人 home-timeline 主题，
// new_feed / deleted_feed / engagement 推送原样转发给客户端
func (h *Handler) FeedSocket(c *gin.Context) {
	userID := middleware.UserID(c)
	t, err := h.upgrade(c)
	if err != nil {
		return
	}

	h.runSession(c, realtime.SessionConfig{
		UserID:    userID,
		Transport: t,
		OnConnect: func(ctx context.Context) error {
			h.hub.Connect(userID, t)
			return h.chatService.GoOnlineFeeds(ctx, userID)
		},
		OnDisconnect: func(ctx context.Context) {
			h.hub.Disconnect(userID, t)
			if err := h.chatService.GoOfflineFeeds(ctx, userID); err != nil {
				logger.Warn("feed offline mark failed", zap.String("user", userID), zap.Error(err))
			}
		},
		Subscribe: func(ctx context.Context) (realtime.EventStream, error) {
			return h.bus.Subscribe(ctx, cache.TopicHomeTimeline(userID))
		},
		Handlers: map[realtime.EventType]realtime.Handler{
			realtime.EventNewFeed:     forward,
			realtime.EventDeletedFeed: forward,
			realtime.EventEngagement:  forward,
		},
		ProbeAfter: h.realtimeCfg.ProbeAfter,
		DeadAfter:  h.realtimeCfg.DeadAfter,
	})
}

// ChatSocket 会话面实时通道。入站与订阅帧走同一张处理表：
// 帧里带其他用户的 user_id 则是订阅转发，否则是客户端意图
func (h *Handler) ChatSocket(c *gin.Context) {
	userID := middleware.UserID(c)
	t, err := h.upgrade(c)
	if err != nil {
		return
	}

	relayOrIgnore := func(_ context.Context, s *realtime.Session, ev realtime.Event) error {
		if uid := stringField(ev, "user_id"); uid != "" && uid != s.UserID() {
			return s.Write(ev)
		}
		return nil
	}
	typing := func(start bool) realtime.Handler {
		return func(ctx context.Context, s *realtime.Session, ev realtime.Event) error {
			if uid := stringField(ev, "user_id"); uid != "" && uid != s.UserID() {
				return s.Write(ev)
			}
			chatID := stringField(ev, "chat_id")
			if chatID == "" {
				return errors.New("missing chat_id")
			}
			if start {
				return h.chatService.StartTyping(ctx, s.UserID(), chatID)
			}
			return h.chatService.StopTyping(ctx, s.UserID(), chatID)
		}
	}

	h.runSession(c, realtime.SessionConfig{
		UserID:    userID,
		Transport: t,
		OnConnect: func(ctx context.Context) error {
			h.hub.Connect(userID, t)
			return h.chatService.GoOnlineChats(ctx, userID)
		},
		OnDisconnect: func(ctx context.Context) {
			h.hub.Disconnect(userID, t)
			if err := h.chatService.GoOfflineChats(ctx, userID); err != nil {
				logger.Warn("chat offline mark failed", zap.String("user", userID), zap.Error(err))
			}
		},
		Subscribe: func(ctx context.Context) (realtime.EventStream, error) {
			return h.bus.Subscribe(ctx, cache.TopicChat(userID))
		},
		Handlers: map[realtime.EventType]realtime.Handler{
			realtime.EventGoesOnline:  relayOrIgnore,
			realtime.EventGoesOffline: relayOrIgnore,
			realtime.EventSentMessage: forward,
			realtime.EventCreatedChat: forward,
			realtime.EventTypingStart: typing(true),
			realtime.EventTypingStop:  typing(false),
			realtime.EventEnterChat: func(ctx context.Context, s *realtime.Session, ev realtime.Event) error {
				return nil
			},
			realtime.EventExitChat: func(ctx context.Context, s *realtime.Session, ev realtime.Event) error {
				if chatID := stringField(ev, "chat_id"); chatID != "" {
					return h.chatService.StopTyping(ctx, s.UserID(), chatID)
				}
				return nil
			},
		},
		ProbeAfter: h.realtimeCfg.ProbeAfter,
		DeadAfter:  h.realtimeCfg.DeadAfter,
	})
}

// SettingsSocket 设置面实时通道：广播统计更新
func (h *Handler) SettingsSocket(c *gin.Context) {
	userID := middleware.UserID(c)
	t, err := h.upgrade(c)
	if err != nil {
		return
	}

	h.runSession(c, realtime.SessionConfig{
		UserID:    userID,
		Transport: t,
		OnConnect: func(ctx context.Context) error {
			h.hub.ConnectAnonymous(t)
			return nil
		},
		OnDisconnect: func(ctx context.Context) {
			h.hub.DisconnectAnonymous(t)
		},
		Subscribe: func(ctx context.Context) (realtime.EventStream, error) {
			return h.bus.Subscribe(ctx, cache.TopicSettingsStats)
		},
		Handlers: map[realtime.EventType]realtime.Handler{
			realtime.EventStatsUpdated: forward,
		},
		ProbeAfter: h.realtimeCfg.ProbeAfter,
		DeadAfter:  h.realtimeCfg.DeadAfter,
	})
}
