package realtime

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/d60-Lab/feedpulse/pkg/logger"
)

// ErrConnectionNotFound is returned when an addressed send has no live
// connection to deliver to; callers must not treat it as a silent drop.
var ErrConnectionNotFound = errors.New("connection not found")

// Conn is the minimal write surface the hub needs from a transport.
type Conn interface {
	Send(data []byte) error
}

// Hub tracks live connections: authorized ones keyed by user id for addressed
// sends, plus an unkeyed pool of anonymous broadcast listeners. The runtime
// is multi-threaded, so the maps are mutex-guarded.
type Hub struct {
	mu         sync.RWMutex
	authorized map[string]Conn
	anonymous  map[Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{
		authorized: make(map[string]Conn),
		anonymous:  make(map[Conn]struct{}),
	}
}

// Connect registers an authorized connection; re-registration replaces the
// previous one (idempotent).
func (h *Hub) Connect(userID string, c Conn) {
	h.mu.Lock()
	h.authorized[userID] = c
	h.mu.Unlock()
	logger.Debug("connection registered", zap.String("user", userID))
}

func (h *Hub) ConnectAnonymous(c Conn) {
	h.mu.Lock()
	h.anonymous[c] = struct{}{}
	h.mu.Unlock()
}

// Disconnect removes the registration only if it still points at the given
// connection, so a stale teardown cannot evict a fresh session.
func (h *Hub) Disconnect(userID string, c Conn) {
	h.mu.Lock()
	if cur, ok := h.authorized[userID]; ok && (c == nil || cur == c) {
		delete(h.authorized, userID)
	}
	h.mu.Unlock()
	logger.Debug("connection removed", zap.String("user", userID))
}

func (h *Hub) DisconnectAnonymous(c Conn) {
	h.mu.Lock()
	delete(h.anonymous, c)
	h.mu.Unlock()
}

func (h *Hub) IsConnected(userID string) bool {
	h.mu.RLock()
	_, ok := h.authorized[userID]
	h.mu.RUnlock()
	return ok
}

// SendPersonal delivers to one user's connection; fails loudly when none is
// registered.
func (h *Hub) SendPersonal(userID string, data []byte) error {
	h.mu.RLock()
	c, ok := h.authorized[userID]
	h.mu.RUnlock()
	if !ok {
		return ErrConnectionNotFound
	}
	return c.Send(data)
}

// Broadcast fans out to the given users, or to the whole anonymous pool when
// userIDs is nil. Per-connection failures are isolated so one dead socket
// cannot abort delivery to the rest.
func (h *Hub) Broadcast(data []byte, userIDs []string) {
	targets := h.targets(userIDs)
	for _, c := range targets {
		if err := c.Send(data); err != nil {
			logger.Warn("broadcast send failed", zap.Error(err))
		}
	}
}

func (h *Hub) targets(userIDs []string) []Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if userIDs == nil {
		out := make([]Conn, 0, len(h.anonymous))
		for c := range h.anonymous {
			out = append(out, c)
		}
		return out
	}
	out := make([]Conn, 0, len(userIDs))
	for _, uid := range userIDs {
		if c, ok := h.authorized[uid]; ok {
			out = append(out, c)
		}
	}
	return out
}
