package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/d60-Lab/feedpulse/internal/cache"
	"github.com/d60-Lab/feedpulse/internal/model"
	"github.com/d60-Lab/feedpulse/internal/realtime"
	"github.com/d60-Lab/feedpulse/pkg/logger"
)

var (
	ErrNotParticipant = errors.New("not a chat participant")
	ErrChatWithSelf   = errors.New("cannot chat with self")
)

// ChatService 会话服务：会话元数据同步落地（低频），消息异步落地（高频），
// 在线对端走实时推送
type ChatService interface {
	CreateChat(ctx context.Context, userID, participantID, firstMessage string) (string, error)
	Chats(ctx context.Context, userID string, start, end int) (*cache.ChatPage, error)
	SendMessage(ctx context.Context, userID, chatID, body string) (*model.ChatMessage, error)
	Messages(ctx context.Context, userID, chatID string, page, pageSize int) ([]*model.ChatMessage, error)
	DeleteChat(ctx context.Context, userID, chatID string) error

	StartTyping(ctx context.Context, userID, chatID string) error
	StopTyping(ctx context.Context, userID, chatID string) error

	GoOnlineChats(ctx context.Context, userID string) error
	GoOfflineChats(ctx context.Context, userID string) error
	GoOnlineFeeds(ctx context.Context, userID string) error
	GoOfflineFeeds(ctx context.Context, userID string) error
}

type chatService struct {
	chatCache *cache.ChatCache
	chatRepo  chatRepoPort
	bus       *cache.Bus
	writeback *Writeback
}

type chatRepoPort interface {
	Create(ctx context.Context, chatID string, participantIDs []string) error
	ListMessages(ctx context.Context, chatID string, offset, limit int) ([]*model.ChatMessage, error)
	Delete(ctx context.Context, chatID string) error
}

func NewChatService(chatCache *cache.ChatCache, chatRepo chatRepoPort, bus *cache.Bus, writeback *Writeback) ChatService {
	return &chatService{chatCache: chatCache, chatRepo: chatRepo, bus: bus, writeback: writeback}
}

func (s *chatService) CreateChat(ctx context.Context, userID, participantID, firstMessage string) (string, error) {
	if userID == participantID {
		return "", ErrChatWithSelf
	}
	chatID := uuid.New().String()
	now := time.Now()

	if err := s.chatCache.CreateChat(ctx, userID, participantID, chatID, firstMessage, now); err != nil {
		return "", err
	}
	// 会话创建低频，同步落地；首条消息走异步队列
	if err := s.chatRepo.Create(ctx, chatID, []string{userID, participantID}); err != nil {
		return "", err
	}
	if firstMessage != "" {
		s.writeback.EnqueueMessage(&model.ChatMessage{
			ID:        uuid.New().String(),
			ChatID:    chatID,
			SenderID:  userID,
			Body:      firstMessage,
			CreatedAt: now,
		})
	}

	s.notifyIfOnline(ctx, participantID, realtime.EventCreatedChat, map[string]interface{}{
		"chat_id": chatID,
		"user_id": userID,
	})
	return chatID, nil
}

func (s *chatService) Chats(ctx context.Context, userID string, start, end int) (*cache.ChatPage, error) {
	return s.chatCache.Chats(ctx, userID, start, end)
}

func (s *chatService) SendMessage(ctx context.Context, userID, chatID, body string) (*model.ChatMessage, error) {
	ok, err := s.chatCache.IsParticipant(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotParticipant
	}

	now := time.Now()
	msg := &model.ChatMessage{
		ID:        uuid.New().String(),
		ChatID:    chatID,
		SenderID:  userID,
		Body:      body,
		CreatedAt: now,
	}
	if err := s.chatCache.UpdateLastMessage(ctx, chatID, userID, body, now); err != nil {
		return nil, err
	}
	s.writeback.EnqueueMessage(msg)

	for _, uid := range s.onlineCounterparts(ctx, userID, chatID) {
		s.publish(ctx, cache.TopicChat(uid), realtime.EventSentMessage, map[string]interface{}{
			"chat_id":    chatID,
			"message_id": msg.ID,
			"sender_id":  userID,
			"body":       body,
			"sent_at":    now.Unix(),
		})
	}
	return msg, nil
}

func (s *chatService) Messages(ctx context.Context, userID, chatID string, page, pageSize int) ([]*model.ChatMessage, error) {
	ok, err := s.chatCache.IsParticipant(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotParticipant
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	return s.chatRepo.ListMessages(ctx, chatID, (page-1)*pageSize, pageSize)
}

func (s *chatService) DeleteChat(ctx context.Context, userID, chatID string) error {
	participants, err := s.chatCache.Participants(ctx, chatID)
	if err != nil {
		return err
	}
	member := false
	for _, uid := range participants {
		if uid == userID {
			member = true
			break
		}
	}
	if !member {
		return ErrNotParticipant
	}
	if err := s.chatCache.DeleteChat(ctx, participants, chatID); err != nil {
		return err
	}
	return s.chatRepo.Delete(ctx, chatID)
}

/* --------------------------------- typing ---------------------------------- */

func (s *chatService) StartTyping(ctx context.Context, userID, chatID string) error {
	if err := s.chatCache.AddTyping(ctx, chatID, userID); err != nil {
		return err
	}
	s.notifyTyping(ctx, userID, chatID, realtime.EventTypingStart)
	return nil
}

func (s *chatService) StopTyping(ctx context.Context, userID, chatID string) error {
	if err := s.chatCache.RemoveTyping(ctx, chatID, userID); err != nil {
		return err
	}
	s.notifyTyping(ctx, userID, chatID, realtime.EventTypingStop)
	return nil
}

func (s *chatService) notifyTyping(ctx context.Context, userID, chatID string, etype realtime.EventType) {
	for _, uid := range s.onlineCounterparts(ctx, userID, chatID) {
		s.publish(ctx, cache.TopicChat(uid), etype, map[string]interface{}{
			"chat_id": chatID,
			"user_id": userID,
		})
	}
}

/* -------------------------------- presence --------------------------------- */

// GoOnlineChats marks the user online on the chat surface and tells every
// online counterpart.
func (s *chatService) GoOnlineChats(ctx context.Context, userID string) error {
	if _, err := s.chatCache.AddUserToChats(ctx, userID); err != nil {
		return err
	}
	s.notifyPeers(ctx, userID, realtime.EventGoesOnline)
	return nil
}

func (s *chatService) GoOfflineChats(ctx context.Context, userID string) error {
	if _, err := s.chatCache.RemoveUserFromChats(ctx, userID); err != nil {
		return err
	}
	s.notifyPeers(ctx, userID, realtime.EventGoesOffline)
	return nil
}

func (s *chatService) GoOnlineFeeds(ctx context.Context, userID string) error {
	return s.chatCache.AddUserToFeeds(ctx, userID)
}

func (s *chatService) GoOfflineFeeds(ctx context.Context, userID string) error {
	return s.chatCache.RemoveUserFromFeeds(ctx, userID)
}

func (s *chatService) notifyPeers(ctx context.Context, userID string, etype realtime.EventType) {
	peers, err := s.chatCache.PeersOf(ctx, userID)
	if err != nil {
		logger.Warn("load chat peers failed", zap.String("user", userID), zap.Error(err))
		return
	}
	online, err := s.chatCache.FilterOnlineInChats(ctx, peers)
	if err != nil {
		logger.Warn("filter online peers failed", zap.Error(err))
		return
	}
	for _, uid := range online {
		s.publish(ctx, cache.TopicChat(uid), etype, map[string]interface{}{
			"user_id": userID,
		})
	}
}

func (s *chatService) onlineCounterparts(ctx context.Context, userID, chatID string) []string {
	participants, err := s.chatCache.Participants(ctx, chatID)
	if err != nil {
		logger.Warn("load participants failed", zap.String("chat", chatID), zap.Error(err))
		return nil
	}
	others := participants[:0]
	for _, uid := range participants {
		if uid != userID {
			others = append(others, uid)
		}
	}
	online, err := s.chatCache.FilterOnlineInChats(ctx, others)
	if err != nil {
		logger.Warn("filter online participants failed", zap.Error(err))
		return nil
	}
	return online
}

func (s *chatService) notifyIfOnline(ctx context.Context, userID string, etype realtime.EventType, fields map[string]interface{}) {
	online, err := s.chatCache.IsOnlineInChats(ctx, userID)
	if err != nil || !online {
		return
	}
	s.publish(ctx, cache.TopicChat(userID), etype, fields)
}

func (s *chatService) publish(ctx context.Context, topic string, etype realtime.EventType, fields map[string]interface{}) {
	if err := s.bus.Publish(ctx, topic, realtime.Event{Type: etype, Fields: fields}); err != nil {
		logger.Warn("publish failed", zap.String("topic", topic), zap.Error(err))
	}
}
