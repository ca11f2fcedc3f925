package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/feedpulse/internal/model"
	"github.com/d60-Lab/feedpulse/internal/repository"
	"github.com/d60-Lab/feedpulse/pkg/logger"
)

type writebackKind int

const (
	writebackFeed writebackKind = iota + 1
	writebackFeedUpdate
	writebackFeedDelete
	writebackMessage
)

type writebackJob struct {
	kind    writebackKind
	feed    *model.Feed
	feedID  string
	updates map[string]interface{}
	feedIDs []string
	msg     *model.ChatMessage
	enqAt   time.Time
}

// Writeback 异步落库执行器：缓存先行，持久层随后（cache-as-source-of-truth）
type Writeback struct {
	feedRepo  repository.FeedRepository
	chatRepo  repository.ChatRepository
	ch        chan writebackJob
	metricsCh chan time.Duration
}

func NewWriteback(feedRepo repository.FeedRepository, chatRepo repository.ChatRepository, queueSize int) *Writeback {
	if queueSize <= 0 {
		queueSize = 10000
	}
	return &Writeback{
		feedRepo:  feedRepo,
		chatRepo:  chatRepo,
		ch:        make(chan writebackJob, queueSize),
		metricsCh: make(chan time.Duration, 65536),
	}
}

// Start 启动若干 worker；返回停止函数（等待队列自然排空一小段时间）
func (w *Writeback) Start(workers int) func(context.Context) error {
	if workers <= 0 {
		workers = 4
	}
	stopCh := make(chan struct{})
	for i := 0; i < workers; i++ {
		go w.loop(stopCh)
	}
	return func(ctx context.Context) error {
		close(stopCh)
		timeout := time.After(2 * time.Second)
		for {
			select {
			case <-timeout:
				return nil
			default:
				if len(w.ch) == 0 {
					return nil
				}
				time.Sleep(50 * time.Millisecond)
			}
		}
	}
}

func (w *Writeback) loop(stopCh <-chan struct{}) {
	for {
		select {
		case job := <-w.ch:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			w.apply(ctx, job)
			cancel()
			if !job.enqAt.IsZero() {
				select {
				case w.metricsCh <- time.Since(job.enqAt):
				default:
				}
			}
		case <-stopCh:
			return
		}
	}
}

func (w *Writeback) apply(ctx context.Context, job writebackJob) {
	var err error
	switch job.kind {
	case writebackFeed:
		err = w.feedRepo.Create(ctx, job.feed)
	case writebackFeedUpdate:
		err = w.feedRepo.UpdateFields(ctx, job.feedID, job.updates)
	case writebackFeedDelete:
		err = w.feedRepo.Delete(ctx, job.feedIDs)
	case writebackMessage:
		err = w.chatRepo.AppendMessage(ctx, job.msg)
	}
	if err != nil {
		logger.Error("writeback apply failed", zap.Int("kind", int(job.kind)), zap.Error(err))
	}
}

func (w *Writeback) EnqueueFeed(feed *model.Feed) {
	select {
	case w.ch <- writebackJob{kind: writebackFeed, feed: feed, enqAt: time.Now()}:
	default:
		logger.Warn("writeback queue full, drop feed", zap.String("feed", feed.ID))
	}
}

func (w *Writeback) EnqueueFeedUpdate(feedID string, updates map[string]interface{}) {
	select {
	case w.ch <- writebackJob{kind: writebackFeedUpdate, feedID: feedID, updates: updates, enqAt: time.Now()}:
	default:
		logger.Warn("writeback queue full, drop feed update", zap.String("feed", feedID))
	}
}

func (w *Writeback) EnqueueFeedDelete(feedIDs []string) {
	select {
	case w.ch <- writebackJob{kind: writebackFeedDelete, feedIDs: feedIDs, enqAt: time.Now()}:
	default:
		logger.Warn("writeback queue full, drop feed delete", zap.Strings("feeds", feedIDs))
	}
}

func (w *Writeback) EnqueueMessage(msg *model.ChatMessage) {
	select {
	case w.ch <- writebackJob{kind: writebackMessage, msg: msg, enqAt: time.Now()}:
	default:
		logger.Warn("writeback queue full, drop message", zap.String("chat", msg.ChatID))
	}
}

// Metrics 返回入队到落库耗时的只读通道
func (w *Writeback) Metrics() <-chan time.Duration { return w.metricsCh }

// QueueLen 返回当前队列长度（采样值）
func (w *Writeback) QueueLen() int { return len(w.ch) }
