package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/feedpulse/pkg/logger"
)

// ErrIdleTimeout closes sessions whose inbound side went silent past the
// absolute deadline, a liveness guard against half-open sockets.
var ErrIdleTimeout = errors.New("session idle timeout")

// State of a session. Transitions are one-way:
// Connecting -> Active -> Closing -> Closed.
type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosing
	StateClosed
)

// Transport is the blocking read/write surface of one live connection.
type Transport interface {
	Read() ([]byte, error)
	Write(data []byte) error
	Ping() error
	Close() error
}

// EventStream is a subscribed topic stream; cache.Subscription satisfies it.
type EventStream interface {
	Events() <-chan *redis.Message
	Close() error
}

// Handler processes one validated event for a session.
type Handler func(ctx context.Context, s *Session, ev Event) error

// SessionConfig wires a transport to a subscription and a handler table.
type SessionConfig struct {
	UserID    string
	Transport Transport

	// OnConnect runs entering Active (e.g. mark online, compute fan-out
	// targets). OnDisconnect is guaranteed to run exactly once after a
	// successful OnConnect.
	OnConnect    func(ctx context.Context) error
	OnDisconnect func(ctx context.Context)

	// Subscribe yields the outbound topic stream for this session.
	Subscribe func(ctx context.Context) (EventStream, error)

	Handlers map[EventType]Handler

	// ProbeAfter idle triggers a heartbeat probe; DeadAfter idle force-closes.
	// Zero ProbeAfter disables the liveness guard.
	ProbeAfter time.Duration
	DeadAfter  time.Duration
}

// Session coordinates one connection's lifecycle: two supervised loops joined
// by first-completed, with single-shot symmetric teardown.
type Session struct {
	cfg SessionConfig

	state        atomic.Int32
	lastActivity atomic.Int64

	cancel   context.CancelFunc
	sub      EventStream
	teardown sync.Once
}

func NewSession(cfg SessionConfig) *Session {
	s := &Session{cfg: cfg}
	s.state.Store(int32(StateConnecting))
	s.touch()
	return s
}

func (s *Session) UserID() string { return s.cfg.UserID }
func (s *Session) State() State   { return State(s.state.Load()) }

func (s *Session) touch() { s.lastActivity.Store(time.Now().UnixNano()) }

func (s *Session) idle() time.Duration {
	return time.Since(time.Unix(0, s.lastActivity.Load()))
}

// Write serializes an event onto the transport.
func (s *Session) Write(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.cfg.Transport.Write(data)
}

// Run drives the session until the transport closes, the subscription ends,
// or the idle deadline passes. It blocks until teardown finished and both
// loops returned.
func (s *Session) Run(ctx context.Context) error {
	if err := s.cfg.OnConnect(ctx); err != nil {
		s.state.Store(int32(StateClosed))
		return fmt.Errorf("connect hook: %w", err)
	}

	sub, err := s.cfg.Subscribe(ctx)
	if err != nil {
		s.cfg.OnDisconnect(ctx)
		s.state.Store(int32(StateClosed))
		return fmt.Errorf("subscribe: %w", err)
	}
	s.sub = sub

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state.Store(int32(StateActive))
	s.touch()

	// both loops report here; buffered so neither blocks on a decided race
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); errs <- s.inboundLoop(ctx) }()
	go func() { defer wg.Done(); errs <- s.outboundLoop(ctx) }()

	cause := s.supervise(ctx, errs)
	s.close(ctx, cause)
	wg.Wait()
	s.state.Store(int32(StateClosed))

	if errors.Is(cause, context.Canceled) {
		return nil
	}
	return cause
}

// supervise waits for the first loop failure or the idle deadline.
func (s *Session) supervise(ctx context.Context, errs <-chan error) error {
	var tick <-chan time.Time
	if s.cfg.ProbeAfter > 0 {
		interval := s.cfg.ProbeAfter / 2
		if interval < time.Second {
			interval = time.Second
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case err := <-errs:
			return err
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
			idle := s.idle()
			if s.cfg.DeadAfter > 0 && idle > s.cfg.DeadAfter {
				return ErrIdleTimeout
			}
			if idle > s.cfg.ProbeAfter {
				if err := s.cfg.Transport.Ping(); err != nil {
					return fmt.Errorf("heartbeat probe: %w", err)
				}
			}
		}
	}
}

// close runs the teardown critical section exactly once, even when both
// loops fail simultaneously or Close races Run.
func (s *Session) close(ctx context.Context, cause error) {
	s.teardown.Do(func() {
		s.state.Store(int32(StateClosing))
		if cause != nil && !errors.Is(cause, context.Canceled) {
			logger.Debug("session closing", zap.String("user", s.cfg.UserID), zap.Error(cause))
		}
		if s.cancel != nil {
			s.cancel()
		}
		_ = s.cfg.Transport.Close() // unblocks the inbound read
		if s.sub != nil {
			_ = s.sub.Close() // closes the outbound stream
		}
		// the hook still has presence writes to land; session cancellation
		// must not leak into it
		s.cfg.OnDisconnect(context.WithoutCancel(ctx))
	})
}

// Close force-terminates the session from outside.
func (s *Session) Close() { s.close(context.Background(), nil) }

// inboundLoop reads structured events off the transport. Protocol violations
// are answered with error frames and never terminate the connection; only a
// transport-level failure ends the loop.
func (s *Session) inboundLoop(ctx context.Context) error {
	for {
		data, err := s.cfg.Transport.Read()
		if err != nil {
			return fmt.Errorf("transport read: %w", err)
		}
		s.touch()
		s.dispatch(ctx, data)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// outboundLoop forwards the subscribed topic stream through the same
// validation and handler table as inbound frames.
func (s *Session) outboundLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-s.sub.Events():
			if !ok {
				return errors.New("subscription closed")
			}
			s.dispatch(ctx, []byte(msg.Payload))
		}
	}
}

// dispatch validates one frame and runs its handler, isolating handler
// failures into error frames.
func (s *Session) dispatch(ctx context.Context, data []byte) {
	ev, err := ParseEvent(data)
	if err != nil {
		var pe *ProtocolError
		if errors.As(err, &pe) {
			_ = s.cfg.Transport.Write(ErrorFrame(pe.Detail))
		}
		return
	}
	handler, ok := s.cfg.Handlers[ev.Type]
	if !ok {
		_ = s.cfg.Transport.Write(ErrorFrame(fmt.Sprintf("Unhandled event type: '%s'.", ev.Type)))
		return
	}
	if err := handler(ctx, s, ev); err != nil {
		logger.Warn("event handler failed", zap.String("user", s.cfg.UserID), zap.String("event", string(ev.Type)), zap.Error(err))
		_ = s.cfg.Transport.Write(ErrorFrame(err.Error()))
	}
}
