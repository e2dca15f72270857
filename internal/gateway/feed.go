package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/flemzord/jobwatch/pkg/jobs"
)

const (
	feedWriteTimeout = 10 * time.Second
	feedHistory      = 50
)

// Feed fans incidents out to WebSocket subscribers and keeps the most
// recent ones for the API. A subscriber whose queue is full is dropped.
type Feed struct {
	logger *slog.Logger
	buffer int

	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	recent []jobs.Incident
	closed bool
}

type subscriber struct {
	msgs chan []byte
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.msgs) })
}

// NewFeed creates a feed queuing up to buffer messages per subscriber.
func NewFeed(logger *slog.Logger, buffer int) *Feed {
	if buffer <= 0 {
		buffer = 16
	}
	return &Feed{
		logger: logger,
		buffer: buffer,
		subs:   make(map[*subscriber]struct{}),
	}
}

// Publish sends inc to every subscriber without blocking.
func (f *Feed) Publish(inc jobs.Incident) {
	data, err := json.Marshal(inc)
	if err != nil {
		f.logger.Error("gateway: encode incident", "error", err)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.recent = append(f.recent, inc)
	if len(f.recent) > feedHistory {
		f.recent = f.recent[len(f.recent)-feedHistory:]
	}
	for s := range f.subs {
		select {
		case s.msgs <- data:
		default:
			f.logger.Warn("gateway: feed subscriber too slow, dropping")
			delete(f.subs, s)
			s.close()
		}
	}
}

// Recent returns up to the last 50 published incidents, newest first.
func (f *Feed) Recent() []jobs.Incident {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]jobs.Incident, len(f.recent))
	for i, inc := range f.recent {
		out[len(f.recent)-1-i] = inc
	}
	return out
}

// Subscribers returns the number of connected subscribers.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *Feed) subscribe() (*subscriber, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, false
	}
	s := &subscriber{msgs: make(chan []byte, f.buffer)}
	f.subs[s] = struct{}{}
	return s, true
}

func (f *Feed) unsubscribe(s *subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, s)
	s.close()
}

// Close disconnects every subscriber. Later publishes are ignored.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for s := range f.subs {
		delete(f.subs, s)
		s.close()
	}
}

// ServeHTTP upgrades the request to a WebSocket and streams incidents as
// JSON text messages until either side goes away.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		f.logger.Error("gateway: websocket accept failed", "error", err)
		return
	}
	defer func() {
		_ = conn.Close(websocket.StatusInternalError, "unexpected close")
	}()

	sub, ok := f.subscribe()
	if !ok {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer f.unsubscribe(sub)

	// The feed is one-way; CloseRead handles control frames and cancels
	// ctx when the client disconnects.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-sub.msgs:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "feed closed")
				return
			}
			if err := f.write(ctx, conn, data); err != nil {
				f.logger.Debug("gateway: feed write failed", "error", err)
				return
			}
		}
	}
}

func (f *Feed) write(ctx context.Context, conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, feedWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
