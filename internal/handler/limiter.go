package handler

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ChatLimiter throttles inbound messages per chat so one customer cannot
// flood the oracle.
type ChatLimiter struct {
	mu    sync.Mutex
	chats map[int64]*chatVisitor
	limit rate.Limit
	burst int
	now   func() time.Time
}

type chatVisitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewChatLimiter allows perMinute messages per chat with the given burst.
// A non-positive perMinute disables limiting and returns nil.
func NewChatLimiter(perMinute, burst int) *ChatLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &ChatLimiter{
		chats: make(map[int64]*chatVisitor),
		limit: rate.Every(time.Minute / time.Duration(perMinute)),
		burst: burst,
		now:   time.Now,
	}
}

// Allow reports whether one more message from chatID may be processed now.
// A nil limiter allows everything.
func (l *ChatLimiter) Allow(chatID int64) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.chats[chatID]
	if !ok {
		v = &chatVisitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.chats[chatID] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Cleanup forgets chats idle for longer than maxIdle and returns how many
// were removed.
func (l *ChatLimiter) Cleanup(maxIdle time.Duration) int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for id, v := range l.chats {
		if now.Sub(v.lastSeen) > maxIdle {
			delete(l.chats, id)
			removed++
		}
	}
	return removed
}
