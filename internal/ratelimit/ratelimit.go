package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// maxTracked bounds the number of per-chat limiters kept in memory.
const maxTracked = 10000

// Limiter enforces a global send rate plus a per-chat rate, both token buckets.
// A non-positive rate disables that limit.
type Limiter struct {
	mu      sync.Mutex
	global  *rate.Limiter
	perChat rate.Limit
	burst   int
	chats   map[int64]*rate.Limiter
}

// New creates a Limiter. The Bot API allows roughly 30 messages per second
// overall and one per second per chat.
func New(globalRPS, perChatRPS float64) *Limiter {
	return &Limiter{
		global:  rate.NewLimiter(toLimit(globalRPS), burstFor(globalRPS)),
		perChat: toLimit(perChatRPS),
		burst:   burstFor(perChatRPS),
		chats:   make(map[int64]*rate.Limiter),
	}
}

// Wait blocks until a message to chatID may be sent or ctx is done.
func (l *Limiter) Wait(ctx context.Context, chatID int64) error {
	if err := l.chat(chatID).Wait(ctx); err != nil {
		return err
	}
	return l.global.Wait(ctx)
}

// Allow reports whether a message to chatID may be sent now.
func (l *Limiter) Allow(chatID int64) bool {
	return l.chat(chatID).Allow() && l.global.Allow()
}

func (l *Limiter) chat(chatID int64) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lim, ok := l.chats[chatID]; ok {
		return lim
	}
	if len(l.chats) >= maxTracked {
		l.prune()
	}
	lim := rate.NewLimiter(l.perChat, l.burst)
	l.chats[chatID] = lim
	return lim
}

// prune drops limiters whose bucket has refilled; they carry no state.
func (l *Limiter) prune() {
	for id, lim := range l.chats {
		if lim.Tokens() >= float64(l.burst) {
			delete(l.chats, id)
		}
	}
}

func toLimit(rps float64) rate.Limit {
	if rps <= 0 {
		return rate.Inf
	}
	return rate.Limit(rps)
}

func burstFor(rps float64) int {
	if rps < 1 {
		return 1
	}
	return int(rps)
}
