package host

import (
	"context"
	"sync"
)

// SentMessage is one SendMessage call captured by a Recorder.
type SentMessage struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// Recorder is an in-memory Host that keeps every sent message.
type Recorder struct {
	mu   sync.Mutex
	sent []SentMessage
	kv   map[string]string
}

func NewRecorder() *Recorder {
	return &Recorder{kv: make(map[string]string)}
}

func (r *Recorder) SendMessage(_ context.Context, chatID int64, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, SentMessage{ChatID: chatID, Text: text})
}

func (r *Recorder) StoreJSON(_ context.Context, key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kv[key] = value
}

func (r *Recorder) ReadJSON(_ context.Context, key string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.kv[key]
}

// Sent returns a copy of the messages sent so far.
func (r *Recorder) Sent() []SentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SentMessage(nil), r.sent...)
}

// Reset drops recorded messages and stored values.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
	r.kv = make(map[string]string)
}
