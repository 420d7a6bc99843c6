// Package notify delivers push notifications to device registration tokens.
// Delivery is best-effort; callers log and drop failures.
package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Notification is the payload sent to every token.
type Notification struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Sender delivers a notification to device tokens.
type Sender interface {
	Send(ctx context.Context, tokens []string, n Notification) error
}

// LogSender writes notifications to the log instead of delivering them.
type LogSender struct {
	Log *zap.Logger
}

func (s LogSender) Send(ctx context.Context, tokens []string, n Notification) error {
	s.Log.Info("notification",
		zap.Int("tokens", len(tokens)),
		zap.String("title", n.Title),
		zap.Any("data", n.Data),
	)
	return nil
}

// Sent is one recorded Send call.
type Sent struct {
	Tokens       []string
	Notification Notification
}

// Recorder keeps every Send call in memory.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
	fail error
}

// FailWith makes subsequent sends return err without recording them.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = err
}

func (r *Recorder) Send(ctx context.Context, tokens []string, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.sent = append(r.sent, Sent{Tokens: append([]string(nil), tokens...), Notification: n})
	return nil
}

// Sent returns the recorded calls in order.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// Reset forgets recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}
