package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/ashita-ai/wyrmgate/internal/model"
	"github.com/ashita-ai/wyrmgate/internal/storage"
)

// maxNotifyPayload stays under the 8000 byte Postgres NOTIFY limit.
const maxNotifyPayload = 7900

// Notifier is the cross-instance channel behind a Broker. *storage.DB
// implements it with Postgres LISTEN/NOTIFY.
type Notifier interface {
	Listen(ctx context.Context, channel string) error
	WaitForNotification(ctx context.Context) (string, error)
	Notify(ctx context.Context, channel, payload string) error
}

// notification is the wire form of a published batch.
type notification struct {
	UserID string            `json:"user_id"`
	Events []model.GameEvent `json:"events"`
}

// Broker fans game events out to the SSE subscribers of each user. With a
// Notifier, events go through Postgres so subscribers connected to any
// instance receive them; without one, delivery is process-local.
type Broker struct {
	notifier Notifier
	logger   *slog.Logger

	mu          sync.RWMutex
	subscribers map[string]map[chan []byte]struct{}
}

// NewBroker creates a broker. notifier may be nil. When it is set, call
// Start to begin listening.
func NewBroker(notifier Notifier, logger *slog.Logger) *Broker {
	return &Broker{
		notifier:    notifier,
		logger:      logger,
		subscribers: make(map[string]map[chan []byte]struct{}),
	}
}

// Distributed reports whether events cross instances.
func (b *Broker) Distributed() bool { return b.notifier != nil }

// Start listens for notifications until ctx is cancelled. It blocks, so call
// it in a goroutine. Without a notifier it returns immediately.
func (b *Broker) Start(ctx context.Context) {
	if b.notifier == nil {
		return
	}
	if err := b.notifier.Listen(ctx, storage.ChannelGameEvents); err != nil {
		b.logger.Error("broker: listen", "error", err)
		return
	}
	b.logger.Info("broker: listening for notifications", "channel", storage.ChannelGameEvents)

	for {
		payload, err := b.notifier.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.Warn("broker: notification error, retrying", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		var n notification
		if err := json.Unmarshal([]byte(payload), &n); err != nil {
			b.logger.Warn("broker: malformed notification", "error", err)
			continue
		}
		b.deliver(n.UserID, n.Events)
	}
}

// Publish sends events to the user's subscribers. It implements
// orchestrator.Publisher.
func (b *Broker) Publish(ctx context.Context, userID string, events []model.GameEvent) {
	if len(events) == 0 {
		return
	}
	if b.notifier != nil {
		payload, err := json.Marshal(notification{UserID: userID, Events: events})
		switch {
		case err != nil:
			b.logger.Warn("broker: encode notification", "user_id", userID, "error", err)
		case len(payload) > maxNotifyPayload:
			b.logger.Debug("broker: payload too large for notify, delivering locally", "user_id", userID)
		default:
			nerr := b.notifier.Notify(ctx, storage.ChannelGameEvents, string(payload))
			if nerr == nil {
				return
			}
			b.logger.Warn("broker: notify failed, delivering locally", "user_id", userID, "error", nerr)
		}
	}
	b.deliver(userID, events)
}

// Subscribe returns a channel receiving SSE-formatted events for userID. The
// caller must call Unsubscribe when done.
func (b *Broker) Subscribe(userID string) chan []byte {
	ch := make(chan []byte, 64)
	b.mu.Lock()
	set, ok := b.subscribers[userID]
	if !ok {
		set = make(map[chan []byte]struct{})
		b.subscribers[userID] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel and closes it.
func (b *Broker) Unsubscribe(userID string, ch chan []byte) {
	b.mu.Lock()
	if set, ok := b.subscribers[userID]; ok {
		delete(set, ch)
		if len(set) == 0 {
			delete(b.subscribers, userID)
		}
	}
	b.mu.Unlock()
	close(ch)
}

// deliver sends events to every subscriber of userID. A subscriber whose
// buffer is full misses the event rather than blocking the others.
func (b *Broker) deliver(userID string, events []model.GameEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	set := b.subscribers[userID]
	if len(set) == 0 {
		return
	}
	for _, ev := range events {
		frame, err := sseFrame(eventToolResult, ev)
		if err != nil {
			b.logger.Warn("broker: encode event", "type", ev.Type, "error", err)
			continue
		}
		for ch := range set {
			select {
			case ch <- frame:
			default:
			}
		}
	}
}
