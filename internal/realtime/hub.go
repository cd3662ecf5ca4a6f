// Package realtime pushes message.created events to connected participants.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/chathub/internal/domain/message"
	"github.com/geocoder89/chathub/internal/notifications"
	"github.com/geocoder89/chathub/internal/observability"
	"github.com/samber/lo"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	EventMessageCreated = "message.created"

	defaultBuffer = 32
	writeTimeout  = 5 * time.Second
	pingInterval  = 30 * time.Second
)

// ErrDropped reports that no subscription could take an event.
var ErrDropped = errors.New("realtime event dropped")

type Event struct {
	Type string          `json:"type"`
	Data message.Message `json:"data"`
}

// Subscription is one open feed. Events arrive on C until Unsubscribe.
type Subscription struct {
	UserID string
	C      <-chan Event

	ch chan Event
}

// Hub fans events out to every subscription of each recipient. Delivery
// never blocks. A subscriber whose buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
	prom   *observability.Prom
	log    *slog.Logger
}

func NewHub(buffer int, prom *observability.Prom, log *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if log == nil {
		log = slog.Default()
	}

	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
		prom:   prom,
		log:    log,
	}
}

func (h *Hub) Subscribe(userID string) *Subscription {
	ch := make(chan Event, h.buffer)
	sub := &Subscription{UserID: userID, C: ch, ch: ch}

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*Subscription]struct{})
	}
	h.subs[userID][sub] = struct{}{}
	h.mu.Unlock()

	if h.prom != nil {
		h.prom.WSConnections.Inc()
	}

	return sub
}

// Unsubscribe closes sub.C. Calling it twice is safe.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	set, ok := h.subs[sub.UserID]
	if ok {
		if _, ok = set[sub]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(h.subs, sub.UserID)
			}
			close(sub.ch)
		}
	}
	h.mu.Unlock()

	if ok && h.prom != nil {
		h.prom.WSConnections.Dec()
	}
}

// Subscribers is the number of open subscriptions for userID.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// MessageCreated implements notifications.Notifier. It fails with
// ErrDropped when recipients had open subscriptions and none of them had room
// for the event, so a wrapping circuit breaker sees a stalled hub.
func (h *Hub) MessageCreated(ctx context.Context, in notifications.MessageCreatedInput) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ev := Event{Type: EventMessageCreated, Data: in.Message}
	targets, delivered := 0, 0

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, userID := range lo.Uniq(in.Recipients) {
		for sub := range h.subs[userID] {
			targets++
			select {
			case sub.ch <- ev:
				delivered++
			default:
				if h.prom != nil {
					h.prom.WSDropped.Inc()
				}
				h.log.WarnContext(ctx, "realtime subscriber too slow, event dropped",
					"user_id", userID,
					"message_id", in.Message.ID,
				)
			}
		}
	}

	if targets > 0 && delivered == 0 {
		return fmt.Errorf("%w: message %s to %d subscriptions", ErrDropped, in.Message.ID, targets)
	}

	return nil
}

// Serve pumps sub to conn until the client goes away or ctx ends. It owns
// the subscription and unsubscribes on return.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, sub *Subscription) error {
	defer h.Unsubscribe(sub)

	// the feed is push only; CloseRead answers control frames and cancels
	// ctx when the client closes
	ctx = conn.CloseRead(ctx)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := writeEvent(ctx, conn, ev); err != nil {
				return err
			}

		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, ev Event) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	return wsjson.Write(ctx, conn, ev)
}
