package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ritams/smashit-sub000/internal/domain"
)

// EventsPubSub broadcasts booking decisions to org subscribers. Delivery is
// fire-and-forget: a failed publish is the caller's to log, never to fail a
// committed booking over.
type EventsPubSub struct {
	rdb *redis.Client
}

func NewEventsPubSub(rdb *redis.Client) *EventsPubSub {
	return &EventsPubSub{rdb: rdb}
}

func (p *EventsPubSub) Publish(ctx context.Context, ev domain.BookingEvent) error {
	ev.TsUnix = time.Now().Unix()

	b, _ := json.Marshal(ev)

	return p.rdb.Publish(ctx, ChannelOrgEvents(ev.OrgID), b).Err()
}

// Subscribe delivers events published for one org until ctx is cancelled.
func (p *EventsPubSub) Subscribe(ctx context.Context, orgID int64, handler func(ctx context.Context, ev domain.BookingEvent)) error {
	sub := p.rdb.Subscribe(ctx, ChannelOrgEvents(orgID))
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var ev domain.BookingEvent
			if err := json.Unmarshal([]byte(m.Payload), &ev); err == nil && ev.Type != "" {
				handler(ctx, ev)
			}
		}
	}
}
