package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kirinyoku/beachclub/internal/domain"
	"github.com/redis/go-redis/v9"
)

// DatesPubSub fans out "the floor plan of these dates changed" so that open
// floor-plan views can refresh.
type DatesPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewDatesPubSub(rdb *redis.Client) *DatesPubSub {
	return &DatesPubSub{
		rdb:     rdb,
		channel: ChannelDatesChanged(),
	}
}

type datesChangedMsg struct {
	Type   string   `json:"type"`
	Dates  []string `json:"dates"`
	TsUnix int64    `json:"ts_unix"`
}

func (p *DatesPubSub) PublishDatesChanged(ctx context.Context, dates []time.Time) error {
	if len(dates) == 0 {
		return nil
	}

	msg := datesChangedMsg{
		Type:   "dates_changed",
		TsUnix: time.Now().Unix(),
	}
	for _, d := range domain.UniqueDays(dates) {
		msg.Dates = append(msg.Dates, domain.DateKey(d))
	}

	b, _ := json.Marshal(msg)

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

func (p *DatesPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, date time.Time)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
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
			var ev datesChangedMsg
			if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
				continue
			}
			for _, s := range ev.Dates {
				if d, err := domain.ParseDate(s); err == nil {
					handler(ctx, d)
				}
			}
		}
	}
}
