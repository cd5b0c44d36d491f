package events

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSubscriber logs every event at debug level until ctx ends.
func LogSubscriber(ctx context.Context, b *Bus, log zerolog.Logger, buffer int) {
	ch, cancel := b.Subscribe(buffer)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			e := log.Debug().Str("kind", string(evt.Kind)).Str("user_id", evt.UserID)
			if evt.Level > 0 {
				e = e.Int("level", evt.Level)
			}
			if evt.AchievementID != "" {
				e = e.Str("achievement_id", evt.AchievementID)
			}
			e.Msg("event")
		}
	}
}
