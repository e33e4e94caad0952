// Package notify owns all outbound traffic to the configured chat.
package notify

import (
	"context"

	"golang.org/x/time/rate"

	kit "meditbot/internal/transport"
	"meditbot/pkg/logx"
)

// Service sends HTML messages to the single configured chat. Sends are rate
// limited so a webhook burst cannot trip Telegram's flood control; the
// limiter waits (bounded by ctx) instead of dropping.
type Service struct {
	adapter kit.Adapter
	target  kit.ChatTarget
	limiter *rate.Limiter
	log     logx.Logger
}

func New(adapter kit.Adapter, chatID int64, ratePerSec int, log logx.Logger) *Service {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		adapter: adapter,
		target:  kit.ChatTarget{ChatID: chatID},
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
		log:     log,
	}
}

// Send delivers one HTML message. Failures are logged and returned; callers
// treat them as recoverable and must never let them fail a webhook ack.
func (s *Service) Send(ctx context.Context, text string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := s.adapter.SendText(ctx, s.target, text, &kit.SendOptions{
		ParseMode:      kit.ParseModeHTML,
		DisablePreview: true,
	})
	if err != nil {
		s.log.Warn("notification send failed", logx.Int64("chat_id", s.target.ChatID), logx.Err(err))
		return err
	}
	s.log.Debug("notification sent", logx.Int64("chat_id", s.target.ChatID))
	return nil
}
