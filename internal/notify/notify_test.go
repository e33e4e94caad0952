package notify

import (
	"context"
	"errors"
	"testing"

	kit "meditbot/internal/transport"
	"meditbot/pkg/logx"
)

type fakeAdapter struct {
	texts []string
	to    []int64
	opts  []*kit.SendOptions
	err   error
}

func (a *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (a *fakeAdapter) Stop(context.Context) error                    { return nil }

func (a *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	a.texts = append(a.texts, text)
	a.to = append(a.to, to.ChatID)
	a.opts = append(a.opts, opt)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: 1}, a.err
}

func TestSendTargetsConfiguredChat(t *testing.T) {
	adapter := &fakeAdapter{}
	s := New(adapter, 42, 10, logx.Nop())

	if err := s.Send(context.Background(), "<b>hi</b>"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(adapter.texts) != 1 || adapter.texts[0] != "<b>hi</b>" {
		t.Fatalf("sent = %v", adapter.texts)
	}
	if adapter.to[0] != 42 {
		t.Fatalf("chat = %d", adapter.to[0])
	}
	if adapter.opts[0] == nil || adapter.opts[0].ParseMode != kit.ParseModeHTML || !adapter.opts[0].DisablePreview {
		t.Fatalf("opts = %+v", adapter.opts[0])
	}
}

func TestSendPropagatesAdapterError(t *testing.T) {
	adapter := &fakeAdapter{err: errors.New("flood control")}
	s := New(adapter, 42, 10, logx.Nop())
	if err := s.Send(context.Background(), "x"); err == nil {
		t.Fatal("expected adapter error")
	}
}

func TestSendHonorsCancelledContext(t *testing.T) {
	adapter := &fakeAdapter{}
	s := New(adapter, 42, 1, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Burst is consumed first; the second send must block on the limiter and
	// observe the cancelled context.
	_ = s.Send(context.Background(), "first")
	if err := s.Send(ctx, "second"); err == nil {
		t.Fatal("expected context error from the limiter")
	}
	if len(adapter.texts) != 1 {
		t.Fatalf("sent = %v", adapter.texts)
	}
}
