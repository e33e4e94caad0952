// Package bot dispatches chat commands coming from the Telegram adapter.
package bot

import (
	"context"
	"strings"
	"time"

	"meditbot/internal/scan"
	kit "meditbot/internal/transport"
	"meditbot/pkg/logx"
)

// RefusalText is sent verbatim when a non-authorized chat invokes a command.
const RefusalText = "This command is only available in the authorized chat."

// Router consumes transport updates and serves the /latest command.
// The only access-controlled operation in the system lives here: the
// invoking chat must equal the configured chat, otherwise the handler
// refuses without touching storage.
type Router struct {
	adapter kit.Adapter
	store   *scan.Store
	chatID  int64
	loc     *time.Location
	log     logx.Logger
}

func New(adapter kit.Adapter, store *scan.Store, chatID int64, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{adapter: adapter, store: store, chatID: chatID, loc: time.Local, log: log}
}

// Run blocks consuming updates until ctx is done or the channel closes.
func (r *Router) Run(ctx context.Context, updates <-chan kit.Update) {
	r.log.Info("command router started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info("command router stopped")
			return
		case up, ok := <-updates:
			if !ok {
				r.log.Info("command router stopped (updates channel closed)")
				return
			}
			r.route(ctx, up)
		}
	}
}

func (r *Router) route(ctx context.Context, up kit.Update) {
	if up.Message == nil {
		return
	}
	msg := up.Message

	cmd, ok := parseCommand(msg.Text)
	if !ok {
		return
	}

	switch cmd {
	case "latest":
		r.handleLatest(ctx, msg)
	default:
		// Unknown commands are ignored; this bot is not chatty.
	}
}

func (r *Router) handleLatest(ctx context.Context, msg *kit.Message) {
	reply := kit.ChatTarget{ChatID: msg.ChatID}

	if msg.ChatID != r.chatID {
		r.log.Warn("latest command refused",
			logx.Int64("chat_id", msg.ChatID),
			logx.Int64("from_id", msg.FromID))
		_, _ = r.adapter.SendText(ctx, reply, RefusalText, nil)
		return
	}

	list, err := r.store.Load()
	if err != nil {
		r.log.Warn("history unreadable", logx.Err(err))
	}

	_, err = r.adapter.SendText(ctx, reply, scan.HistoryListing(list, r.loc), &kit.SendOptions{
		ParseMode:      kit.ParseModeHTML,
		DisablePreview: true,
	})
	if err != nil {
		r.log.Warn("latest reply failed", logx.Err(err))
	}
}

// parseCommand extracts the bare command word from a "/cmd" or "/cmd@bot"
// message. Commands with arguments are not used by this bot.
func parseCommand(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	word := strings.Fields(text)[0]
	word = strings.TrimPrefix(word, "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	if word == "" {
		return "", false
	}
	return word, true
}
