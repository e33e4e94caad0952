// Package digest sends an optional scheduled summary of the audit log.
package digest

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"meditbot/internal/audit"
	"meditbot/pkg/logx"
)

type Notifier interface {
	Send(ctx context.Context, text string) error
}

type Config struct {
	Schedule string // cron spec; empty disables the digest
	Timezone string // IANA name; empty means local
}

// Service runs a single cron entry that summarizes the last 24 hours of
// deliveries. It is inert without an audit log or a schedule.
type Service struct {
	audit    *audit.Log
	notifier Notifier
	log      logx.Logger

	c     *cron.Cron
	entry cron.EntryID
}

func New(auditLog *audit.Log, notifier Notifier, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{audit: auditLog, notifier: notifier, log: log}
}

// Apply (re)installs the schedule. Safe to call on config reload; an empty
// schedule removes the entry.
func (s *Service) Apply(cfg Config) error {
	if s.c != nil && s.entry != 0 {
		s.c.Remove(s.entry)
		s.entry = 0
	}

	spec := strings.TrimSpace(cfg.Schedule)
	if spec == "" || s.audit == nil {
		return nil
	}

	if s.c == nil {
		loc := time.Local
		if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
			l, err := time.LoadLocation(tz)
			if err != nil {
				return fmt.Errorf("digest timezone: %w", err)
			}
			loc = l
		}
		s.c = cron.New(cron.WithLocation(loc))
	}

	id, err := s.c.AddFunc(spec, s.run)
	if err != nil {
		return fmt.Errorf("digest schedule: %w", err)
	}
	s.entry = id
	s.log.Info("digest scheduled", logx.String("spec", spec))
	return nil
}

func (s *Service) Start() {
	if s.c != nil {
		s.c.Start()
	}
}

func (s *Service) Stop() {
	if s.c != nil {
		<-s.c.Stop().Done()
	}
}

func (s *Service) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sum, err := s.audit.Summarize(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		s.log.Warn("digest summary failed", logx.Err(err))
		return
	}
	if err := s.notifier.Send(ctx, Render(sum)); err != nil {
		s.log.Warn("digest send failed", logx.Err(err))
	}
}

// Render formats the daily summary as Telegram HTML.
func Render(sum audit.Summary) string {
	var b strings.Builder
	b.WriteString("🗓 <b>Daily scan digest</b>\n\n")
	if sum.Total == 0 {
		b.WriteString("No deliveries in the last 24 hours.")
		return b.String()
	}
	fmt.Fprintf(&b, "<b>Deliveries:</b> %d\n", sum.Total)
	for _, shape := range []string{"case", "order", "unrecognized"} {
		if n := sum.ByShape[shape]; n > 0 {
			fmt.Fprintf(&b, "  %s: %d\n", shape, n)
		}
	}
	if sum.LastCase != "" {
		fmt.Fprintf(&b, "<b>Latest case:</b> %s", html.EscapeString(sum.LastCase))
		if !sum.LastAt.IsZero() {
			fmt.Fprintf(&b, " (%s)", sum.LastAt.Local().Format("2006-01-02 15:04"))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
