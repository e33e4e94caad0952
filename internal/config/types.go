package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Webhook  WebhookConfig  `json:"webhook"`
	History  HistoryConfig  `json:"history"`
	Audit    AuditConfig    `json:"audit,omitempty"`
	Digest   DigestConfig   `json:"digest,omitempty"`
	Logging  LoggingConfig  `json:"logging"`
}

type TelegramConfig struct {
	// Token and ChatID can also come from the BOT_TOKEN / CHAT_ID
	// environment variables, which take precedence over the file.
	Token  string `json:"token"`
	ChatID int64  `json:"chat_id"`

	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`

	// RatePerSec caps outbound notifications per second.
	RatePerSec int `json:"rate_per_sec,omitempty"`

	// PatientField selects which patient field becomes the display name:
	// "name" (default) or "uuid". Upstream revisions disagree here.
	PatientField string `json:"patient_field,omitempty"`
}

type WebhookConfig struct {
	Addr string `json:"addr,omitempty"` // default ":8080"
}

type HistoryConfig struct {
	Path string `json:"path,omitempty"` // default "./scan_history.json"
}

// AuditConfig controls the optional SQLite delivery log.
// An empty path disables it.
type AuditConfig struct {
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

// DigestConfig controls the optional daily summary message.
// An empty schedule disables it.
type DigestConfig struct {
	Schedule string `json:"schedule,omitempty"` // cron spec, e.g. "0 9 * * *"
	Timezone string `json:"timezone,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

func (c *Config) applyDefaults() {
	if c.Webhook.Addr == "" {
		c.Webhook.Addr = ":8080"
	}
	if c.History.Path == "" {
		c.History.Path = "./scan_history.json"
	}
	if c.Telegram.RatePerSec <= 0 {
		c.Telegram.RatePerSec = 1
	}
}

// applyEnv overlays the original deployment's environment variables on top
// of the file. It runs on every (re)parse so reloads keep the overrides.
func (c *Config) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv("BOT_TOKEN")); v != "" {
		c.Telegram.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("CHAT_ID")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errors.New("CHAT_ID must be an integer chat id")
		}
		c.Telegram.ChatID = id
	}
	return nil
}

// Validate enforces the fatal-at-startup configuration contract.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token (or BOT_TOKEN) is required")
	}
	if c.Telegram.ChatID == 0 {
		return errors.New("telegram.chat_id (or CHAT_ID) is required")
	}
	if pf := c.Telegram.PatientField; pf != "" && pf != "name" && pf != "uuid" {
		return errors.New(`telegram.patient_field must be "name" or "uuid"`)
	}
	if _, err := c.PollTimeout(); err != nil {
		return err
	}
	if _, err := c.AuditBusyTimeout(); err != nil {
		return err
	}
	return nil
}

func (c *Config) PollTimeout() (time.Duration, error) {
	return parseDuration("telegram.poll_timeout", c.Telegram.PollTimeout)
}

func (c *Config) AuditBusyTimeout() (time.Duration, error) {
	return parseDuration("audit.busy_timeout", c.Audit.BusyTimeout)
}

func parseDuration(field, v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.New(field + " is not a valid duration: " + v)
	}
	return d, nil
}
