package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"

	"meditbot/internal/audit"
	"meditbot/internal/scan"
	"meditbot/pkg/logx"
)

// Notifier is the outbound side of the relay; internal/notify implements it.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Handler orchestrates one webhook delivery:
// received -> normalized -> (recordable? -> stored) -> notified -> acked.
// Nothing below this boundary is allowed to raise past it uncaught.
type Handler struct {
	Store    *scan.Store
	Notifier Notifier
	Audit    *audit.Log // nil disables auditing
	Opts     scan.Options
	Log      logx.Logger

	// Now is the capture-time clock; overridable in tests.
	Now func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Health serves the static liveness body.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "meditbot is running"})
}

// Webhook handles POST /webhook/medit.
//
// Status contract (the upstream retries on non-2xx, so degraded paths still
// ack success):
//   - 200 {"status":"success",...} for recognized AND unrecognized shapes;
//   - 400 {"status":"error",...} only when the body is not a JSON object;
//   - 500 {"status":"error"} only from the panic-recovery boundary.
func (h *Handler) Webhook(c *gin.Context) {
	ctx := c.Request.Context()

	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "unreadable body"})
		return
	}

	defer func() {
		if r := recover(); r != nil {
			detail := fmt.Sprintf("%v", r)
			h.Log.Error("webhook processing panicked",
				logx.String("panic", detail),
				logx.Stack(string(debug.Stack())))
			// Best-effort operator notification; its own failure is swallowed.
			if h.Notifier != nil {
				_ = h.Notifier.Send(ctx, scan.ErrorNotice(raw, detail))
			}
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error"})
		}
	}()

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil || payload == nil {
		h.Log.Warn("webhook body is not a JSON object", logx.Err(err))
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "body must be a JSON object"})
		return
	}

	receivedAt := h.now()
	ev, extras, shape := scan.Normalize(payload, receivedAt, h.Opts)
	h.Log.Info("webhook received",
		logx.String("shape", shape.String()),
		logx.String("case", ev.CaseName))

	if err := h.Audit.Append(ctx, audit.Entry{
		At:          receivedAt,
		Shape:       shape.String(),
		CaseName:    ev.CaseName,
		PatientName: ev.PatientName,
		OccurredAt:  ev.OccurredAt,
		Payload:     string(raw),
	}); err != nil {
		h.Log.Warn("audit append failed", logx.Err(err))
	}

	recorded := false
	if ev.Recordable() {
		if _, err := h.Store.Record(ev); err != nil {
			// Write failures are recoverable: the notification still goes out,
			// but the ack must not claim the event was persisted.
			h.Log.Warn("history record failed", logx.Err(err))
		} else {
			recorded = true
		}
	}

	if h.Notifier != nil {
		if err := h.Notifier.Send(ctx, scan.Notification(ev, shape, extras, raw)); err != nil {
			h.Log.Warn("webhook notification failed", logx.Err(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"recognized": shape != scan.ShapeUnrecognized,
		"recorded":   recorded,
	})
}
