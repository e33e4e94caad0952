package scan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"
)

// Rendering is pure: these functions never touch the store or the network.
// Output is Telegram HTML; all payload-derived text passes through esc().

const (
	unknownField = "unknown"
	unknownTime  = "unknown time"

	// EmptyHistoryText is the distinct reply for an empty history list.
	EmptyHistoryText = "Scan history is empty."
)

// Notification renders the chat message for one webhook delivery.
// raw is the original request body; it is embedded only for unrecognized
// shapes so an operator can diagnose new upstream formats.
func Notification(ev Event, shape Shape, x Extras, raw []byte) string {
	switch shape {
	case ShapeBareCase:
		var b strings.Builder
		b.WriteString("✅ " + bold("New case received") + "\n\n")
		b.WriteString(bold("Case:") + " " + esc(orUnknown(ev.CaseName)) + "\n")
		b.WriteString(bold("Patient:") + " " + esc(orUnknown(ev.PatientName)) + "\n")
		b.WriteString(bold("Time:") + " " + esc(displayTime(ev.OccurredAt, time.Local)))
		return b.String()

	case ShapeOrderCase:
		var b strings.Builder
		b.WriteString("📦 " + bold("New order received") + "\n\n")
		b.WriteString(bold("Case:") + " " + esc(orUnknown(ev.CaseName)) + "\n")
		b.WriteString(bold("Patient:") + " " + esc(orUnknown(ev.PatientName)) + "\n")
		b.WriteString(bold("Order:") + " " + code(orUnknown(x.OrderNumber)) + "\n")
		b.WriteString(bold("Seller:") + " " + esc(orUnknown(x.SellerName)) + "\n")
		b.WriteString(bold("Time:") + " " + esc(displayTime(ev.OccurredAt, time.Local)))
		return b.String()

	default:
		return "⚠️ " + bold("Unrecognized Medit Link event") + "\n" +
			"The payload matched no known shape and was not recorded.\n" +
			pre(prettyJSON(raw))
	}
}

// ErrorNotice renders the operator notification for an unexpected failure
// while processing a webhook.
func ErrorNotice(raw []byte, detail string) string {
	return "🚨 " + bold("Webhook processing failed") + "\n" +
		bold("Error:") + " " + esc(detail) + "\n" +
		pre(prettyJSON(raw))
}

// HistoryListing renders the numbered history reply, newest first, with
// times converted to loc for display.
func HistoryListing(list []Event, loc *time.Location) string {
	if len(list) == 0 {
		return EmptyHistoryText
	}
	if loc == nil {
		loc = time.Local
	}

	var b strings.Builder
	b.WriteString(bold(fmt.Sprintf("Last %d received scans:", len(list))) + "\n")
	for i, ev := range list {
		b.WriteString(fmt.Sprintf("\n%d. %s\n", i+1, bold(orUnknown(ev.CaseName))))
		b.WriteString("   Patient: " + esc(orUnknown(ev.PatientName)) + "\n")
		b.WriteString("   Time: " + esc(displayTime(ev.OccurredAt, loc)) + "\n")
	}
	return b.String()
}

// displayTime converts a stored timestamp to the viewer's zone. Strings that
// fail to parse degrade to a placeholder instead of aborting rendering.
func displayTime(s string, loc *time.Location) string {
	if s == "" {
		return unknownTime
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
	}
	if err != nil {
		return unknownTime
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("2006-01-02 15:04:05")
}

func prettyJSON(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return unknownField
	}
	return s
}

func esc(s string) string  { return html.EscapeString(s) }
func bold(s string) string { return "<b>" + esc(s) + "</b>" }
func code(s string) string { return "<code>" + esc(s) + "</code>" }
func pre(s string) string  { return "<pre>" + html.EscapeString(s) + "</pre>" }
