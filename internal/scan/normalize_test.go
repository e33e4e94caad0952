package scan

import (
	"encoding/json"
	"testing"
	"time"
)

func decodePayload(t *testing.T, body string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return m
}

func TestNormalizeBareCase(t *testing.T) {
	receivedAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	payload := decodePayload(t, `{
		"case": {"name": "Case1", "patient": {"name": "John"}},
		"dateScanned": "2024-01-01T10:00:00Z"
	}`)

	ev, _, shape := Normalize(payload, receivedAt, Options{})
	if shape != ShapeBareCase {
		t.Fatalf("shape = %v, want bare case", shape)
	}
	if ev.CaseName != "Case1" {
		t.Fatalf("CaseName = %q", ev.CaseName)
	}
	if ev.PatientName != "John" {
		t.Fatalf("PatientName = %q", ev.PatientName)
	}
	if ev.OccurredAt != "2024-01-01T10:00:00Z" {
		t.Fatalf("OccurredAt = %q", ev.OccurredAt)
	}
	if !ev.Recordable() {
		t.Fatal("bare case with name must be recordable")
	}
}

func TestNormalizeOrderCase(t *testing.T) {
	receivedAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	payload := decodePayload(t, `{
		"order": {"orderNumber": "O-9", "seller": {"name": "Acme"}, "case": {"name": "Case2"}}
	}`)

	ev, x, shape := Normalize(payload, receivedAt, Options{})
	if shape != ShapeOrderCase {
		t.Fatalf("shape = %v, want order case", shape)
	}
	if ev.CaseName != "Case2" {
		t.Fatalf("CaseName = %q", ev.CaseName)
	}
	if ev.PatientName != "" {
		t.Fatalf("PatientName = %q, want empty", ev.PatientName)
	}
	// No created date on the order: capture-time fallback.
	if ev.OccurredAt != FormatTime(receivedAt) {
		t.Fatalf("OccurredAt = %q, want %q", ev.OccurredAt, FormatTime(receivedAt))
	}
	if x.OrderNumber != "O-9" || x.SellerName != "Acme" {
		t.Fatalf("extras = %+v", x)
	}
}

func TestNormalizeUnrecognized(t *testing.T) {
	ev, _, shape := Normalize(map[string]any{}, time.Now(), Options{})
	if shape != ShapeUnrecognized {
		t.Fatalf("shape = %v, want unrecognized", shape)
	}
	if ev.CaseName != "" {
		t.Fatalf("CaseName = %q, want empty", ev.CaseName)
	}
	if ev.Recordable() {
		t.Fatal("unrecognized event must not be recordable")
	}
}

func TestClassifyPriority(t *testing.T) {
	// A payload carrying both shapes is classified once: bare case wins.
	payload := decodePayload(t, `{
		"case": {"name": "Bare"},
		"order": {"case": {"name": "Wrapped"}}
	}`)
	if got := Classify(payload); got != ShapeBareCase {
		t.Fatalf("Classify = %v, want bare case", got)
	}
	ev, _, _ := Normalize(payload, time.Now(), Options{})
	if ev.CaseName != "Bare" {
		t.Fatalf("CaseName = %q, want Bare", ev.CaseName)
	}
}

func TestClassifyTable(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Shape
	}{
		{"case without name", `{"case": {"uuid": "x"}}`, ShapeUnrecognized},
		{"case is not an object", `{"case": "Case1"}`, ShapeUnrecognized},
		{"order without nested case", `{"order": {"orderNumber": "O-1"}}`, ShapeUnrecognized},
		{"order nested case without name", `{"order": {"case": {"uuid": "x"}}}`, ShapeUnrecognized},
		{"nested case named", `{"order": {"case": {"name": "C"}}}`, ShapeOrderCase},
		{"top-level case named", `{"case": {"name": "C"}}`, ShapeBareCase},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(decodePayload(t, tt.body)); got != tt.want {
				t.Fatalf("Classify = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizePatientFieldUUID(t *testing.T) {
	payload := decodePayload(t, `{
		"case": {"name": "C", "patient": {"name": "John", "uuid": "u-123"}}
	}`)
	ev, _, _ := Normalize(payload, time.Now(), Options{PatientField: PatientFieldUUID})
	if ev.PatientName != "u-123" {
		t.Fatalf("PatientName = %q, want u-123", ev.PatientName)
	}
}

func TestNormalizeTimestampPreference(t *testing.T) {
	receivedAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			"case dateScanned wins",
			`{"case": {"name": "C", "dateScanned": "2024-02-02T00:00:00Z", "dateCreated": "2024-01-01T00:00:00Z"}}`,
			"2024-02-02T00:00:00Z",
		},
		{
			"top-level dateIssued",
			`{"case": {"name": "C"}, "dateIssued": "2024-03-03T00:00:00Z"}`,
			"2024-03-03T00:00:00Z",
		},
		{
			"no date falls back to receipt time",
			`{"case": {"name": "C"}}`,
			FormatTime(receivedAt),
		},
		{
			// Malformed strings are kept verbatim; only display degrades.
			"malformed date kept verbatim",
			`{"case": {"name": "C", "dateScanned": "yesterday-ish"}}`,
			"yesterday-ish",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, _, _ := Normalize(decodePayload(t, tt.body), receivedAt, Options{})
			if ev.OccurredAt != tt.want {
				t.Fatalf("OccurredAt = %q, want %q", ev.OccurredAt, tt.want)
			}
		})
	}
}

func TestFormatTimeUTCMilliseconds(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 678900000, time.FixedZone("X", 3600))
	if got := FormatTime(at); got != "2024-01-02T02:04:05.678Z" {
		t.Fatalf("FormatTime = %q", got)
	}
}
