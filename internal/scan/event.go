package scan

import "time"

// MaxHistory bounds the rolling history list.
const MaxHistory = 5

// TimeLayout is the canonical serialization for capture-time timestamps:
// ISO-8601 in UTC with millisecond precision.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Shape classifies an upstream Medit Link payload. Classification is
// exclusive: the first matching shape wins and a payload is never tagged
// twice.
type Shape int

const (
	ShapeUnrecognized Shape = iota
	ShapeBareCase
	ShapeOrderCase
)

func (s Shape) String() string {
	switch s {
	case ShapeBareCase:
		return "case"
	case ShapeOrderCase:
		return "order"
	default:
		return "unrecognized"
	}
}

// Event is the canonical record extracted from a webhook payload.
// OccurredAt holds the upstream timestamp string verbatim when the payload
// supplied one, otherwise the formatted receipt time; rendering tolerates
// strings that do not parse.
type Event struct {
	CaseName    string `json:"caseName"`
	PatientName string `json:"patientName"`
	OccurredAt  string `json:"occurredAt"`
}

// Recordable reports whether the event may enter the history list.
// Events without a case name are notified but never persisted.
func (e Event) Recordable() bool { return e.CaseName != "" }

// Extras carries order metadata that is rendered in notifications but never
// persisted with the event.
type Extras struct {
	OrderNumber string
	SellerName  string
}

// Patient field selection, see Options.PatientField.
const (
	PatientFieldName = "name"
	PatientFieldUUID = "uuid"
)

// Options tunes normalization per deployment.
type Options struct {
	// PatientField selects which field of the payload's patient object
	// becomes PatientName: "name" (default) or "uuid". Upstream revisions
	// disagree on which one they send.
	PatientField string
}

func (o Options) patientField() string {
	if o.PatientField == PatientFieldUUID {
		return PatientFieldUUID
	}
	return PatientFieldName
}

// FormatTime serializes t in the canonical capture-time layout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
