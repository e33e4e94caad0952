package scan

import "time"

// Classify sniffs the payload shape. Priority order matters: a payload that
// carries both a top-level case and an order is treated as a bare case.
func Classify(payload map[string]any) Shape {
	if c := asObject(payload["case"]); c != nil && asString(c["name"]) != "" {
		return ShapeBareCase
	}
	if o := asObject(payload["order"]); o != nil {
		if c := asObject(o["case"]); c != nil && asString(c["name"]) != "" {
			return ShapeOrderCase
		}
	}
	return ShapeUnrecognized
}

// Normalize extracts the canonical event from an arbitrary payload.
// receivedAt is the capture-time fallback for OccurredAt. Extras are only
// populated for order-wrapped payloads.
func Normalize(payload map[string]any, receivedAt time.Time, opts Options) (Event, Extras, Shape) {
	shape := Classify(payload)
	switch shape {
	case ShapeBareCase:
		c := asObject(payload["case"])
		ev := Event{
			CaseName:    asString(c["name"]),
			PatientName: patientName(c, opts),
			// Scan payloads put the date either on the case object or at the
			// top level, depending on the upstream revision.
			OccurredAt: firstTimestamp(receivedAt,
				asString(c["dateScanned"]),
				asString(payload["dateScanned"]),
				asString(c["dateCreated"]),
				asString(payload["dateCreated"]),
				asString(payload["dateIssued"]),
			),
		}
		return ev, Extras{}, shape

	case ShapeOrderCase:
		o := asObject(payload["order"])
		c := asObject(o["case"])
		ev := Event{
			CaseName:    asString(c["name"]),
			PatientName: patientName(c, opts),
			OccurredAt: firstTimestamp(receivedAt,
				asString(o["dateCreated"]),
				asString(o["createdAt"]),
			),
		}
		x := Extras{OrderNumber: asString(o["orderNumber"])}
		if s := asObject(o["seller"]); s != nil {
			x.SellerName = asString(s["name"])
		}
		return ev, x, shape

	default:
		return Event{OccurredAt: FormatTime(receivedAt)}, Extras{}, ShapeUnrecognized
	}
}

func patientName(caseObj map[string]any, opts Options) string {
	p := asObject(caseObj["patient"])
	if p == nil {
		return ""
	}
	return asString(p[opts.patientField()])
}

// firstTimestamp returns the first non-empty candidate verbatim, falling back
// to the formatted receipt time. Candidates are not validated here; a
// malformed upstream string degrades only its display, never normalization.
func firstTimestamp(receivedAt time.Time, candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return FormatTime(receivedAt)
}

func asObject(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
