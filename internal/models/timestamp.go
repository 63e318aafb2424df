package models

import (
	"encoding/json"
	"time"
)

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Timestamp holds an ISO datetime from the catalog API. Values without an offset are
// read as UTC; text matching no layout is kept as-is with a zero Time.
type Timestamp struct {
	time.Time
	raw string
}

func ParseTimestamp(s string) Timestamp {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t, raw: s}
		}
	}
	return Timestamp{raw: s}
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil || s == "" {
		// null or a non-string value
		*t = Timestamp{}
		return nil
	}
	*t = ParseTimestamp(s)
	return nil
}

// MarshalJSON echoes the text the catalog sent.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	switch {
	case t.raw != "":
		return json.Marshal(t.raw)
	case t.Time.IsZero():
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}
