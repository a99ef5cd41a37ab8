package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Timestamp decodes the time representations found in stored documents:
// RFC3339 strings, plain date strings, epoch milliseconds and seconds/nanos
// objects. Anything unparseable decodes to the zero time instead of failing.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	t.Time = parseTimestamp(bytes.TrimSpace(data))
	return nil
}

func parseTimestamp(data []byte) time.Time {
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return time.Time{}
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return time.Time{}
		}
		return parseTimestampString(s)
	case '{':
		var obj struct {
			UnderscoreSeconds *int64 `json:"_seconds"`
			UnderscoreNanos   int64  `json:"_nanoseconds"`
			Seconds           *int64 `json:"seconds"`
			Nanos             int64  `json:"nanos"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return time.Time{}
		}
		if obj.UnderscoreSeconds != nil {
			return time.Unix(*obj.UnderscoreSeconds, obj.UnderscoreNanos).UTC()
		}
		if obj.Seconds != nil {
			return time.Unix(*obj.Seconds, obj.Nanos).UTC()
		}
		return time.Time{}
	default:
		ms, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return time.Time{}
		}
		return time.UnixMilli(int64(ms)).UTC()
	}
}

func parseTimestampString(s string) time.Time {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC()
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC()
	}
	return time.Time{}
}
