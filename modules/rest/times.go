package rest

import (
	"bytes"
	"fmt"
	"time"
)

// Datetime layouts the API is known to emit, tried strictly in this
// order. The first three are wall-clock local, the last carries a zone.
var timeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	time.RFC3339,
}

// UntisTime decodes the handful of datetime spellings the API mixes
// freely, even inside one payload.
type UntisTime struct {
	time.Time
}

func (t *UntisTime) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}

		return nil
	}
	s := string(data)
	for _, layout := range timeLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			t.Time = parsed

			return nil
		}
	}

	return fmt.Errorf("unsupported datetime %q", s)
}

// DateParam renders the date form used in query strings.
func DateParam(t time.Time) string {
	return t.Format("2006-01-02")
}
