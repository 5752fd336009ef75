package tools

import (
	"context"
	"encoding/json"
	"time"
)

// NewUTCTimeTool returns the utc_time tool. now may be nil.
func NewUTCTimeTool(now func() time.Time) Tool {
	if now == nil {
		now = time.Now
	}
	fn := func(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
		return json.Marshal(isoUTC(now()))
	}
	return Tool{
		Func: fn,
		Metadata: ToolMetadata{
			Schema: toolSchema(ToolUTCTime, "Return the current UTC timestamp.",
				`{"type": "object", "properties": {}}`),
			Timeout: time.Second,
		},
	}
}

// isoUTC renders t like an aware UTC isoformat: microseconds only when
// non-zero, offset spelled +00:00.
func isoUTC(t time.Time) string {
	t = t.UTC().Truncate(time.Microsecond)
	if t.Nanosecond() != 0 {
		return t.Format("2006-01-02T15:04:05.000000+00:00")
	}
	return t.Format("2006-01-02T15:04:05+00:00")
}
