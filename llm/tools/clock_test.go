package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUTCTimeTool(t *testing.T) {
	t.Parallel()

	cest := time.FixedZone("CEST", 2*60*60)
	tests := []struct {
		name string
		now  time.Time
		want string
	}{
		{"whole second", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), "2024-05-01T12:00:00+00:00"},
		{"microseconds", time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.UTC), "2024-05-01T12:00:00.123456+00:00"},
		{"leading zero micros", time.Date(2024, 5, 1, 12, 0, 0, 5000, time.UTC), "2024-05-01T12:00:00.000005+00:00"},
		{"sub-microsecond dropped", time.Date(2024, 5, 1, 12, 0, 0, 999, time.UTC), "2024-05-01T12:00:00+00:00"},
		{"converted to utc", time.Date(2024, 5, 1, 14, 30, 0, 0, cest), "2024-05-01T12:30:00+00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool := NewUTCTimeTool(func() time.Time { return tt.now })
			assert.Equal(t, ToolUTCTime, tool.Name())

			out, err := tool.Func(context.Background(), nil)
			require.NoError(t, err)
			var got string
			require.NoError(t, json.Unmarshal(out, &got))
			assert.Equal(t, tt.want, got)
		})
	}
}
