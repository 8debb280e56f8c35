package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizedEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"collector@example.com", "c********@*******.com"},
		{"a@b.io", "a@*.io"},
		{"no-at-sign", "[invalid-email]"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizedEmail(tt.in), tt.in)
	}
}

func TestMaskUsername(t *testing.T) {
	assert.Equal(t, "s******", MaskUsername("sneaker"))
	assert.Equal(t, "ü**", MaskUsername("übe"))
	assert.Equal(t, "", MaskUsername(""))
}

func TestSanitizeQueryString(t *testing.T) {
	assert.True(t, SanitizeQueryString("refresh_token=abc"))
	assert.True(t, SanitizeQueryString("Password=hunter2"))
	assert.False(t, SanitizeQueryString("page=2&sort=name"))
}

func TestAuditLogger_MasksUsername(t *testing.T) {
	var buf bytes.Buffer
	audit := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	audit.LogAuthEvent(context.Background(), AuditEvent{
		EventType:     EventLoginFailed,
		Username:      "collector",
		ClientIP:      "203.0.113.10",
		FailureReason: "invalid_credentials",
	})

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "audit", record["msg"])
	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, EventLoginFailed, record["event_type"])
	assert.Equal(t, "c********", record["username"])
	assert.NotContains(t, buf.String(), "collector")
}
