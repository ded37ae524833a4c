package server

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateMessage(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr error
	}{
		{"valid", "olá pessoal", nil},
		{"empty", "", errEmptyMessage},
		{"whitespace only", "   \t\n", errEmptyMessage},
		{"at limit", strings.Repeat("a", MaxMessageLength), nil},
		{"too long", strings.Repeat("a", MaxMessageLength+1), errMessageTooLong},
		{"accented at limit counts runes, not bytes", strings.Repeat("á", MaxMessageLength), nil},
		{"accented over limit", strings.Repeat("á", MaxMessageLength+1), errMessageTooLong},
		{"markup passes validation, sanitizer handles it", "<script>alert(1)</script>hello", nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := validateMessage(tc.text)
			if tc.wantErr == nil {
				assert.NoError(t, err, "expected message to be valid")
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

func TestSanitizeMessage(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text", "hello", "hello"},
		{"script stripped", "<script>alert(1)</script>hello", "hello"},
		{"iframe stripped", `<iframe src="evil"></iframe>oi`, "oi"},
		{"object stripped", "<object data=x></object>ok", "ok"},
		{"embed stripped", "<embed src=x></embed>ok", "ok"},
		{"style stripped", "<style>body{}</style>ok", "ok"},
		{"link stripped", `<link rel="stylesheet" href="x">ok`, "ok"},
		{"remaining html escaped", "<b>negrito</b>", "&lt;b&gt;negrito&lt;/b&gt;"},
		{"trimmed", "  espaços  ", "espaços"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := sanitizeMessage(tc.input)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("no executable markup survives", func(t *testing.T) {
		got := sanitizeMessage("<script>alert(1)</script>hello")
		assert.NotContains(t, got, "<script", "expected script markup to be removed")
		assert.NotContains(t, got, "alert(1)", "expected script body to be removed")
		assert.Contains(t, got, "hello", "expected benign text to be preserved")
	})
}

func TestGenerateMessageId(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := generateMessageId()
		assert.True(t, strings.HasPrefix(id, "msg_"), "expected message id prefix")
		_, dup := seen[id]
		assert.Falsef(t, dup, "expected unique ids, got duplicate %q", id)
		seen[id] = struct{}{}
	}
}
