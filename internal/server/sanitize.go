package server

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/teris-io/shortid"
)

// MaxMessageLength bounds a single chat message, counted in runes on the
// trimmed text so accented input is not penalized for its UTF-8 width.
const MaxMessageLength = 500

// dangerousTagPatterns matches markup families that are removed outright
// before escaping. Everything left over is HTML-escaped.
var dangerousTagPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<script\b.*?</script\s*>`),
	regexp.MustCompile(`(?is)<iframe\b.*?</iframe\s*>`),
	regexp.MustCompile(`(?is)<object\b.*?</object\s*>`),
	regexp.MustCompile(`(?is)<embed\b.*?</embed\s*>`),
	regexp.MustCompile(`(?is)<style\b.*?</style\s*>`),
	regexp.MustCompile(`(?i)<script\b[^>]*>`),
	regexp.MustCompile(`(?i)<link\b[^>]*>`),
}

var (
	errEmptyMessage   = errors.New("message cannot be empty")
	errMessageTooLong = fmt.Errorf("message too long (max %d characters)", MaxMessageLength)
)

// validateMessage enforces the inbound text contract: non-empty after
// trimming, bounded length. Markup is handled by sanitizeMessage, not
// rejected here.
func validateMessage(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return errEmptyMessage
	}
	if utf8.RuneCountInString(trimmed) > MaxMessageLength {
		return errMessageTooLong
	}

	return nil
}

// sanitizeMessage strips script/iframe/object/embed/style/link markup and
// HTML-escapes what remains.
func sanitizeMessage(text string) string {
	sanitized := text
	for _, p := range dangerousTagPatterns {
		sanitized = p.ReplaceAllString(sanitized, "")
	}

	return strings.TrimSpace(html.EscapeString(sanitized))
}

// generateMessageId produces ids unique with overwhelming probability. They
// are time-prefixed for log readability, not globally ordered.
func generateMessageId() string {
	suffix, err := shortid.Generate()
	if err != nil {
		suffix = fmt.Sprintf("%09d", time.Now().UnixNano()%1e9)
	}

	return fmt.Sprintf("msg_%d_%s", time.Now().UnixMilli(), suffix)
}

func generateConnectionId() string {
	suffix, err := shortid.Generate()
	if err != nil {
		suffix = fmt.Sprintf("%09d", time.Now().UnixNano()%1e9)
	}

	return fmt.Sprintf("conn_%d_%s", time.Now().UnixMilli(), suffix)
}

func generateRoomId() string {
	suffix, err := shortid.Generate()
	if err != nil {
		suffix = fmt.Sprintf("%09d", time.Now().UnixNano()%1e9)
	}

	return fmt.Sprintf("room_%d_%s", time.Now().UnixMilli(), suffix)
}
