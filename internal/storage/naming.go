package storage

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"gradportrait/internal/ids"
)

// Slug turns a display name into a filename-safe token: accents are dropped,
// whitespace runs become underscores and anything outside [A-Za-z0-9_-] is
// removed.
func Slug(name string) string {
	stripped, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		stripped = name
	}

	var b strings.Builder
	pendingSep := false
	for _, r := range strings.TrimSpace(stripped) {
		switch {
		case unicode.IsSpace(r):
			pendingSep = true
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_'):
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "portrait"
	}
	return b.String()
}

// PortraitFilename names a portrait generated for an existing record.
func PortraitFilename(name string, at time.Time) string {
	return fmt.Sprintf("%s_graduado_%d.png", Slug(name), at.UnixMilli())
}

// GeneratedFilename names a portrait produced during onboarding. The ksuid
// suffix keeps onboardings in the same millisecond apart.
func GeneratedFilename(at time.Time) string {
	return fmt.Sprintf("generated_%d_%s.png", at.UnixMilli(), ids.New())
}
