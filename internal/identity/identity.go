// Package identity reconciles the window handle encodings minted by the
// accessibility layer and by the window system.
//
// Accessibility handles look like "ax_<identifier>", where the identifier is
// opaque and may contain any text. Window-system handles look like
// "win_<hex>". Anything else is passed through untouched.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	AccessibilityPrefix = "ax_"
	WindowPrefix        = "win_"

	// stableHashBytes is the number of digest bytes kept by CreateStableHash.
	stableHashBytes = 8
)

// Form is the logical classification of a handle string.
type Form int

const (
	FormUnrecognized Form = iota
	FormAccessibility
	FormHashBased
)

func (f Form) String() string {
	switch f {
	case FormAccessibility:
		return "accessibility"
	case FormHashBased:
		return "hash"
	default:
		return "unrecognized"
	}
}

// Classification is the result of Classify. Value holds the accessibility
// identifier, the hex digest, or the raw handle depending on Form.
type Classification struct {
	Form  Form
	Value string
}

// Classify determines the form of a handle from its string alone.
func Classify(handle string) Classification {
	if rest, ok := strings.CutPrefix(handle, AccessibilityPrefix); ok {
		return Classification{Form: FormAccessibility, Value: rest}
	}
	if rest, ok := strings.CutPrefix(handle, WindowPrefix); ok && IsValidHexDigitString(rest) {
		return Classification{Form: FormHashBased, Value: rest}
	}
	return Classification{Form: FormUnrecognized, Value: handle}
}

// IsValidHexDigitString reports whether s is non-empty and made only of
// hexadecimal digits in either case.
func IsValidHexDigitString(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// CreateStableHash returns a 16 character uppercase hex digest of s.
func CreateStableHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return strings.ToUpper(hex.EncodeToString(sum[:stableHashBytes]))
}

// StableHandle mints a "win_" handle from attributes that survive process
// restarts, such as application class and title.
func StableHandle(parts ...string) string {
	return WindowPrefix + CreateStableHash(strings.Join(parts, "\x1f"))
}

// AccessibilityHandle builds an "ax_" handle from an identifier.
func AccessibilityHandle(id string) string {
	return AccessibilityPrefix + id
}
