package validation

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mr-tron/base58"
)

const (
	MaxStreamNameBytes = 32
	addressBytes       = 32
)

// ValidateStreamName checks a named-stream name. Names become a derivation
// seed, so the limit is in bytes.
func ValidateStreamName(name string) error {
	if name == "" {
		return fmt.Errorf("stream name is required")
	}
	if len(name) > MaxStreamNameBytes {
		return fmt.Errorf("stream name is too long (max %d bytes)", MaxStreamNameBytes)
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("stream name is not valid UTF-8")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("stream name contains control characters")
		}
	}
	return nil
}

// ValidateAddress checks that s is the base58 form of a 32-byte address.
func ValidateAddress(s, fieldName string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("%s is not valid base58", fieldName)
	}
	if len(raw) != addressBytes {
		return fmt.Errorf("%s must decode to %d bytes, got %d", fieldName, addressBytes, len(raw))
	}
	return nil
}

func ValidateLevel(level int) error {
	if level < 1 {
		return fmt.Errorf("level must be at least 1")
	}
	if level > 255 {
		return fmt.Errorf("level is too high (max 255)")
	}
	return nil
}

func ValidatePositiveAmount(amount uint64, fieldName string) error {
	if amount == 0 {
		return fmt.Errorf("%s must be > 0", fieldName)
	}
	return nil
}

func ValidateURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("URL is required")
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid URL scheme (must be http, https, ws, or wss)")
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

func ValidateNonEmptyString(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}
