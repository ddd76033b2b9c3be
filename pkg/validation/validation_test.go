package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateStreamName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "lens", false},
		{"exactly 32 bytes", strings.Repeat("a", 32), false},
		{"multibyte within limit", "café-stream", false},
		{"empty", "", true},
		{"33 bytes", strings.Repeat("a", 33), true},
		{"multibyte over limit", strings.Repeat("é", 17), true},
		{"control character", "a\nb", true},
		{"invalid utf8", string([]byte{0xff, 0xfe}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStreamName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"system program", "11111111111111111111111111111111", false},
		{"program id", "ALG2KRazJ9Gnh6Tyndq4eEDR4tsqP91uC8gmfWEgmxXo", false},
		{"empty", "", true},
		{"bad alphabet", "0OIl", true},
		{"too short", "abc", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddress(tt.input, "recipient")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateLevel(t *testing.T) {
	assert.Error(t, ValidateLevel(0))
	assert.NoError(t, ValidateLevel(1))
	assert.NoError(t, ValidateLevel(255))
	assert.Error(t, ValidateLevel(256))
}

func TestValidatePositiveAmount(t *testing.T) {
	assert.EqualError(t, ValidatePositiveAmount(0, "amount"), "amount must be > 0")
	assert.NoError(t, ValidatePositiveAmount(1, "amount"))
}

func TestValidateURL(t *testing.T) {
	assert.NoError(t, ValidateURL("http://localhost:14268/api/traces"))
	assert.NoError(t, ValidateURL("wss://feed.example.com/ws"))
	assert.Error(t, ValidateURL(""))
	assert.Error(t, ValidateURL("ftp://example.com"))
	assert.Error(t, ValidateURL("http://"))
}

func TestValidateNonEmptyString(t *testing.T) {
	assert.Error(t, ValidateNonEmptyString("  ", "name"))
	assert.NoError(t, ValidateNonEmptyString("x", "name"))
}
