package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateLocation(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"simple city", "London", "London", nil},
		{"city with country", "London,GB", "London,GB", nil},
		{"trimmed", "  Paris  ", "Paris", nil},
		{"unicode letters", "Zürich", "Zürich", nil},
		{"hyphenated", "Stratford-upon-Avon", "Stratford-upon-Avon", nil},
		{"with digits", "District 9", "District 9", nil},
		{"empty", "", "", ErrLocationEmpty},
		{"whitespace only", "   ", "", ErrLocationEmpty},
		{"too short", "a", "", ErrLocationTooShort},
		{"too long", strings.Repeat("a", 81), "", ErrLocationTooLong},
		{"path injection", "../etc/passwd", "", ErrLocationInvalidChars},
		{"angle brackets", "<script>", "", ErrLocationInvalidChars},
		{"semicolon", "london;drop", "", ErrLocationInvalidChars},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateLocation(tc.input, 2, 80)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("ValidateLocation(%q) error = %v, want %v", tc.input, err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateLocation(%q) error = %v, want nil", tc.input, err)
			}
			if got != tc.want {
				t.Errorf("ValidateLocation(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestValidateLocation_BoundsDisabled(t *testing.T) {
	// Zero min/max disables the length checks but not the charset check.
	if _, err := ValidateLocation("a", 0, 0); err != nil {
		t.Errorf("ValidateLocation with disabled bounds error = %v, want nil", err)
	}
	if _, err := ValidateLocation("a!", 0, 0); !errors.Is(err, ErrLocationInvalidChars) {
		t.Errorf("error = %v, want ErrLocationInvalidChars", err)
	}
}
