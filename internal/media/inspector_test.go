package media

import (
	"math"
	"testing"
)

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		name     string
		rational string
		expected float64
		wantErr  bool
	}{
		{"integer rate", "30/1", 30.0, false},
		{"ntsc rate", "30000/1001", 29.97002997002997, false},
		{"cinema rate", "24000/1001", 23.976023976023978, false},
		{"plain number", "25", 25.0, false},
		{"fractional plain number", "23.976", 23.976, false},
		{"zero denominator", "30/0", 0, true},
		{"garbage numerator", "abc/1001", 0, true},
		{"garbage denominator", "30000/xyz", 0, true},
		{"empty string", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFrameRate(tt.rational)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseFrameRate(%q) expected error, got %v", tt.rational, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFrameRate(%q) unexpected error: %v", tt.rational, err)
			}
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("ParseFrameRate(%q) = %v, expected %v", tt.rational, got, tt.expected)
			}
		})
	}
}

func TestParseFrameRateNTSCIsNotTruncated(t *testing.T) {
	// A truncating division would yield 29.0 for the NTSC rational.
	got, err := ParseFrameRate("30000/1001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got <= 29.0 || got >= 30.0 {
		t.Errorf("NTSC frame rate should be between 29 and 30, got %v", got)
	}
}
