package board

import (
	"testing"
)

// TestEncodeLine tests single-row text encoding.
func TestEncodeLine(t *testing.T) {
	t.Run("Letters are case-folded", func(t *testing.T) {
		row := EncodeLine("Hello")
		expected := []int{8, 5, 12, 12, 15}
		for i, code := range expected {
			if row[i] != code {
				t.Errorf("Cell %d: expected %d, got %d", i, code, row[i])
			}
		}
		for i := len(expected); i < Columns; i++ {
			if row[i] != Blank {
				t.Errorf("Cell %d: expected blank padding, got %d", i, row[i])
			}
		}
	})

	t.Run("Digits and punctuation", func(t *testing.T) {
		row := EncodeLine("10,500 ft")
		expected := []int{27, 36, 55, 31, 36, 36, 0, 6, 20}
		for i, code := range expected {
			if row[i] != code {
				t.Errorf("Cell %d: expected %d, got %d", i, code, row[i])
			}
		}
	})

	t.Run("Unknown characters become blanks", func(t *testing.T) {
		row := EncodeLine("A~B")
		if row[0] != 1 || row[1] != Blank || row[2] != 2 {
			t.Errorf("Expected [1 0 2], got %v", row[:3])
		}
	})

	t.Run("Long lines are clipped", func(t *testing.T) {
		row := EncodeLine("AAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
		for i := 0; i < Columns; i++ {
			if row[i] != 1 {
				t.Errorf("Cell %d: expected 1, got %d", i, row[i])
			}
		}
	})

	t.Run("Degree symbol", func(t *testing.T) {
		row := EncodeLine("207°")
		expected := []int{28, 36, 33, 62}
		for i, code := range expected {
			if row[i] != code {
				t.Errorf("Cell %d: expected %d, got %d", i, code, row[i])
			}
		}
	})
}

// TestEncodeDecode tests frame round-tripping.
func TestEncodeDecode(t *testing.T) {
	t.Run("Round trip", func(t *testing.T) {
		frame := Encode("BAW123   G-EUYV\nBRITISH AIRWAYS\nAIRBUS A319-131")
		lines := Decode(frame)

		if lines[0] != "BAW123   G-EUYV" {
			t.Errorf("Line 0: got %q", lines[0])
		}
		if lines[1] != "BRITISH AIRWAYS" {
			t.Errorf("Line 1: got %q", lines[1])
		}
		if lines[2] != "AIRBUS A319-131" {
			t.Errorf("Line 2: got %q", lines[2])
		}
		for i := 3; i < Rows; i++ {
			if lines[i] != "" {
				t.Errorf("Line %d: expected empty, got %q", i, lines[i])
			}
		}
	})

	t.Run("Excess lines are dropped", func(t *testing.T) {
		frame := Encode("1\n2\n3\n4\n5\n6\n7\n8")
		lines := Decode(frame)
		if len(lines) != Rows {
			t.Fatalf("Expected %d lines, got %d", Rows, len(lines))
		}
		if lines[Rows-1] != "6" {
			t.Errorf("Expected last row %q, got %q", "6", lines[Rows-1])
		}
	})

	t.Run("Blank frame decodes empty", func(t *testing.T) {
		for i, line := range Decode(BlankFrame()) {
			if line != "" {
				t.Errorf("Line %d: expected empty, got %q", i, line)
			}
		}
	})
}

// TestFormatFlight tests the six-line notification layout.
func TestFormatFlight(t *testing.T) {
	t.Run("Full record", func(t *testing.T) {
		lines := FormatFlight(Flight{
			Callsign:      "BAW123",
			Registration:  "G-EUYV",
			Operator:      "British Airways",
			Country:       "United Kingdom",
			AircraftType:  "Airbus A319-131",
			AltitudeFt:    22750,
			GroundSpeedKt: 412,
			HeadingDeg:    207,
		})

		expected := []string{
			"BAW123   G-EUYV",
			"British Airways  Unite",
			"Airbus A319-131",
			"22,750 ft",
			"412 knots",
			"207°",
		}
		if len(lines) != Rows {
			t.Fatalf("Expected %d lines, got %d", Rows, len(lines))
		}
		for i, want := range expected {
			if lines[i] != want {
				t.Errorf("Line %d: expected %q, got %q", i, want, lines[i])
			}
		}
	})

	t.Run("Missing fields", func(t *testing.T) {
		lines := FormatFlight(Flight{})
		expected := []string{"UNKNOWN", "", "Unknown", "N/A", "N/A", "N/A"}
		for i, want := range expected {
			if lines[i] != want {
				t.Errorf("Line %d: expected %q, got %q", i, want, lines[i])
			}
		}
	})

	t.Run("Lines never exceed display width", func(t *testing.T) {
		lines := FormatFlight(Flight{
			Callsign:     "VERYLONGCALLSIGN123456789",
			Registration: "REGISTRATION-TOO-LONG",
			Operator:     "An Extremely Long Airline Operator Name",
			Country:      "United States of America",
			AircraftType: "Lockheed C-130J Super Hercules II",
		})
		for i, line := range lines {
			if n := len([]rune(line)); n > Columns {
				t.Errorf("Line %d: %d runes exceeds display width: %q", i, n, line)
			}
		}
	})
}

// TestGroupThousands tests altitude comma grouping.
func TestGroupThousands(t *testing.T) {
	tests := []struct {
		n        int
		expected string
	}{
		{0, "0"},
		{950, "950"},
		{1000, "1,000"},
		{22750, "22,750"},
		{1234567, "1,234,567"},
		{-1500, "-1,500"},
	}
	for _, tt := range tests {
		if got := groupThousands(tt.n); got != tt.expected {
			t.Errorf("groupThousands(%d): expected %q, got %q", tt.n, tt.expected, got)
		}
	}
}
