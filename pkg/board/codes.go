// Package board drives a Vestaboard split-flap display over its Local API:
// encoding text into the board's character codes, laying out flight
// notifications, and posting frames to the device.
package board

import "strings"

const (
	// Rows is the number of character rows on the display
	Rows = 6

	// Columns is the number of character cells per row
	Columns = 22

	// Blank is the code for an empty cell
	Blank = 0

	// MaxCode is the highest valid character code
	MaxCode = 70
)

// Color chip codes. The board renders these as solid colored flaps.
const (
	ChipRed    = 63
	ChipOrange = 64
	ChipYellow = 65
	ChipGreen  = 66
	ChipBlue   = 67
	ChipViolet = 68
	ChipWhite  = 69
	ChipBlack  = 70
)

// charCodes maps display characters to their flap codes. The board has a
// single case, so lookups go through unicode upper-casing first.
var charCodes = map[rune]int{
	' ': Blank,
	'A': 1, 'B': 2, 'C': 3, 'D': 4, 'E': 5, 'F': 6, 'G': 7, 'H': 8,
	'I': 9, 'J': 10, 'K': 11, 'L': 12, 'M': 13, 'N': 14, 'O': 15, 'P': 16,
	'Q': 17, 'R': 18, 'S': 19, 'T': 20, 'U': 21, 'V': 22, 'W': 23, 'X': 24,
	'Y': 25, 'Z': 26,
	'1': 27, '2': 28, '3': 29, '4': 30, '5': 31, '6': 32, '7': 33, '8': 34,
	'9': 35, '0': 36,
	'!': 37, '@': 38, '#': 39, '$': 40, '(': 41, ')': 42, '-': 44, '+': 46,
	'&': 47, '=': 48, ';': 49, ':': 50, '\'': 52, '"': 53, '%': 54, ',': 55,
	'.': 56, '/': 59, '?': 60, '°': 62,
}

// codeChars is the reverse mapping, built once at init.
var codeChars = func() map[int]rune {
	m := make(map[int]rune, len(charCodes))
	for r, c := range charCodes {
		m[c] = r
	}
	return m
}()

// Frame is a full display state: Rows x Columns of character codes.
type Frame [Rows][Columns]int

// BlankFrame returns an all-blank frame.
func BlankFrame() Frame {
	return Frame{}
}

// EncodeLine converts one line of text into a row of character codes.
// Input is case-folded to the board's single case; characters the board
// cannot show become blanks; text beyond Columns is dropped.
func EncodeLine(line string) [Columns]int {
	var row [Columns]int
	i := 0
	for _, r := range strings.ToUpper(line) {
		if i >= Columns {
			break
		}
		if code, ok := charCodes[r]; ok {
			row[i] = code
		} else {
			row[i] = Blank
		}
		i++
	}
	return row
}

// Encode converts multi-line text into a frame. Lines beyond Rows are
// dropped; missing lines come out blank.
func Encode(text string) Frame {
	var frame Frame
	for i, line := range strings.Split(text, "\n") {
		if i >= Rows {
			break
		}
		frame[i] = EncodeLine(line)
	}
	return frame
}

// Decode converts a frame back into text, one string per row with
// trailing blanks trimmed. Unknown codes decode as spaces.
func Decode(frame Frame) []string {
	lines := make([]string, Rows)
	for i, row := range frame {
		var sb strings.Builder
		for _, code := range row {
			if r, ok := codeChars[code]; ok {
				sb.WriteRune(r)
			} else {
				sb.WriteRune(' ')
			}
		}
		lines[i] = strings.TrimRight(sb.String(), " ")
	}
	return lines
}
