package board

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Console rendering of a frame, for terminals standing in for (or
// previewing) the physical board.

var (
	bezelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("235"))

	chipColors = map[int]lipgloss.Color{
		ChipRed:    lipgloss.Color("196"),
		ChipOrange: lipgloss.Color("208"),
		ChipYellow: lipgloss.Color("226"),
		ChipGreen:  lipgloss.Color("46"),
		ChipBlue:   lipgloss.Color("33"),
		ChipViolet: lipgloss.Color("93"),
		ChipWhite:  lipgloss.Color("255"),
		ChipBlack:  lipgloss.Color("16"),
	}
)

// RenderFrame draws a frame as a bordered terminal grid, with color
// chips rendered as colored blocks.
func RenderFrame(frame Frame) string {
	rows := make([]string, 0, Rows)
	for _, row := range frame {
		var cells []string
		for _, code := range row {
			if color, ok := chipColors[code]; ok {
				cells = append(cells, lipgloss.NewStyle().Background(color).Render(" "))
				continue
			}
			r, ok := codeChars[code]
			if !ok {
				r = ' '
			}
			cells = append(cells, cellStyle.Render(string(r)))
		}
		rows = append(rows, strings.Join(cells, ""))
	}
	return bezelStyle.Render(strings.Join(rows, "\n"))
}
