// aircraft-console is a live table of the aircraft currently inside the
// fence, polling the skyboard status API.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/acollins/skyboard/pkg/detector"
)

// aircraftResponse mirrors the daemon's /api/aircraft payload.
type aircraftResponse struct {
	Count    int                  `json:"count"`
	Aircraft []detector.Detection `json:"aircraft"`
}

var columns = []string{"ICAO24", "CALLSIGN", "REG", "TYPE", "OPERATOR", "ALT FT", "SPD KT", "HDG", "DIST KM"}

func main() {
	apiURL := flag.String("api", "http://localhost:8039", "Base URL of the skyboard status API")
	interval := flag.Duration("interval", 2*time.Second, "Refresh interval")
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}
	base := strings.TrimRight(*apiURL, "/")

	app := tview.NewApplication()

	table := tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0).
		SetSelectable(true, false)
	table.SetBorder(true).SetTitle(" aircraft in fence ")

	statusBar := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(table, 0, 1, true).
		AddItem(statusBar, 1, 0, false)

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Rune() == 'q' || event.Key() == tcell.KeyEscape {
			app.Stop()
			return nil
		}
		return event
	})

	refresh := func() {
		resp, err := client.Get(base + "/api/aircraft")
		if err != nil {
			app.QueueUpdateDraw(func() {
				statusBar.SetText(fmt.Sprintf("[red]error: %v", err))
			})
			return
		}
		var payload aircraftResponse
		err = json.NewDecoder(resp.Body).Decode(&payload)
		resp.Body.Close()
		if err != nil {
			app.QueueUpdateDraw(func() {
				statusBar.SetText(fmt.Sprintf("[red]error: %v", err))
			})
			return
		}

		app.QueueUpdateDraw(func() {
			table.Clear()
			for col, name := range columns {
				table.SetCell(0, col, tview.NewTableCell(name).
					SetTextColor(tcell.ColorYellow).
					SetSelectable(false).
					SetExpansion(1))
			}
			for row, det := range payload.Aircraft {
				cells := []string{
					det.State.ICAO24,
					strings.TrimSpace(det.State.Callsign),
					det.Meta.Registration,
					det.Meta.Description(),
					det.Meta.Operator,
					fmt.Sprintf("%.0f", det.State.AltitudeFt),
					fmt.Sprintf("%.0f", det.State.GroundSpeedKt),
					fmt.Sprintf("%.0f", det.State.HeadingDeg),
					fmt.Sprintf("%.1f", det.DistanceKm),
				}
				for col, text := range cells {
					table.SetCell(row+1, col, tview.NewTableCell(text).SetExpansion(1))
				}
			}
			statusBar.SetText(fmt.Sprintf("%d aircraft   %s   q to quit",
				payload.Count, time.Now().Format("15:04:05")))
		})
	}

	go func() {
		refresh()
		ticker := time.NewTicker(*interval)
		defer ticker.Stop()
		for range ticker.C {
			refresh()
		}
	}()

	if err := app.SetRoot(layout, true).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "aircraft-console: %v\n", err)
		os.Exit(1)
	}
}
