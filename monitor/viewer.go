package monitor

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const viewerTitle = " ACCELMON Monitor "

// Status is the acquisition state shown above the axis table.
type Status struct {
	Sensor  string
	Rate    string
	Samples uint64
	Dropped uint64
	Latency time.Duration // edge to delivery of the last sample
}

// Viewer renders a History in the terminal.
type Viewer struct {
	tuiApp  *tview.Application
	view    *tview.TextView
	history *History
	quit    func()
	mu      sync.Mutex
	status  Status
}

// NewViewer returns a viewer for history. quit is called when the user hits
// q.
func NewViewer(history *History, quit func()) *Viewer {
	return &Viewer{
		tuiApp:  tview.NewApplication(),
		history: history,
		quit:    quit,
	}
}

// Run blocks until Stop is called or the user quits. It refreshes the view
// every refresh interval.
func (v *Viewer) Run(refresh time.Duration) error {
	v.setupUI()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(refresh)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				text := v.render()
				v.tuiApp.QueueUpdateDraw(func() {
					v.view.SetText(text)
				})
			}
		}
	}()

	if err := v.tuiApp.Run(); err != nil {
		return fmt.Errorf("monitor viewer: %w", err)
	}
	slog.Info("Monitor viewer has stopped.")
	return nil
}

// Stop ends Run.
func (v *Viewer) Stop() {
	v.tuiApp.Stop()
}

// SetStatus updates the header. Safe for concurrent use.
func (v *Viewer) SetStatus(s Status) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.status = s
}

func (v *Viewer) setupUI() {
	v.view = tview.NewTextView()
	v.view.SetDynamicColors(true)
	v.view.SetTextAlign(tview.AlignLeft)
	v.view.SetBackgroundColor(tcell.ColorDarkSlateGray)
	v.view.SetBorder(true).SetTitle(viewerTitle).SetTitleColor(tcell.ColorLightBlue)

	intro := tview.NewTextView()
	intro.SetBorder(true).SetTitleColor(tcell.ColorLightBlue)
	intro.SetText("Raw counts over the rolling window. Hit [#ff0000]q[-] to exit")
	intro.SetTextAlign(tview.AlignCenter)
	intro.SetDynamicColors(true)
	intro.SetBackgroundColor(tcell.ColorDarkSlateGray)

	layout := tview.NewFlex().SetDirection(tview.FlexRow)
	layout.AddItem(intro, 3, 1, false)
	layout.AddItem(v.view, 8, 1, true)
	layout.SetRect(1, 1, 72, 11)

	v.tuiApp.SetRoot(layout, true).SetFocus(v.view)
	v.tuiApp.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Rune() {
		case 'q', 'Q':
			v.tuiApp.Stop()
			if v.quit != nil {
				v.quit()
			}
		}
		return event
	})
}

func (v *Viewer) render() string {
	v.mu.Lock()
	status := v.status
	v.mu.Unlock()
	return renderText(status, v.history.Len(), v.history.Stats())
}

func renderText(status Status, window int, stats [3]AxisStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[yellow]%s[white] @ %s  samples: %d  dropped: %d  latency: %s  window: %d\n",
		status.Sensor, status.Rate, status.Samples, status.Dropped, status.Latency.Round(time.Microsecond), window)
	fmt.Fprintf(&b, "[yellow]%-6s %7s %7s %9s %9s %8s[white]\n", "Axis", "min", "max", "mean", "median", "stddev")
	for i, name := range Axes {
		s := stats[i]
		fmt.Fprintf(&b, "[blue]%-6s[-] %7d %7d %9.1f %9.1f %8.1f\n", name, s.Min, s.Max, s.Mean, s.Median, s.StdDev)
	}
	return b.String()
}
