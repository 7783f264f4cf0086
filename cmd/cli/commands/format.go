package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// tone picks the colour of a status cell
type tone int

const (
	toneOK tone = iota
	toneWarn
	toneAlert
	toneMuted
)

var toneStyles = map[tone]lipgloss.Style{
	toneOK:    lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	toneWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	toneAlert: lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	toneMuted: lipgloss.NewStyle().Faint(true),
}

func (t tone) render(s string) string {
	return toneStyles[t].Render(s)
}

// Accepted layouts for times typed at the CLI, read in the venue's time zone
var inputLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

func parseLocalTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range inputLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("could not parse %q, use YYYY-MM-DD HH:MM", s)
}

// occupancyTone is OK below the warning threshold, a warning from it and an alert when full
func occupancyTone(current, max int, threshold float64) tone {
	switch {
	case max > 0 && current >= max:
		return toneAlert
	case max > 0 && float64(current)/float64(max) >= threshold:
		return toneWarn
	default:
		return toneOK
	}
}

// spotsTone highlights shifts that are full or still need their minimum
func spotsTone(active, min, max int) tone {
	switch {
	case active >= max:
		return toneMuted
	case active < min:
		return toneAlert
	default:
		return toneOK
	}
}

func formatShiftTime(start, end time.Time, loc *time.Location) string {
	start, end = start.In(loc), end.In(loc)
	return fmt.Sprintf("%s %s-%s", start.Format("Mon Jan 2 2006"), start.Format("15:04"), end.Format("15:04"))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
