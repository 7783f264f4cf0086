package sheetsclient

import (
	"fmt"
	"strings"
	"time"
)

// RosterRow represents a single shift on the published roster
type RosterRow struct {
	Date       string   // Format: "Mon Jan 02 2006"
	Time       string   // Format: "19:00-23:00"
	Title      string
	Location   string
	Lead       string
	Volunteers []string
	SpotsLeft  int
}

// Roster represents the complete published roster
type Roster struct {
	Heading string
	Start   time.Time
	End     time.Time
	Rows    []RosterRow
}

const headerRow = 2 // zero-based; rows 1 and 2 hold the heading and a gap

var fixedColumns = []string{"Date", "Time", "Shift", "Location", "Lead"}

const (
	volunteerPrefix = "Volunteer "
	spotsColumn     = "Spots left"
)

// PublishRoster writes the roster to a tab named after its date range. An
// existing tab is rewritten, keeping any columns staff added by hand (e.g.
// "Notes") against the shift they were written next to.
func (c *Client) PublishRoster(spreadsheetID string, roster *Roster) (string, error) {
	title := tabTitle(roster.Start, roster.End)

	exists, err := c.hasSheet(spreadsheetID, title)
	if err != nil {
		return "", err
	}

	var existing [][]interface{}
	if exists {
		existing, err = c.GetValues(spreadsheetID, quoteTitle(title)+"!A1:ZZ")
		if err != nil {
			return "", fmt.Errorf("failed to read existing tab data: %w", err)
		}
	} else if _, err := c.CreateSheet(spreadsheetID, title); err != nil {
		return "", fmt.Errorf("failed to create tab: %w", err)
	}

	if err := c.replaceValues(spreadsheetID, title, rosterValues(roster, existing)); err != nil {
		return "", fmt.Errorf("failed to write roster: %w", err)
	}
	return title, nil
}

// tabTitle formats the range as "Sat Oct 17 2026 - Fri Oct 30 2026". end is exclusive.
func tabTitle(start, end time.Time) string {
	last := end.Add(-time.Nanosecond)
	if last.Before(start) {
		last = start
	}
	return fmt.Sprintf("%s - %s", start.Format("Mon Jan 02 2006"), last.Format("Mon Jan 02 2006"))
}

// rosterValues lays out the whole tab. existing is the tab's current content,
// or nil for a new tab.
func rosterValues(roster *Roster, existing [][]interface{}) [][]interface{} {
	extraCols, extraValues := preservedColumns(existing)

	maxVolunteers := 0
	for _, row := range roster.Rows {
		maxVolunteers = max(maxVolunteers, len(row.Volunteers))
	}

	header := make([]interface{}, 0, len(fixedColumns)+maxVolunteers+1+len(extraCols))
	for _, col := range fixedColumns {
		header = append(header, col)
	}
	for i := 0; i < maxVolunteers; i++ {
		header = append(header, fmt.Sprintf("%s%d", volunteerPrefix, i+1))
	}
	header = append(header, spotsColumn)
	for _, col := range extraCols {
		header = append(header, col)
	}

	values := [][]interface{}{
		{roster.Heading},
		{},
		header,
	}

	for _, row := range roster.Rows {
		sheetRow := []interface{}{row.Date, row.Time, row.Title, row.Location, row.Lead}
		for i := 0; i < maxVolunteers; i++ {
			if i < len(row.Volunteers) {
				sheetRow = append(sheetRow, row.Volunteers[i])
			} else {
				sheetRow = append(sheetRow, "")
			}
		}
		sheetRow = append(sheetRow, row.SpotsLeft)

		kept := extraValues[rowKey(row.Date, row.Time, row.Title)]
		for _, col := range extraCols {
			sheetRow = append(sheetRow, kept[col])
		}
		values = append(values, sheetRow)
	}

	return values
}

// preservedColumns finds hand-added columns in an existing tab and their
// values, keyed by the shift each row describes
func preservedColumns(existing [][]interface{}) ([]string, map[string]map[string]interface{}) {
	values := make(map[string]map[string]interface{})
	if len(existing) <= headerRow {
		return nil, values
	}

	header := existing[headerRow]
	dateCol := findColumnIndex(header, "Date")
	timeCol := findColumnIndex(header, "Time")
	shiftCol := findColumnIndex(header, "Shift")

	var extraCols []string
	var extraIdx []int
	for i, cell := range header {
		name, ok := cell.(string)
		if !ok || name == "" || isManagedColumn(name) {
			continue
		}
		extraCols = append(extraCols, name)
		extraIdx = append(extraIdx, i)
	}

	if len(extraCols) == 0 || dateCol == -1 || timeCol == -1 || shiftCol == -1 {
		return extraCols, values
	}

	for _, row := range existing[headerRow+1:] {
		key := rowKey(cellString(row, dateCol), cellString(row, timeCol), cellString(row, shiftCol))
		kept := make(map[string]interface{})
		for j, idx := range extraIdx {
			if idx < len(row) {
				kept[extraCols[j]] = row[idx]
			}
		}
		values[key] = kept
	}
	return extraCols, values
}

func isManagedColumn(name string) bool {
	if name == spotsColumn || strings.HasPrefix(name, volunteerPrefix) {
		return true
	}
	return findColumnIndex(toCells(fixedColumns), name) != -1
}

func rowKey(date, timeRange, title string) string {
	return date + "|" + timeRange + "|" + title
}

func cellString(row []interface{}, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	s, _ := row[idx].(string)
	return s
}

func toCells(names []string) []interface{} {
	cells := make([]interface{}, len(names))
	for i, n := range names {
		cells[i] = n
	}
	return cells
}

// findColumnIndex finds the index of a column by its header name
func findColumnIndex(header []interface{}, columnName string) int {
	for i, cell := range header {
		if str, ok := cell.(string); ok && str == columnName {
			return i
		}
	}
	return -1
}
