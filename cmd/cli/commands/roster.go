package commands

import (
	"github.com/woodshed-orlando/kinkos/pkg/clients/sheetsclient"
	"github.com/woodshed-orlando/kinkos/pkg/core/services"
)

func toSheetRoster(roster *services.Roster, venue string) *sheetsclient.Roster {
	rows := make([]sheetsclient.RosterRow, len(roster.Rows))
	for i, r := range roster.Rows {
		rows[i] = sheetsclient.RosterRow{
			Date:       r.Date,
			Time:       r.Time,
			Title:      r.Title,
			Location:   r.Location,
			Lead:       r.Lead,
			Volunteers: r.Volunteers,
			SpotsLeft:  r.SpotsLeft,
		}
	}

	return &sheetsclient.Roster{
		Heading: venue + " volunteer roster",
		Start:   roster.Start,
		End:     roster.End,
		Rows:    rows,
	}
}
