package rest

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/untis"
)

type absencesResponse struct {
	Absences []restAbsence `json:"absences"`
}

type restAbsence struct {
	ID            int64     `json:"id"`
	StudentName   string    `json:"studentName"`
	StartDateTime UntisTime `json:"startDateTime"`
	EndDateTime   UntisTime `json:"endDateTime"`
	Reason        string    `json:"reason"`
	Text          string    `json:"text"`
	Excused       bool      `json:"excused"`
}

// Absences lists the student's absences inside the date range.
func (c *Client) Absences(ctx context.Context, studentID int64, start, end time.Time) ([]untis.Absence, error) {
	query := url.Values{
		"studentId": {strconv.FormatInt(studentID, 10)},
		"start":     {DateParam(start)},
		"end":       {DateParam(end)},
	}
	var resp absencesResponse
	if err := c.get(ctx, "/view/v1/absences", query, &resp); err != nil {
		return nil, err
	}
	out := make([]untis.Absence, 0, len(resp.Absences))
	for _, a := range resp.Absences {
		if a.ID == 0 {
			continue
		}
		out = append(out, untis.Absence{
			ID:            a.ID,
			StudentName:   a.StudentName,
			StartDateTime: a.StartDateTime.Time,
			EndDateTime:   a.EndDateTime.Time,
			Reason:        a.Reason,
			Text:          a.Text,
			Excused:       a.Excused,
		})
	}

	return out, nil
}
