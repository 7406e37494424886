package rest

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/untis"
)

// The v3 entries resource buckets the timetable per day and splits each
// day into grid entries (placed on the bell grid) and day entries (events
// without a slot, shown across the whole day).

type entriesResponse struct {
	Days []EntryDay `json:"days"`
}

type EntryDay struct {
	Date        UntisTime   `json:"date"`
	Status      string      `json:"status"`
	GridEntries []GridEntry `json:"gridEntries"`
	DayEntries  []DayEntry  `json:"dayEntries"`
}

type EntryDuration struct {
	Start UntisTime `json:"start"`
	End   UntisTime `json:"end"`
}

type GridEntry struct {
	IDs          []int64       `json:"ids"`
	Duration     EntryDuration `json:"duration"`
	Type         string        `json:"type"`
	Status       string        `json:"status"`
	StatusDetail string        `json:"statusDetail"`
	Name         string        `json:"name"`
	Color        string        `json:"color"`
	Texts        EntryTexts    `json:"texts"`
	Elements     []restElement `json:"elements"`
}

type DayEntry struct {
	IDs      []int64       `json:"ids"`
	Type     string        `json:"type"`
	Status   string        `json:"status"`
	Name     string        `json:"name"`
	Texts    EntryTexts    `json:"texts"`
	Elements []restElement `json:"elements"`
}

type EntryTexts struct {
	Lesson       string `json:"lesson"`
	Substitution string `json:"substitution"`
	Info         string `json:"info"`
}

// Entries fetches the day-bucketed timetable and flattens it back into
// periods. Entries without ids get a synthetic one derived from their
// start time and position, stable across refetches of the same payload.
func (c *Client) Entries(ctx context.Context, t untis.ElementType, id int64, start, end time.Time, idx untis.MasterDataIndex) (untis.Timetable, error) {
	query := url.Values{
		"resourceType": {string(t)},
		"resources":    {strconv.FormatInt(id, 10)},
		"start":        {DateParam(start)},
		"end":          {DateParam(end)},
		"format":       {"2"},
	}
	var resp entriesResponse
	if err := c.get(ctx, "/view/v3/timetable/entries", query, &resp); err != nil {
		return untis.Timetable{}, err
	}
	var periods []untis.Period
	seq := 0
	for _, day := range resp.Days {
		for _, g := range day.GridEntries {
			periods = append(periods, g.toPeriod(idx, seq))
			seq++
		}
		for _, d := range day.DayEntries {
			periods = append(periods, d.toPeriod(day.Date.Time, idx, seq))
			seq++
		}
	}

	return untis.NewTimetable(start, end, periods), nil
}

func (g GridEntry) toPeriod(idx untis.MasterDataIndex, seq int) untis.Period {
	p := untis.Period{
		ID:             syntheticID(g.IDs, g.Duration.Start.Time, seq),
		StartDateTime:  g.Duration.Start.Time,
		EndDateTime:    g.Duration.End.Time,
		ForeColor:      untis.DefaultForeColor,
		BackColor:      colorOr(g.Color, untis.DefaultBackColor),
		InnerForeColor: untis.DefaultForeColor,
		InnerBackColor: colorOr(g.Color, untis.DefaultBackColor),
	}
	if len(g.IDs) > 0 {
		p.LessonID = g.IDs[0]
	}
	p.Text.Lesson = firstNonEmpty(g.Texts.Lesson, g.Name)
	p.Text.Substitution = g.Texts.Substitution
	p.Text.Info = g.Texts.Info
	p.Is = statesOf(g.Status, g.StatusDetail, g.Texts.Substitution)
	for _, re := range g.Elements {
		if e, ok := re.toElement(idx); ok {
			p.Elements = append(p.Elements, e)
		}
	}
	p.BlockHash = untis.ComputeBlockHash(p)

	return p
}

func (d DayEntry) toPeriod(day time.Time, idx untis.MasterDataIndex, seq int) untis.Period {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.Local)
	end := time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 0, 0, time.Local)
	p := untis.Period{
		ID:             syntheticID(d.IDs, start, seq),
		StartDateTime:  start,
		EndDateTime:    end,
		ForeColor:      untis.DefaultForeColor,
		BackColor:      untis.DefaultBackColor,
		InnerForeColor: untis.DefaultForeColor,
		InnerBackColor: untis.DefaultBackColor,
	}
	if len(d.IDs) > 0 {
		p.LessonID = d.IDs[0]
	}
	p.Text.Lesson = firstNonEmpty(d.Texts.Lesson, d.Name)
	p.Text.Substitution = d.Texts.Substitution
	p.Text.Info = d.Texts.Info
	p.Is = statesOf(d.Status, "", d.Texts.Substitution)
	for _, re := range d.Elements {
		if e, ok := re.toElement(idx); ok {
			p.Elements = append(p.Elements, e)
		}
	}
	p.BlockHash = untis.ComputeBlockHash(p)

	return p
}

func syntheticID(ids []int64, start time.Time, seq int) int64 {
	if len(ids) > 0 {
		return ids[0]
	}

	return start.Unix() + int64(seq)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
