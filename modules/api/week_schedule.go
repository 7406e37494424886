package api

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/untis"
	"github.com/icza/gox/timex"
)

// WeekView is a timetable laid out as a table: rows are the distinct start
// times of the week, columns the seven days.
type WeekView struct {
	Blocks [][7][]untis.Period
	Times  [][2]time.Time // begin and end wall time per row
	Dates  []time.Time    // the seven days of the week
}

// BuildWeekView distributes the periods of one week onto the grid.
// Periods sharing a start time on the same day land in the same cell.
func BuildWeekView(tt untis.Timetable, ref time.Time, offset int) (WeekView, error) {
	var view WeekView
	if len(tt.Periods) == 0 {
		return view, fmt.Errorf("no periods between %s and %s",
			untis.FormatDate8(tt.DisplayableStartDate), untis.FormatDate8(tt.DisplayableEndDate))
	}

	// Row index is keyed by the wall time of the period start.
	begins := make(map[time.Time][2]time.Time)
	for _, p := range tt.Periods {
		b := p.StartDateTime
		e := p.EndDateTime
		begin := time.Date(2000, 1, 1, b.Hour(), b.Minute(), 0, 0, b.Location())
		end := time.Date(2000, 1, 1, e.Hour(), e.Minute(), 0, 0, e.Location())
		if known, ok := begins[begin]; !ok || end.After(known[1]) {
			begins[begin] = [2]time.Time{begin, end}
		}
	}
	var times [][2]time.Time
	for _, span := range begins {
		times = append(times, span)
	}
	sort.Slice(times, func(i, j int) bool {
		return times[i][0].Before(times[j][0])
	})
	rows := make(map[time.Time]int, len(times))
	for i, span := range times {
		rows[span[0]] = i
	}

	year, week := ref.AddDate(0, 0, offset*7).ISOWeek()
	weekBegin := timex.WeekStart(year, week)
	var dates []time.Time
	for i := 0; i < 7; i++ {
		dates = append(dates, weekBegin.Add(time.Hour*time.Duration(24*i)))
	}

	table := make([][7][]untis.Period, len(times))
	for _, block := range GroupBlocks(tt.Periods) {
		b := block[0].StartDateTime
		day := int(math.Floor(b.Sub(weekBegin).Hours() / 24))
		if day < 0 || day > 6 {
			continue
		}
		begin := time.Date(2000, 1, 1, b.Hour(), b.Minute(), 0, 0, b.Location())
		table[rows[begin]][day] = append(table[rows[begin]][day], block...)
	}

	view.Blocks = table
	view.Times = times
	view.Dates = dates

	return view, nil
}

// Day returns the column of a single week day, outermost rows first.
func (view WeekView) Day(day int) []untis.Period {
	var periods []untis.Period
	if day < 0 || day > 6 {
		return periods
	}
	for _, row := range view.Blocks {
		periods = append(periods, row[day]...)
	}

	return periods
}
