package api

import (
	"context"
	"log"
	"time"

	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/hybrid"
	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/untis"
)

// Source is the slice of the session the view layer needs.
type Source interface {
	OwnTimetable(ctx context.Context, start, end time.Time) (untis.Timetable, error)
	Timetable(ctx context.Context, q hybrid.TimetableQuery) (untis.Timetable, error)
	CachedTimetable(start, end time.Time) (untis.Timetable, bool)
}

// FetchWeek loads the user's timetable for the ISO week `offset` weeks away
// from ref. When every protocol fails the cached copy is served instead.
func FetchWeek(ctx context.Context, src Source, ref time.Time, offset int) (untis.Timetable, error) {
	start, end := untis.WeekRange(ref, offset)

	return fetch(ctx, src, start, end)
}

// FetchDay loads the user's timetable for a single day.
func FetchDay(ctx context.Context, src Source, ref time.Time, offset int) (untis.Timetable, error) {
	start, end := untis.DayRange(ref, offset)

	return fetch(ctx, src, start, end)
}

func fetch(ctx context.Context, src Source, start, end time.Time) (untis.Timetable, error) {
	tt, err := src.OwnTimetable(ctx, start, end)
	if err == nil {
		return tt, nil
	}
	if cached, ok := src.CachedTimetable(start, end); ok {
		log.Println("live fetch failed, serving the cached timetable:", err)
		cached.Warning = "cached copy, the server could not be reached"

		return cached, nil
	}

	return untis.Timetable{}, err
}

// FetchElementWeek loads the week timetable of an arbitrary element,
// e.g. a room or another class.
func FetchElementWeek(
	ctx context.Context,
	src Source,
	t untis.ElementType,
	id int64,
	ref time.Time,
	offset int,
) (untis.Timetable, error) {
	start, end := untis.WeekRange(ref, offset)

	return src.Timetable(ctx, hybrid.TimetableQuery{Type: t, ID: id, Start: start, End: end})
}

// NextPeriod picks the first period that has not ended yet.
func NextPeriod(tt untis.Timetable, now time.Time) (untis.Period, bool) {
	for _, p := range tt.Periods {
		if p.EndDateTime.After(now) {
			return p, true
		}
	}

	return untis.Period{}, false
}

// DayPeriods filters the timetable down to a single day.
func DayPeriods(tt untis.Timetable, day time.Time) []untis.Period {
	var periods []untis.Period
	for _, p := range tt.Periods {
		y, m, d := p.StartDateTime.Date()
		wy, wm, wd := day.Date()
		if y == wy && m == wm && d == wd {
			periods = append(periods, p)
		}
	}

	return periods
}

// GroupBlocks groups periods that start at the same moment, e.g. parallel
// courses of two student groups sharing one slot.
func GroupBlocks(periods []untis.Period) [][]untis.Period {
	var blocks [][]untis.Period
	var block []untis.Period

	i := 0
	for i < len(periods) {
		begin := periods[i].StartDateTime
		for i < len(periods) && periods[i].StartDateTime.Equal(begin) {
			block = append(block, periods[i])
			i++
		}
		blocks = append(blocks, block)
		block = []untis.Period{}
	}

	return blocks
}
