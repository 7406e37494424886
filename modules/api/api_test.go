package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/hybrid"
	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/untis"
)

type stubSource struct {
	tt      untis.Timetable
	err     error
	cached  untis.Timetable
	hasCach bool

	start, end time.Time
	elemQuery  hybrid.TimetableQuery
}

func (s *stubSource) OwnTimetable(_ context.Context, start, end time.Time) (untis.Timetable, error) {
	s.start, s.end = start, end

	return s.tt, s.err
}

func (s *stubSource) Timetable(_ context.Context, q hybrid.TimetableQuery) (untis.Timetable, error) {
	s.elemQuery = q

	return s.tt, s.err
}

func (s *stubSource) CachedTimetable(start, end time.Time) (untis.Timetable, bool) {
	return s.cached, s.hasCach
}

func period(id int64, start, end time.Time) untis.Period {
	return untis.Period{ID: id, StartDateTime: start, EndDateTime: end}
}

func TestFetchWeekRange(t *testing.T) {
	src := &stubSource{tt: untis.Timetable{Warning: "live"}}
	ref := time.Date(2024, 1, 17, 13, 0, 0, 0, time.UTC)

	tt, err := FetchWeek(context.Background(), src, ref, 0)
	if err != nil {
		t.Fatal(err)
	}
	if tt.Warning != "live" {
		t.Errorf("got %+v", tt)
	}
	if got := src.start.Format("2006-01-02"); got != "2024-01-15" {
		t.Errorf("week start = %s", got)
	}
	if got := src.end.Format("2006-01-02"); got != "2024-01-21" {
		t.Errorf("week end = %s", got)
	}
}

func TestFetchWeekFallsBackToCache(t *testing.T) {
	boom := errors.New("all protocols down")
	src := &stubSource{
		err:     boom,
		cached:  untis.Timetable{Periods: []untis.Period{{ID: 9}}},
		hasCach: true,
	}

	tt, err := FetchWeek(context.Background(), src, time.Now(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(tt.Periods) != 1 || tt.Periods[0].ID != 9 {
		t.Errorf("cache not served: %+v", tt)
	}
	if tt.Warning == "" {
		t.Error("cached copy must carry a warning")
	}

	src.hasCach = false
	if _, err := FetchWeek(context.Background(), src, time.Now(), 0); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}

func TestFetchElementWeek(t *testing.T) {
	src := &stubSource{}
	ref := time.Date(2024, 1, 17, 13, 0, 0, 0, time.UTC)

	if _, err := FetchElementWeek(context.Background(), src, untis.ElementRoom, 5, ref, 1); err != nil {
		t.Fatal(err)
	}
	q := src.elemQuery
	if q.Type != untis.ElementRoom || q.ID != 5 {
		t.Errorf("query = %+v", q)
	}
	if got := q.Start.Format("2006-01-02"); got != "2024-01-22" {
		t.Errorf("next week start = %s", got)
	}
}

func TestNextPeriod(t *testing.T) {
	now := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	tt := untis.NewTimetable(now, now, []untis.Period{
		period(1, now.Add(-2*time.Hour), now.Add(-time.Hour)),
		period(2, now.Add(-30*time.Minute), now.Add(30*time.Minute)),
		period(3, now.Add(time.Hour), now.Add(2*time.Hour)),
	})

	next, ok := NextPeriod(tt, now)
	if !ok || next.ID != 2 {
		t.Errorf("next = %+v %v", next, ok)
	}

	_, ok = NextPeriod(tt, now.Add(3*time.Hour))
	if ok {
		t.Error("found a period after the day ended")
	}
}

func TestGroupBlocks(t *testing.T) {
	start := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	tt := untis.NewTimetable(start, start, []untis.Period{
		period(1, start, start.Add(45*time.Minute)),
		period(2, start, start.Add(45*time.Minute)),
		period(3, start.Add(time.Hour), start.Add(105*time.Minute)),
	})

	blocks := GroupBlocks(tt.Periods)
	if len(blocks) != 2 {
		t.Fatalf("blocks = %d", len(blocks))
	}
	if len(blocks[0]) != 2 || len(blocks[1]) != 1 {
		t.Errorf("block sizes = %d %d", len(blocks[0]), len(blocks[1]))
	}
}

func TestBuildWeekView(t *testing.T) {
	// Monday and Wednesday of ISO week 3, 2024.
	mon := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	wed := time.Date(2024, 1, 17, 10, 0, 0, 0, time.UTC)
	tt := untis.NewTimetable(mon, wed, []untis.Period{
		period(1, mon, mon.Add(45*time.Minute)),
		period(2, wed, wed.Add(45*time.Minute)),
		period(3, mon.Add(3*time.Hour), mon.Add(3*time.Hour+45*time.Minute)),
	})

	view, err := BuildWeekView(tt, mon, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Blocks) != 3 || len(view.Dates) != 7 {
		t.Fatalf("dims = %d rows, %d dates", len(view.Blocks), len(view.Dates))
	}
	if got := view.Dates[0].Format("2006-01-02"); got != "2024-01-15" {
		t.Errorf("week begins %s", got)
	}
	// 08:00 row, Monday column
	if len(view.Blocks[0][0]) != 1 || view.Blocks[0][0][0].ID != 1 {
		t.Errorf("row 0: %+v", view.Blocks[0])
	}
	// 10:00 row, Wednesday column
	if len(view.Blocks[1][2]) != 1 || view.Blocks[1][2][0].ID != 2 {
		t.Errorf("row 1: %+v", view.Blocks[1])
	}
	// 11:00 row, back on Monday
	if len(view.Blocks[2][0]) != 1 || view.Blocks[2][0][0].ID != 3 {
		t.Errorf("row 2: %+v", view.Blocks[2])
	}
	if got := view.Times[0][0].Format("15:04"); got != "08:00" {
		t.Errorf("first slot = %s", got)
	}

	if day := view.Day(0); len(day) != 2 {
		t.Errorf("monday = %+v", day)
	}
	if _, err := BuildWeekView(untis.Timetable{}, mon, 0); err == nil {
		t.Error("empty week must error")
	}
}

type stubInfo struct {
	absErr error
}

func (s stubInfo) Absences(context.Context, time.Time, time.Time) ([]untis.Absence, error) {
	return []untis.Absence{{ID: 1}}, s.absErr
}

func (s stubInfo) HomeWorks(context.Context, time.Time, time.Time) ([]untis.PeriodHomeWork, error) {
	return []untis.PeriodHomeWork{
		{ID: 1, Text: "done", Completed: true},
		{ID: 2, Text: "overdue", EndDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)},
		{ID: 3, Text: "open", EndDate: time.Date(2024, 1, 19, 0, 0, 0, 0, time.UTC)},
	}, nil
}

func (s stubInfo) Exams(context.Context, time.Time, time.Time) ([]untis.Exam, error) {
	return nil, nil
}

func (s stubInfo) MessagesOfDay(context.Context, time.Time) ([]untis.MessageOfDay, error) {
	return []untis.MessageOfDay{{ID: 7, Subject: "canteen"}}, nil
}

func TestFetchInfoCenter(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	info, err := FetchInfoCenter(context.Background(), stubInfo{}, now, 0)
	if err != nil {
		t.Fatal(err)
	}
	if info.Empty() {
		t.Error("info center is empty")
	}
	if len(info.Messages) != 1 || info.Messages[0].Subject != "canteen" {
		t.Errorf("messages = %+v", info.Messages)
	}

	open := info.OpenHomeWorks(now)
	if len(open) != 1 || open[0].ID != 3 {
		t.Errorf("open homework = %+v", open)
	}

	if _, err := FetchInfoCenter(context.Background(), stubInfo{absErr: errors.New("down")}, now, 0); err == nil {
		t.Error("error must propagate")
	}
}
