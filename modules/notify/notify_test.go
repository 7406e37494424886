package notify

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/database"
	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/untis"
)

func period(id int64, start time.Time, title string) untis.Period {
	return untis.Period{
		ID:            id,
		StartDateTime: start,
		EndDateTime:   start.Add(45 * time.Minute),
		Text:          untis.PeriodText{Lesson: title},
	}
}

func TestHashIgnoresZone(t *testing.T) {
	utc := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	shifted := utc.In(time.FixedZone("CET", 3600))

	a := period(1, utc, "Maths")
	b := period(1, shifted, "Maths")
	if Hash(a) != Hash(b) {
		t.Error("same instant hashed differently")
	}

	b.Elements = []untis.PeriodElement{{Type: untis.ElementRoom, Name: "R5"}}
	if Hash(a) == Hash(b) {
		t.Error("room change went unnoticed")
	}
}

func TestCompare(t *testing.T) {
	start := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	old := []untis.Period{
		period(1, start, "Maths"),
		period(2, start.Add(time.Hour), "History"),
	}
	fresh := []untis.Period{
		period(1, start, "Maths"),
		period(2, start.Add(2*time.Hour), "History"), // moved
	}

	added, removed := Compare(fresh, old)
	if len(added) != 1 || added[0].StartDateTime.Hour() != 10 {
		t.Errorf("added = %+v", added)
	}
	if len(removed) != 1 || removed[0].StartDateTime.Hour() != 9 {
		t.Errorf("removed = %+v", removed)
	}

	added, removed = Compare(old, old)
	if added != nil || removed != nil {
		t.Errorf("no-change diff: %v %v", added, removed)
	}
}

func TestBuildChangeMessageCap(t *testing.T) {
	start := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	var added []untis.Period
	for i := 0; i < 12; i++ {
		added = append(added, period(int64(i), start.Add(time.Duration(i)*time.Hour), "L"))
	}

	msg := BuildChangeMessage(added, nil, start)
	if !strings.Contains(msg, "➕") || strings.Contains(msg, "➖") {
		t.Errorf("sections wrong:\n%s", msg)
	}
	if got := strings.Count(msg, "📆"); got != 10 {
		t.Errorf("entries = %d, want capped at 10", got)
	}
}

type stubFetcher struct {
	tt    untis.Timetable
	err   error
	calls int
}

func (f *stubFetcher) OwnTimetable(context.Context, time.Time, time.Time) (untis.Timetable, error) {
	f.calls++

	return f.tt, f.err
}

func testWatcher(t *testing.T) (*Watcher, *database.Store, *stubFetcher) {
	t.Helper()
	engine, err := database.ConnectSqlite(filepath.Join(t.TempDir(), "notify.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	engine.ShowSQL(false)
	t.Cleanup(func() { engine.Close() })

	store := database.NewStore(engine)
	fetcher := &stubFetcher{}
	w := &Watcher{
		Store: store,
		Sessions: func(userKey string) (Fetcher, bool) {
			return fetcher, userKey == "k"
		},
	}

	return w, store, fetcher
}

func TestCheckTargetHourlyGate(t *testing.T) {
	w, store, fetcher := testWatcher(t)
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	target, err := store.EnsureWatchTarget("k", 100)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.TouchWatchTarget(target.WatchID, now.Add(-30*time.Minute)); err != nil {
		t.Fatal(err)
	}
	target.LastCheck = now.Add(-30 * time.Minute)

	if _, _, err := w.CheckTarget(context.Background(), target, now); err != nil {
		t.Fatal(err)
	}
	if fetcher.calls != 0 {
		t.Error("checked again within the hour")
	}

	target.LastCheck = now.Add(-2 * time.Hour)
	if _, _, err := w.CheckTarget(context.Background(), target, now); err != nil {
		t.Fatal(err)
	}
	if fetcher.calls != 1 {
		t.Errorf("calls = %d", fetcher.calls)
	}

	targets, _ := store.WatchTargets()
	if !targets[0].LastCheck.Equal(now) {
		t.Errorf("last check not advanced: %v", targets[0].LastCheck)
	}
}

func TestCheckTargetReportsChanges(t *testing.T) {
	w, store, fetcher := testWatcher(t)
	now := time.Date(2024, 1, 17, 12, 0, 0, 0, time.UTC)
	start, end := untis.WeekRange(now, 0)

	slot := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	old := untis.NewTimetable(start, end, []untis.Period{
		period(1, slot, "Maths"),
		period(2, slot.Add(time.Hour), "History"),
	})
	if err := store.SaveTimetable("k", start, end, old); err != nil {
		t.Fatal(err)
	}
	fetcher.tt = untis.NewTimetable(start, end, []untis.Period{
		period(1, slot, "Maths"),
		period(3, slot.Add(time.Hour), "Physics"),
	})

	target, err := store.EnsureWatchTarget("k", 100)
	if err != nil {
		t.Fatal(err)
	}
	target.LastCheck = now.Add(-2 * time.Hour)

	added, removed, err := w.CheckTarget(context.Background(), target, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(added) != 1 || added[0].Title() != "Physics" {
		t.Errorf("added = %+v", added)
	}
	if len(removed) != 1 || removed[0].Title() != "History" {
		t.Errorf("removed = %+v", removed)
	}
}

func TestCheckTargetFirstFetchSilent(t *testing.T) {
	w, store, fetcher := testWatcher(t)
	now := time.Date(2024, 1, 17, 12, 0, 0, 0, time.UTC)
	fetcher.tt = untis.Timetable{Periods: []untis.Period{period(1, now, "Maths")}}

	target, err := store.EnsureWatchTarget("k", 100)
	if err != nil {
		t.Fatal(err)
	}
	target.LastCheck = now.Add(-2 * time.Hour)

	added, removed, err := w.CheckTarget(context.Background(), target, now)
	if err != nil {
		t.Fatal(err)
	}
	if added != nil || removed != nil {
		t.Error("first fetch must stay silent")
	}
	if fetcher.calls != 1 {
		t.Errorf("calls = %d", fetcher.calls)
	}
}

func TestRemindUpcoming(t *testing.T) {
	w, store, _ := testWatcher(t)
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	if _, err := store.EnsureWatchTarget("k", 100); err != nil {
		t.Fatal(err)
	}
	soon := period(1, now.Add(reminderLead), "Maths")
	cancelled := period(2, now.Add(reminderLead), "History")
	cancelled.Is = []untis.PeriodState{untis.StateCancelled}
	later := period(3, now.Add(reminderLead+5*time.Minute), "Physics")

	start, end := untis.WeekRange(now, 0)
	tt := untis.NewTimetable(start, end, []untis.Period{soon, cancelled, later})
	if err := store.SaveTimetable("k", start, end, tt); err != nil {
		t.Fatal(err)
	}

	if sent := w.RemindUpcoming(now); sent != 1 {
		t.Errorf("sent = %d", sent)
	}
}
