package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/caps"
	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/untis"
	"xorm.io/xorm"
)

func openTestDB(t *testing.T) *xorm.Engine {
	t.Helper()
	engine, err := ConnectSqlite(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	engine.ShowSQL(false)
	t.Cleanup(func() { engine.Close() })

	return engine
}

func TestCredentialsRoundTrip(t *testing.T) {
	s := NewStore(openTestDB(t))
	creds := untis.Credentials{Identity: "jane", Secret: "pw", PersonID: 42, PersonType: 5, KlasseID: 7, AppSecret: "S"}

	if err := s.SaveCredentials("jane@demo@example.com", creds); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.LoadCredentials("jane@demo@example.com")
	if err != nil || !ok {
		t.Fatalf("load: %v %v", ok, err)
	}
	if got != creds {
		t.Errorf("got %+v, want %+v", got, creds)
	}

	creds.Secret = "changed"
	if err := s.SaveCredentials("jane@demo@example.com", creds); err != nil {
		t.Fatal(err)
	}
	got, _, _ = s.LoadCredentials("jane@demo@example.com")
	if got.Secret != "changed" {
		t.Errorf("update lost, secret = %q", got.Secret)
	}

	if _, ok, err := s.LoadCredentials("nobody"); ok || err != nil {
		t.Errorf("unknown key: %v %v", ok, err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	s := NewStore(openTestDB(t))

	if err := s.SaveToken("k", "tok1"); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveToken("k", "tok2"); err != nil {
		t.Fatal(err)
	}
	token, ok, err := s.LoadToken("k")
	if err != nil || !ok || token != "tok2" {
		t.Errorf("token = %q %v %v", token, ok, err)
	}
}

func TestCapabilitiesRoundTrip(t *testing.T) {
	s := NewStore(openTestDB(t))
	c := caps.ServerCapabilities{
		Server:          "example.com",
		School:          "demo",
		SupportsLegacy:  true,
		SupportsREST:    false,
		SupportsHTML:    true,
		EnhancedMethods: []string{"getUserData2017", "getTimetable2017"},
		ServerVersion:   "2023.4.2",
		LastChecked:     time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
	}

	if err := s.SaveCapabilities(c); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.LoadCapabilities("example.com", "demo")
	if err != nil || !ok {
		t.Fatalf("load: %v %v", ok, err)
	}
	if got.SupportsREST || !got.SupportsLegacy || got.ServerVersion != "2023.4.2" {
		t.Errorf("got %+v", got)
	}
	if !got.SupportsEnhanced("getTimetable2017") || got.SupportsEnhanced("getExams2017") {
		t.Errorf("enhanced = %v", got.EnhancedMethods)
	}

	c.EnhancedMethods = nil
	c.SupportsREST = true
	if err := s.SaveCapabilities(c); err != nil {
		t.Fatal(err)
	}
	got, _, _ = s.LoadCapabilities("example.com", "demo")
	if len(got.EnhancedMethods) != 0 || !got.SupportsREST {
		t.Errorf("update lost: %+v", got)
	}
}

func TestMasterDataReplaceAndSearch(t *testing.T) {
	s := NewStore(openTestDB(t))
	first := []untis.MasterDataEntry{
		{Type: untis.ElementSubject, ID: 20, Name: "M", LongName: "Mathematics"},
		{Type: untis.ElementRoom, ID: 5, Name: "R5", DisplayName: "Lab A"},
		{Type: untis.ElementTeacher, ID: 3, Name: "DOE", LongName: "Doe"},
	}

	if err := s.SaveMasterData("k", first); err != nil {
		t.Fatal(err)
	}
	got, err := s.LoadMasterData("k")
	if err != nil || len(got) != 3 {
		t.Fatalf("load: %d %v", len(got), err)
	}

	// a later refresh replaces, never appends
	if err := s.SaveMasterData("k", first[:1]); err != nil {
		t.Fatal(err)
	}
	got, _ = s.LoadMasterData("k")
	if len(got) != 1 || got[0].LongName != "Mathematics" {
		t.Errorf("replace failed: %+v", got)
	}

	if err := s.SaveMasterData("k", first); err != nil {
		t.Fatal(err)
	}
	hits, err := s.SearchElements("k", "Lab")
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != 5 {
		t.Errorf("search = %+v", hits)
	}
	if hits, _ := s.SearchElements("other", "Lab"); len(hits) != 0 {
		t.Error("search leaked across user keys")
	}
}

func TestTimetableBlobRoundTrip(t *testing.T) {
	s := NewStore(openTestDB(t))
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 21, 0, 0, 0, 0, time.UTC)
	tt := untis.Timetable{
		DisplayableStartDate: start,
		DisplayableEndDate:   end,
		Periods: []untis.Period{{
			ID:            501,
			StartDateTime: time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC),
			EndDateTime:   time.Date(2024, 1, 15, 9, 45, 0, 0, time.UTC),
			Is:            []untis.PeriodState{untis.StateCancelled},
		}},
		Warning: "",
	}

	if err := s.SaveTimetable("k", start, end, tt); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.LoadTimetable("k", start, end)
	if err != nil || !ok {
		t.Fatalf("load: %v %v", ok, err)
	}
	if len(got.Periods) != 1 || got.Periods[0].ID != 501 {
		t.Errorf("periods = %+v", got.Periods)
	}
	if !got.Periods[0].StartDateTime.Equal(tt.Periods[0].StartDateTime) {
		t.Errorf("start = %v", got.Periods[0].StartDateTime)
	}
	if !got.Periods[0].HasState(untis.StateCancelled) {
		t.Error("states lost in the roundtrip")
	}

	if _, ok, _ := s.LoadTimetable("k", start.AddDate(0, 0, 7), end.AddDate(0, 0, 7)); ok {
		t.Error("wrong range served")
	}
}

func TestLoadLatestTimetable(t *testing.T) {
	s := NewStore(openTestDB(t))
	old := TimetableBlob{
		CacheKey: "k|20240108|20240114", UserKey: "k",
		Payload: `{"Periods":[{"ID":1}]}`,
		Fetched: time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC),
	}
	newer := TimetableBlob{
		CacheKey: "k|20240115|20240121", UserKey: "k",
		Payload: `{"Periods":[{"ID":2}]}`,
		Fetched: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
	}
	if _, err := s.DB.Insert(&old, &newer); err != nil {
		t.Fatal(err)
	}

	tt, ok, err := s.LoadLatestTimetable("k")
	if err != nil || !ok {
		t.Fatalf("load: %v %v", ok, err)
	}
	if len(tt.Periods) != 1 || tt.Periods[0].ID != 2 {
		t.Errorf("latest = %+v", tt.Periods)
	}
}

func TestGenerateID(t *testing.T) {
	db := openTestDB(t)
	id, err := GenerateID(db, &WatchTarget{})
	if err != nil {
		t.Fatal(err)
	}
	if id < 100000000 || id > 999999999 {
		t.Errorf("id = %d, want 9 digits", id)
	}
}

func TestEnsureWatchTargetIdempotent(t *testing.T) {
	s := NewStore(openTestDB(t))
	first, err := s.EnsureWatchTarget("k", 100)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.EnsureWatchTarget("k", 100)
	if err != nil {
		t.Fatal(err)
	}
	if first.WatchID != second.WatchID {
		t.Errorf("duplicate watch targets: %d != %d", first.WatchID, second.WatchID)
	}

	targets, err := s.WatchTargets()
	if err != nil || len(targets) != 1 {
		t.Fatalf("targets = %d %v", len(targets), err)
	}

	stamp := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	if err := s.TouchWatchTarget(first.WatchID, stamp); err != nil {
		t.Fatal(err)
	}
	targets, _ = s.WatchTargets()
	if !targets[0].LastCheck.Equal(stamp) {
		t.Errorf("last check = %v", targets[0].LastCheck)
	}
}

func TestEnsureFeed(t *testing.T) {
	s := NewStore(openTestDB(t))
	feed, err := s.EnsureFeed("k", "Jane's timetable")
	if err != nil {
		t.Fatal(err)
	}
	again, err := s.EnsureFeed("k", "renamed")
	if err != nil {
		t.Fatal(err)
	}
	if feed.FeedID != again.FeedID {
		t.Error("feed not reused")
	}

	got, ok, err := s.FeedByID(feed.FeedID)
	if err != nil || !ok || got.UserKey != "k" {
		t.Errorf("feed = %+v %v %v", got, ok, err)
	}
	if _, ok, _ := s.FeedByID(1); ok {
		t.Error("unknown feed id found")
	}
}
