package hybrid

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/caps"
	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/untis"
)

type fakeStrategy struct {
	protocol  string
	authErr   error
	authCalls int
	dataErr   error
	dataCalls int
	tt        untis.Timetable
	lastQuery TimetableQuery
}

func (f *fakeStrategy) Protocol() string { return f.protocol }

func (f *fakeStrategy) Authenticate(context.Context, string) error {
	f.authCalls++

	return f.authErr
}

func (f *fakeStrategy) Timetable(_ context.Context, q TimetableQuery) (untis.Timetable, error) {
	f.dataCalls++
	f.lastQuery = q
	if f.dataErr != nil {
		return untis.Timetable{}, f.dataErr
	}

	return f.tt, nil
}

func (f *fakeStrategy) Absences(context.Context, time.Time, time.Time) ([]untis.Absence, error) {
	f.dataCalls++
	if f.dataErr != nil {
		return nil, f.dataErr
	}

	return []untis.Absence{{ID: 1}}, nil
}

func (f *fakeStrategy) HomeWorks(context.Context, time.Time, time.Time) ([]untis.PeriodHomeWork, error) {
	f.dataCalls++

	return nil, f.dataErr
}

func (f *fakeStrategy) Exams(context.Context, time.Time, time.Time) ([]untis.Exam, error) {
	f.dataCalls++

	return nil, f.dataErr
}

func testConfig() Config {
	return Config{
		Server:     "example.com",
		School:     "demo",
		Identity:   "jane",
		EnableRPC:  true,
		EnableREST: true,
		EnableHTML: true,
	}
}

// testSession builds a session whose protocols are fakes and whose
// capabilities are pinned, so nothing touches the network.
func testSession(t *testing.T, cfg Config, stores Collaborators) (*Session, map[string]*fakeStrategy) {
	t.Helper()
	s, err := New(cfg, stores)
	if err != nil {
		t.Fatal(err)
	}
	fakes := map[string]*fakeStrategy{
		caps.ProtocolRPC:  {protocol: caps.ProtocolRPC},
		caps.ProtocolREST: {protocol: caps.ProtocolREST},
		caps.ProtocolHTML: {protocol: caps.ProtocolHTML},
	}
	s.caps = nil
	s.capsKnown = true
	s.capabilities = caps.ServerCapabilities{
		Server: cfg.Server, School: cfg.School,
		SupportsLegacy: true, SupportsREST: true, SupportsHTML: true,
		LastChecked: time.Now(),
	}
	s.strategies = map[string]Strategy{}
	for p, f := range fakes {
		s.strategies[p] = f
	}

	return s, fakes
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	broken := cfg
	broken.Identity = ""
	if err := broken.Validate(); err == nil {
		t.Error("missing identity accepted")
	}

	dark := cfg
	dark.EnableRPC, dark.EnableREST, dark.EnableHTML = false, false, false
	if err := dark.Validate(); err == nil {
		t.Error("all protocols disabled accepted")
	}
}

func TestUserKey(t *testing.T) {
	if got := testConfig().UserKey(); got != "jane@demo@example.com" {
		t.Errorf("user key = %q", got)
	}
}

func TestAuthenticatePrefersRPCByDefault(t *testing.T) {
	s, fakes := testSession(t, testConfig(), Collaborators{})

	if err := s.Authenticate(context.Background(), "pw"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if s.CurrentProtocol() != caps.ProtocolRPC {
		t.Errorf("current = %s", s.CurrentProtocol())
	}
	if fakes[caps.ProtocolREST].authCalls != 0 {
		t.Error("rest tried although rpc succeeded")
	}
}

func TestAuthenticatePreferREST(t *testing.T) {
	cfg := testConfig()
	cfg.PreferREST = true
	s, fakes := testSession(t, cfg, Collaborators{})

	if err := s.Authenticate(context.Background(), "pw"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if s.CurrentProtocol() != caps.ProtocolREST {
		t.Errorf("current = %s", s.CurrentProtocol())
	}
	if fakes[caps.ProtocolRPC].authCalls != 0 {
		t.Error("rpc tried although rest succeeded")
	}
}

func TestAuthenticateWalksAllAndAggregates(t *testing.T) {
	s, fakes := testSession(t, testConfig(), Collaborators{})
	fakes[caps.ProtocolRPC].authErr = &untis.ServerError{Code: untis.CodeBadCredentials}
	fakes[caps.ProtocolREST].authErr = &untis.HTTPError{Status: 401, URL: "auth"}
	fakes[caps.ProtocolHTML].authErr = untis.ErrNotImplemented

	err := s.Authenticate(context.Background(), "wrong")
	if err == nil {
		t.Fatal("expected failure")
	}
	var af *untis.AuthFailedError
	if !errors.As(err, &af) {
		t.Fatalf("expected the aggregate error, got %v", err)
	}
	if len(af.Attempts) != 3 {
		t.Errorf("attempts = %d", len(af.Attempts))
	}
	if !untis.BadCredentials(err) {
		t.Error("credential rejection lost in the aggregate")
	}
	if s.Authenticated() || s.CurrentProtocol() != "" {
		t.Error("failed login must not mark the session authenticated")
	}
}

func TestAuthenticateFallsThrough(t *testing.T) {
	cfg := testConfig()
	cfg.PreferREST = true
	s, fakes := testSession(t, cfg, Collaborators{})
	fakes[caps.ProtocolREST].authErr = &untis.TransportError{URL: "rest", Err: errors.New("down")}

	if err := s.Authenticate(context.Background(), "pw"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if s.CurrentProtocol() != caps.ProtocolRPC {
		t.Errorf("current = %s", s.CurrentProtocol())
	}
}

func TestAuthenticateSkipsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.EnableRPC = false
	s, fakes := testSession(t, cfg, Collaborators{})

	if err := s.Authenticate(context.Background(), "pw"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if fakes[caps.ProtocolRPC].authCalls != 0 {
		t.Error("disabled protocol was tried")
	}
	if s.CurrentProtocol() != caps.ProtocolREST {
		t.Errorf("current = %s", s.CurrentProtocol())
	}
}

func TestDataOpsNeedLogin(t *testing.T) {
	s, _ := testSession(t, testConfig(), Collaborators{})

	_, err := s.Timetable(context.Background(), TimetableQuery{})
	if !errors.Is(err, untis.ErrNotAuthenticated) {
		t.Errorf("timetable before login: %v", err)
	}
	_, err = s.Absences(context.Background(), time.Now(), time.Now())
	if !errors.Is(err, untis.ErrNotAuthenticated) {
		t.Errorf("absences before login: %v", err)
	}
}

func TestDataWalkEachOnceLastErrorWins(t *testing.T) {
	cfg := testConfig()
	cfg.EnableREST = false
	s, fakes := testSession(t, cfg, Collaborators{})
	if err := s.Authenticate(context.Background(), "pw"); err != nil {
		t.Fatal(err)
	}
	errRPC := errors.New("rpc broke")
	errHTML := errors.New("html broke")
	fakes[caps.ProtocolRPC].dataErr = errRPC
	fakes[caps.ProtocolHTML].dataErr = errHTML

	_, err := s.Timetable(context.Background(), TimetableQuery{})
	if !errors.Is(err, errHTML) {
		t.Errorf("surfaced error = %v, want the last one", err)
	}
	if fakes[caps.ProtocolRPC].dataCalls != 1 || fakes[caps.ProtocolHTML].dataCalls != 1 {
		t.Errorf("calls rpc=%d html=%d, each protocol gets exactly one try",
			fakes[caps.ProtocolRPC].dataCalls, fakes[caps.ProtocolHTML].dataCalls)
	}
}

func TestDataWalkFallsBack(t *testing.T) {
	s, fakes := testSession(t, testConfig(), Collaborators{})
	if err := s.Authenticate(context.Background(), "pw"); err != nil {
		t.Fatal(err)
	}
	fakes[caps.ProtocolRPC].dataErr = &untis.TransportError{URL: "rpc", Err: errors.New("down")}
	fakes[caps.ProtocolHTML].tt = untis.Timetable{Warning: "scraped"}

	tt, err := s.Timetable(context.Background(), TimetableQuery{})
	if err != nil {
		t.Fatalf("fallback failed: %v", err)
	}
	if tt.Warning != "scraped" {
		t.Errorf("unexpected result %+v", tt)
	}
}

func TestPreferRESTPromotesDataOps(t *testing.T) {
	cfg := testConfig()
	cfg.PreferREST = true
	s, fakes := testSession(t, cfg, Collaborators{})
	fakes[caps.ProtocolREST].authErr = &untis.TransportError{URL: "rest", Err: errors.New("flaky")}
	if err := s.Authenticate(context.Background(), "pw"); err != nil {
		t.Fatal(err)
	}
	if s.CurrentProtocol() != caps.ProtocolRPC {
		t.Fatalf("precondition: current = %s", s.CurrentProtocol())
	}

	// a token appeared later, e.g. restored or refreshed out of band
	s.rest.SetToken("tok")
	fakes[caps.ProtocolREST].authErr = nil
	if _, err := s.Timetable(context.Background(), TimetableQuery{}); err != nil {
		t.Fatal(err)
	}
	if fakes[caps.ProtocolREST].dataCalls != 1 {
		t.Error("rest should be promoted to primary once a token exists")
	}
	if fakes[caps.ProtocolRPC].dataCalls != 0 {
		t.Error("promoted rest succeeded, rpc should not run")
	}
}

type memCredStore struct {
	creds map[string]untis.Credentials
}

func (m *memCredStore) SaveCredentials(key string, c untis.Credentials) error {
	if m.creds == nil {
		m.creds = map[string]untis.Credentials{}
	}
	m.creds[key] = c

	return nil
}

func (m *memCredStore) LoadCredentials(key string) (untis.Credentials, bool, error) {
	c, ok := m.creds[key]

	return c, ok, nil
}

func TestAuthenticateStoresCredentials(t *testing.T) {
	store := &memCredStore{}
	s, _ := testSession(t, testConfig(), Collaborators{Credentials: store})

	if err := s.Authenticate(context.Background(), "pw"); err != nil {
		t.Fatal(err)
	}
	creds, ok := store.creds["jane@demo@example.com"]
	if !ok {
		t.Fatal("credentials not persisted")
	}
	if creds.Identity != "jane" || creds.Secret != "pw" {
		t.Errorf("stored creds = %+v", creds)
	}
}

func TestAuthenticateStored(t *testing.T) {
	store := &memCredStore{creds: map[string]untis.Credentials{
		"jane@demo@example.com": {Identity: "jane", Secret: "pw", PersonID: 42, PersonType: 5, KlasseID: 7},
	}}
	s, fakes := testSession(t, testConfig(), Collaborators{Credentials: store})

	if err := s.AuthenticateStored(context.Background()); err != nil {
		t.Fatalf("stored login: %v", err)
	}
	if fakes[caps.ProtocolRPC].authCalls != 1 {
		t.Error("stored login should replay through the strategies")
	}

	empty, _ := testSession(t, testConfig(), Collaborators{Credentials: &memCredStore{}})
	if err := empty.AuthenticateStored(context.Background()); !errors.Is(err, untis.ErrMissingCredentials) {
		t.Errorf("expected ErrMissingCredentials, got %v", err)
	}
}

type memTokenStore struct {
	tokens map[string]string
}

func (m *memTokenStore) SaveToken(key, token string) error {
	if m.tokens == nil {
		m.tokens = map[string]string{}
	}
	m.tokens[key] = token

	return nil
}

func (m *memTokenStore) LoadToken(key string) (string, bool, error) {
	token, ok := m.tokens[key]

	return token, ok, nil
}

func TestLogoutClearsToken(t *testing.T) {
	store := &memTokenStore{tokens: map[string]string{"jane@demo@example.com": "tok"}}
	cfg := testConfig()
	cfg.PreferREST = true
	s, _ := testSession(t, cfg, Collaborators{Tokens: store})

	if err := s.Authenticate(context.Background(), "pw"); err != nil {
		t.Fatal(err)
	}
	s.rest.SetToken("tok")

	s.Logout(context.Background())
	if s.Authenticated() || s.CurrentProtocol() != "" {
		t.Error("session still authenticated after logout")
	}
	if s.rest.Token() != "" {
		t.Error("bearer token survived the logout")
	}
	if store.tokens["jane@demo@example.com"] != "" {
		t.Error("stored token survived the logout")
	}
}

func TestOwnTimetableElement(t *testing.T) {
	s, fakes := testSession(t, testConfig(), Collaborators{})
	if err := s.Authenticate(context.Background(), "pw"); err != nil {
		t.Fatal(err)
	}

	s.notePerson(42, 5, 7)
	if _, err := s.OwnTimetable(context.Background(), time.Now(), time.Now()); err != nil {
		t.Fatal(err)
	}
	q := fakes[caps.ProtocolRPC].lastQuery
	if q.Type != untis.ElementStudent || q.ID != 42 {
		t.Errorf("query = %+v, want the student element", q)
	}

	s.personID, s.personType = 0, 0
	if _, err := s.OwnTimetable(context.Background(), time.Now(), time.Now()); err != nil {
		t.Fatal(err)
	}
	q = fakes[caps.ProtocolRPC].lastQuery
	if q.Type != untis.ElementKlasse || q.ID != 7 {
		t.Errorf("query = %+v, want the class element", q)
	}
}

type memTimetableCache struct {
	saved map[string]untis.Timetable
}

func cacheKey(key string, start, end time.Time) string {
	return key + "|" + start.Format("20060102") + "|" + end.Format("20060102")
}

func (m *memTimetableCache) SaveTimetable(key string, start, end time.Time, tt untis.Timetable) error {
	if m.saved == nil {
		m.saved = map[string]untis.Timetable{}
	}
	m.saved[cacheKey(key, start, end)] = tt

	return nil
}

func (m *memTimetableCache) LoadTimetable(key string, start, end time.Time) (untis.Timetable, bool, error) {
	tt, ok := m.saved[cacheKey(key, start, end)]

	return tt, ok, nil
}

func TestTimetableStoresThrough(t *testing.T) {
	cache := &memTimetableCache{}
	s, fakes := testSession(t, testConfig(), Collaborators{Timetables: cache})
	if err := s.Authenticate(context.Background(), "pw"); err != nil {
		t.Fatal(err)
	}
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.Local)
	end := time.Date(2024, 1, 21, 0, 0, 0, 0, time.Local)
	fakes[caps.ProtocolRPC].tt = untis.Timetable{Periods: []untis.Period{{ID: 1}}}

	if _, err := s.Timetable(context.Background(), TimetableQuery{Type: untis.ElementStudent, ID: 42, Start: start, End: end}); err != nil {
		t.Fatal(err)
	}
	cached, ok := s.CachedTimetable(start, end)
	if !ok {
		t.Fatal("fetch did not land in the cache")
	}
	if len(cached.Periods) != 1 || cached.Periods[0].ID != 1 {
		t.Errorf("cached = %+v", cached)
	}
}
