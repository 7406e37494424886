// The hybrid session fronts all protocol clients behind one API: it
// negotiates capabilities, authenticates over whatever the server speaks,
// and walks the remaining protocols when the preferred one degrades.
package hybrid

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/caps"
	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/htmlclient"
	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/jsonrpc"
	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/rest"
	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/untis"
)

// CredentialStore persists login data per user key.
type CredentialStore interface {
	SaveCredentials(userKey string, creds untis.Credentials) error
	LoadCredentials(userKey string) (untis.Credentials, bool, error)
}

// TokenStore persists REST bearer tokens per user key.
type TokenStore interface {
	SaveToken(userKey, token string) error
	LoadToken(userKey string) (string, bool, error)
}

// TimetableCache keeps the latest fetch per user and range for offline use.
type TimetableCache interface {
	SaveTimetable(userKey string, start, end time.Time, tt untis.Timetable) error
	LoadTimetable(userKey string, start, end time.Time) (untis.Timetable, bool, error)
}

// MasterDataStore persists the element index between runs.
type MasterDataStore interface {
	SaveMasterData(userKey string, entries []untis.MasterDataEntry) error
	LoadMasterData(userKey string) ([]untis.MasterDataEntry, error)
}

// Collaborators bundles the optional persistence hooks. Any nil member
// simply switches that concern off.
type Collaborators struct {
	Credentials  CredentialStore
	Tokens       TokenStore
	Timetables   TimetableCache
	MasterData   MasterDataStore
	Capabilities caps.Store
}

// Session is the per-user orchestrator. One session serves one user on
// one school server; a new login starts a new session.
type Session struct {
	cfg    Config
	stores Collaborators

	rpc  *jsonrpc.Client
	rest *rest.Client
	html *htmlclient.Client
	caps *caps.Negotiator

	strategies map[string]Strategy

	mu            sync.Mutex
	authenticated bool
	current       string
	capabilities  caps.ServerCapabilities
	capsKnown     bool
	masterData    untis.MasterDataIndex
	personID      int64
	personType    int64
	klasseID      int64
	secret        string
}

func New(cfg Config, stores Collaborators) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Session{
		cfg:        cfg,
		stores:     stores,
		rpc:        jsonrpc.NewClient(cfg.Server, cfg.School, cfg.clientName()),
		rest:       rest.NewClient(cfg.Server, cfg.School, cfg.clientName()),
		html:       htmlclient.NewClient(cfg.Server, cfg.School),
		masterData: untis.NewMasterDataIndex(),
	}
	s.caps = caps.NewNegotiator(cfg.Server, cfg.School, stores.Capabilities, s.rpc)
	s.caps.Sniff = s.html
	s.strategies = map[string]Strategy{
		caps.ProtocolRPC:  rpcStrategy{s},
		caps.ProtocolREST: restStrategy{s},
		caps.ProtocolHTML: htmlStrategy{s},
	}
	if stores.MasterData != nil {
		if entries, err := stores.MasterData.LoadMasterData(cfg.UserKey()); err == nil {
			s.learnMasterData(entries)
		}
	}

	return s, nil
}

// Capabilities negotiates (or re-reads) what the server supports.
func (s *Session) Capabilities(ctx context.Context) (caps.ServerCapabilities, error) {
	if s.caps == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.capsKnown {
			// no negotiator wired in, assume everything
			s.capabilities = caps.ServerCapabilities{
				Server: s.cfg.Server, School: s.cfg.School,
				SupportsLegacy: true, SupportsREST: true, SupportsHTML: true,
				LastChecked: time.Now(),
			}
			s.capsKnown = true
		}

		return s.capabilities, nil
	}
	c, err := s.caps.Ensure(ctx)
	if err != nil {
		return c, err
	}
	s.mu.Lock()
	s.capabilities = c
	s.capsKnown = true
	s.mu.Unlock()

	return c, nil
}

// Authenticate logs in over the first protocol that takes the credentials.
// Every enabled and supported protocol is tried before giving up, and the
// collected failures are reported together.
func (s *Session) Authenticate(ctx context.Context, password string) error {
	capabilities, err := s.Capabilities(ctx)
	if err != nil {
		return err
	}
	var attempts []untis.AuthAttempt
	for _, protocol := range capabilities.TryOrder(s.cfg.PreferREST) {
		if !s.enabled(protocol) {
			continue
		}
		strategy := s.strategies[protocol]
		if err := strategy.Authenticate(ctx, password); err != nil {
			attempts = append(attempts, untis.AuthAttempt{Method: protocol, Err: err})
			continue
		}
		s.mu.Lock()
		s.authenticated = true
		s.current = protocol
		s.secret = password
		s.mu.Unlock()
		s.persistLogin()
		s.primeMasterData(ctx)

		return nil
	}

	return &untis.AuthFailedError{Attempts: attempts}
}

// AuthenticateStored replays the persisted credentials of this user.
func (s *Session) AuthenticateStored(ctx context.Context) error {
	if s.stores.Credentials == nil {
		return untis.ErrMissingCredentials
	}
	creds, ok, err := s.stores.Credentials.LoadCredentials(s.cfg.UserKey())
	if err != nil {
		return err
	}
	if !ok || creds.Secret == "" {
		return untis.ErrMissingCredentials
	}
	s.rpc.Restore(creds)
	s.notePerson(creds.PersonID, creds.PersonType, creds.KlasseID)
	if s.stores.Tokens != nil {
		if token, ok, err := s.stores.Tokens.LoadToken(s.cfg.UserKey()); err == nil && ok && token != "" {
			s.rest.SetToken(token)
		}
	}

	return s.Authenticate(ctx, creds.Secret)
}

// Logout drops the session state on both ends. RPC logout failures only
// get logged; locally the session is gone either way.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	wasRPC := s.current == caps.ProtocolRPC
	s.authenticated = false
	s.current = ""
	s.secret = ""
	s.mu.Unlock()
	s.rest.SetToken("")
	if s.stores.Tokens != nil {
		if err := s.stores.Tokens.SaveToken(s.cfg.UserKey(), ""); err != nil {
			log.Println("token clear failed:", err)
		}
	}
	if wasRPC {
		if err := s.rpc.Logout(ctx); err != nil {
			log.Println("rpc logout failed:", err)
		}
	}
}

// Timetable fetches periods for an explicit element, walking the protocol
// chain and caching the result.
func (s *Session) Timetable(ctx context.Context, q TimetableQuery) (untis.Timetable, error) {
	if !s.Authenticated() {
		return untis.Timetable{}, untis.ErrNotAuthenticated
	}
	var tt untis.Timetable
	err := s.walk(func(st Strategy) error {
		var err error
		tt, err = st.Timetable(ctx, q)

		return err
	})
	if err != nil {
		return untis.Timetable{}, err
	}
	if s.stores.Timetables != nil {
		if err := s.stores.Timetables.SaveTimetable(s.cfg.UserKey(), q.Start, q.End, tt); err != nil {
			log.Println("timetable cache write failed:", err)
		}
	}

	return tt, nil
}

// OwnTimetable fetches the logged-in user's own periods, deriving the
// element from the session: the person where known, the class otherwise.
func (s *Session) OwnTimetable(ctx context.Context, start, end time.Time) (untis.Timetable, error) {
	q := TimetableQuery{Start: start, End: end}
	personID, personType, klasseID := s.person()
	switch {
	case personID != 0:
		q.ID = personID
		q.Type = untis.ElementStudent
		if personType == 2 {
			q.Type = untis.ElementTeacher
		}
	case klasseID != 0:
		q.ID = klasseID
		q.Type = untis.ElementKlasse
	default:
		return untis.Timetable{}, untis.ErrNotAuthenticated
	}

	return s.Timetable(ctx, q)
}

// CachedTimetable serves the last stored fetch for the range, if any.
func (s *Session) CachedTimetable(start, end time.Time) (untis.Timetable, bool) {
	if s.stores.Timetables == nil {
		return untis.Timetable{}, false
	}
	tt, ok, err := s.stores.Timetables.LoadTimetable(s.cfg.UserKey(), start, end)
	if err != nil {
		log.Println("timetable cache read failed:", err)

		return untis.Timetable{}, false
	}

	return tt, ok
}

func (s *Session) Absences(ctx context.Context, start, end time.Time) ([]untis.Absence, error) {
	if !s.Authenticated() {
		return nil, untis.ErrNotAuthenticated
	}
	var out []untis.Absence
	err := s.walk(func(st Strategy) error {
		var err error
		out, err = st.Absences(ctx, start, end)

		return err
	})

	return out, err
}

func (s *Session) HomeWorks(ctx context.Context, start, end time.Time) ([]untis.PeriodHomeWork, error) {
	if !s.Authenticated() {
		return nil, untis.ErrNotAuthenticated
	}
	var out []untis.PeriodHomeWork
	err := s.walk(func(st Strategy) error {
		var err error
		out, err = st.HomeWorks(ctx, start, end)

		return err
	})

	return out, err
}

func (s *Session) Exams(ctx context.Context, start, end time.Time) ([]untis.Exam, error) {
	if !s.Authenticated() {
		return nil, untis.ErrNotAuthenticated
	}
	var out []untis.Exam
	err := s.walk(func(st Strategy) error {
		var err error
		out, err = st.Exams(ctx, start, end)

		return err
	})

	return out, err
}

// MessagesOfDay is served by the legacy protocol only.
func (s *Session) MessagesOfDay(ctx context.Context, day time.Time) ([]untis.MessageOfDay, error) {
	if !s.Authenticated() {
		return nil, untis.ErrNotAuthenticated
	}

	return s.rpc.MessagesOfDay(ctx, day)
}

// OfficeHours is served by the legacy protocol only.
func (s *Session) OfficeHours(ctx context.Context, start, end time.Time) ([]untis.OfficeHour, error) {
	if !s.Authenticated() {
		return nil, untis.ErrNotAuthenticated
	}

	return s.rpc.OfficeHours(ctx, start, end)
}

// walk runs op over the data-op protocol order, first success wins. Each
// protocol is tried at most once; when all fail the last error surfaces.
func (s *Session) walk(op func(Strategy) error) error {
	var lastErr error
	for _, protocol := range s.dataOrder() {
		strategy, ok := s.strategies[protocol]
		if !ok {
			continue
		}
		if err := op(strategy); err != nil {
			lastErr = err
			continue
		}

		return nil
	}
	if lastErr == nil {
		lastErr = untis.ErrNotAuthenticated
	}

	return lastErr
}

// dataOrder starts with the protocol that authenticated, except that a
// REST preference with a live token promotes REST, then falls through the
// legacy servlet to the HTML scraper.
func (s *Session) dataOrder() []string {
	s.mu.Lock()
	primary := s.current
	s.mu.Unlock()
	if s.cfg.PreferREST && s.rest.Token() != "" {
		primary = caps.ProtocolREST
	}
	order := []string{primary, caps.ProtocolRPC, caps.ProtocolHTML}
	seen := map[string]bool{}
	var out []string
	for _, p := range order {
		if p == "" || seen[p] || !s.enabled(p) {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}

	return out
}

func (s *Session) enabled(protocol string) bool {
	switch protocol {
	case caps.ProtocolRPC:
		return s.cfg.EnableRPC
	case caps.ProtocolREST:
		return s.cfg.EnableREST
	case caps.ProtocolHTML:
		return s.cfg.EnableHTML
	}

	return false
}

// Authenticated reports whether some protocol accepted the credentials.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.authenticated
}

// CurrentProtocol names the protocol that authenticated, empty before login.
func (s *Session) CurrentProtocol() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current
}

// MasterData returns the live element index.
func (s *Session) MasterData() untis.MasterDataIndex {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.masterData
}

// RefreshMasterData refetches the element lists over the legacy protocol.
func (s *Session) RefreshMasterData(ctx context.Context) error {
	idx, err := s.rpc.FetchMasterData(ctx)
	if err != nil {
		return err
	}
	s.learnMasterData(idx.Entries())
	s.persistMasterData()

	return nil
}

func (s *Session) learnMasterData(entries []untis.MasterDataEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.masterData.Put(e)
	}
}

// primeMasterData opportunistically fills the index right after login.
func (s *Session) primeMasterData(ctx context.Context) {
	if s.cfg.EnableRPC && s.rpc.Authenticated() {
		if err := s.RefreshMasterData(ctx); err != nil {
			log.Println("master data refresh failed:", err)
		}
	}
}

func (s *Session) persistMasterData() {
	if s.stores.MasterData == nil {
		return
	}
	if err := s.stores.MasterData.SaveMasterData(s.cfg.UserKey(), s.MasterData().Entries()); err != nil {
		log.Println("master data write failed:", err)
	}
}

func (s *Session) persistLogin() {
	if s.stores.Credentials != nil {
		personID, personType, klasseID := s.person()
		creds := untis.Credentials{
			Identity:   s.cfg.Identity,
			Secret:     s.password(),
			PersonID:   personID,
			PersonType: personType,
			KlasseID:   klasseID,
			AppSecret:  s.rpc.AppSecret(),
		}
		if err := s.stores.Credentials.SaveCredentials(s.cfg.UserKey(), creds); err != nil {
			log.Println("credential write failed:", err)
		}
	}
	if s.stores.Tokens != nil {
		if token := s.rest.Token(); token != "" {
			if err := s.stores.Tokens.SaveToken(s.cfg.UserKey(), token); err != nil {
				log.Println("token write failed:", err)
			}
		}
	}
}

func (s *Session) notePerson(personID, personType, klasseID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if personID != 0 {
		s.personID = personID
		s.personType = personType
	}
	if klasseID != 0 {
		s.klasseID = klasseID
	}
}

func (s *Session) noteToken(token string) {
	if s.stores.Tokens == nil || token == "" {
		return
	}
	if err := s.stores.Tokens.SaveToken(s.cfg.UserKey(), token); err != nil {
		log.Println("token write failed:", err)
	}
}

func (s *Session) person() (int64, int64, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.personID, s.personType, s.klasseID
}

func (s *Session) password() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.secret
}
