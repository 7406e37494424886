package database

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/caps"
	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/untis"
	"xorm.io/builder"
	"xorm.io/xorm"
)

// Store adapts the schema to the persistence hooks the session and the
// watcher expect. Writes for one user key are serialized; different users
// do not block each other.
type Store struct {
	DB *xorm.Engine

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStore(db *xorm.Engine) *Store {
	return &Store{DB: db, locks: make(map[string]*sync.Mutex)}
}

func (s *Store) lock(userKey string) func() {
	s.mu.Lock()
	m, ok := s.locks[userKey]
	if !ok {
		m = &sync.Mutex{}
		s.locks[userKey] = m
	}
	s.mu.Unlock()
	m.Lock()

	return m.Unlock
}

func (s *Store) upsert(pk any, exists bool, bean any) error {
	if exists {
		_, err := s.DB.ID(pk).AllCols().Update(bean)

		return err
	}
	_, err := s.DB.Insert(bean)

	return err
}

func (s *Store) SaveCredentials(userKey string, creds untis.Credentials) error {
	defer s.lock(userKey)()
	exists, err := s.DB.ID(userKey).Exist(&Credential{})
	if err != nil {
		return err
	}

	return s.upsert(userKey, exists, &Credential{
		UserKey:    userKey,
		Identity:   creds.Identity,
		Secret:     creds.Secret,
		PersonID:   creds.PersonID,
		PersonType: creds.PersonType,
		KlasseID:   creds.KlasseID,
		AppSecret:  creds.AppSecret,
	})
}

func (s *Store) LoadCredentials(userKey string) (untis.Credentials, bool, error) {
	var row Credential
	ok, err := s.DB.ID(userKey).Get(&row)
	if err != nil || !ok {
		return untis.Credentials{}, false, err
	}

	return untis.Credentials{
		Identity:   row.Identity,
		Secret:     row.Secret,
		PersonID:   row.PersonID,
		PersonType: row.PersonType,
		KlasseID:   row.KlasseID,
		AppSecret:  row.AppSecret,
	}, true, nil
}

func (s *Store) SaveToken(userKey, token string) error {
	defer s.lock(userKey)()
	exists, err := s.DB.ID(userKey).Exist(&AuthToken{})
	if err != nil {
		return err
	}

	return s.upsert(userKey, exists, &AuthToken{UserKey: userKey, Token: token, Updated: time.Now()})
}

func (s *Store) LoadToken(userKey string) (string, bool, error) {
	var row AuthToken
	ok, err := s.DB.ID(userKey).Get(&row)
	if err != nil || !ok {
		return "", false, err
	}

	return row.Token, true, nil
}

func capsKey(server, school string) string {
	return server + "|" + school
}

func (s *Store) SaveCapabilities(c caps.ServerCapabilities) error {
	key := capsKey(c.Server, c.School)
	defer s.lock(key)()
	exists, err := s.DB.ID(key).Exist(&CapabilityCache{})
	if err != nil {
		return err
	}

	return s.upsert(key, exists, &CapabilityCache{
		CacheKey:        key,
		Server:          c.Server,
		School:          c.School,
		SupportsLegacy:  c.SupportsLegacy,
		SupportsREST:    c.SupportsREST,
		SupportsHTML:    c.SupportsHTML,
		EnhancedMethods: strings.Join(c.EnhancedMethods, ","),
		ServerVersion:   c.ServerVersion,
		LastChecked:     c.LastChecked,
	})
}

func (s *Store) LoadCapabilities(server, school string) (caps.ServerCapabilities, bool, error) {
	var row CapabilityCache
	ok, err := s.DB.ID(capsKey(server, school)).Get(&row)
	if err != nil || !ok {
		return caps.ServerCapabilities{}, false, err
	}
	c := caps.ServerCapabilities{
		Server:         row.Server,
		School:         row.School,
		SupportsLegacy: row.SupportsLegacy,
		SupportsREST:   row.SupportsREST,
		SupportsHTML:   row.SupportsHTML,
		ServerVersion:  row.ServerVersion,
		LastChecked:    row.LastChecked,
	}
	if row.EnhancedMethods != "" {
		c.EnhancedMethods = strings.Split(row.EnhancedMethods, ",")
	}

	return c, true, nil
}

func elementKey(userKey string, t untis.ElementType, id int64) string {
	return fmt.Sprintf("%s|%s|%d", userKey, t, id)
}

// SaveMasterData replaces the stored element index of the user.
func (s *Store) SaveMasterData(userKey string, entries []untis.MasterDataEntry) error {
	defer s.lock(userKey)()
	if _, err := s.DB.Delete(&MasterElement{UserKey: userKey}); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	rows := make([]MasterElement, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, MasterElement{
			ElementKey:       elementKey(userKey, e.Type, e.ID),
			UserKey:          userKey,
			ElementType:      string(e.Type),
			ElementID:        e.ID,
			Name:             e.Name,
			LongName:         e.LongName,
			DisplayName:      e.DisplayName,
			AlternateName:    e.AlternateName,
			ForeColor:        e.ForeColor,
			BackColor:        e.BackColor,
			CanViewTimetable: e.CanViewTimetable,
		})
	}
	_, err := s.DB.Insert(&rows)

	return err
}

func (s *Store) LoadMasterData(userKey string) ([]untis.MasterDataEntry, error) {
	var rows []MasterElement
	if err := s.DB.Find(&rows, &MasterElement{UserKey: userKey}); err != nil {
		return nil, err
	}
	out := make([]untis.MasterDataEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, rowToEntry(row))
	}

	return out, nil
}

// SearchElements finds elements of the user whose names contain the query,
// for the element picker.
func (s *Store) SearchElements(userKey, query string) ([]untis.MasterDataEntry, error) {
	var rows []MasterElement
	cond := builder.Eq{"UserKey": userKey}.And(builder.Or(
		builder.Like{"Name", query},
		builder.Like{"LongName", query},
		builder.Like{"DisplayName", query},
	))
	if err := s.DB.Where(cond).Asc("ElementID").Find(&rows); err != nil {
		return nil, err
	}
	out := make([]untis.MasterDataEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, rowToEntry(row))
	}

	return out, nil
}

func rowToEntry(row MasterElement) untis.MasterDataEntry {
	return untis.MasterDataEntry{
		Type:             untis.ElementType(row.ElementType),
		ID:               row.ElementID,
		Name:             row.Name,
		LongName:         row.LongName,
		DisplayName:      row.DisplayName,
		AlternateName:    row.AlternateName,
		ForeColor:        row.ForeColor,
		BackColor:        row.BackColor,
		CanViewTimetable: row.CanViewTimetable,
	}
}

func timetableKey(userKey string, start, end time.Time) string {
	return userKey + "|" + untis.FormatDate8(start) + "|" + untis.FormatDate8(end)
}

func (s *Store) SaveTimetable(userKey string, start, end time.Time, tt untis.Timetable) error {
	payload, err := json.Marshal(tt)
	if err != nil {
		return fmt.Errorf("encode timetable: %w", err)
	}
	key := timetableKey(userKey, start, end)
	defer s.lock(userKey)()
	exists, err := s.DB.ID(key).Exist(&TimetableBlob{})
	if err != nil {
		return err
	}

	return s.upsert(key, exists, &TimetableBlob{
		CacheKey:  key,
		UserKey:   userKey,
		StartDate: start,
		EndDate:   end,
		Payload:   string(payload),
		Fetched:   time.Now(),
	})
}

func (s *Store) LoadTimetable(userKey string, start, end time.Time) (untis.Timetable, bool, error) {
	var row TimetableBlob
	ok, err := s.DB.ID(timetableKey(userKey, start, end)).Get(&row)
	if err != nil || !ok {
		return untis.Timetable{}, false, err
	}

	return decodeBlob(row)
}

// LoadLatestTimetable returns the most recently fetched range of the user.
func (s *Store) LoadLatestTimetable(userKey string) (untis.Timetable, bool, error) {
	row := TimetableBlob{UserKey: userKey}
	ok, err := s.DB.Desc("Fetched").Get(&row)
	if err != nil || !ok {
		return untis.Timetable{}, false, err
	}

	return decodeBlob(row)
}

func decodeBlob(row TimetableBlob) (untis.Timetable, bool, error) {
	var tt untis.Timetable
	if err := json.Unmarshal([]byte(row.Payload), &tt); err != nil {
		return untis.Timetable{}, false, fmt.Errorf("decode timetable %s: %w", row.CacheKey, err)
	}

	return tt, true, nil
}

// EnsureWatchTarget registers the user for periodic change checks.
func (s *Store) EnsureWatchTarget(userKey string, chatID int64) (WatchTarget, error) {
	defer s.lock(userKey)()
	row := WatchTarget{UserKey: userKey, ChatID: chatID}
	ok, err := s.DB.Get(&row)
	if err != nil {
		return WatchTarget{}, err
	}
	if ok {
		return row, nil
	}
	id, err := GenerateID(s.DB, &WatchTarget{})
	if err != nil {
		return WatchTarget{}, err
	}
	row = WatchTarget{WatchID: id, UserKey: userKey, ChatID: chatID}
	if _, err := s.DB.Insert(&row); err != nil {
		return WatchTarget{}, err
	}

	return row, nil
}

func (s *Store) WatchTargets() ([]WatchTarget, error) {
	var rows []WatchTarget
	err := s.DB.Find(&rows)

	return rows, err
}

// TouchWatchTarget stamps the last check time of the target.
func (s *Store) TouchWatchTarget(watchID int64, now time.Time) error {
	_, err := s.DB.ID(watchID).Cols("LastCheck").Update(&WatchTarget{LastCheck: now})

	return err
}

// EnsureFeed registers (or returns) the calendar feed of the user.
func (s *Store) EnsureFeed(userKey, name string) (CalendarFeed, error) {
	defer s.lock(userKey)()
	row := CalendarFeed{UserKey: userKey}
	ok, err := s.DB.Get(&row)
	if err != nil {
		return CalendarFeed{}, err
	}
	if ok {
		return row, nil
	}
	id, err := GenerateID(s.DB, &CalendarFeed{})
	if err != nil {
		return CalendarFeed{}, err
	}
	row = CalendarFeed{FeedID: id, UserKey: userKey, Name: name, Created: time.Now()}
	if _, err := s.DB.Insert(&row); err != nil {
		return CalendarFeed{}, err
	}

	return row, nil
}

func (s *Store) FeedByID(feedID int64) (CalendarFeed, bool, error) {
	var row CalendarFeed
	ok, err := s.DB.ID(feedID).Get(&row)

	return row, ok, err
}
