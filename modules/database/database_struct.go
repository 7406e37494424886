package database

import "time"

// Credential is one user's login on one school server, keyed the same way
// every other persisted record is.
type Credential struct {
	UserKey    string `xorm:"pk"`
	Identity   string
	Secret     string
	PersonID   int64
	PersonType int64
	KlasseID   int64
	AppSecret  string
}

type AuthToken struct {
	UserKey string `xorm:"pk"`
	Token   string `xorm:"text"`
	Updated time.Time
}

// CapabilityCache is the persisted form of a protocol probe result.
type CapabilityCache struct {
	CacheKey        string `xorm:"pk"` // server|school
	Server          string
	School          string
	SupportsLegacy  bool
	SupportsREST    bool
	SupportsHTML    bool
	EnhancedMethods string // comma separated method names
	ServerVersion   string
	LastChecked     time.Time
}

// MasterElement is one entry of the element index: a class, teacher,
// subject, room or student.
type MasterElement struct {
	ElementKey       string `xorm:"pk"` // userKey|type|id
	UserKey          string
	ElementType      string
	ElementID        int64
	Name             string
	LongName         string
	DisplayName      string
	AlternateName    string
	ForeColor        string
	BackColor        string
	CanViewTimetable bool
}

// TimetableBlob keeps the latest normalized fetch per user and range so
// the data survives the server being unreachable.
type TimetableBlob struct {
	CacheKey  string `xorm:"pk"` // userKey|start|end
	UserKey   string
	StartDate time.Time
	EndDate   time.Time
	Payload   string `xorm:"text"`
	Fetched   time.Time
}

// WatchTarget is a user whose timetable the change watcher re-fetches.
type WatchTarget struct {
	WatchID   int64 `xorm:"pk"`
	UserKey   string
	ChatID    int64
	LastCheck time.Time
}

// CalendarFeed maps a public feed id to the user whose timetable it serves.
type CalendarFeed struct {
	FeedID  int64 `xorm:"pk"`
	UserKey string
	Name    string
	Created time.Time
}
