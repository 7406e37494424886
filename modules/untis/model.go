// Canonical timetable model shared by every protocol client
package untis

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"
)

type ElementType string

const (
	ElementKlasse  ElementType = "KLASSE"
	ElementTeacher ElementType = "TEACHER"
	ElementSubject ElementType = "SUBJECT"
	ElementRoom    ElementType = "ROOM"
	ElementStudent ElementType = "STUDENT"
)

// Merge order of element lists inside a period: class, teacher, subject, room
var elementOrder = map[ElementType]int{
	ElementKlasse:  0,
	ElementTeacher: 1,
	ElementSubject: 2,
	ElementRoom:    3,
	ElementStudent: 4,
}

// ElementTypeFrom decodes the many spellings servers use for element types:
// numeric codes (1..5), long names and the two-letter keys of the legacy API.
func ElementTypeFrom(v any) (ElementType, bool) {
	if n, ok := Int64From(v); ok {
		switch n {
		case 1:
			return ElementKlasse, true
		case 2:
			return ElementTeacher, true
		case 3:
			return ElementSubject, true
		case 4:
			return ElementRoom, true
		case 5:
			return ElementStudent, true
		}

		return "", false
	}
	s, ok := StringFrom(v)
	if !ok {
		return "", false
	}
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "KLASSE", "CLASS", "KL":
		return ElementKlasse, true
	case "TEACHER", "TE":
		return ElementTeacher, true
	case "SUBJECT", "SU":
		return ElementSubject, true
	case "ROOM", "RO":
		return ElementRoom, true
	case "STUDENT", "ST":
		return ElementStudent, true
	}

	return "", false
}

type PeriodState string

const (
	StateRegular             PeriodState = "REGULAR"
	StateCancelled           PeriodState = "CANCELLED"
	StateIrregular           PeriodState = "IRREGULAR"
	StateExam                PeriodState = "EXAM"
	StateTeacherSubstitution PeriodState = "TEACHER_SUBSTITUTION"
	StateRoomSubstitution    PeriodState = "ROOM_SUBSTITUTION"
	StateSubjectSubstitution PeriodState = "SUBJECT_SUBSTITUTION"
)

// Spelling variants observed across server generations. Unknown strings are
// not an error, they simply map to no state.
var stateTable = map[string]PeriodState{
	"REGULAR":              StateRegular,
	"STANDARD":             StateRegular,
	"CANCELLED":            StateCancelled,
	"CANCELED":             StateCancelled,
	"CANCEL":               StateCancelled,
	"IRREGULAR":            StateIrregular,
	"EXAM":                 StateExam,
	"SUBSTITUTION":         StateTeacherSubstitution,
	"SUBSTITUTES":          StateTeacherSubstitution,
	"TEACHER_SUBSTITUTION": StateTeacherSubstitution,
	"SUBST_TEACHER":        StateTeacherSubstitution,
	"ROOM_SUBSTITUTION":    StateRoomSubstitution,
	"SUBST_ROOM":           StateRoomSubstitution,
	"ROOMSUBSTITUTION":     StateRoomSubstitution,
	"SUBJECT_SUBSTITUTION": StateSubjectSubstitution,
	"SUBST_SUBJECT":        StateSubjectSubstitution,
}

// StateFromString maps one raw state/code/flag string to a period state.
func StateFromString(s string) (PeriodState, bool) {
	key := strings.ToUpper(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.ReplaceAll(key, " ", "_")
	state, ok := stateTable[key]

	return state, ok
}

const (
	DefaultForeColor = "#000000"
	DefaultBackColor = "#FFFFFF"
)

type PeriodText struct {
	Lesson       string
	Substitution string
	Info         string
}

type PeriodElement struct {
	Type             ElementType
	ID               int64
	Name             string
	LongName         string
	DisplayName      string
	AlternateName    string
	ForeColor        string
	BackColor        string
	CanViewTimetable bool
}

// Label picks the best available display string of an element.
func (e PeriodElement) Label() string {
	if e.DisplayName != "" {
		return e.DisplayName
	}
	if e.LongName != "" {
		return e.LongName
	}

	return e.Name
}

type PeriodHomeWork struct {
	ID        int64
	LessonID  int64
	StartDate time.Time
	EndDate   time.Time
	Text      string
	Remark    string
	Completed bool
}

type PeriodExam struct {
	ID   int64
	Type string
	Name string
	Text string
}

type MessengerChannel struct {
	ID   int64
	Name string
}

type Period struct {
	ID               int64
	LessonID         int64
	StartDateTime    time.Time
	EndDateTime      time.Time
	ForeColor        string
	BackColor        string
	InnerForeColor   string
	InnerBackColor   string
	Text             PeriodText
	Elements         []PeriodElement
	Can              []string
	Is               []PeriodState
	HomeWorks        []PeriodHomeWork
	Exam             *PeriodExam
	IsOnlinePeriod   bool
	MessengerChannel *MessengerChannel
	OnlinePeriodLink string
	BlockHash        int64
}

// HasState reports whether the state flag is set on the period.
func (p Period) HasState(s PeriodState) bool {
	for _, is := range p.Is {
		if is == s {
			return true
		}
	}

	return false
}

// ElementsOf returns the period elements of one type, in stored order.
func (p Period) ElementsOf(t ElementType) []PeriodElement {
	var out []PeriodElement
	for _, e := range p.Elements {
		if e.Type == t {
			out = append(out, e)
		}
	}

	return out
}

// Labels returns the display strings of the period elements of one type.
func (p Period) Labels(t ElementType) []string {
	var labels []string
	for _, e := range p.ElementsOf(t) {
		if l := e.Label(); l != "" {
			labels = append(labels, l)
		}
	}

	return labels
}

// Title derives the human title of the period: explicit lesson text first,
// then the display names of its subjects joined by comma.
func (p Period) Title() string {
	if p.Text.Lesson != "" {
		return p.Text.Lesson
	}
	if names := p.Labels(ElementSubject); len(names) > 0 {
		return strings.Join(names, ", ")
	}

	return ""
}

// ComputeBlockHash groups periods that belong to one visual timetable block:
// same lesson on the same day with the same subjects.
func ComputeBlockHash(p Period) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d|%s", p.LessonID, p.StartDateTime.Format("20060102"))
	for _, e := range p.ElementsOf(ElementSubject) {
		fmt.Fprintf(h, "|%d", e.ID)
	}

	return int64(h.Sum64())
}

// Timetable is an immutable fetch result; the next fetch supersedes it.
// Warning is set when the data came from a degraded compatibility path.
type Timetable struct {
	DisplayableStartDate time.Time
	DisplayableEndDate   time.Time
	Periods              []Period
	Warning              string
}

// NewTimetable sorts the periods by start time (ties by id) and wraps them
// with the displayable range of the fetch request.
func NewTimetable(start, end time.Time, periods []Period) Timetable {
	sort.SliceStable(periods, func(i, j int) bool {
		if periods[i].StartDateTime.Equal(periods[j].StartDateTime) {
			return periods[i].ID < periods[j].ID
		}

		return periods[i].StartDateTime.Before(periods[j].StartDateTime)
	})

	return Timetable{
		DisplayableStartDate: start,
		DisplayableEndDate:   end,
		Periods:              periods,
	}
}

type Absence struct {
	ID            int64
	StudentName   string
	StartDateTime time.Time
	EndDateTime   time.Time
	Reason        string
	Text          string
	Excused       bool
}

// Exam is a standalone exam record, as opposed to the exam substructure
// embedded in a period.
type Exam struct {
	ID            int64
	Type          string
	Name          string
	Text          string
	StartDateTime time.Time
	EndDateTime   time.Time
	SubjectID     int64
}

type OfficeHour struct {
	ID            int64
	TeacherName   string
	StartDateTime time.Time
	EndDateTime   time.Time
	Room          string
	Email         string
	Phone         string
}

// Credentials is what the credential store hands back for a user key.
type Credentials struct {
	Identity   string
	Secret     string
	PersonID   int64
	PersonType int64
	KlasseID   int64
	AppSecret  string
}

type MessageOfDay struct {
	ID      int64
	Subject string
	Body    string
}

type Holiday struct {
	ID        int64
	Name      string
	LongName  string
	StartDate time.Time
	EndDate   time.Time
}

type SchoolYear struct {
	ID        int64
	Name      string
	StartDate time.Time
	EndDate   time.Time
	Current   bool
}

type TimegridSlot struct {
	Label     string
	StartTime string
	EndTime   string
}

type TimegridDay struct {
	Day   int
	Slots []TimegridSlot
}
