// Defensive conversion of raw protocol payloads into the canonical model.
// Servers of different generations disagree on field names, field types and
// even on which substructures exist, so everything here is best effort per
// record: one broken record never spoils the batch.
package untis

import (
	"fmt"
	"time"
)

// Alternate key names seen on old deployments, tried by the basic path.
var (
	basicIDKeys    = []string{"id", "lsid", "lessonId", "lsnumber", "ttId"}
	basicDateKeys  = []string{"date", "lessonDate", "day"}
	basicStartKeys = []string{"startTime", "starttime", "begin", "beginTime"}
	basicEndKeys   = []string{"endTime", "endtime", "end", "finishTime"}
)

// Keys that identify the pre-2011 lesson-template shape: such records
// describe a course, not a scheduled occurrence, and carry no date.
var templateShapeKeys = []string{"startDate", "lessonNumber", "weeklyHours"}

// PeriodsFromRaw normalizes a batch of raw period records. Records that
// cannot be parsed even by the basic path are skipped; skipped is their
// count. When every record turns out to be template-shaped the server
// predates dated timetables and a TooOldError is returned instead.
func PeriodsFromRaw(list []any, idx MasterDataIndex) (periods []Period, skipped int, err error) {
	objects := 0
	templates := 0
	for _, item := range list {
		obj, ok := AsObject(item)
		if !ok {
			skipped++
			continue
		}
		objects++
		p, perr := PeriodFromRaw(obj, idx)
		if perr != nil {
			p, perr = BasicPeriodFromRaw(obj, idx, objects)
		}
		if perr != nil {
			if looksTemplateShaped(obj) {
				templates++
			}
			skipped++
			continue
		}
		periods = append(periods, p)
	}
	if len(periods) == 0 && objects > 0 && templates == objects {
		return nil, skipped, &TooOldError{
			Hint: "the timetable payload contains lesson templates without dates",
		}
	}

	return periods, skipped, nil
}

// PeriodFromRaw is the strict path: it demands id, date and both times
// under their canonical keys.
func PeriodFromRaw(obj RawObject, idx MasterDataIndex) (Period, error) {
	id, ok := obj.Int64("id")
	if !ok {
		return Period{}, fmt.Errorf("period record has no id")
	}
	start, end, err := periodSpan(obj, []string{"date"}, []string{"startTime", "starttime"}, []string{"endTime", "endtime"})
	if err != nil {
		return Period{}, err
	}
	p := newPeriod(obj, idx, id, start, end)
	if p.Text.Lesson == "" {
		p.Text.Lesson = titleFromRaw(obj, p.Elements)
	}

	return p, nil
}

// BasicPeriodFromRaw is the degraded path: it accepts historical key
// aliases and synthesizes a placeholder title when nothing better exists.
// seq numbers the record inside its batch for the placeholder.
func BasicPeriodFromRaw(obj RawObject, idx MasterDataIndex, seq int) (Period, error) {
	id, ok := obj.FirstInt64(basicIDKeys...)
	if !ok {
		return Period{}, fmt.Errorf("period record has no usable id")
	}
	start, end, err := periodSpan(obj, basicDateKeys, basicStartKeys, basicEndKeys)
	if err != nil {
		return Period{}, err
	}
	p := newPeriod(obj, idx, id, start, end)
	if p.Text.Lesson == "" {
		p.Text.Lesson = titleFromRaw(obj, p.Elements)
	}
	if p.Text.Lesson == "" {
		n := seq
		if ls, ok := obj.Int64("lessonNumber"); ok {
			n = int(ls)
		}
		p.Text.Lesson = fmt.Sprintf("Course %d", n)
		if hours, ok := obj.Int64("weeklyHours"); ok {
			p.Text.Lesson += fmt.Sprintf(" (%d h/week)", hours)
		}
	}

	return p, nil
}

// newPeriod fills everything both paths share once id and span are known.
func newPeriod(obj RawObject, idx MasterDataIndex, id int64, start, end time.Time) Period {
	p := Period{
		ID:            id,
		StartDateTime: start,
		EndDateTime:   end,
	}
	p.LessonID, _ = obj.FirstInt64("lessonId", "lsid", "lsnumber")
	p.ForeColor = colorOrDefault(obj, "foreColor", DefaultForeColor)
	p.BackColor = colorOrDefault(obj, "backColor", DefaultBackColor)
	p.InnerForeColor = colorOrDefault(obj, "innerForeColor", DefaultForeColor)
	p.InnerBackColor = colorOrDefault(obj, "innerBackColor", DefaultBackColor)
	p.Text.Lesson, _ = obj.FirstString("lstext", "lessonText")
	p.Text.Substitution, _ = obj.FirstString("substText", "substitutionText")
	p.Text.Info, _ = obj.FirstString("info", "periodInfo", "periodText")
	p.Elements = elementsFromRaw(obj, idx)
	p.Can = stringSetFromRaw(obj, "can")
	p.Is = statesFromRaw(obj)
	p.HomeWorks = homeWorksFromRaw(obj)
	p.Exam = examFromRaw(obj)
	p.IsOnlinePeriod, _ = obj.Bool("isOnlinePeriod")
	p.MessengerChannel = messengerFromRaw(obj)
	p.OnlinePeriodLink, _ = obj.String("onlinePeriodLink")
	if hash, ok := obj.Int64("blockHash"); ok {
		p.BlockHash = hash
	} else {
		p.BlockHash = ComputeBlockHash(p)
	}

	return p
}

// periodSpan resolves date and times through the given key alternatives
// into two timestamps on the same calendar day.
func periodSpan(obj RawObject, dateKeys, startKeys, endKeys []string) (time.Time, time.Time, error) {
	date8, ok := firstNormalized(obj, dateKeys, NormalizedDateString)
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("period record has no date")
	}
	start4, ok := firstNormalized(obj, startKeys, NormalizedTimeString)
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("period record has no start time")
	}
	end4, ok := firstNormalized(obj, endKeys, NormalizedTimeString)
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("period record has no end time")
	}
	start, err := CombineDateTime(date8, start4)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := CombineDateTime(date8, end4)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("period ends %s before it starts %s", end4, start4)
	}

	return start, end, nil
}

func firstNormalized(obj RawObject, keys []string, norm func(any) (string, bool)) (string, bool) {
	for _, key := range keys {
		v, ok := obj[key]
		if !ok {
			continue
		}
		if s, ok := norm(v); ok {
			return s, true
		}
	}

	return "", false
}

func colorOrDefault(obj RawObject, key, def string) string {
	if c, ok := obj.String(key); ok && c != "" {
		return c
	}

	return def
}

// Dedicated element keys of the legacy dictionary shape, in merge order.
var typedElementKeys = []struct {
	key string
	t   ElementType
}{
	{"kl", ElementKlasse},
	{"te", ElementTeacher},
	{"su", ElementSubject},
	{"ro", ElementRoom},
}

// elementsFromRaw resolves the per-type element lists, falling back to the
// generic tagged `elements` array for types whose dedicated key is empty,
// and deduplicates by (type, id) keeping first occurrence.
func elementsFromRaw(obj RawObject, idx MasterDataIndex) []PeriodElement {
	var merged []PeriodElement
	seen := make(map[ElementType]map[int64]bool)
	add := func(e PeriodElement) {
		byID, ok := seen[e.Type]
		if !ok {
			byID = make(map[int64]bool)
			seen[e.Type] = byID
		}
		if byID[e.ID] {
			return
		}
		byID[e.ID] = true
		merged = append(merged, e)
	}
	for _, tk := range typedElementKeys {
		list, _ := obj.Array(tk.key)
		if len(list) == 0 {
			for _, e := range genericElements(obj, tk.t, idx) {
				add(e)
			}
			continue
		}
		for _, item := range list {
			if e, ok := elementFromRawItem(tk.t, item, idx); ok {
				add(e)
			}
		}
	}
	for _, e := range genericElements(obj, ElementStudent, idx) {
		add(e)
	}

	return merged
}

// elementFromRawItem accepts a bare id, an id-only reference or a full
// inline dictionary.
func elementFromRawItem(t ElementType, item any, idx MasterDataIndex) (PeriodElement, bool) {
	if id, ok := Int64From(item); ok {
		return ResolveElement(t, id, nil, idx), true
	}
	obj, ok := AsObject(item)
	if !ok {
		return PeriodElement{}, false
	}
	id, ok := obj.Int64("id")
	if !ok {
		return PeriodElement{}, false
	}

	return ResolveElement(t, id, obj, idx), true
}

// genericElements scans the tagged `elements` array for entries of type t.
func genericElements(obj RawObject, t ElementType, idx MasterDataIndex) []PeriodElement {
	list, ok := obj.Array("elements")
	if !ok {
		return nil
	}
	var out []PeriodElement
	for _, item := range list {
		eobj, ok := AsObject(item)
		if !ok {
			continue
		}
		typeValue, ok := eobj["type"]
		if !ok {
			continue
		}
		et, ok := ElementTypeFrom(typeValue)
		if !ok || et != t {
			continue
		}
		id, ok := eobj.Int64("id")
		if !ok {
			continue
		}
		out = append(out, ResolveElement(t, id, eobj, idx))
	}

	return out
}

// ResolveElement builds a display-ready element for (t, id). Field by field
// the master-data entry wins, then the inline dictionary, then a
// synthesized "#<id>" placeholder name.
func ResolveElement(t ElementType, id int64, inline RawObject, idx MasterDataIndex) PeriodElement {
	e := PeriodElement{Type: t, ID: id, Name: fmt.Sprintf("#%d", id)}
	if inline != nil {
		if s, ok := inline.FirstString("name", "shortName"); ok {
			e.Name = s
		}
		e.LongName, _ = inline.FirstString("longName", "longname")
		e.DisplayName, _ = inline.String("displayName")
		e.AlternateName, _ = inline.FirstString("alternateName", "orgname")
		e.ForeColor, _ = inline.String("foreColor")
		e.BackColor, _ = inline.String("backColor")
		e.CanViewTimetable, _ = inline.Bool("canViewTimetable")
	}
	if entry, ok := idx.Lookup(t, id); ok {
		overlayEntry(&e, entry)
	}

	return e
}

func overlayEntry(e *PeriodElement, entry MasterDataEntry) {
	if entry.Name != "" {
		e.Name = entry.Name
	}
	if entry.LongName != "" {
		e.LongName = entry.LongName
	}
	if entry.DisplayName != "" {
		e.DisplayName = entry.DisplayName
	}
	if entry.AlternateName != "" {
		e.AlternateName = entry.AlternateName
	}
	if entry.ForeColor != "" {
		e.ForeColor = entry.ForeColor
	}
	if entry.BackColor != "" {
		e.BackColor = entry.BackColor
	}
	if entry.CanViewTimetable {
		e.CanViewTimetable = true
	}
}

// titleFromRaw walks the title chain after explicit lesson text: subject
// labels, student group, activity type, raw text.
func titleFromRaw(obj RawObject, elements []PeriodElement) string {
	title := subjectLabels(elements)
	if title != "" {
		return title
	}
	if s, ok := obj.FirstString("sg", "studentGroup"); ok {
		return s
	}
	if s, ok := obj.String("activityType"); ok && s != "" {
		return s
	}
	if s, ok := obj.String("text"); ok {
		return s
	}

	return ""
}

func subjectLabels(elements []PeriodElement) string {
	out := ""
	for _, e := range elements {
		if e.Type != ElementSubject {
			continue
		}
		l := e.Label()
		if l == "" {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += l
	}

	return out
}

// statesFromRaw unions every state source the protocols know: the direct
// state array, the code field, the comma-separated flag string and the
// substitution-text heuristic. Unknown strings are ignored.
func statesFromRaw(obj RawObject) []PeriodState {
	var states []PeriodState
	seen := make(map[PeriodState]bool)
	add := func(s PeriodState) {
		if !seen[s] {
			seen[s] = true
			states = append(states, s)
		}
	}
	addString := func(raw string) {
		if s, ok := StateFromString(raw); ok {
			add(s)
		}
	}
	if list, ok := obj.Array("is"); ok {
		for _, item := range list {
			if raw, ok := StringFrom(item); ok {
				addString(raw)
			}
		}
	}
	if code, ok := obj.String("code"); ok {
		addString(code)
	}
	if flags, ok := obj.String("statflags"); ok {
		start := 0
		for i := 0; i <= len(flags); i++ {
			if i == len(flags) || flags[i] == ',' {
				addString(flags[start:i])
				start = i + 1
			}
		}
	}
	if subst, ok := obj.FirstString("substText", "substitutionText"); ok && subst != "" {
		add(StateTeacherSubstitution)
	}

	return states
}

func stringSetFromRaw(obj RawObject, key string) []string {
	list, ok := obj.Array(key)
	if !ok {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, item := range list {
		s, ok := StringFrom(item)
		if !ok || s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}

	return out
}

// homeWorksFromRaw keeps records that carry at least an id and a text.
func homeWorksFromRaw(obj RawObject) []PeriodHomeWork {
	list, ok := obj.Array("homeWorks")
	if !ok {
		return nil
	}
	var out []PeriodHomeWork
	for _, item := range list {
		hwObj, ok := AsObject(item)
		if !ok {
			continue
		}
		hw, ok := HomeWorkFromRaw(hwObj)
		if !ok {
			continue
		}
		out = append(out, hw)
	}

	return out
}

// HomeWorkFromRaw decodes one homework record; id and text are required.
func HomeWorkFromRaw(obj RawObject) (PeriodHomeWork, bool) {
	id, ok := obj.Int64("id")
	if !ok {
		return PeriodHomeWork{}, false
	}
	text, ok := obj.String("text")
	if !ok || text == "" {
		return PeriodHomeWork{}, false
	}
	hw := PeriodHomeWork{ID: id, Text: text}
	hw.LessonID, _ = obj.FirstInt64("lessonId", "lid")
	if d, ok := firstNormalized(obj, []string{"startDate", "date"}, NormalizedDateString); ok {
		hw.StartDate, _ = ParseDate8(d)
	}
	if d, ok := firstNormalized(obj, []string{"endDate", "dueDate"}, NormalizedDateString); ok {
		hw.EndDate, _ = ParseDate8(d)
	}
	hw.Remark, _ = obj.String("remark")
	hw.Completed, _ = obj.Bool("completed")

	return hw, true
}

func examFromRaw(obj RawObject) *PeriodExam {
	examObj, ok := obj.Object("exam")
	if !ok {
		return nil
	}
	id, ok := examObj.Int64("id")
	if !ok {
		return nil
	}
	exam := &PeriodExam{ID: id}
	exam.Type, _ = examObj.FirstString("examtype", "type")
	exam.Name, _ = examObj.String("name")
	exam.Text, _ = examObj.String("text")

	return exam
}

func messengerFromRaw(obj RawObject) *MessengerChannel {
	chObj, ok := obj.Object("messengerChannel")
	if !ok {
		return nil
	}
	id, ok := chObj.Int64("id")
	if !ok {
		return nil
	}
	name, ok := chObj.String("name")
	if !ok || name == "" {
		return nil
	}

	return &MessengerChannel{ID: id, Name: name}
}

func looksTemplateShaped(obj RawObject) bool {
	if _, ok := firstNormalized(obj, basicDateKeys, NormalizedDateString); ok {
		return false
	}
	for _, key := range templateShapeKeys {
		if obj.Has(key) {
			return true
		}
	}

	return false
}
