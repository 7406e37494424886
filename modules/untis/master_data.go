package untis

import (
	"fmt"
	"sort"
)

// MasterDataEntry is one known school element: a class, teacher, subject,
// room or student.
type MasterDataEntry struct {
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

// MasterDataIndex resolves (type, id) references inside periods to display
// data. Lookups never fail hard: a missing entry just falls back to the
// inline dictionary or a placeholder.
type MasterDataIndex map[ElementType]map[int64]MasterDataEntry

func NewMasterDataIndex() MasterDataIndex {
	return make(MasterDataIndex)
}

func (idx MasterDataIndex) Put(e MasterDataEntry) {
	byID, ok := idx[e.Type]
	if !ok {
		byID = make(map[int64]MasterDataEntry)
		idx[e.Type] = byID
	}
	byID[e.ID] = e
}

func (idx MasterDataIndex) Lookup(t ElementType, id int64) (MasterDataEntry, bool) {
	byID, ok := idx[t]
	if !ok {
		return MasterDataEntry{}, false
	}
	e, ok := byID[id]

	return e, ok
}

// Len counts the entries over all element types.
func (idx MasterDataIndex) Len() int {
	n := 0
	for _, byID := range idx {
		n += len(byID)
	}

	return n
}

// MergeMissing copies entries from prev that idx does not know about, so a
// partial refresh never loses previously learned elements.
func (idx MasterDataIndex) MergeMissing(prev MasterDataIndex) {
	for t, byID := range prev {
		for id, e := range byID {
			if _, ok := idx.Lookup(t, id); !ok {
				idx.Put(e)
			}
		}
	}
}

// Entries flattens the index in a stable order for persistence.
func (idx MasterDataIndex) Entries() []MasterDataEntry {
	var out []MasterDataEntry
	for _, byID := range idx {
		for _, e := range byID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return elementOrder[out[i].Type] < elementOrder[out[j].Type]
		}

		return out[i].ID < out[j].ID
	})

	return out
}

// Keys of a 2017-style masterData block mapped to element types.
var masterDataKeys = []struct {
	key string
	t   ElementType
}{
	{"klassen", ElementKlasse},
	{"classes", ElementKlasse},
	{"teachers", ElementTeacher},
	{"subjects", ElementSubject},
	{"rooms", ElementRoom},
	{"students", ElementStudent},
}

// MasterDataFromRaw builds an index from a decoded masterData block. Records
// without an id are skipped; every other field is best effort.
func MasterDataFromRaw(v any) MasterDataIndex {
	idx := NewMasterDataIndex()
	obj, ok := AsObject(v)
	if !ok {
		return idx
	}
	for _, mk := range masterDataKeys {
		list, ok := obj.Array(mk.key)
		if !ok {
			continue
		}
		for _, item := range list {
			if e, ok := EntryFromRaw(mk.t, item); ok {
				idx.Put(e)
			}
		}
	}

	return idx
}

// EntryFromRaw decodes one element record of a known type.
func EntryFromRaw(t ElementType, v any) (MasterDataEntry, bool) {
	obj, ok := AsObject(v)
	if !ok {
		return MasterDataEntry{}, false
	}
	id, ok := obj.Int64("id")
	if !ok {
		return MasterDataEntry{}, false
	}
	e := MasterDataEntry{Type: t, ID: id}
	e.Name, _ = obj.FirstString("name", "shortName")
	e.LongName, _ = obj.FirstString("longName", "longname")
	e.DisplayName, _ = obj.String("displayName")
	e.AlternateName, _ = obj.String("alternateName")
	e.ForeColor, _ = obj.String("foreColor")
	e.BackColor, _ = obj.String("backColor")
	e.CanViewTimetable, _ = obj.Bool("canViewTimetable")

	return e, true
}

// Refine overlays index display fields onto an element reference built
// from inline payload data, keeping the index as the authority.
func (idx MasterDataIndex) Refine(e PeriodElement) PeriodElement {
	if entry, ok := idx.Lookup(e.Type, e.ID); ok {
		overlayEntry(&e, entry)
	}
	if e.Name == "" {
		e.Name = fmt.Sprintf("#%d", e.ID)
	}

	return e
}

// Element renders an index entry as a period element.
func (e MasterDataEntry) Element() PeriodElement {
	return PeriodElement{
		Type:             e.Type,
		ID:               e.ID,
		Name:             e.Name,
		LongName:         e.LongName,
		DisplayName:      e.DisplayName,
		AlternateName:    e.AlternateName,
		ForeColor:        e.ForeColor,
		BackColor:        e.BackColor,
		CanViewTimetable: e.CanViewTimetable,
	}
}
