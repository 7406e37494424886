package jsonrpc

import (
	"context"
	"errors"
	"time"

	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/untis"
)

// Klassen lists the classes of the active school year.
func (c *Client) Klassen(ctx context.Context) ([]untis.MasterDataEntry, error) {
	return c.masterList(ctx, KlassenMethods, untis.ElementKlasse)
}

// Teachers lists all teachers visible to the session.
func (c *Client) Teachers(ctx context.Context) ([]untis.MasterDataEntry, error) {
	return c.masterList(ctx, TeacherMethods, untis.ElementTeacher)
}

// Subjects lists all subjects.
func (c *Client) Subjects(ctx context.Context) ([]untis.MasterDataEntry, error) {
	return c.masterList(ctx, SubjectMethods, untis.ElementSubject)
}

// Rooms lists all rooms.
func (c *Client) Rooms(ctx context.Context) ([]untis.MasterDataEntry, error) {
	return c.masterList(ctx, RoomMethods, untis.ElementRoom)
}

// Students lists all students visible to the session. Most accounts lack
// the right for it, which surfaces as a server error, not a transport one.
func (c *Client) Students(ctx context.Context) ([]untis.MasterDataEntry, error) {
	return c.masterList(ctx, StudentMethods, untis.ElementStudent)
}

func (c *Client) masterList(ctx context.Context, methods []string, t untis.ElementType) ([]untis.MasterDataEntry, error) {
	result, _, err := c.CallFirst(ctx, methods, func(string) any { return []any{} })
	if err != nil {
		if errors.Is(err, untis.ErrNoMethodLeft) {
			return nil, nil
		}

		return nil, err
	}
	var out []untis.MasterDataEntry
	for _, item := range listPayload(result, "elements") {
		if e, ok := untis.EntryFromRaw(t, item); ok {
			out = append(out, e)
		}
	}

	return out, nil
}

// FetchMasterData pulls the four element lists and assembles them into one
// index. A list that fails with a rights error is skipped, the rest still
// count; a transport failure aborts.
func (c *Client) FetchMasterData(ctx context.Context) (untis.MasterDataIndex, error) {
	idx := untis.NewMasterDataIndex()
	lists := []func(context.Context) ([]untis.MasterDataEntry, error){
		c.Klassen, c.Teachers, c.Subjects, c.Rooms,
	}
	for _, list := range lists {
		entries, err := list(ctx)
		if err != nil {
			var se *untis.ServerError
			if errors.As(err, &se) {
				continue
			}

			return idx, err
		}
		for _, e := range entries {
			idx.Put(e)
		}
	}

	return idx, nil
}

// Holidays lists the school holidays of the active year.
func (c *Client) Holidays(ctx context.Context) ([]untis.Holiday, error) {
	result, _, err := c.CallFirst(ctx, HolidayMethods, func(string) any { return []any{} })
	if err != nil {
		if errors.Is(err, untis.ErrNoMethodLeft) {
			return nil, nil
		}

		return nil, err
	}
	var out []untis.Holiday
	for _, item := range listPayload(result, "holidays") {
		obj, ok := untis.AsObject(item)
		if !ok {
			continue
		}
		id, ok := obj.Int64("id")
		if !ok {
			continue
		}
		h := untis.Holiday{ID: id}
		h.Name, _ = obj.String("name")
		h.LongName, _ = obj.FirstString("longName", "longname")
		h.StartDate = dateField(obj, "startDate")
		h.EndDate = dateField(obj, "endDate")
		out = append(out, h)
	}

	return out, nil
}

// SchoolYears lists all school years the server knows about.
func (c *Client) SchoolYears(ctx context.Context) ([]untis.SchoolYear, error) {
	result, _, err := c.CallFirst(ctx, SchoolYearMethods, func(string) any { return []any{} })
	if err != nil {
		if errors.Is(err, untis.ErrNoMethodLeft) {
			return nil, nil
		}

		return nil, err
	}
	var out []untis.SchoolYear
	for _, item := range listPayload(result, "schoolyears") {
		if y, ok := schoolYearFromRaw(item); ok {
			out = append(out, y)
		}
	}

	return out, nil
}

// CurrentSchoolYear asks for the active year and falls back to picking the
// one whose range contains today.
func (c *Client) CurrentSchoolYear(ctx context.Context, now time.Time) (untis.SchoolYear, error) {
	result, err := c.Call(ctx, "getCurrentSchoolyear", []any{})
	if err == nil {
		if y, ok := schoolYearFromRaw(result); ok {
			y.Current = true

			return y, nil
		}
	} else {
		var se *untis.ServerError
		if !errors.As(err, &se) || !se.IsMethodNotFound() {
			return untis.SchoolYear{}, err
		}
	}
	years, err := c.SchoolYears(ctx)
	if err != nil {
		return untis.SchoolYear{}, err
	}
	for _, y := range years {
		if !now.Before(y.StartDate) && !now.After(y.EndDate) {
			y.Current = true

			return y, nil
		}
	}

	return untis.SchoolYear{}, errors.New("no school year covers the current date")
}

func schoolYearFromRaw(item any) (untis.SchoolYear, bool) {
	var y untis.SchoolYear
	obj, ok := untis.AsObject(item)
	if !ok {
		return y, false
	}
	id, ok := obj.Int64("id")
	if !ok {
		return y, false
	}
	y.ID = id
	y.Name, _ = obj.String("name")
	y.StartDate = dateField(obj, "startDate")
	y.EndDate = dateField(obj, "endDate")

	return y, true
}

// TimegridUnits returns the bell schedule grouped by weekday.
func (c *Client) TimegridUnits(ctx context.Context) ([]untis.TimegridDay, error) {
	result, _, err := c.CallFirst(ctx, TimegridMethods, func(string) any { return []any{} })
	if err != nil {
		if errors.Is(err, untis.ErrNoMethodLeft) {
			return nil, nil
		}

		return nil, err
	}
	var out []untis.TimegridDay
	for _, item := range listPayload(result, "days") {
		obj, ok := untis.AsObject(item)
		if !ok {
			continue
		}
		day, ok := obj.Int64("day")
		if !ok {
			continue
		}
		d := untis.TimegridDay{Day: int(day)}
		units, _ := obj.Array("timeUnits")
		for _, u := range units {
			uo, ok := untis.AsObject(u)
			if !ok {
				continue
			}
			var slot untis.TimegridSlot
			slot.Label, _ = uo.String("name")
			if v, ok := uo["startTime"]; ok {
				slot.StartTime, _ = untis.NormalizedTimeString(v)
			}
			if v, ok := uo["endTime"]; ok {
				slot.EndTime, _ = untis.NormalizedTimeString(v)
			}
			d.Slots = append(d.Slots, slot)
		}
		out = append(out, d)
	}

	return out, nil
}

// UserData describes the account the session belongs to.
type UserData struct {
	DisplayName string
	SchoolName  string
	PersonID    int64
	PersonType  int64
	KlasseID    int64
	MasterData  untis.MasterDataIndex
}

// UserData fetches the profile of the logged-in user. The 2017 variant
// also ships the full master data block, which the caller should keep.
func (c *Client) UserData(ctx context.Context) (UserData, error) {
	var ud UserData
	result, _, err := c.CallFirst(ctx, UserDataMethods, func(m string) any {
		if IsInternMethod(m) {
			return []any{map[string]any{
				"elementId":           int64(0),
				"deviceOs":            "IOS",
				"deviceOsVersion":     "",
				"masterDataTimestamp": int64(0),
				"auth":                c.authParams(time.Now()),
			}}
		}

		return []any{}
	})
	if err != nil {
		return ud, err
	}
	obj, ok := untis.AsObject(result)
	if !ok {
		return ud, &untis.DecodeError{What: "user data payload", Err: errors.New("not an object")}
	}
	if user, ok := obj.Object("userData"); ok {
		ud.DisplayName, _ = user.FirstString("displayName", "displayname")
		ud.SchoolName, _ = user.FirstString("schoolName", "schoolname")
		ud.PersonID, _ = user.FirstInt64("elemId", "personId")
		ud.PersonType, _ = user.FirstInt64("elemType", "personType")
		ud.KlasseID, _ = user.FirstInt64("klasseId")
	} else {
		ud.DisplayName, _ = obj.FirstString("displayName", "displayname")
		ud.PersonID, _ = obj.FirstInt64("personId", "elemId")
		ud.PersonType, _ = obj.FirstInt64("personType", "elemType")
		ud.KlasseID, _ = obj.FirstInt64("klasseId")
	}
	if master, ok := obj["masterData"]; ok {
		ud.MasterData = untis.MasterDataFromRaw(master)
	}

	return ud, nil
}

func dateField(obj untis.RawObject, key string) time.Time {
	v, ok := obj[key]
	if !ok {
		return time.Time{}
	}
	date8, ok := untis.NormalizedDateString(v)
	if !ok {
		return time.Time{}
	}
	t, err := untis.ParseDate8(date8)
	if err != nil {
		return time.Time{}
	}

	return t
}
