package jsonrpc

import (
	"context"
	"errors"
	"time"

	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/untis"
)

// The read operations below share one shape: walk the candidate chain,
// convert what came back record by record, and treat a fully exhausted
// chain as "this server has no such data" rather than as a failure.

// Absences lists the student absences inside the date range.
func (c *Client) Absences(ctx context.Context, start, end time.Time) ([]untis.Absence, error) {
	result, _, err := c.CallFirst(ctx, AbsenceMethods, func(m string) any {
		return c.rangeParams(m, start, end, map[string]any{
			"includeExcused":   true,
			"includeUnExcused": true,
		})
	})
	if err != nil {
		if errors.Is(err, untis.ErrNoMethodLeft) {
			return nil, nil
		}

		return nil, err
	}
	var out []untis.Absence
	for _, item := range listPayload(result, "absences") {
		if a, ok := absenceFromRaw(item); ok {
			out = append(out, a)
		}
	}

	return out, nil
}

// HomeWorks lists homework due inside the date range.
func (c *Client) HomeWorks(ctx context.Context, start, end time.Time) ([]untis.PeriodHomeWork, error) {
	result, _, err := c.CallFirst(ctx, HomeWorkMethods, func(m string) any {
		return c.rangeParams(m, start, end, nil)
	})
	if err != nil {
		if errors.Is(err, untis.ErrNoMethodLeft) {
			return nil, nil
		}

		return nil, err
	}
	var out []untis.PeriodHomeWork
	for _, item := range listPayload(result, "homeWorks", "homeworks") {
		obj, ok := untis.AsObject(item)
		if !ok {
			continue
		}
		if hw, ok := untis.HomeWorkFromRaw(obj); ok {
			out = append(out, hw)
		}
	}

	return out, nil
}

// Exams lists exams scheduled inside the date range.
func (c *Client) Exams(ctx context.Context, start, end time.Time) ([]untis.Exam, error) {
	result, _, err := c.CallFirst(ctx, ExamMethods, func(m string) any {
		return c.rangeParams(m, start, end, nil)
	})
	if err != nil {
		if errors.Is(err, untis.ErrNoMethodLeft) {
			return nil, nil
		}

		return nil, err
	}
	var out []untis.Exam
	for _, item := range listPayload(result, "exams") {
		if e, ok := examItemFromRaw(item); ok {
			out = append(out, e)
		}
	}

	return out, nil
}

// MessagesOfDay lists the notices published for one day.
func (c *Client) MessagesOfDay(ctx context.Context, day time.Time) ([]untis.MessageOfDay, error) {
	result, _, err := c.CallFirst(ctx, MessageMethods, func(m string) any {
		p := map[string]any{"date": untis.FormatDate8(day)}
		if IsInternMethod(m) {
			p["auth"] = c.authParams(time.Now())
		}

		return []any{p}
	})
	if err != nil {
		if errors.Is(err, untis.ErrNoMethodLeft) {
			return nil, nil
		}

		return nil, err
	}
	var out []untis.MessageOfDay
	for _, item := range listPayload(result, "messagesOfDay", "messages") {
		if m, ok := messageFromRaw(item); ok {
			out = append(out, m)
		}
	}

	return out, nil
}

// OfficeHours lists teacher consultation slots inside the date range.
func (c *Client) OfficeHours(ctx context.Context, start, end time.Time) ([]untis.OfficeHour, error) {
	result, _, err := c.CallFirst(ctx, OfficeHourMethods, func(m string) any {
		return c.rangeParams(m, start, end, nil)
	})
	if err != nil {
		if errors.Is(err, untis.ErrNoMethodLeft) {
			return nil, nil
		}

		return nil, err
	}
	var out []untis.OfficeHour
	for _, item := range listPayload(result, "officeHours") {
		if oh, ok := officeHourFromRaw(item); ok {
			out = append(out, oh)
		}
	}

	return out, nil
}

// rangeParams builds the single positional object of a date-ranged read.
// Methods of the intern servlet additionally carry the auth block.
func (c *Client) rangeParams(method string, start, end time.Time, extra map[string]any) any {
	p := map[string]any{
		"startDate": untis.FormatDate8(start),
		"endDate":   untis.FormatDate8(end),
	}
	for k, v := range extra {
		p[k] = v
	}
	if IsInternMethod(method) {
		p["auth"] = c.authParams(time.Now())
	}

	return []any{p}
}

// listPayload accepts a bare array or an object wrapping the array under
// one of the given keys.
func listPayload(result any, keys ...string) []any {
	if list, ok := untis.AsArray(result); ok {
		return list
	}
	obj, ok := untis.AsObject(result)
	if !ok {
		return nil
	}
	for _, key := range keys {
		if list, ok := obj.Array(key); ok {
			return list
		}
	}

	return nil
}

func absenceFromRaw(item any) (untis.Absence, bool) {
	var a untis.Absence
	obj, ok := untis.AsObject(item)
	if !ok {
		return a, false
	}
	id, ok := obj.Int64("id")
	if !ok {
		return a, false
	}
	date, ok := obj["startDate"]
	if !ok {
		return a, false
	}
	date8, ok := untis.NormalizedDateString(date)
	if !ok {
		return a, false
	}
	start, err := untis.CombineDateTime(date8, timeOrDefault(obj, "startTime", "0000"))
	if err != nil {
		return a, false
	}
	endDate8 := date8
	if v, ok := obj["endDate"]; ok {
		if s, ok := untis.NormalizedDateString(v); ok {
			endDate8 = s
		}
	}
	end, err := untis.CombineDateTime(endDate8, timeOrDefault(obj, "endTime", "2359"))
	if err != nil {
		return a, false
	}
	a.ID = id
	a.StartDateTime = start
	a.EndDateTime = end
	a.StudentName, _ = obj.FirstString("studentName", "name")
	a.Reason, _ = obj.FirstString("reason", "absenceReason")
	a.Text, _ = obj.FirstString("text", "absentComment")
	a.Excused, _ = obj.Bool("excused")
	if v, ok := obj.Bool("isExcused"); ok {
		a.Excused = v
	}

	return a, true
}

func timeOrDefault(obj untis.RawObject, key, def string) string {
	if v, ok := obj[key]; ok {
		if t, ok := untis.NormalizedTimeString(v); ok {
			return t
		}
	}

	return def
}

func examItemFromRaw(item any) (untis.Exam, bool) {
	var e untis.Exam
	obj, ok := untis.AsObject(item)
	if !ok {
		return e, false
	}
	id, ok := obj.Int64("id")
	if !ok {
		return e, false
	}
	e.ID = id
	e.Type, _ = obj.FirstString("examType", "examtype", "type")
	e.Name, _ = obj.FirstString("name", "subject")
	e.Text, _ = obj.FirstString("text", "remark")
	e.SubjectID, _ = obj.FirstInt64("subjectId", "subject")
	if v, ok := obj["examDate"]; ok {
		e.StartDateTime, e.EndDateTime = spanFromDate(obj, v)
	} else if v, ok := obj["date"]; ok {
		e.StartDateTime, e.EndDateTime = spanFromDate(obj, v)
	}

	return e, true
}

func spanFromDate(obj untis.RawObject, date any) (time.Time, time.Time) {
	date8, ok := untis.NormalizedDateString(date)
	if !ok {
		return time.Time{}, time.Time{}
	}
	start, err := untis.CombineDateTime(date8, timeOrDefault(obj, "startTime", "0000"))
	if err != nil {
		return time.Time{}, time.Time{}
	}
	end, err := untis.CombineDateTime(date8, timeOrDefault(obj, "endTime", "2359"))
	if err != nil {
		return start, start
	}

	return start, end
}

func messageFromRaw(item any) (untis.MessageOfDay, bool) {
	var m untis.MessageOfDay
	obj, ok := untis.AsObject(item)
	if !ok {
		return m, false
	}
	id, ok := obj.Int64("id")
	if !ok {
		return m, false
	}
	m.ID = id
	m.Subject, _ = obj.FirstString("subject", "title")
	m.Body, _ = obj.FirstString("text", "body")

	return m, true
}

func officeHourFromRaw(item any) (untis.OfficeHour, bool) {
	var oh untis.OfficeHour
	obj, ok := untis.AsObject(item)
	if !ok {
		return oh, false
	}
	id, ok := obj.Int64("id")
	if !ok {
		return oh, false
	}
	date, ok := obj["date"]
	if !ok {
		if date, ok = obj["startDate"]; !ok {
			return oh, false
		}
	}
	start, end := spanFromDate(obj, date)
	oh.ID = id
	oh.StartDateTime = start
	oh.EndDateTime = end
	oh.TeacherName, _ = obj.FirstString("displayNameTeacher", "teacherName", "teacher")
	oh.Room, _ = obj.FirstString("displayNameRooms", "room")
	oh.Email, _ = obj.FirstString("email")
	oh.Phone, _ = obj.FirstString("phone")

	return oh, true
}
