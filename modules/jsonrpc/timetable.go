package jsonrpc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/untis"
)

// ElementRef identifies whose timetable is requested.
type ElementRef struct {
	Type untis.ElementType
	ID   int64
}

var numericTypes = map[untis.ElementType]int64{
	untis.ElementKlasse:  1,
	untis.ElementTeacher: 2,
	untis.ElementSubject: 3,
	untis.ElementRoom:    4,
	untis.ElementStudent: 5,
}

// TimetableResult carries the normalized fetch plus whatever master data
// the response embedded and the method that finally answered.
type TimetableResult struct {
	Timetable  untis.Timetable
	MasterData untis.MasterDataIndex // nil when the response carried none
	MethodUsed string
	Skipped    int
}

// Timetable fetches the element's periods over the closed date range. The
// candidate chain is walked first; when no structured method is left the
// client degrades to lesson templates, and when even those fail it returns
// an empty but valid timetable with an explanation instead of an error.
func (c *Client) Timetable(ctx context.Context, elem ElementRef, start, end time.Time, idx untis.MasterDataIndex) (TimetableResult, error) {
	var res TimetableResult
	result, method, err := c.CallFirst(ctx, TimetableMethods, func(m string) any {
		return c.timetableParams(m, elem, start, end)
	})
	if err != nil {
		if !errors.Is(err, untis.ErrNoMethodLeft) {
			return res, err
		}

		return c.lessonTimetable(ctx, start, end)
	}
	res.MethodUsed = method

	periodsRaw, masterRaw := timetablePayload(result)
	resolve := idx
	if masterRaw != nil {
		res.MasterData = untis.MasterDataFromRaw(masterRaw)
		res.MasterData.MergeMissing(idx)
		resolve = res.MasterData
	}
	periods, skipped, err := untis.PeriodsFromRaw(periodsRaw, resolve)
	if err != nil {
		return res, err
	}
	res.Skipped = skipped
	res.Timetable = untis.NewTimetable(start, end, periods)

	return res, nil
}

// timetablePayload digs the period list and the optional master data block
// out of the response, whatever generation shaped it: a bare array,
// {periods: [...]} or {timetable: {periods: [...]}, masterData: {...}}.
func timetablePayload(result any) ([]any, any) {
	if list, ok := untis.AsArray(result); ok {
		return list, nil
	}
	obj, ok := untis.AsObject(result)
	if !ok {
		return nil, nil
	}
	master, hasMaster := obj["masterData"]
	if !hasMaster {
		master = nil
	}
	if list, ok := obj.Array("periods"); ok {
		return list, master
	}
	if tt, ok := obj.Object("timetable"); ok {
		if list, ok := tt.Array("periods"); ok {
			return list, master
		}
	}

	return nil, master
}

func (c *Client) timetableParams(method string, elem ElementRef, start, end time.Time) any {
	if IsInternMethod(method) {
		return []any{map[string]any{
			"id":                  elem.ID,
			"type":                numericTypes[elem.Type],
			"startDate":           untis.FormatDate8(start),
			"endDate":             untis.FormatDate8(end),
			"masterDataTimestamp": int64(0),
			"timetableTimestamp":  int64(0),
			"timetableTimestamps": []any{},
			"auth":                c.authParams(time.Now()),
		}}
	}
	if method == "getOwnTimetableForToday" {
		return []any{}
	}
	if strings.HasPrefix(method, "getOwn") {
		return []any{map[string]any{
			"startDate": untis.FormatDate8(start),
			"endDate":   untis.FormatDate8(end),
		}}
	}

	return []any{map[string]any{
		"options": map[string]any{
			"element": map[string]any{
				"id":   elem.ID,
				"type": numericTypes[elem.Type],
			},
			"startDate":        untis.FormatDate8(start),
			"endDate":          untis.FormatDate8(end),
			"showLsText":       true,
			"showSubstText":    true,
			"showInfo":         true,
			"showStudentgroup": true,
		},
	}}
}

// lessonTimetable renders plain lesson templates for servers that know no
// structured timetable method at all.
func (c *Client) lessonTimetable(ctx context.Context, start, end time.Time) (TimetableResult, error) {
	res := TimetableResult{MethodUsed: LessonsMethod}
	result, err := c.Call(ctx, LessonsMethod, []any{})
	if err != nil {
		res.MethodUsed = ""
		res.Timetable = untis.Timetable{
			DisplayableStartDate: start,
			DisplayableEndDate:   end,
			Warning:              "the server supports no known timetable method",
		}

		return res, nil
	}
	c.LastMethod = LessonsMethod
	list, _ := untis.AsArray(result)
	res.Timetable = untis.NewTimetable(start, end, templatePeriods(list, start))
	res.Timetable.Warning = "compatibility mode: the server delivers lesson templates instead of scheduled periods"

	return res, nil
}

// templatePeriods spreads undated lesson templates over the first day of
// the requested range, one slot per hour from 08:00, so very old servers
// still show something usable.
func templatePeriods(list []any, day time.Time) []untis.Period {
	slot := time.Date(day.Year(), day.Month(), day.Day(), 8, 0, 0, 0, time.Local)
	var periods []untis.Period
	n := 0
	for _, item := range list {
		obj, ok := untis.AsObject(item)
		if !ok {
			continue
		}
		id, ok := obj.FirstInt64("id", "lessonId", "lsid")
		if !ok {
			continue
		}
		n++
		p := untis.Period{
			ID:             id,
			LessonID:       id,
			StartDateTime:  slot,
			EndDateTime:    slot.Add(45 * time.Minute),
			ForeColor:      untis.DefaultForeColor,
			BackColor:      untis.DefaultBackColor,
			InnerForeColor: untis.DefaultForeColor,
			InnerBackColor: untis.DefaultBackColor,
			Is:             []untis.PeriodState{untis.StateIrregular},
		}
		if name, ok := obj.FirstString("name", "subject", "text"); ok {
			p.Text.Lesson = name
		} else {
			num := n
			if v, ok := obj.Int64("lessonNumber"); ok {
				num = int(v)
			}
			p.Text.Lesson = fmt.Sprintf("Course %d", num)
			if hours, ok := obj.Int64("weeklyHours"); ok {
				p.Text.Lesson += fmt.Sprintf(" (%d h/week)", hours)
			}
		}
		p.Text.Info = "from the lesson list, not a scheduled occurrence"
		p.BlockHash = untis.ComputeBlockHash(p)
		periods = append(periods, p)
		slot = slot.Add(time.Hour)
	}

	return periods
}
