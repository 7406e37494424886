package rest

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/untis"
)

// Unlike the legacy servlet the REST payloads are stable enough for plain
// typed decoding; defensiveness is reduced to optional fields.

type periodResponse struct {
	Periods []restPeriod `json:"periods"`
}

type restPeriod struct {
	ID               int64          `json:"id"`
	LessonID         int64          `json:"lessonId"`
	StartDateTime    UntisTime      `json:"startDateTime"`
	EndDateTime      UntisTime      `json:"endDateTime"`
	ForeColor        string         `json:"foreColor"`
	BackColor        string         `json:"backColor"`
	InnerForeColor   string         `json:"innerForeColor"`
	InnerBackColor   string         `json:"innerBackColor"`
	LessonText       string         `json:"lessonText"`
	SubstitutionText string         `json:"substitutionText"`
	InfoText         string         `json:"infoText"`
	Status           string         `json:"status"`
	StatusDetail     string         `json:"statusDetail"`
	IsOnlinePeriod   bool           `json:"isOnlinePeriod"`
	OnlinePeriodLink string         `json:"onlinePeriodLink"`
	Elements         []restElement  `json:"elements"`
	HomeWorks        []restHomeWork `json:"homeWorks"`
	Exam             *restExam      `json:"exam"`
	MessengerChannel *restChannel   `json:"messengerChannel"`
}

type restElement struct {
	Type          string `json:"type"`
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	LongName      string `json:"longName"`
	DisplayName   string `json:"displayName"`
	AlternateName string `json:"alternateName"`
	ForeColor     string `json:"foreColor"`
	BackColor     string `json:"backColor"`
}

type restHomeWork struct {
	ID        int64     `json:"id"`
	LessonID  int64     `json:"lessonId"`
	StartDate UntisTime `json:"startDate"`
	EndDate   UntisTime `json:"endDate"`
	Text      string    `json:"text"`
	Remark    string    `json:"remark"`
	Completed bool      `json:"completed"`
}

type restExam struct {
	ID   int64  `json:"id"`
	Type string `json:"examType"`
	Name string `json:"name"`
	Text string `json:"text"`
}

type restChannel struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Paging narrows a range request to one page. The zero value asks for the
// server default, which is the whole range on every deployment seen so far.
type Paging struct {
	Page int
	Size int
}

// TimetableByRange fetches the element's periods over the closed date
// range through the v1 timetable resource.
func (c *Client) TimetableByRange(ctx context.Context, t untis.ElementType, id int64, start, end time.Time, paging Paging, idx untis.MasterDataIndex) (untis.Timetable, error) {
	query := url.Values{
		"elementType": {string(t)},
		"elementId":   {strconv.FormatInt(id, 10)},
		"start":       {DateParam(start)},
		"end":         {DateParam(end)},
	}
	if paging.Size > 0 {
		query.Set("pageSize", strconv.Itoa(paging.Size))
		query.Set("page", strconv.Itoa(paging.Page))
	}
	var resp periodResponse
	if err := c.get(ctx, "/view/v1/timetable", query, &resp); err != nil {
		return untis.Timetable{}, err
	}
	periods := make([]untis.Period, 0, len(resp.Periods))
	for _, rp := range resp.Periods {
		periods = append(periods, rp.toPeriod(idx))
	}

	return untis.NewTimetable(start, end, periods), nil
}

func (rp restPeriod) toPeriod(idx untis.MasterDataIndex) untis.Period {
	p := untis.Period{
		ID:               rp.ID,
		LessonID:         rp.LessonID,
		StartDateTime:    rp.StartDateTime.Time,
		EndDateTime:      rp.EndDateTime.Time,
		ForeColor:        colorOr(rp.ForeColor, untis.DefaultForeColor),
		BackColor:        colorOr(rp.BackColor, untis.DefaultBackColor),
		InnerForeColor:   colorOr(rp.InnerForeColor, untis.DefaultForeColor),
		InnerBackColor:   colorOr(rp.InnerBackColor, untis.DefaultBackColor),
		IsOnlinePeriod:   rp.IsOnlinePeriod,
		OnlinePeriodLink: rp.OnlinePeriodLink,
	}
	p.Text.Lesson = rp.LessonText
	p.Text.Substitution = rp.SubstitutionText
	p.Text.Info = rp.InfoText
	p.Is = statesOf(rp.Status, rp.StatusDetail, rp.SubstitutionText)
	for _, re := range rp.Elements {
		if e, ok := re.toElement(idx); ok {
			p.Elements = append(p.Elements, e)
		}
	}
	for _, hw := range rp.HomeWorks {
		if hw.ID == 0 || hw.Text == "" {
			continue
		}
		p.HomeWorks = append(p.HomeWorks, untis.PeriodHomeWork{
			ID:        hw.ID,
			LessonID:  hw.LessonID,
			StartDate: hw.StartDate.Time,
			EndDate:   hw.EndDate.Time,
			Text:      hw.Text,
			Remark:    hw.Remark,
			Completed: hw.Completed,
		})
	}
	if rp.Exam != nil && rp.Exam.ID != 0 {
		p.Exam = &untis.PeriodExam{ID: rp.Exam.ID, Type: rp.Exam.Type, Name: rp.Exam.Name, Text: rp.Exam.Text}
	}
	if rp.MessengerChannel != nil && rp.MessengerChannel.ID != 0 && rp.MessengerChannel.Name != "" {
		p.MessengerChannel = &untis.MessengerChannel{ID: rp.MessengerChannel.ID, Name: rp.MessengerChannel.Name}
	}
	p.BlockHash = untis.ComputeBlockHash(p)

	return p
}

func (re restElement) toElement(idx untis.MasterDataIndex) (untis.PeriodElement, bool) {
	t, ok := untis.ElementTypeFrom(re.Type)
	if !ok {
		return untis.PeriodElement{}, false
	}
	e := untis.PeriodElement{
		Type:          t,
		ID:            re.ID,
		Name:          re.Name,
		LongName:      re.LongName,
		DisplayName:   re.DisplayName,
		AlternateName: re.AlternateName,
		ForeColor:     re.ForeColor,
		BackColor:     re.BackColor,
	}

	return idx.Refine(e), true
}

// statesOf folds the status fields into period states, reusing the same
// vocabulary the legacy payloads use.
func statesOf(status, detail, substText string) []untis.PeriodState {
	var out []untis.PeriodState
	seen := map[untis.PeriodState]bool{}
	add := func(s string) {
		if state, ok := untis.StateFromString(s); ok && !seen[state] {
			seen[state] = true
			out = append(out, state)
		}
	}
	add(status)
	add(detail)
	if substText != "" && !seen[untis.StateTeacherSubstitution] {
		seen[untis.StateTeacherSubstitution] = true
		out = append(out, untis.StateTeacherSubstitution)
	}

	return out
}

func colorOr(c, def string) string {
	if c == "" {
		return def
	}

	return c
}
