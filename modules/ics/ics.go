// Package ics renders timetables as iCalendar documents for calendar app
// subscriptions.
package ics

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/untis"
)

// PeriodStr is one calendar event prepared for the template.
type PeriodStr struct {
	UID      string
	Stamp    string
	Begin    string
	End      string
	Summary  string
	Location string
	Desc     string
	Status   string
}

const stampLayout = "20060102T150405Z"

const icsTemplate = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//untisgo//timetable//EN
CALSCALE:GREGORIAN
METHOD:PUBLISH
X-WR-CALNAME:{{.Name}}
{{range .Events}}BEGIN:VEVENT
UID:{{.UID}}
DTSTAMP:{{.Stamp}}
DTSTART:{{.Begin}}
DTEND:{{.End}}
SUMMARY:{{.Summary}}
{{if .Location}}LOCATION:{{.Location}}
{{end}}{{if .Desc}}DESCRIPTION:{{.Desc}}
{{end}}{{if .Status}}STATUS:{{.Status}}
{{end}}END:VEVENT
{{end}}END:VCALENDAR
`

var icsTmpl = template.Must(template.New("ics").Parse(icsTemplate))

// Generate renders the timetable into a text/calendar document. All event
// times are converted to UTC.
func Generate(tt untis.Timetable, name string) (string, error) {
	stamp := time.Now().UTC().Format(stampLayout)

	var events []PeriodStr
	for _, p := range tt.Periods {
		ev := PeriodStr{
			UID:      fmt.Sprintf("%d-%d@untisgo", p.ID, p.StartDateTime.Unix()),
			Stamp:    stamp,
			Begin:    p.StartDateTime.UTC().Format(stampLayout),
			End:      p.EndDateTime.UTC().Format(stampLayout),
			Summary:  escape(summary(p)),
			Location: escape(strings.Join(p.Labels(untis.ElementRoom), ", ")),
			Desc:     escape(description(p)),
		}
		if p.HasState(untis.StateCancelled) {
			ev.Status = "CANCELLED"
		}
		events = append(events, ev)
	}

	var rendered bytes.Buffer
	err := icsTmpl.Execute(&rendered, struct {
		Name   string
		Events []PeriodStr
	}{Name: escape(name), Events: events})
	if err != nil {
		return "", err
	}

	// Calendar clients expect CRLF line ends.
	return strings.ReplaceAll(rendered.String(), "\n", "\r\n"), nil
}

func summary(p untis.Period) string {
	title := p.Title()
	if title == "" {
		title = fmt.Sprintf("Lesson %d", p.LessonID)
	}
	if p.Exam != nil && p.Exam.Name != "" {
		return fmt.Sprintf("%s (%s)", title, p.Exam.Name)
	}

	return title
}

func description(p untis.Period) string {
	var parts []string
	if teachers := p.Labels(untis.ElementTeacher); len(teachers) > 0 {
		parts = append(parts, strings.Join(teachers, ", "))
	}
	if p.Text.Substitution != "" {
		parts = append(parts, p.Text.Substitution)
	}
	if p.Text.Info != "" {
		parts = append(parts, p.Text.Info)
	}
	if p.OnlinePeriodLink != "" {
		parts = append(parts, p.OnlinePeriodLink)
	}

	return strings.Join(parts, "\n")
}

// escape quotes the characters RFC 5545 treats specially inside text values.
func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, ";", `\;`)
	s = strings.ReplaceAll(s, ",", `\,`)
	s = strings.ReplaceAll(s, "\n", `\n`)

	return s
}
