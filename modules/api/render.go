package api

import (
	"fmt"
	"strings"

	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/untis"
)

// StateIcons prefix timetable lines, keyed by period state.
var StateIcons = map[untis.PeriodState]string{
	untis.StateCancelled:           "❌",
	untis.StateExam:                "📝",
	untis.StateTeacherSubstitution: "🔄",
	untis.StateRoomSubstitution:    "🔄",
	untis.StateSubjectSubstitution: "🔄",
	untis.StateIrregular:           "⚠️",
}

// iconOrder ranks states, most important first.
var iconOrder = []untis.PeriodState{
	untis.StateCancelled,
	untis.StateExam,
	untis.StateTeacherSubstitution,
	untis.StateRoomSubstitution,
	untis.StateSubjectSubstitution,
	untis.StateIrregular,
}

// StateIcon picks the most important icon of a period.
func StateIcon(p untis.Period) string {
	for _, s := range iconOrder {
		if p.HasState(s) {
			return StateIcons[s]
		}
	}

	return ""
}

// PeriodLine renders one period as a single message line.
func PeriodLine(p untis.Period) string {
	title := p.Title()
	if title == "" {
		title = fmt.Sprintf("Lesson %d", p.LessonID)
	}

	str := fmt.Sprintf("%s - %s ", p.StartDateTime.Format("15:04"), p.EndDateTime.Format("15:04"))
	if icon := StateIcon(p); icon != "" {
		str += icon + " "
	}
	str += title
	if rooms := p.Labels(untis.ElementRoom); len(rooms) > 0 {
		str += " (" + strings.Join(rooms, ", ") + ")"
	}
	if p.Text.Substitution != "" {
		str += "\n" + p.Text.Substitution
	}

	return str
}

// DayText renders the periods of one day below a date header.
func DayText(day []untis.Period) string {
	if len(day) == 0 {
		return ""
	}
	str := day[0].StartDateTime.Format("Monday, 02.01.2006") + "\n"
	for _, p := range day {
		str += PeriodLine(p) + "\n"
	}

	return str
}
