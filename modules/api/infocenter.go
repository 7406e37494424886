package api

import (
	"context"
	"time"

	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/untis"
)

// InfoSource serves the info center lists of the session.
type InfoSource interface {
	Absences(ctx context.Context, start, end time.Time) ([]untis.Absence, error)
	HomeWorks(ctx context.Context, start, end time.Time) ([]untis.PeriodHomeWork, error)
	Exams(ctx context.Context, start, end time.Time) ([]untis.Exam, error)
	MessagesOfDay(ctx context.Context, day time.Time) ([]untis.MessageOfDay, error)
}

// InfoCenter bundles everything the info screen shows for one week.
type InfoCenter struct {
	Absences  []untis.Absence
	HomeWorks []untis.PeriodHomeWork
	Exams     []untis.Exam
	Messages  []untis.MessageOfDay
}

// FetchInfoCenter collects the week's absences, homework, exams and the
// messages of the reference day. A protocol that knows none of the list
// methods contributes an empty list, not an error.
func FetchInfoCenter(ctx context.Context, src InfoSource, ref time.Time, offset int) (InfoCenter, error) {
	start, end := untis.WeekRange(ref, offset)

	var info InfoCenter
	var err error
	if info.Absences, err = src.Absences(ctx, start, end); err != nil {
		return info, err
	}
	if info.HomeWorks, err = src.HomeWorks(ctx, start, end); err != nil {
		return info, err
	}
	if info.Exams, err = src.Exams(ctx, start, end); err != nil {
		return info, err
	}
	if info.Messages, err = src.MessagesOfDay(ctx, ref); err != nil {
		return info, err
	}

	return info, nil
}

// OpenHomeWorks keeps the homework still due at the given time.
func (info InfoCenter) OpenHomeWorks(now time.Time) []untis.PeriodHomeWork {
	var open []untis.PeriodHomeWork
	for _, hw := range info.HomeWorks {
		if hw.Completed {
			continue
		}
		if !hw.EndDate.IsZero() && hw.EndDate.Before(now) {
			continue
		}
		open = append(open, hw)
	}

	return open
}

// Empty reports whether there is nothing to show.
func (info InfoCenter) Empty() bool {
	return len(info.Absences) == 0 && len(info.HomeWorks) == 0 &&
		len(info.Exams) == 0 && len(info.Messages) == 0
}
