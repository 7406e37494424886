package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/api"
	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/database"
	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/untis"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mergestat/timediff"
	"golang.org/x/exp/slices"
)

// Fetcher is the slice of the session the watcher needs.
type Fetcher interface {
	OwnTimetable(ctx context.Context, start, end time.Time) (untis.Timetable, error)
}

// Watcher periodically reloads the watched timetables and reports changes
// to their Telegram chats.
type Watcher struct {
	Store    *database.Store
	TG       *tgbotapi.BotAPI
	Sessions func(userKey string) (Fetcher, bool)
}

// CheckTimetables walks every watch target once.
func (w *Watcher) CheckTimetables(ctx context.Context, now time.Time) {
	targets, err := w.Store.WatchTargets()
	if err != nil {
		log.Println(err)

		return
	}
	log.Println("check changes")
	for _, target := range targets {
		if _, _, err := w.CheckTarget(ctx, target, now); err != nil {
			log.Println(err)
		}
	}
	log.Println("check end")
}

// CheckTarget reloads one watched timetable and messages the changes.
// Targets rest for an hour between checks.
func (w *Watcher) CheckTarget(
	ctx context.Context,
	target database.WatchTarget,
	now time.Time,
) ([]untis.Period, []untis.Period, error) {
	du := now.Sub(target.LastCheck).Hours()
	if du < 1 {
		return nil, nil, nil
	}
	log.Printf("check %s, last check %v", target.UserKey, target.LastCheck)
	if err := w.Store.TouchWatchTarget(target.WatchID, now); err != nil {
		log.Println(err)
	}

	src, ok := w.Sessions(target.UserKey)
	if !ok {
		return nil, nil, fmt.Errorf("no session for %s", target.UserKey)
	}

	// The fresh fetch overwrites the cache, read the old copy first.
	start, end := untis.WeekRange(now, 0)
	old, hadOld, err := w.Store.LoadTimetable(target.UserKey, start, end)
	if err != nil {
		log.Println(err)
	}
	fresh, err := src.OwnTimetable(ctx, start, end)
	if err != nil {
		return nil, nil, err
	}
	if !hadOld {
		return nil, nil, nil
	}

	added, removed := Compare(fresh.Periods, old.Periods)
	if len(added) == 0 && len(removed) == 0 {
		return nil, nil, nil
	}
	w.send(target.ChatID, BuildChangeMessage(added, removed, now))

	return added, removed, nil
}

// reminderLead is how far ahead of the period start the reminder fires.
const reminderLead = 15 * time.Minute

// RemindUpcoming sends a heads-up for periods starting in exactly
// reminderLead, so a minutely schedule fires each reminder once.
func (w *Watcher) RemindUpcoming(now time.Time) int {
	targets, err := w.Store.WatchTargets()
	if err != nil {
		log.Println(err)

		return 0
	}

	sent := 0
	due := now.Truncate(time.Minute).Add(reminderLead)
	for _, target := range targets {
		tt, ok, err := w.Store.LoadLatestTimetable(target.UserKey)
		if err != nil || !ok {
			continue
		}
		for _, p := range tt.Periods {
			if !p.StartDateTime.Truncate(time.Minute).Equal(due) {
				continue
			}
			if slices.Contains(p.Is, untis.StateCancelled) {
				continue
			}
			w.send(target.ChatID, "🔔 Up next:\n"+ShortPeriodStr(p, now))
			sent++
		}
	}

	return sent
}

// BuildChangeMessage assembles the notification text, at most ten entries
// per section.
func BuildChangeMessage(added, removed []untis.Period, now time.Time) string {
	str := "‼️ The timetable changed\n"
	str = strChanges(added, str, true, now)
	str = strChanges(removed, str, false, now)

	return str
}

func strChanges(periods []untis.Period, str string, isAdd bool, now time.Time) string {
	if len(periods) == 0 {
		return str
	}
	if len(periods) > 10 {
		periods = periods[:10]
	}
	if isAdd {
		str += "➕ New:\n"
	} else {
		str += "➖ Gone:\n"
	}
	for _, p := range periods {
		str += ShortPeriodStr(p, now)
	}

	return str
}

// ShortPeriodStr renders one period for a notification.
func ShortPeriodStr(p untis.Period, now time.Time) string {
	title := p.Title()
	if title == "" {
		title = fmt.Sprintf("Lesson %d", p.LessonID)
	}
	var icon string
	if i := api.StateIcon(p); i != "" {
		icon = i + " "
	}

	str := fmt.Sprintf(
		"📆 %s - %s (%s)\n%s%s\n",
		p.StartDateTime.Format("Mon 02.01 15:04"),
		p.EndDateTime.Format("15:04"),
		timediff.TimeDiff(p.StartDateTime, timediff.WithStartTime(now)),
		icon,
		title,
	)
	if rooms := p.Labels(untis.ElementRoom); len(rooms) > 0 {
		str += strings.Join(rooms, ", ") + "\n"
	}
	str += "-----------------\n"

	return str
}

func (w *Watcher) send(chatID int64, text string) {
	if w.TG == nil {
		log.Println("notification (telegram disabled):\n" + text)

		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := w.TG.Send(msg); err != nil {
		log.Println("send notification:", err)
	}
}
