package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"dailylog-bot/internal/audit"
)

// DailyStats summarizes the audit journal for one calendar day.
type DailyStats struct {
	Date     string
	Appended int
	Deleted  int
	Resets   int
	Denied   int
	ByActor  map[string]int
}

// AnalyzeDay counts the events of the day of targetDate, in its location.
func AnalyzeDay(events []audit.Event, targetDate time.Time) *DailyStats {
	startOfDay := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 0, 0, 0, 0, targetDate.Location())
	endOfDay := startOfDay.AddDate(0, 0, 1)

	stats := &DailyStats{
		Date:    startOfDay.Format("2006-01-02"),
		ByActor: make(map[string]int),
	}
	for _, ev := range events {
		if ev.Timestamp.Before(startOfDay) || !ev.Timestamp.Before(endOfDay) {
			continue
		}
		switch ev.Action {
		case audit.ActionAppend:
			stats.Appended++
			stats.ByActor[ev.Actor]++
		case audit.ActionDelete:
			stats.Deleted++
		case audit.ActionReset:
			stats.Resets++
		case audit.ActionDenied:
			stats.Denied++
		}
	}
	return stats
}

// Summary renders the stats as report lines; actors are ordered by
// activity, then name.
func (ds *DailyStats) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Добавлено: %d, удалено: %d, очисток: %d", ds.Appended, ds.Deleted, ds.Resets)
	if ds.Denied > 0 {
		fmt.Fprintf(&b, "\nОтказов в доступе: %d", ds.Denied)
	}

	actors := make([]string, 0, len(ds.ByActor))
	for a := range ds.ByActor {
		actors = append(actors, a)
	}
	sort.Slice(actors, func(i, j int) bool {
		if ds.ByActor[actors[i]] != ds.ByActor[actors[j]] {
			return ds.ByActor[actors[i]] > ds.ByActor[actors[j]]
		}
		return actors[i] < actors[j]
	})
	for _, a := range actors {
		fmt.Fprintf(&b, "\n- %s: %d", a, ds.ByActor[a])
	}
	return b.String()
}
