package history

import (
	"slices"
	"time"
)

const secondsPerDay = 24 * 60 * 60

// StreakSummary is derived from a session log and never stored.
type StreakSummary struct {
	TotalSessions int `json:"totalSessions"`
	TotalDays     int `json:"totalDays"`
	CurrentStreak int `json:"currentStreak"`
	LongestStreak int `json:"longestStreak"`
}

// ComputeStreak counts distinct days and runs of consecutive days.
//
// CurrentStreak is the length of the run ending at the most recent recorded
// day. It is not compared against today, so a run that ended days ago is
// still reported as current. Records with an unparseable day count towards
// TotalSessions only.
func ComputeStreak(records []SessionRecord) StreakSummary {
	summary := StreakSummary{TotalSessions: len(records)}

	seen := make(map[int64]struct{}, len(records))
	days := make([]int64, 0, len(records))
	for _, r := range records {
		t, err := time.ParseInLocation(DayLayout, r.Day, time.UTC)
		if err != nil {
			continue
		}
		n := t.Unix() / secondsPerDay
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		days = append(days, n)
	}
	slices.Sort(days)

	summary.TotalDays = len(days)
	run := 0
	for i, d := range days {
		if i > 0 && d == days[i-1]+1 {
			run++
		} else {
			run = 1
		}
		summary.LongestStreak = max(summary.LongestStreak, run)
	}
	summary.CurrentStreak = run

	return summary
}
