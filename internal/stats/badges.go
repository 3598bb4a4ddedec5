package stats

import (
	"sort"

	"github.com/Gopher0727/SocialSync/internal/model"
)

// BadgeMetrics are the per-user numbers badge criteria compare against.
type BadgeMetrics struct {
	MeetingCount    int `json:"meeting_count"`
	MaxParticipants int `json:"max_participants"`
	Streak          int `json:"streak"`
}

// ComputeBadgeMetrics expects the meetings the user created or attended, without duplicates.
func ComputeBadgeMetrics(meetings []*model.Meeting, att Attendance) BadgeMetrics {
	metrics := BadgeMetrics{MeetingCount: len(meetings), Streak: LongestMonthlyStreak(meetings)}
	for _, m := range meetings {
		if n := len(att[m.ID]); n > metrics.MaxParticipants {
			metrics.MaxParticipants = n
		}
	}
	return metrics
}

// Satisfies reports whether the metric selected by criteriaType reaches value.
func (bm BadgeMetrics) Satisfies(criteriaType string, value int) bool {
	switch criteriaType {
	case model.CriteriaMeetingCount:
		return bm.MeetingCount >= value
	case model.CriteriaParticipantCount:
		return bm.MaxParticipants >= value
	case model.CriteriaStreak:
		return bm.Streak >= value
	default:
		return false
	}
}

// LongestMonthlyStreak 连续有聚会的自然月的最长长度，按日期的 YYYY-MM 计算
func LongestMonthlyStreak(meetings []*model.Meeting) int {
	set := make(map[int]bool)
	for _, m := range meetings {
		if idx, ok := monthIndex(m.Date); ok {
			set[idx] = true
		}
	}
	if len(set) == 0 {
		return 0
	}

	months := make([]int, 0, len(set))
	for idx := range set {
		months = append(months, idx)
	}
	sort.Ints(months)

	best, run := 1, 1
	for i := 1; i < len(months); i++ {
		if months[i] == months[i-1]+1 {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
	}
	return best
}

// monthIndex maps YYYY-MM to a running month number.
func monthIndex(date string) (int, bool) {
	month, ok := monthOf(date)
	if !ok {
		return 0, false
	}
	year := 0
	for i := 0; i < 4; i++ {
		if !isDigit(date[i]) {
			return 0, false
		}
		year = year*10 + int(date[i]-'0')
	}
	return year*12 + month - 1, true
}
