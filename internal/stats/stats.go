// Package stats 聚合圈子的聚会数据：两两同行次数、月度分布、最佳搭档、平均人数、可选年份和徽章指标。
// 全部是纯函数，输入为已从数据库取出的聚会和参与者。
package stats

import (
	"sort"
	"strings"
	"time"

	"github.com/Gopher0727/SocialSync/internal/model"
)

// AllYears disables year filtering.
const AllYears = "All"

// Placeholder is shown in place of a top duo when there is none.
const Placeholder = "---"

// Attendance maps meeting id to the ids of its participants, in insertion order and without duplicates.
type Attendance map[string][]string

// GroupParticipants 按聚会分组参与者，保持插入顺序并去重
func GroupParticipants(participants []*model.Participant) Attendance {
	out := make(Attendance)
	seen := make(map[string]map[string]bool)
	for _, p := range participants {
		if seen[p.MeetingID] == nil {
			seen[p.MeetingID] = make(map[string]bool)
		}
		if seen[p.MeetingID][p.UserID] {
			continue
		}
		seen[p.MeetingID][p.UserID] = true
		out[p.MeetingID] = append(out[p.MeetingID], p.UserID)
	}
	return out
}

func (a Attendance) attended(meetingID, userID string) bool {
	for _, id := range a[meetingID] {
		if id == userID {
			return true
		}
	}
	return false
}

// FilterByYear keeps meetings whose date starts with year. AllYears returns the input unchanged.
func FilterByYear(meetings []*model.Meeting, year string) []*model.Meeting {
	if year == AllYears || year == "" {
		return meetings
	}
	out := make([]*model.Meeting, 0, len(meetings))
	for _, m := range meetings {
		if strings.HasPrefix(m.Date, year) {
			out = append(out, m)
		}
	}
	return out
}

// PairwiseCount 两人共同参加的聚会数；a == b 时无意义，返回 nil
func PairwiseCount(meetings []*model.Meeting, att Attendance, a, b string) *int {
	if a == b {
		return nil
	}
	count := 0
	for _, m := range meetings {
		if att.attended(m.ID, a) && att.attended(m.ID, b) {
			count++
		}
	}
	return &count
}

// Matrix is the pairwise count grid over members, in member order. The diagonal is nil.
type Matrix struct {
	UserIDs []string `json:"user_ids"`
	Counts  [][]*int `json:"counts"`
}

func PairwiseMatrix(memberIDs []string, meetings []*model.Meeting, att Attendance) Matrix {
	counts := make([][]*int, len(memberIDs))
	for i, a := range memberIDs {
		counts[i] = make([]*int, len(memberIDs))
		for j, b := range memberIDs {
			counts[i][j] = PairwiseCount(meetings, att, a, b)
		}
	}
	return Matrix{UserIDs: memberIDs, Counts: counts}
}

// MonthlyHistogram 按月份计数，不区分年份
func MonthlyHistogram(meetings []*model.Meeting) [12]int {
	var buckets [12]int
	for _, m := range meetings {
		if month, ok := monthOf(m.Date); ok {
			buckets[month-1]++
		}
	}
	return buckets
}

func monthOf(date string) (int, bool) {
	if len(date) < 7 || date[4] != '-' || !isDigit(date[5]) || !isDigit(date[6]) {
		return 0, false
	}
	month := int(date[5]-'0')*10 + int(date[6]-'0')
	if month < 1 || month > 12 {
		return 0, false
	}
	return month, true
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// Duo is the pair with the most shared meetings. A < B lexically.
type Duo struct {
	A     string `json:"a"`
	B     string `json:"b"`
	Count int    `json:"count"`
}

// TopDuo 统计每对参与者的共同次数，取最大者；并列时取最先出现的一对
func TopDuo(meetings []*model.Meeting, att Attendance) (Duo, bool) {
	type pair struct{ a, b string }
	counts := make(map[pair]int)
	var order []pair

	for _, m := range meetings {
		ids := att[m.ID]
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				p := pair{ids[i], ids[j]}
				if p.b < p.a {
					p.a, p.b = p.b, p.a
				}
				if _, ok := counts[p]; !ok {
					order = append(order, p)
				}
				counts[p]++
			}
		}
	}

	var best Duo
	found := false
	for _, p := range order {
		if !found || counts[p] > best.Count {
			best = Duo{A: p.a, B: p.b, Count: counts[p]}
			found = true
		}
	}
	return best, found
}

// AverageParticipants 空集合返回 0
func AverageParticipants(meetings []*model.Meeting, att Attendance) float64 {
	if len(meetings) == 0 {
		return 0
	}
	total := 0
	for _, m := range meetings {
		total += len(att[m.ID])
	}
	return float64(total) / float64(len(meetings))
}

// AvailableYears 返回所有聚会年份加上今年，降序。圈子没有聚会时补上 2024 和 2023。
func AvailableYears(meetings []*model.Meeting, now time.Time) []string {
	set := map[string]bool{now.Format("2006"): true}
	for _, m := range meetings {
		year, _, _ := strings.Cut(m.Date, "-")
		if year != "" {
			set[year] = true
		}
	}
	if len(meetings) == 0 {
		set["2024"] = true
		set["2023"] = true
	}

	years := make([]string, 0, len(set))
	for y := range set {
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(years)))
	return years
}

// ChartPoint is one bar of the participation chart.
type ChartPoint struct {
	MeetingID string `json:"meeting_id"`
	Date      string `json:"date"`
	Count     int    `json:"count"`
}

func ChartPoints(meetings []*model.Meeting, att Attendance) []ChartPoint {
	points := make([]ChartPoint, 0, len(meetings))
	for _, m := range meetings {
		points = append(points, ChartPoint{MeetingID: m.ID, Date: m.Date, Count: len(att[m.ID])})
	}
	return points
}

// FullGroupMeetups 参与人数等于成员数的聚会
func FullGroupMeetups(meetings []*model.Meeting, att Attendance, memberCount int) []*model.Meeting {
	out := make([]*model.Meeting, 0)
	if memberCount == 0 {
		return out
	}
	for _, m := range meetings {
		if len(att[m.ID]) == memberCount {
			out = append(out, m)
		}
	}
	return out
}
