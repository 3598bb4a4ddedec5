package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/SocialSync/internal/model"
)

func meeting(id, date string) *model.Meeting {
	return &model.Meeting{ID: id, Date: date, Title: id}
}

func attend(pairs ...[2]string) Attendance {
	parts := make([]*model.Participant, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, &model.Participant{MeetingID: p[0], UserID: p[1]})
	}
	return GroupParticipants(parts)
}

func TestKyotoCrewScenario(t *testing.T) {
	meetings := []*model.Meeting{meeting("m1", "2024-06-10")}
	att := attend([2]string{"m1", "A"}, [2]string{"m1", "B"})

	got2024 := PairwiseCount(FilterByYear(meetings, "2024"), att, "A", "B")
	require.NotNil(t, got2024)
	assert.Equal(t, 1, *got2024)

	got2023 := PairwiseCount(FilterByYear(meetings, "2023"), att, "A", "B")
	require.NotNil(t, got2023)
	assert.Equal(t, 0, *got2023)
}

func TestPairwiseCount(t *testing.T) {
	meetings := []*model.Meeting{meeting("m1", "2024-01-01"), meeting("m2", "2024-02-01")}
	att := attend([2]string{"m1", "A"}, [2]string{"m1", "B"}, [2]string{"m2", "A"}, [2]string{"m2", "C"})

	t.Run("same user is undefined", func(t *testing.T) {
		assert.Nil(t, PairwiseCount(meetings, att, "A", "A"))
	})

	t.Run("matrix", func(t *testing.T) {
		m := PairwiseMatrix([]string{"A", "B", "C"}, meetings, att)
		assert.Nil(t, m.Counts[0][0])
		assert.Equal(t, 1, *m.Counts[0][1])
		assert.Equal(t, 1, *m.Counts[0][2])
		assert.Equal(t, 0, *m.Counts[1][2])
		assert.Equal(t, *m.Counts[2][0], *m.Counts[0][2])
	})
}

func TestGroupParticipantsDedupes(t *testing.T) {
	att := attend([2]string{"m1", "B"}, [2]string{"m1", "A"}, [2]string{"m1", "B"})
	assert.Equal(t, []string{"B", "A"}, att["m1"])
}

func TestFilterByYear(t *testing.T) {
	meetings := []*model.Meeting{meeting("a", "2023-12-31"), meeting("b", "2024-01-01"), meeting("c", "2024-07-04")}

	assert.Len(t, FilterByYear(meetings, "2024"), 2)
	assert.Len(t, FilterByYear(meetings, "2022"), 0)
	assert.Equal(t, meetings, FilterByYear(meetings, AllYears))
	assert.Equal(t, meetings, FilterByYear(FilterByYear(meetings, AllYears), AllYears))
}

func TestMonthlyHistogram(t *testing.T) {
	meetings := []*model.Meeting{
		meeting("a", "2023-01-15"),
		meeting("b", "2024-01-02"),
		meeting("c", "2024-12-25"),
		meeting("d", "bad"),
	}
	h := MonthlyHistogram(meetings)
	assert.Equal(t, 2, h[0])
	assert.Equal(t, 1, h[11])

	total := 0
	for _, v := range h {
		total += v
	}
	assert.Equal(t, 3, total)
}

func TestTopDuo(t *testing.T) {
	t.Run("no meetings", func(t *testing.T) {
		_, ok := TopDuo(nil, Attendance{})
		assert.False(t, ok)
	})

	t.Run("highest count wins", func(t *testing.T) {
		meetings := []*model.Meeting{meeting("m1", "2024-01-01"), meeting("m2", "2024-01-02")}
		att := attend(
			[2]string{"m1", "C"}, [2]string{"m1", "A"},
			[2]string{"m2", "B"}, [2]string{"m2", "C"}, [2]string{"m2", "A"},
		)
		duo, ok := TopDuo(meetings, att)
		require.True(t, ok)
		assert.Equal(t, Duo{A: "A", B: "C", Count: 2}, duo)
	})

	t.Run("ties keep first pair seen", func(t *testing.T) {
		meetings := []*model.Meeting{meeting("m1", "2024-01-01"), meeting("m2", "2024-01-02")}
		att := attend([2]string{"m1", "Y"}, [2]string{"m1", "X"}, [2]string{"m2", "A"}, [2]string{"m2", "B"})
		duo, ok := TopDuo(meetings, att)
		require.True(t, ok)
		assert.Equal(t, Duo{A: "X", B: "Y", Count: 1}, duo)
	})

	t.Run("solo meetings have no pair", func(t *testing.T) {
		meetings := []*model.Meeting{meeting("m1", "2024-01-01")}
		_, ok := TopDuo(meetings, attend([2]string{"m1", "A"}))
		assert.False(t, ok)
	})
}

func TestAverageParticipants(t *testing.T) {
	assert.Equal(t, 0.0, AverageParticipants(nil, Attendance{}))

	meetings := []*model.Meeting{meeting("m1", "2024-01-01"), meeting("m2", "2024-01-02")}
	att := attend([2]string{"m1", "A"}, [2]string{"m1", "B"}, [2]string{"m1", "C"}, [2]string{"m2", "A"})
	assert.InDelta(t, 2.0, AverageParticipants(meetings, att), 1e-9)
}

func TestAvailableYears(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("empty circle", func(t *testing.T) {
		assert.Equal(t, []string{"2025", "2024", "2023"}, AvailableYears(nil, now))
	})

	t.Run("years from data plus current", func(t *testing.T) {
		meetings := []*model.Meeting{meeting("a", "2021-05-05"), meeting("b", "2022-01-01"), meeting("c", "2021-09-09")}
		assert.Equal(t, []string{"2025", "2022", "2021"}, AvailableYears(meetings, now))
	})
}

func TestFullGroupMeetupsAndChart(t *testing.T) {
	meetings := []*model.Meeting{meeting("m1", "2024-01-01"), meeting("m2", "2024-02-01")}
	att := attend([2]string{"m1", "A"}, [2]string{"m1", "B"}, [2]string{"m2", "A"})

	full := FullGroupMeetups(meetings, att, 2)
	require.Len(t, full, 1)
	assert.Equal(t, "m1", full[0].ID)
	assert.Empty(t, FullGroupMeetups(meetings, att, 0))

	points := ChartPoints(meetings, att)
	assert.Equal(t, []ChartPoint{{MeetingID: "m1", Date: "2024-01-01", Count: 2}, {MeetingID: "m2", Date: "2024-02-01", Count: 1}}, points)
}

func TestBadgeMetrics(t *testing.T) {
	meetings := []*model.Meeting{
		meeting("m1", "2023-11-02"),
		meeting("m2", "2023-12-20"),
		meeting("m3", "2024-01-05"),
		meeting("m4", "2024-01-25"),
		meeting("m5", "2024-05-01"),
	}
	att := attend([2]string{"m1", "A"}, [2]string{"m1", "B"}, [2]string{"m1", "C"}, [2]string{"m3", "A"})

	bm := ComputeBadgeMetrics(meetings, att)
	assert.Equal(t, BadgeMetrics{MeetingCount: 5, MaxParticipants: 3, Streak: 3}, bm)

	assert.True(t, bm.Satisfies(model.CriteriaMeetingCount, 5))
	assert.False(t, bm.Satisfies(model.CriteriaMeetingCount, 6))
	assert.True(t, bm.Satisfies(model.CriteriaParticipantCount, 3))
	assert.True(t, bm.Satisfies(model.CriteriaStreak, 3))
	assert.False(t, bm.Satisfies(model.CriteriaStreak, 4))
	assert.False(t, bm.Satisfies("unknown", 0))
}

func TestLongestMonthlyStreak(t *testing.T) {
	assert.Equal(t, 0, LongestMonthlyStreak(nil))
	assert.Equal(t, 1, LongestMonthlyStreak([]*model.Meeting{meeting("a", "2024-03-01"), meeting("b", "2024-03-09")}))
	assert.Equal(t, 1, LongestMonthlyStreak([]*model.Meeting{meeting("a", "2023-03-01"), meeting("b", "2024-03-01")}))
}

func TestBuildMapView(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	t.Run("no coordinates uses default", func(t *testing.T) {
		view := BuildMapView([]*model.Meeting{meeting("a", "2024-01-01")})
		assert.Empty(t, view.Pins)
		assert.Equal(t, 10, view.Zoom)
		assert.InDelta(t, 40.730610, view.CenterLat, 1e-9)
		assert.InDelta(t, -73.935242, view.CenterLng, 1e-9)
	})

	t.Run("single point zooms in", func(t *testing.T) {
		m := meeting("a", "2024-01-01")
		m.Latitude, m.Longitude = f(35.0116), f(135.7681)
		view := BuildMapView([]*model.Meeting{m})
		require.Len(t, view.Pins, 1)
		assert.Equal(t, 12, view.Zoom)
		assert.InDelta(t, 35.0116, view.CenterLat, 1e-9)
	})

	t.Run("spread picks zoom", func(t *testing.T) {
		a, b := meeting("a", "2024-01-01"), meeting("b", "2024-01-02")
		a.Latitude, a.Longitude = f(35.0), f(135.0)
		b.Latitude, b.Longitude = f(37.0), f(135.5)
		view := BuildMapView([]*model.Meeting{a, b})
		assert.Equal(t, 8, view.Zoom)
		assert.InDelta(t, 36.0, view.CenterLat, 1e-9)
	})

	for _, tc := range []struct {
		spread float64
		zoom   int
	}{{11, 4}, {6, 6}, {2, 8}, {0.7, 10}, {0.5, 12}, {0, 12}} {
		assert.Equal(t, tc.zoom, zoomForSpread(tc.spread), "spread %v", tc.spread)
	}
}
