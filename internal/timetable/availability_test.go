package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGridClassify(t *testing.T) {
	grid := DefaultGrid()
	cases := []struct {
		name    string
		start   int
		minutes int
		want    TimeBucket
	}{
		{"morning", 8 * 60, 90, BucketMorning},
		{"afternoon", 13 * 60, 240, BucketAfternoon},
		{"overload", 17 * 60, 180, BucketOverload},
		{"touches lunch", 11*60 + 30, 60, BucketInvalid},
		{"straddles afternoon and overload", 16 * 60, 120, BucketInvalid},
		{"before morning", 6 * 60, 60, BucketInvalid},
		{"zero length", 8 * 60, 0, BucketInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, grid.Classify(tc.start, tc.minutes))
		})
	}
}

func TestGridValidStarts(t *testing.T) {
	grid := DefaultGrid()
	starts := grid.ValidStarts(180)
	assert.Equal(t, []int{420, 450, 480, 510, 540, 780, 810, 840, 1020}, starts)
	assert.Empty(t, grid.ValidStarts(301))
	assert.Nil(t, grid.ValidStarts(0))
}

func TestBuildAvailabilityDefaultsToWeekdays(t *testing.T) {
	index := BuildAvailability([]Instructor{{ID: "inst-1"}}, DefaultGrid())
	for day := 0; day < 5; day++ {
		assert.True(t, index.Available("inst-1", day, 8*60, 12*60), "day %d", day)
	}
	assert.False(t, index.Available("inst-1", 5, 8*60, 60))
	assert.False(t, index.Available("inst-1", 0, 7*60, 60))
	assert.Equal(t, 5*12*60, index.AvailableMinutes("inst-1", 5))
}

func TestBuildAvailabilityRestrictedWithoutWindows(t *testing.T) {
	index := BuildAvailability([]Instructor{{ID: "inst-1", RestrictedAvailability: true}}, DefaultGrid())
	for day := 0; day < 7; day++ {
		assert.False(t, index.Available("inst-1", day, 8*60, 60), "day %d", day)
	}
	assert.Zero(t, index.AvailableMinutes("inst-1", 7))
}

func TestBuildAvailabilityMergesWindows(t *testing.T) {
	index := BuildAvailability([]Instructor{{
		ID: "inst-1",
		Availability: []AvailabilityWindow{
			{Day: 2, Start: 10 * 60, End: 12 * 60},
			{Day: 2, Start: 8 * 60, End: 10 * 60},
			{Day: 3, Start: 14 * 60, End: 13 * 60},
		},
	}}, DefaultGrid())
	require.Len(t, index["inst-1"][2], 1)
	assert.Equal(t, Window{Start: 8 * 60, End: 12 * 60}, index["inst-1"][2][0])
	assert.True(t, index.Available("inst-1", 2, 9*60+30, 120))
	assert.Empty(t, index["inst-1"][3])
	assert.False(t, index.Available("inst-1", 0, 8*60, 60))
}

func TestClockHelpers(t *testing.T) {
	minutes, err := ParseClock("13:30")
	require.NoError(t, err)
	assert.Equal(t, 810, minutes)
	minutes, err = ParseClock("07:05:00")
	require.NoError(t, err)
	assert.Equal(t, 425, minutes)
	_, err = ParseClock("25:00")
	assert.Error(t, err)
	_, err = ParseClock("noon")
	assert.Error(t, err)

	assert.Equal(t, "08:30:00", FormatClock(510))
	assert.Equal(t, "WEDNESDAY", DayName(2))
	assert.Equal(t, "", DayName(9))
	assert.Equal(t, 4, DayIndex("fri"))
	assert.Equal(t, 0, DayIndex("Monday"))
	assert.Equal(t, -1, DayIndex("someday"))
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("17:00-20:00")
	require.NoError(t, err)
	assert.Equal(t, Window{Start: 1020, End: 1200}, w)

	w, err = ParseWindow("")
	require.NoError(t, err)
	assert.Zero(t, w.Length())

	_, err = ParseWindow("12:00-08:00")
	assert.Error(t, err)
	_, err = ParseWindow("08:00")
	assert.Error(t, err)
}
