package liftstudy

import (
	"math"
	"strings"
	"testing"
	"time"

	"measurement-gateway/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfidenceInterval(t *testing.T) {
	ci := ConfidenceInterval(10, 100)
	assert.InDelta(t, 0.0412, ci[0], 1e-4)
	assert.InDelta(t, 0.1588, ci[1], 1e-4)

	// Clipped to [0, 1].
	assert.Equal(t, [2]float64{0, 0}, ConfidenceInterval(0, 10))
	assert.Equal(t, [2]float64{1, 1}, ConfidenceInterval(10, 10))
}

func TestPValue(t *testing.T) {
	assert.InDelta(t, 0.0747, PValue(10, 100, 20, 100), 1e-4)
	assert.InDelta(t, 0.0665, PValue(0, 50, 5, 50), 1e-4)

	assert.True(t, math.IsNaN(PValue(0, 50, 0, 50)), "nobody converted")
	assert.True(t, math.IsNaN(PValue(50, 50, 30, 30)), "everybody converted")
}

func TestLift(t *testing.T) {
	assert.InDelta(t, 100.0, Lift(0.2, 0.1), 1e-9)
	assert.InDelta(t, -50.0, Lift(0.05, 0.1), 1e-9)
	assert.True(t, math.IsInf(Lift(0.2, 0), 1))
}

func TestCostPerIncrementalConversion(t *testing.T) {
	assert.InDelta(t, 5.0, CostPerIncrementalConversion(0.05, 1000, 10), 1e-9)
	assert.True(t, math.IsInf(CostPerIncrementalConversion(0.05, 1000, 0), 1))
	assert.True(t, math.IsInf(CostPerIncrementalConversion(0.05, 1000, -3), 1))
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		value    float64
		places   int
		expected string
	}{
		{0.25, 4, "0.25"},
		{0.123456, 4, "0.1235"},
		{3, 2, "3.0"},
		{0, 4, "0.0"},
		{-12.346, 2, "-12.35"},
		{math.Inf(1), 4, "inf"},
		{math.NaN(), 4, "nan"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatFloat(tt.value, tt.places))
	}
}

func TestComputeStats(t *testing.T) {
	study := models.LiftStudy{
		Name:             "spring promo",
		StartDate:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:          time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		SampleSize:       100,
		ControlGroupSize: 100,
		TestGroupSize:    100,
		MessagesCount:    400,
		AvgMessageCost:   0.05,
	}

	stats, err := ComputeStats(study, map[models.Group]int{
		models.GroupControl: 10,
		models.GroupTest:    20,
	})
	require.NoError(t, err)
	assert.InDelta(t, 100.0, stats.Lift, 1e-9)
	assert.InDelta(t, 2.0, stats.CostPerIncrementalConversion, 1e-9)

	results := NewResults(study, stats)
	assert.Equal(t, "spring promo", results.Name)
	assert.Equal(t, "2024-03-01", results.StartDate)
	assert.Equal(t, "100", results.SampleSize)
	assert.Equal(t, "20", results.TestNumConversions)
	assert.Equal(t, "0.2", results.TestConversionRate)
	assert.Equal(t, "[0.1216, 0.2784]", results.TestConversionRateConfidenceInterval)
	assert.Equal(t, "0.1", results.ControlConversionRate)
	assert.Equal(t, "[0.0412, 0.1588]", results.ControlConversionRateConfidenceInterval)
	assert.Equal(t, "100.0", results.Lift)
	assert.Equal(t, "2.0", results.CostPerIncrementalConversion)
	assert.Equal(t, "0.0747", results.PValue)

	t.Run("no control conversions", func(t *testing.T) {
		stats, err := ComputeStats(study, map[models.Group]int{models.GroupTest: 5})
		require.NoError(t, err)
		results := NewResults(study, stats)
		assert.Equal(t, "inf", results.Lift)
	})

	t.Run("empty groups", func(t *testing.T) {
		empty := study
		empty.ControlGroupSize = 0
		_, err := ComputeStats(empty, map[models.Group]int{models.GroupTest: 5})
		require.ErrorIs(t, err, ErrEmptyGroups)
	})

	t.Run("no conversions", func(t *testing.T) {
		_, err := ComputeStats(study, map[models.Group]int{})
		require.ErrorIs(t, err, ErrNoConversions)
	})
}

func TestReadConversions(t *testing.T) {
	input := strings.Join([]string{
		"user_name,event_name,event_time,user_phone,value",
		"Ana,purchase,2024-03-02T10:00:00Z,+55 11 99999-0000,10",
		"Bia,purchase,2024-03-05 08:30:00,5511999990001,12",
		"Caio,signup,2024-03-05,5511999990002,",
	}, "\n")

	conversions, err := ReadConversions(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, conversions, 3)
	assert.Equal(t, "purchase", conversions[0].EventName)
	assert.Equal(t, "+55 11 99999-0000", conversions[0].UserPhone)
	assert.Equal(t, time.Date(2024, 3, 5, 8, 30, 0, 0, time.UTC), conversions[1].EventTime)

	_, err = ReadConversions(strings.NewReader("event_name,user_phone\npurchase,5511"))
	require.Error(t, err)

	_, err = ReadConversions(strings.NewReader("event_name,event_time,user_phone\npurchase,yesterday,5511"))
	require.Error(t, err)
}

func TestConvertedGroups(t *testing.T) {
	study := models.LiftStudy{
		StartDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
	}
	groups := []models.PhoneGroup{
		{PhoneNumber: "+5511999990000", GroupName: models.GroupTest},
		{PhoneNumber: "5511999990001", GroupName: models.GroupControl},
		{PhoneNumber: "5511999990002", GroupName: models.GroupTest},
	}
	at := func(day int) time.Time { return time.Date(2024, 3, day, 23, 59, 0, 0, time.UTC) }

	conversions := []Conversion{
		{EventName: "purchase", EventTime: at(2), UserPhone: "55 11 99999-0000"},
		{EventName: "purchase", EventTime: at(3), UserPhone: "5511999990000"}, // same phone
		{EventName: "purchase", EventTime: at(31), UserPhone: "5511999990001"},
		{EventName: "signup", EventTime: at(4), UserPhone: "5511999990002"},
		{EventName: "purchase", EventTime: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), UserPhone: "5511999990002"},
		{EventName: "purchase", EventTime: at(5), UserPhone: "5511000000000"}, // not in the study
	}

	counts := ConvertedGroups(conversions, study, "purchase", groups)
	assert.Equal(t, map[models.Group]int{
		models.GroupTest:    1,
		models.GroupControl: 1,
	}, counts)
}
