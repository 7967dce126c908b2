package liftstudy

import (
	"errors"
	"fmt"
	"math"
	"measurement-gateway/internal/models"
	"strconv"
	"strings"
)

// z value of a two sided 95% normal interval.
const z95 = 1.959963984540054

var (
	ErrEmptyGroups   = errors.New("group sizes must be greater than 0")
	ErrNoConversions = errors.New("no valid conversions found")
)

type GroupResult struct {
	Conversions        int
	ConversionRate     float64
	ConfidenceInterval [2]float64
}

type Stats struct {
	Control                      GroupResult
	Test                         GroupResult
	Lift                         float64
	PValue                       float64
	CostPerIncrementalConversion float64
}

// Results is the response body of the results endpoint. Numbers are rendered
// as strings so infinite and undefined values survive JSON.
type Results struct {
	Name                                    string `json:"name"`
	StartDate                               string `json:"start_date"`
	EndDate                                 string `json:"end_date"`
	SampleSize                              string `json:"sample_size"`
	TestNumConversions                      string `json:"test_num_conversions"`
	TestGroupSize                           string `json:"test_group_size"`
	TestConversionRate                      string `json:"test_conversion_rate"`
	TestConversionRateConfidenceInterval    string `json:"test_conversion_rate_confidence_interval"`
	ControlNumConversions                   string `json:"control_num_conversions"`
	ControlGroupSize                        string `json:"control_group_size"`
	ControlConversionRate                   string `json:"control_conversion_rate"`
	ControlConversionRateConfidenceInterval string `json:"control_conversion_rate_confidence_interval"`
	Lift                                    string `json:"lift"`
	CostPerIncrementalConversion            string `json:"cost_per_incremental_conversion"`
	PValue                                  string `json:"p_value"`
}

func groupResult(conversions, groupSize int) GroupResult {
	result := GroupResult{Conversions: conversions}
	if groupSize <= 0 {
		return result
	}
	result.ConversionRate = float64(conversions) / float64(groupSize)
	result.ConfidenceInterval = ConfidenceInterval(conversions, groupSize)
	return result
}

// ConfidenceInterval is the 95% normal approximation interval of a
// proportion, clipped to [0, 1].
func ConfidenceInterval(count, nobs int) [2]float64 {
	prop := float64(count) / float64(nobs)
	dist := z95 * math.Sqrt(prop*(1-prop)/float64(nobs))
	return [2]float64{clip(prop - dist), clip(prop + dist)}
}

func clip(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// Lift is the relative change of the test rate over the control rate, in
// percent. It is +Inf when the control rate is zero.
func Lift(testRate, controlRate float64) float64 {
	if controlRate > 0 {
		return 100 * (testRate - controlRate) / controlRate
	}
	return math.Inf(1)
}

func CostPerIncrementalConversion(avgMessageCost float64, messages, incremental int) float64 {
	if incremental > 0 {
		return avgMessageCost * float64(messages) / float64(incremental)
	}
	return math.Inf(1)
}

// PValue runs a chi-square test with Yates' correction on the 2x2 table of
// converted and not converted phones per group. It is NaN when the table has
// an empty column.
func PValue(controlConversions, controlSize, testConversions, testSize int) float64 {
	controlNot := controlSize - controlConversions
	testNot := testSize - testConversions
	if (controlNot == 0 && testNot == 0) || (controlConversions == 0 && testConversions == 0) {
		return math.NaN()
	}

	observed := [2][2]float64{
		{float64(controlConversions), float64(controlNot)},
		{float64(testConversions), float64(testNot)},
	}
	rows := [2]float64{observed[0][0] + observed[0][1], observed[1][0] + observed[1][1]}
	cols := [2]float64{observed[0][0] + observed[1][0], observed[0][1] + observed[1][1]}
	total := rows[0] + rows[1]

	var chi2 float64
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			expected := rows[i] * cols[j] / total
			if expected == 0 {
				return math.NaN()
			}
			diff := expected - observed[i][j]
			corrected := observed[i][j] + math.Copysign(math.Min(0.5, math.Abs(diff)), diff)
			chi2 += (corrected - expected) * (corrected - expected) / expected
		}
	}
	// Survival function of the chi-square distribution with one degree of freedom.
	return math.Erfc(math.Sqrt(chi2 / 2))
}

// ComputeStats derives every metric of a study from its converted phones.
func ComputeStats(study models.LiftStudy, converted map[models.Group]int) (*Stats, error) {
	if study.ControlGroupSize <= 0 || study.TestGroupSize <= 0 {
		return nil, ErrEmptyGroups
	}
	if converted[models.GroupControl]+converted[models.GroupTest] == 0 {
		return nil, ErrNoConversions
	}

	control := groupResult(converted[models.GroupControl], study.ControlGroupSize)
	test := groupResult(converted[models.GroupTest], study.TestGroupSize)

	return &Stats{
		Control: control,
		Test:    test,
		Lift:    Lift(test.ConversionRate, control.ConversionRate),
		PValue:  PValue(control.Conversions, study.ControlGroupSize, test.Conversions, study.TestGroupSize),
		CostPerIncrementalConversion: CostPerIncrementalConversion(
			study.AvgMessageCost, study.MessagesCount, test.Conversions-control.Conversions),
	}, nil
}

func NewResults(study models.LiftStudy, stats *Stats) Results {
	return Results{
		Name:                                    study.Name,
		StartDate:                               study.StartDate.Format("2006-01-02"),
		EndDate:                                 study.EndDate.Format("2006-01-02"),
		SampleSize:                              strconv.Itoa(study.SampleSize),
		TestNumConversions:                      strconv.Itoa(stats.Test.Conversions),
		TestGroupSize:                           strconv.Itoa(study.TestGroupSize),
		TestConversionRate:                      FormatFloat(stats.Test.ConversionRate, 4),
		TestConversionRateConfidenceInterval:    formatInterval(stats.Test.ConfidenceInterval),
		ControlNumConversions:                   strconv.Itoa(stats.Control.Conversions),
		ControlGroupSize:                        strconv.Itoa(study.ControlGroupSize),
		ControlConversionRate:                   FormatFloat(stats.Control.ConversionRate, 4),
		ControlConversionRateConfidenceInterval: formatInterval(stats.Control.ConfidenceInterval),
		Lift:                                    FormatFloat(stats.Lift, 4),
		CostPerIncrementalConversion:            FormatFloat(stats.CostPerIncrementalConversion, 2),
		PValue:                                  FormatFloat(stats.PValue, 4),
	}
}

// FormatFloat rounds v to the given decimal places and always keeps a
// decimal point, e.g. "0.25", "3.0", "inf" or "nan".
func FormatFloat(v float64, places int) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}

	scale := math.Pow(10, float64(places))
	s := strconv.FormatFloat(math.Round(v*scale)/scale, 'f', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func formatInterval(ci [2]float64) string {
	return fmt.Sprintf("[%s, %s]", FormatFloat(ci[0], 4), FormatFloat(ci[1], 4))
}
