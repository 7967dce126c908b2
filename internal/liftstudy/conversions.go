package liftstudy

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"measurement-gateway/internal/models"
	"measurement-gateway/internal/utils"
	"strings"
	"time"
)

// Conversion is one row of the conversions export.
type Conversion struct {
	EventName string
	EventTime time.Time
	UserPhone string
}

var eventTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseEventTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range eventTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported event_time %q", value)
}

// ReadConversions parses a CSV with at least the event_name, event_time and
// user_phone columns, in any order.
func ReadConversions(r io.Reader) ([]Conversion, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read conversions header: %w", err)
	}
	columns := map[string]int{}
	for i, name := range header {
		columns[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, required := range []string{"event_name", "event_time", "user_phone"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("conversions file has no %s column", required)
		}
	}

	var conversions []Conversion
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read conversions line %d: %w", line, err)
		}
		field := func(name string) string {
			if i := columns[name]; i < len(record) {
				return record[i]
			}
			return ""
		}

		eventTime, err := parseEventTime(field("event_time"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		conversions = append(conversions, Conversion{
			EventName: strings.TrimSpace(field("event_name")),
			EventTime: eventTime,
			UserPhone: strings.TrimSpace(field("user_phone")),
		})
	}
	return conversions, nil
}

// ConvertedGroups returns, per group, how many distinct phones of the study
// had the event between the study start and end dates.
func ConvertedGroups(conversions []Conversion, study models.LiftStudy, eventName string, groups []models.PhoneGroup) map[models.Group]int {
	groupByPhone := make(map[string]models.Group, len(groups))
	for _, g := range groups {
		groupByPhone[utils.DigitsOnly(g.PhoneNumber)] = g.GroupName
	}

	start := study.StartDate.Format("2006-01-02")
	end := study.EndDate.Format("2006-01-02")

	seen := map[string]bool{}
	counts := map[models.Group]int{}
	for _, c := range conversions {
		if c.EventName != eventName {
			continue
		}
		day := c.EventTime.Format("2006-01-02")
		if day < start || day > end {
			continue
		}
		phone := utils.DigitsOnly(c.UserPhone)
		group, ok := groupByPhone[phone]
		if !ok || seen[phone] {
			continue
		}
		seen[phone] = true
		counts[group]++
	}
	return counts
}
