package models

import "time"

// Group is the arm of a lift study a phone number belongs to.
type Group string

const (
	GroupNone    Group = ""
	GroupControl Group = "control"
	GroupTest    Group = "test"
)

func (g Group) Valid() bool {
	return g == GroupControl || g == GroupTest
}

const (
	StudyStatusActive = "active"
	StudyStatusPaused = "paused"
)

type LiftStudy struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
	SampleSize       int       `json:"sample_size"`
	TemplateNames    string    `json:"template_names"` // comma separated
	ControlGroupSize int       `json:"control_group_size"`
	TestGroupSize    int       `json:"test_group_size"`
	MessagesCount    int       `json:"messages_count"`
	AvgMessageCost   float64   `json:"avg_message_cost"`
	Status           string    `json:"status"`
}

// Capacity reports whether each arm of a study reached the sample size.
type Capacity struct {
	ControlFull bool
	TestFull    bool
}

type PhoneGroup struct {
	StudyID     string `json:"study_id"`
	PhoneNumber string `json:"phone_number"`
	GroupName   Group  `json:"group_name"`
}
