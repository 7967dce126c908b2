package models

import (
	"encoding/json"
	"time"
)

type AudienceRule struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	Include          json.RawMessage `json:"include,omitempty"`
	Exclude          json.RawMessage `json:"exclude,omitempty"`
	SubscriberListID string          `json:"subscriber_list_id,omitempty"`
	CreationTime     time.Time       `json:"creation_time"`
}
