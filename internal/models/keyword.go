package models

import "time"

type Keyword struct {
	ID        int64     `json:"id"`
	Keyword   string    `json:"keyword"`
	Signal    string    `json:"signal"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Signal struct {
	KeywordID             int64  `json:"keyword_id"`
	BusinessPhoneNumberID string `json:"business_phone_number_id"`
	ConsumerPhoneNumber   string `json:"consumer_phone_number"`
}

// SignalCount is the number of signals of one type recorded for a business number.
type SignalCount struct {
	BusinessNumberID string
	Signal           string
	Count            int
}
