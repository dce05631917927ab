package models

// Round is a recorded play window. StartTime is unix nanoseconds and doubles as the key.
type Round struct {
	StartTime int64    `json:"startTime"`
	Language  string   `json:"language"`
	Players   []Player `json:"players"`
}
