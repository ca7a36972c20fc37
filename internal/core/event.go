package core

import "time"

// Record operations carried by a RecordEvent.
const (
	OpCreated = "created"
	OpUpdated = "updated"
	OpDeleted = "deleted"
)

// RecordEvent announces a committed mutation of one record.
type RecordEvent struct {
	Collection Collection `json:"collection"`
	Op         string     `json:"op"`
	ID         string     `json:"id"`
	At         time.Time  `json:"at"`
}
