package models

import (
	"time"
)

// Event represents a domain event in the database.
// Version is unique per aggregate stream.
type Event struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	EventID       string    `gorm:"uniqueIndex;size:36" json:"event_id"`
	AggregateID   string    `gorm:"uniqueIndex:idx_event_stream_version,priority:2;size:64" json:"aggregate_id"`
	AggregateType string    `gorm:"uniqueIndex:idx_event_stream_version,priority:1;size:32" json:"aggregate_type"`
	EventType     string    `gorm:"size:64" json:"event_type"`
	Data          []byte    `json:"data"`
	Version       int       `gorm:"uniqueIndex:idx_event_stream_version,priority:3" json:"version"`
	Timestamp     time.Time `json:"timestamp"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Error         *string   `json:"error"`
	Processed     bool      `gorm:"index" json:"processed"`
}
