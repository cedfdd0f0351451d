package models

import (
	wire "nuestra-historia/pkg/models"
)

// MemoryRecord is one stored record of a realtime collection
type MemoryRecord struct {
	ID         string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Collection string `gorm:"primaryKey;type:varchar(255);not null;index" json:"collection"`
	URL        string `gorm:"type:text;not null" json:"url"`
	Type       string `gorm:"type:varchar(20);not null" json:"type"`
	Title      string `gorm:"type:varchar(255);not null" json:"title"`
	Date       string `gorm:"type:varchar(10)" json:"date"`
	Timestamp  int64  `gorm:"not null;index" json:"timestamp"` // ms since epoch
}

func (MemoryRecord) TableName() string {
	return "memory_records"
}

// Wire converts the row into its snapshot encoding.
func (r MemoryRecord) Wire() wire.MemoryRecord {
	return wire.MemoryRecord{
		URL:       r.URL,
		Type:      r.Type,
		Title:     r.Title,
		Date:      r.Date,
		Timestamp: r.Timestamp,
	}
}

// FromWire builds a row for the given collection and id.
func FromWire(collection, id string, rec wire.MemoryRecord) MemoryRecord {
	return MemoryRecord{
		ID:         id,
		Collection: collection,
		URL:        rec.URL,
		Type:       rec.Type,
		Title:      rec.Title,
		Date:       rec.Date,
		Timestamp:  rec.Timestamp,
	}
}
