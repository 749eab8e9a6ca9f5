// Package entity provides base types shared by domain entities.
package entity

import (
	"time"

	"khata/internal/core/id"
)

// Base contains common fields for mutable catalog rows
// (ledgers, parties, items).
type Base struct {
	// ID is the primary key (UUIDv7)
	ID id.ID `db:"id" json:"id"`

	// Version for optimistic locking (incremented on each update)
	Version int `db:"version" json:"version"`
}

// NewBase creates a Base with generated ID.
func NewBase() Base {
	return Base{ID: id.New(), Version: 1}
}

// Touch increments version (for optimistic locking).
func (b *Base) Touch() {
	b.Version++
}

// Document extends Base with audit stamps for business-event rows.
// Posted documents are immutable: corrections happen only through a
// reversing document, never through mutation.
type Document struct {
	Base

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
}

// NewDocument creates a Document with generated ID and timestamp.
func NewDocument(createdBy string) Document {
	return Document{
		Base:      NewBase(),
		CreatedAt: time.Now().UTC(),
		CreatedBy: createdBy,
	}
}
