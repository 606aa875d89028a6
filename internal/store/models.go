package store

import "time"

// Submission is one accepted song suggestion, kept permanently. The
// in-memory ledger answers "has this user submitted today"; this table is
// the durable history behind it.
type Submission struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Day          string `gorm:"size:10;not null;index"` // YYYY-MM-DD in the reference timezone
	PromptID     string `gorm:"size:32;not null;index"`
	AuthorID     string `gorm:"size:32;not null"`
	AuthorHandle string `gorm:"size:64"`
	Proposal     string `gorm:"type:text"`
	TrackURI     string `gorm:"size:64;not null"`
	TrackTitle   string `gorm:"size:256"`
	TrackArtist  string `gorm:"size:256"`
	CreatedAt    time.Time
}
