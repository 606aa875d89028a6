// Package store archives accepted submissions in a local SQLite database.
package store

import (
	"context"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dragid10/playlistter/internal/bot"
)

// Store wraps the GORM connection to the submission archive.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the archive at path and migrates the
// schema. Use ":memory:" for an ephemeral store in tests.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Submission{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Archive persists one accepted submission. Implements bot.Archiver.
func (s *Store) Archive(ctx context.Context, sub bot.AcceptedSubmission) error {
	rec := Submission{
		Day:          sub.Day,
		PromptID:     sub.PromptID,
		AuthorID:     sub.AuthorID,
		AuthorHandle: sub.AuthorHandle,
		Proposal:     sub.Proposal,
		TrackURI:     sub.TrackURI,
		TrackTitle:   sub.TrackTitle,
		TrackArtist:  sub.TrackArtist,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("store: archive submission: %w", err)
	}
	return nil
}

// ByDay returns all submissions accepted on a given day (YYYY-MM-DD),
// oldest first.
func (s *Store) ByDay(day string) ([]Submission, error) {
	var subs []Submission
	if err := s.db.Where("day = ?", day).Order("id").Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("store: list day %s: %w", day, err)
	}
	return subs, nil
}

// Recent returns the most recent submissions, newest first.
func (s *Store) Recent(limit int) ([]Submission, error) {
	if limit <= 0 {
		limit = 20
	}
	var subs []Submission
	if err := s.db.Order("id desc").Limit(limit).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("store: list recent: %w", err)
	}
	return subs, nil
}

// CountForDay returns how many submissions were accepted on a given day.
func (s *Store) CountForDay(day string) (int64, error) {
	var n int64
	if err := s.db.Model(&Submission{}).Where("day = ?", day).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("store: count day %s: %w", day, err)
	}
	return n, nil
}
