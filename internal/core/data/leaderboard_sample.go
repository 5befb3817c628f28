package data

import (
	"time"

	"gorm.io/gorm"
)

// LeaderboardSample is one recorded score submission. Samples are
// append-only; ranking is computed at query time rather than maintaining
// a separately-updated ranked table.
type LeaderboardSample struct {
	ID uint64 `gorm:"primaryKey"`

	Account   *Account
	AccountID uint64 `gorm:"index"`

	Category string `gorm:"index"`
	Score    int64

	RecordedAt time.Time
}

// InsertLeaderboardSample appends one score submission.
func InsertLeaderboardSample(db *gorm.DB, sample *LeaderboardSample) error {
	return db.Create(sample).Error
}

// TopLeaderboardSamples returns the highest limit samples for category in
// descending score order. Samples are not grouped by account, so an account
// with several samples can appear more than once.
func TopLeaderboardSamples(db *gorm.DB, category string, limit int) ([]LeaderboardSample, error) {
	var samples []LeaderboardSample
	err := db.Where("category = ?", category).
		Order("score DESC").
		Limit(limit).
		Find(&samples).Error
	return samples, err
}
