package data

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GalaxyAtWar is one account's regional readiness percentages, decayed
// daily and boosted by multiplayer promotions.
type GalaxyAtWar struct {
	ID uint64 `gorm:"primaryKey"`

	Account   *Account
	AccountID uint64 `gorm:"uniqueIndex"`

	EarthPercent   int
	AsariPercent   int
	TurianPercent  int
	KroganPercent  int
	SalarianPercent int

	LastDecayedAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt
}

// LoadGalaxyAtWar returns the account's readiness row, or nil if it hasn't
// played a multiplayer match yet.
func LoadGalaxyAtWar(db *gorm.DB, accountID uint64) (*GalaxyAtWar, error) {
	var gaw GalaxyAtWar
	err := db.Where("account_id = ?", accountID).First(&gaw).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &gaw, nil
}

// SaveGalaxyAtWar upserts the account's readiness row.
func SaveGalaxyAtWar(db *gorm.DB, gaw *GalaxyAtWar) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		UpdateAll: true,
	}).Create(gaw).Error
}
