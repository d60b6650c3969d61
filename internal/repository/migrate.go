package repository

import "gorm.io/gorm"

// AutoMigrate creates or updates every table the booking core owns or reads.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&userModel{},
		&serviceModel{},
		&slotModel{},
		&resourceModel{},
		&blockingWindowModel{},
		&bookingModel{},
		&historyModel{},
		&reviewModel{},
		&ratingSummaryModel{},
	)
}
