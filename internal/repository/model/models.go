package model

import (
	"time"

	"github.com/google/uuid"
)

type Principal struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"size:255;not null"`
	Code      string    `gorm:"size:16;uniqueIndex;not null"`
	Contact   string    `gorm:"size:32;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

type Observer struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name        string    `gorm:"size:255;not null"`
	WatchedCode string    `gorm:"size:16;index"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time
}
