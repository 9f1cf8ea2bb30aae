package models

import (
	"time"

	"gorm.io/gorm"
)

// BaseModel defines the common fields for all models: an auto-incrementing
// ID plus CreatedAt and UpdatedAt timestamps.
type BaseModel struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deletedAt,omitempty"`
}
