package models

import (
	"gorm.io/gorm"
)

const (
	LevelInfo  = "INFO"
	LevelError = "ERROR"
)

// ProcessingLog is an append-only audit note, optionally tied to a frame.
type ProcessingLog struct {
	gorm.Model
	Level   string `json:"level" gorm:"size:16;default:INFO"`
	Message string `json:"message" gorm:"type:text;not null"`
	FrameID *uint  `json:"frame_id" gorm:"index"`
}
