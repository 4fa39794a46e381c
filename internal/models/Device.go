package models

import (
	"gorm.io/gorm"
)

// Device is a tracker known by its IMEI. Devices are created lazily the first
// time a frame mentions them; only Alias is edited afterwards.
type Device struct {
	gorm.Model
	IMEI  string  `json:"imei" gorm:"size:17;uniqueIndex;not null"`
	Alias *string `json:"alias,omitempty" gorm:"size:64"`
}

// DisplayName returns the alias when set, the IMEI otherwise.
func (d Device) DisplayName() string {
	if d.Alias != nil && *d.Alias != "" {
		return *d.Alias
	}
	return d.IMEI
}
