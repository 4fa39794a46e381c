package models

import (
	"fmt"

	"gorm.io/gorm"
)

// RawFrame is the audit record of one ingestion attempt. Raw is kept verbatim.
type RawFrame struct {
	gorm.Model
	DeviceID      *uint   `json:"device_id" gorm:"index"`
	Device        *Device `json:"device,omitempty" gorm:"foreignKey:DeviceID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
	Seq           *int64  `json:"seq" gorm:"index"`
	Raw           string  `json:"raw" gorm:"type:text;not null"`
	ChecksumValid bool    `json:"checksum_valid" gorm:"default:false"`
	Processed     bool    `json:"processed" gorm:"default:false;index"`
	Error         *string `json:"error,omitempty" gorm:"type:text"`
}

func (f RawFrame) String() string {
	dev := "?"
	if f.Device != nil {
		dev = f.Device.DisplayName()
	}
	seq := "nil"
	if f.Seq != nil {
		seq = fmt.Sprint(*f.Seq)
	}
	return fmt.Sprintf("RawFrame(%s, seq=%s, ok=%t)", dev, seq, f.ChecksumValid)
}

// SetError records msg as the failure reason, or clears it when msg is empty.
func (f *RawFrame) SetError(msg string) {
	if msg == "" {
		f.Error = nil
		return
	}
	f.Error = &msg
}

// ErrorText returns the failure reason or "".
func (f RawFrame) ErrorText() string {
	if f.Error == nil {
		return ""
	}
	return *f.Error
}
