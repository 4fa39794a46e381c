// Package store holds the persistence collaborators of the ingestion pipeline:
// the device registry, the append-only audit tables and the position table.
package store

import (
	"context"
	"errors"

	"igx_tracker/internal/models"
)

var (
	// ErrDuplicatePosition is returned by StorePosition when (device, seq) already exists.
	ErrDuplicatePosition = errors.New("duplicate position (device, seq)")
	// ErrNotFound is returned by lookups that match nothing.
	ErrNotFound = errors.New("record not found")
)

// DeviceRegistry resolves a device identifier to a Device, creating it on first
// sight. Implementations must be idempotent under concurrent calls.
type DeviceRegistry interface {
	FindOrCreateDevice(ctx context.Context, imei string) (*models.Device, error)
}

// FrameStore persists audit records and positions.
type FrameStore interface {
	CreateFrame(ctx context.Context, frame *models.RawFrame) error
	UpdateFrame(ctx context.Context, frame *models.RawFrame) error
	AppendLog(ctx context.Context, entry *models.ProcessingLog) error
	// StorePosition inserts pos and marks frame processed in one transaction.
	// A (device, seq) conflict returns ErrDuplicatePosition and leaves nothing behind.
	StorePosition(ctx context.Context, pos *models.Position, frame *models.RawFrame) error
}

// FrameFilter narrows ListFrames. Zero values mean "any".
type FrameFilter struct {
	DeviceID  uint
	Processed *bool
	Limit     int
}

// PositionFilter narrows ListPositions. Zero values mean "any".
type PositionFilter struct {
	DeviceID uint
	Limit    int
}

// Reader is the query side used by the admin API.
type Reader interface {
	ListDevices(ctx context.Context) ([]models.Device, error)
	GetDevice(ctx context.Context, id uint) (*models.Device, error)
	SetDeviceAlias(ctx context.Context, id uint, alias string) (*models.Device, error)
	ListFrames(ctx context.Context, f FrameFilter) ([]models.RawFrame, error)
	GetFrame(ctx context.Context, id uint) (*models.RawFrame, error)
	// ListPositions returns newest first.
	ListPositions(ctx context.Context, f PositionFilter) ([]models.Position, error)
	ListLogs(ctx context.Context, limit int) ([]models.ProcessingLog, error)
}

// Store is everything the service needs from persistence.
type Store interface {
	DeviceRegistry
	FrameStore
	Reader
}

// DefaultLimit caps list queries that do not specify a limit.
const DefaultLimit = 100

func clampLimit(n int) int {
	if n <= 0 || n > 1000 {
		return DefaultLimit
	}
	return n
}
