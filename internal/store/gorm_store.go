package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"igx_tracker/internal/models"
)

const pgUniqueViolation = "23505"

// GormStore is the PostgreSQL-backed Store.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open gorm handle. The schema is expected to be migrated
// (see config.InitDB).
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// FindOrCreateDevice inserts the device unless the IMEI exists, then reads it
// back, so concurrent callers always converge on the same row.
func (s *GormStore) FindOrCreateDevice(ctx context.Context, imei string) (*models.Device, error) {
	db := s.db.WithContext(ctx)

	dev := models.Device{IMEI: imei}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "imei"}},
		DoNothing: true,
	}).Create(&dev).Error
	if err != nil {
		return nil, fmt.Errorf("create device %s: %w", imei, err)
	}
	if dev.ID != 0 {
		return &dev, nil
	}

	var existing models.Device
	if err := db.Where("imei = ?", imei).First(&existing).Error; err != nil {
		return nil, fmt.Errorf("load device %s: %w", imei, err)
	}
	return &existing, nil
}

func (s *GormStore) CreateFrame(ctx context.Context, frame *models.RawFrame) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Create(frame).Error
}

func (s *GormStore) UpdateFrame(ctx context.Context, frame *models.RawFrame) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Save(frame).Error
}

func (s *GormStore) AppendLog(ctx context.Context, entry *models.ProcessingLog) error {
	if entry.Level == "" {
		entry.Level = models.LevelInfo
	}
	return s.db.WithContext(ctx).Create(entry).Error
}

// StorePosition writes the position and flips the frame to processed inside one
// transaction. The unique index on (device_id, seq) arbitrates concurrent writers.
func (s *GormStore) StorePosition(ctx context.Context, pos *models.Position, frame *models.RawFrame) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		frameID := frame.ID
		pos.FrameID = &frameID
		if err := tx.Omit(clause.Associations).Create(pos).Error; err != nil {
			if IsUniqueViolation(err) {
				return ErrDuplicatePosition
			}
			return err
		}

		frame.Processed = true
		frame.Error = nil
		if err := tx.Omit(clause.Associations).Save(frame).Error; err != nil {
			frame.Processed = false
			return err
		}
		return nil
	})
}

// IsUniqueViolation recognises a unique-constraint failure from either
// PostgreSQL driver, or gorm's translated form.
func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return true
	}
	return false
}

// --- Reader ---

func (s *GormStore) ListDevices(ctx context.Context) ([]models.Device, error) {
	var devices []models.Device
	if err := s.db.WithContext(ctx).Order("id").Find(&devices).Error; err != nil {
		return nil, err
	}
	return devices, nil
}

func (s *GormStore) GetDevice(ctx context.Context, id uint) (*models.Device, error) {
	var dev models.Device
	if err := s.db.WithContext(ctx).First(&dev, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &dev, nil
}

func (s *GormStore) SetDeviceAlias(ctx context.Context, id uint, alias string) (*models.Device, error) {
	dev, err := s.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}
	var value *string
	if alias != "" {
		value = &alias
	}
	if err := s.db.WithContext(ctx).Model(dev).Update("alias", value).Error; err != nil {
		return nil, err
	}
	dev.Alias = value
	return dev, nil
}

func (s *GormStore) ListFrames(ctx context.Context, f FrameFilter) ([]models.RawFrame, error) {
	q := s.db.WithContext(ctx).Preload("Device").Order("id desc").Limit(clampLimit(f.Limit))
	if f.DeviceID != 0 {
		q = q.Where("device_id = ?", f.DeviceID)
	}
	if f.Processed != nil {
		q = q.Where("processed = ?", *f.Processed)
	}
	var frames []models.RawFrame
	if err := q.Find(&frames).Error; err != nil {
		return nil, err
	}
	return frames, nil
}

func (s *GormStore) GetFrame(ctx context.Context, id uint) (*models.RawFrame, error) {
	var frame models.RawFrame
	if err := s.db.WithContext(ctx).Preload("Device").First(&frame, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &frame, nil
}

func (s *GormStore) ListPositions(ctx context.Context, f PositionFilter) ([]models.Position, error) {
	q := s.db.WithContext(ctx).Order("timestamp desc, id desc").Limit(clampLimit(f.Limit))
	if f.DeviceID != 0 {
		q = q.Where("device_id = ?", f.DeviceID)
	}
	var positions []models.Position
	if err := q.Find(&positions).Error; err != nil {
		return nil, err
	}
	return positions, nil
}

func (s *GormStore) ListLogs(ctx context.Context, limit int) ([]models.ProcessingLog, error) {
	var logs []models.ProcessingLog
	if err := s.db.WithContext(ctx).Order("id desc").Limit(clampLimit(limit)).Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
