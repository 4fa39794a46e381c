package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"igx_tracker/internal/models"
)

type positionKey struct {
	deviceID uint
	seq      int64
}

// MemStore is a thread-safe in-memory Store used by tests and the dry-run CLI.
type MemStore struct {
	mu sync.RWMutex

	devices       map[uint]*models.Device
	devicesByIMEI map[string]uint
	frames        map[uint]*models.RawFrame
	positions     map[uint]*models.Position
	positionKeys  map[positionKey]uint
	logs          []models.ProcessingLog

	nextID uint
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		devices:       make(map[uint]*models.Device),
		devicesByIMEI: make(map[string]uint),
		frames:        make(map[uint]*models.RawFrame),
		positions:     make(map[uint]*models.Position),
		positionKeys:  make(map[positionKey]uint),
	}
}

func (m *MemStore) id() uint {
	m.nextID++
	return m.nextID
}

func (m *MemStore) FindOrCreateDevice(_ context.Context, imei string) (*models.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.devicesByIMEI[imei]; ok {
		d := *m.devices[id]
		return &d, nil
	}
	now := time.Now().UTC()
	d := &models.Device{IMEI: imei}
	d.ID = m.id()
	d.CreatedAt, d.UpdatedAt = now, now
	m.devices[d.ID] = d
	m.devicesByIMEI[imei] = d.ID

	out := *d
	return &out, nil
}

func (m *MemStore) CreateFrame(_ context.Context, frame *models.RawFrame) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	frame.ID = m.id()
	frame.CreatedAt, frame.UpdatedAt = now, now
	m.frames[frame.ID] = cloneFrame(frame)
	return nil
}

func (m *MemStore) UpdateFrame(_ context.Context, frame *models.RawFrame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateFrameLocked(frame)
}

func (m *MemStore) updateFrameLocked(frame *models.RawFrame) error {
	if _, ok := m.frames[frame.ID]; !ok {
		return ErrNotFound
	}
	frame.UpdatedAt = time.Now().UTC()
	m.frames[frame.ID] = cloneFrame(frame)
	return nil
}

func (m *MemStore) AppendLog(_ context.Context, entry *models.ProcessingLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	entry.ID = m.id()
	entry.CreatedAt, entry.UpdatedAt = now, now
	if entry.Level == "" {
		entry.Level = models.LevelInfo
	}
	m.logs = append(m.logs, *entry)
	return nil
}

func (m *MemStore) StorePosition(_ context.Context, pos *models.Position, frame *models.RawFrame) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := positionKey{deviceID: pos.DeviceID, seq: pos.Seq}
	if _, dup := m.positionKeys[key]; dup {
		return ErrDuplicatePosition
	}
	if _, ok := m.frames[frame.ID]; !ok {
		return ErrNotFound
	}

	now := time.Now().UTC()
	pos.ID = m.id()
	pos.CreatedAt, pos.UpdatedAt = now, now
	frameID := frame.ID
	pos.FrameID = &frameID
	stored := *pos
	m.positions[pos.ID] = &stored
	m.positionKeys[key] = pos.ID

	frame.Processed = true
	frame.Error = nil
	return m.updateFrameLocked(frame)
}

// --- Reader ---

func (m *MemStore) ListDevices(_ context.Context) ([]models.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Device, 0, len(m.devices))
	for _, d := range m.devices {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) GetDevice(_ context.Context, id uint) (*models.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.devices[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *d
	return &out, nil
}

func (m *MemStore) SetDeviceAlias(_ context.Context, id uint, alias string) (*models.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.devices[id]
	if !ok {
		return nil, ErrNotFound
	}
	if alias == "" {
		d.Alias = nil
	} else {
		d.Alias = &alias
	}
	d.UpdatedAt = time.Now().UTC()
	out := *d
	return &out, nil
}

func (m *MemStore) ListFrames(_ context.Context, f FrameFilter) ([]models.RawFrame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.RawFrame, 0)
	for _, fr := range m.frames {
		if f.DeviceID != 0 && (fr.DeviceID == nil || *fr.DeviceID != f.DeviceID) {
			continue
		}
		if f.Processed != nil && fr.Processed != *f.Processed {
			continue
		}
		out = append(out, *cloneFrame(fr))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit := clampLimit(f.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemStore) GetFrame(_ context.Context, id uint) (*models.RawFrame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fr, ok := m.frames[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneFrame(fr), nil
}

func (m *MemStore) ListPositions(_ context.Context, f PositionFilter) ([]models.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Position, 0)
	for _, p := range m.positions {
		if f.DeviceID != 0 && p.DeviceID != f.DeviceID {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID > out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit := clampLimit(f.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemStore) ListLogs(_ context.Context, limit int) ([]models.ProcessingLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := clampLimit(limit)
	out := make([]models.ProcessingLog, 0, n)
	for i := len(m.logs) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.logs[i])
	}
	return out, nil
}

func cloneFrame(f *models.RawFrame) *models.RawFrame {
	c := *f
	c.Device = nil
	if f.DeviceID != nil {
		id := *f.DeviceID
		c.DeviceID = &id
	}
	if f.Seq != nil {
		s := *f.Seq
		c.Seq = &s
	}
	if f.Error != nil {
		e := *f.Error
		c.Error = &e
	}
	return &c
}
