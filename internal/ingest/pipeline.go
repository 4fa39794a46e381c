// Package ingest takes raw frames to a terminal state: an accepted Position,
// or a rejected RawFrame with its reason in the audit trail. Every call leaves
// exactly one RawFrame behind.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"igx_tracker/internal/geo"
	"igx_tracker/internal/models"
	"igx_tracker/internal/observability"
	"igx_tracker/internal/protocol"
	"igx_tracker/internal/store"
)

// timestampLayout reads the concatenated YYMMDD and HHMMSS fields.
const timestampLayout = "060102150405"

// DuplicateMessage is the audit text for a (device, seq) conflict.
const DuplicateMessage = "Duplicate position (device, seq)"

// Publisher receives every accepted Position.
type Publisher interface {
	PublishPosition(pos *models.Position, dev *models.Device)
}

// Outcome is the terminal state of one frame. Reason is set when the frame was
// rejected: a *protocol.DecodeError, a *ValidationError or store.ErrDuplicatePosition.
type Outcome struct {
	Frame    *models.RawFrame `json:"frame"`
	Position *models.Position `json:"position,omitempty"`
	Accepted bool             `json:"accepted"`
	Reason   error            `json:"-"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPublisher hands accepted positions to pub.
func WithPublisher(pub Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithLogger replaces the base log entry.
func WithLogger(entry *logrus.Entry) Option {
	return func(p *Pipeline) { p.log = entry }
}

// Pipeline is safe for concurrent use as long as its collaborators are.
type Pipeline struct {
	devices   store.DeviceRegistry
	frames    store.FrameStore
	publisher Publisher
	log       *logrus.Entry

	encodePoint func(lat, lon decimal.Decimal) ([]byte, error)
}

// New wires a pipeline onto a device registry and a frame store.
func New(devices store.DeviceRegistry, frames store.FrameStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		devices:     devices,
		frames:      frames,
		log:         logrus.WithField("component", "ingest"),
		encodePoint: geo.PointWKB,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest processes one raw frame. The returned error is reserved for storage
// or registry failures; decode, validation and duplicate rejections are
// reported through Outcome.
func (p *Pipeline) Ingest(ctx context.Context, raw string) (*Outcome, error) {
	return p.ingest(ctx, raw, p.log)
}

func (p *Pipeline) ingest(ctx context.Context, raw string, log *logrus.Entry) (*Outcome, error) {
	defer observability.ObserveIngestLatency(time.Now())

	decoded, err := protocol.Decode(raw)
	if err != nil {
		return p.rejectUndecodable(ctx, raw, err, log)
	}

	dev, err := p.resolveDevice(ctx, decoded.IMEI)
	if err != nil {
		return nil, err
	}
	log = log.WithFields(logrus.Fields{"imei": dev.IMEI, "seq": decoded.Seq})

	seq := decoded.Seq
	deviceID := dev.ID
	frame := &models.RawFrame{
		DeviceID:      &deviceID,
		Seq:           &seq,
		Raw:           raw,
		ChecksumValid: true,
	}
	if err := p.frames.CreateFrame(ctx, frame); err != nil {
		return nil, fmt.Errorf("persist frame: %w", err)
	}
	frame.Device = dev
	log = log.WithField("frame_id", frame.ID)

	pos, found := buildPosition(decoded, dev.ID)
	if err := validatePosition(pos, found...); err != nil {
		return p.reject(ctx, frame, err.Error(), err, observability.OutcomeInvalid, log)
	}

	// The decimal columns stay authoritative; a position without a point is still stored.
	if point, err := p.encodePoint(pos.Lat, pos.Lon); err != nil {
		log.WithError(err).Warn("encode position point")
	} else {
		pos.Point = point
	}

	if err := p.frames.StorePosition(ctx, pos, frame); err != nil {
		if errors.Is(err, store.ErrDuplicatePosition) {
			return p.reject(ctx, frame, DuplicateMessage, store.ErrDuplicatePosition, observability.OutcomeDuplicate, log)
		}
		return nil, fmt.Errorf("store position: %w", err)
	}

	observability.FramesTotal.WithLabelValues(observability.OutcomeAccepted).Inc()
	log.WithField("position_id", pos.ID).Info("position stored")
	if p.publisher != nil {
		p.publisher.PublishPosition(pos, dev)
	}
	return &Outcome{Frame: frame, Position: pos, Accepted: true}, nil
}

func (p *Pipeline) resolveDevice(ctx context.Context, imei string) (*models.Device, error) {
	observability.DevicesResolved.Inc()
	dev, err := p.devices.FindOrCreateDevice(ctx, imei)
	if err != nil {
		return nil, fmt.Errorf("resolve device %q: %w", imei, err)
	}
	return dev, nil
}

// rejectUndecodable records a frame that never decoded. The device, if any,
// comes from the unverified fallback identifier.
func (p *Pipeline) rejectUndecodable(ctx context.Context, raw string, decodeErr error, log *logrus.Entry) (*Outcome, error) {
	frame := &models.RawFrame{Raw: raw}
	frame.SetError(decodeErr.Error())

	if imei, ok := protocol.FallbackIdentifier(raw); ok {
		dev, err := p.resolveDevice(ctx, imei)
		if err != nil {
			return nil, err
		}
		deviceID := dev.ID
		frame.DeviceID = &deviceID
		frame.Device = dev
		log = log.WithField("imei_unverified", imei)
	}

	if err := p.frames.CreateFrame(ctx, frame); err != nil {
		return nil, fmt.Errorf("persist frame: %w", err)
	}
	if err := p.appendError(ctx, frame); err != nil {
		return nil, err
	}

	kind := "unknown"
	var de *protocol.DecodeError
	if errors.As(decodeErr, &de) {
		kind = de.Kind.String()
	}
	observability.FramesTotal.WithLabelValues(observability.OutcomeDecode).Inc()
	observability.DecodeErrors.WithLabelValues(kind).Inc()
	log.WithFields(logrus.Fields{"frame_id": frame.ID, "kind": kind}).Warn(decodeErr.Error())

	return &Outcome{Frame: frame, Reason: decodeErr}, nil
}

// reject marks a persisted frame as failed with msg.
func (p *Pipeline) reject(ctx context.Context, frame *models.RawFrame, msg string, reason error, outcome string, log *logrus.Entry) (*Outcome, error) {
	frame.Processed = false
	frame.SetError(msg)
	if err := p.frames.UpdateFrame(ctx, frame); err != nil {
		return nil, fmt.Errorf("update frame %d: %w", frame.ID, err)
	}
	if err := p.appendError(ctx, frame); err != nil {
		return nil, err
	}
	observability.FramesTotal.WithLabelValues(outcome).Inc()
	log.WithFields(logrus.Fields{"outcome": outcome, "frame": frame.String()}).Warn(msg)
	return &Outcome{Frame: frame, Reason: reason}, nil
}

func (p *Pipeline) appendError(ctx context.Context, frame *models.RawFrame) error {
	frameID := frame.ID
	entry := &models.ProcessingLog{
		Level:   models.LevelError,
		Message: frame.ErrorText(),
		FrameID: &frameID,
	}
	if err := p.frames.AppendLog(ctx, entry); err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

// buildPosition maps a decoded frame onto a candidate Position. Problems found
// while building (an unparseable timestamp) are returned for validation.
func buildPosition(df *protocol.DecodedFrame, deviceID uint) (*models.Position, []Violation) {
	var found []Violation

	pos := &models.Position{
		DeviceID:   deviceID,
		Seq:        df.Seq,
		Lat:        df.Lat,
		Lon:        df.Lon,
		SpeedKmh:   df.SpeedKmh,
		CourseDeg:  df.CourseDeg,
		AltM:       df.AltM,
		Fix:        df.Fix,
		Sats:       df.Sats,
		HDOP:       df.HDOP,
		OdomKm:     df.OdomKm,
		FuelPct:    df.FuelPct,
		BattV:      df.BattV,
		IOHex:      df.IORaw,
		IOFlags:    make(datatypes.JSONMap, len(df.IOFlags)),
		Extensions: make(datatypes.JSONMap, len(df.Extensions)),
	}
	for k, v := range df.IOFlags {
		pos.IOFlags[k] = v
	}
	for k, v := range df.Extensions {
		pos.Extensions[k] = v
	}

	ts, err := time.ParseInLocation(timestampLayout, df.Date+df.Time, time.UTC)
	if err != nil {
		found = append(found, Violation{Field: "timestamp", Message: fmt.Sprintf("invalid date/time %q %q", df.Date, df.Time)})
	} else {
		pos.Timestamp = ts
	}
	return pos, found
}
