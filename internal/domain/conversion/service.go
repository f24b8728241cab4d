// Package conversion runs IFC to GLB conversions against a pluggable
// converter backend and keeps their history.
package conversion

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/matiasleandrokruk/ifcglb/internal/infra/eventbus"
	"github.com/matiasleandrokruk/ifcglb/internal/infra/glb"
)

// Event topics published after every recorded conversion.
const (
	TopicCompleted = "conversion.completed"
	TopicFailed    = "conversion.failed"
)

var (
	// ErrConverterUnavailable is returned when the backend could not run at all.
	ErrConverterUnavailable = errors.New("converter unavailable")
	// ErrNotFound is returned by Get for unknown ids.
	ErrNotFound = errors.New("conversion not found")
)

// Converter is a conversion backend. It blocks until the output is written
// or the conversion failed and reports the result as a status code. A non-nil
// error means the backend itself could not be invoked.
type Converter interface {
	Name() string
	Convert(ctx context.Context, inputPath, outputPath, optionsJSON string) (int, error)
}

// Conversion is one recorded conversion attempt.
type Conversion struct {
	ID         string    `json:"id"`
	InputName  string    `json:"inputFile"`
	InputPath  string    `json:"inputPath"`
	OutputPath string    `json:"outputFile"`
	Options    Options   `json:"options"`
	Converter  string    `json:"converter"`
	StatusCode int       `json:"statusCode"`
	Outcome    Outcome   `json:"outcome"`
	DurationMs int64     `json:"durationMs"`
	SizeBytes  int64     `json:"sizeBytes"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// OK reports whether the conversion produced a valid output.
func (c *Conversion) OK() bool { return c.Outcome == OutcomeOK }

// ConvertInput describes one conversion request.
type ConvertInput struct {
	ID         string
	InputName  string
	InputPath  string
	OutputPath string
	Options    Options
}

// ListInput pages through the history, newest first.
type ListInput struct {
	Limit  int
	Offset int
}

// Config tunes a Service.
type Config struct {
	// MaxConcurrent bounds simultaneous converter calls.
	MaxConcurrent int
	// QueueTimeout bounds how long a request waits for a free slot. Zero waits
	// until the caller's context ends.
	QueueTimeout time.Duration
}

// Service runs conversions and records them.
type Service struct {
	db        *sql.DB
	converter Converter
	bus       eventbus.EventBus
	log       *zap.Logger
	slots     *semaphore.Weighted
	cfg       Config
}

// NewService wires a Service. bus and log may be nil.
func NewService(db *sql.DB, converter Converter, bus eventbus.EventBus, log *zap.Logger, cfg Config) *Service {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		db:        db,
		converter: converter,
		bus:       bus,
		log:       log,
		slots:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		cfg:       cfg,
	}
}

// ConverterName returns the active backend name.
func (s *Service) ConverterName() string { return s.converter.Name() }

// NewID returns a fresh conversion id, usable to name files before Convert.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Convert runs one conversion. Failures reported by the converter's status
// code are returned as a recorded Conversion with a non-ok Outcome and a nil
// error; errors are reserved for invalid options, cancellation, storage
// problems and an unavailable backend.
func (s *Service) Convert(ctx context.Context, in ConvertInput) (*Conversion, error) {
	if err := in.Options.Validate(); err != nil {
		return nil, err
	}
	if in.ID == "" {
		in.ID = NewID()
	}

	if err := s.acquire(ctx); err != nil {
		return nil, fmt.Errorf("wait for conversion slot: %w", err)
	}
	start := time.Now()
	code, convErr := s.converter.Convert(ctx, in.InputPath, in.OutputPath, in.Options.JSON())
	elapsed := time.Since(start)
	s.slots.Release(1)

	rec := &Conversion{
		ID:         in.ID,
		InputName:  in.InputName,
		InputPath:  in.InputPath,
		OutputPath: in.OutputPath,
		Options:    in.Options,
		Converter:  s.converter.Name(),
		StatusCode: code,
		DurationMs: elapsed.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}

	switch {
	case convErr != nil && ctx.Err() != nil:
		return nil, ctx.Err()
	case convErr != nil:
		rec.Outcome = OutcomeLoadFailed
		rec.Error = convErr.Error()
	default:
		rec.Outcome = Classify(code)
		if rec.Outcome == OutcomeOK {
			size, err := verifyOutput(in.OutputPath)
			if err != nil {
				rec.Outcome = OutcomeConversionFailed
				rec.Error = err.Error()
			}
			rec.SizeBytes = size
		}
	}

	if err := s.insert(ctx, rec); err != nil {
		return nil, err
	}
	s.publish(rec)

	s.log.Info("conversion finished",
		zap.String("id", rec.ID),
		zap.String("converter", rec.Converter),
		zap.Int("status_code", rec.StatusCode),
		zap.String("outcome", string(rec.Outcome)),
		zap.Int64("duration_ms", rec.DurationMs),
		zap.Int64("size_bytes", rec.SizeBytes),
	)

	if convErr != nil {
		return rec, fmt.Errorf("%w: %v", ErrConverterUnavailable, convErr)
	}
	return rec, nil
}

func (s *Service) acquire(ctx context.Context) error {
	if s.cfg.QueueTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.QueueTimeout)
		defer cancel()
	}
	return s.slots.Acquire(ctx, 1)
}

func (s *Service) publish(rec *Conversion) {
	if s.bus == nil {
		return
	}
	topic := TopicCompleted
	if !rec.OK() {
		topic = TopicFailed
	}
	s.bus.Publish(topic, rec)
}

// verifyOutput returns the output size after checking it is a GLB container.
func verifyOutput(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open output: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat output: %w", err)
	}
	hdr, err := glb.ReadHeader(f)
	if err != nil {
		return info.Size(), err
	}
	if int64(hdr.Length) != info.Size() {
		return info.Size(), fmt.Errorf("%w: header length %d, file size %d", glb.ErrInvalid, hdr.Length, info.Size())
	}
	return info.Size(), nil
}
