package conversion

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/matiasleandrokruk/ifcglb/internal/infra/eventbus"
)

// Janitor removes uploaded inputs once their conversion has been recorded.
type Janitor struct {
	log *zap.Logger
}

// NewJanitor returns a Janitor. log may be nil.
func NewJanitor(log *zap.Logger) *Janitor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Janitor{log: log}
}

// Start subscribes to conversion events and handles them in a goroutine
// until ctx is done or the bus closes. Events published after Start returns
// are seen.
func (j *Janitor) Start(ctx context.Context, bus eventbus.EventBus) {
	completed := bus.Subscribe(TopicCompleted)
	failed := bus.Subscribe(TopicFailed)
	go j.run(ctx, completed, failed)
}

func (j *Janitor) run(ctx context.Context, completed, failed <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-completed:
			if !ok {
				return
			}
			j.handle(evt)
		case evt, ok := <-failed:
			if !ok {
				return
			}
			j.handle(evt)
		}
	}
}

func (j *Janitor) handle(evt eventbus.Event) {
	rec, ok := evt.Payload.(*Conversion)
	if !ok || rec.InputPath == "" {
		return
	}
	if err := os.Remove(rec.InputPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		j.log.Warn("remove input", zap.String("id", rec.ID), zap.String("path", rec.InputPath), zap.Error(err))
		return
	}
	j.log.Debug("input removed", zap.String("id", rec.ID), zap.String("path", rec.InputPath))
}
