package native

import (
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Guard runs a load action at most once successfully per process.
//
// Concurrent first callers share a single execution of the action and all
// observe its result. The loaded flag is set only after the action returns
// nil, so a failed attempt leaves the guard unloaded and the next call after
// it tries again.
type Guard struct {
	load     func() error
	loaded   atomic.Bool
	attempts atomic.Int64
	group    singleflight.Group
}

// NewGuard returns a Guard around load.
func NewGuard(load func() error) *Guard {
	return &Guard{load: load}
}

// EnsureLoaded blocks until the load action has completed and returns its
// error. Once loaded it returns nil without touching the action again.
func (g *Guard) EnsureLoaded() error {
	if g.loaded.Load() {
		return nil
	}
	_, err, _ := g.group.Do("load", func() (any, error) {
		// a caller may have finished a successful load between our fast-path
		// check and joining the group
		if g.loaded.Load() {
			return nil, nil
		}
		g.attempts.Add(1)
		if err := g.load(); err != nil {
			return nil, err
		}
		g.loaded.Store(true)
		return nil, nil
	})
	return err
}

// Loaded reports whether a load action has succeeded.
func (g *Guard) Loaded() bool {
	return g.loaded.Load()
}

// Attempts returns how many times the load action has been executed.
func (g *Guard) Attempts() int {
	return int(g.attempts.Load())
}
