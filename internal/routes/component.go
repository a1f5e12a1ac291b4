package routes

import (
	"context"
	"io"
	"sync/atomic"
)

// View is something the shell can mount inside the application layout.
type View interface {
	Render(w io.Writer, data any) error
}

// Loader fetches a view on demand.
type Loader func(ctx context.Context) (View, error)

// Component resolves the view for a route. It is either eager or lazy; use
// Eager or Lazy to construct one.
type Component interface {
	// IsLazy reports whether the view is fetched on first navigation.
	IsLazy() bool

	// resolve returns the view and whether this call performed a fetch.
	resolve(ctx context.Context) (View, bool, error)
}

// Eager returns a component whose view is already available.
func Eager(v View) Component {
	return eager{view: v}
}

type eager struct {
	view View
}

func (eager) IsLazy() bool { return false }

func (e eager) resolve(context.Context) (View, bool, error) {
	return e.view, false, nil
}

// Lazy returns a component that calls load the first time it is resolved and
// keeps the result. Concurrent first resolutions wait for the one in flight
// rather than starting their own. A failed load is not kept, so the next
// resolution tries again.
func Lazy(load Loader) Component {
	return &lazy{
		load: load,
		sem:  make(chan struct{}, 1),
	}
}

type lazy struct {
	load Loader
	sem  chan struct{}
	done atomic.Bool
	view View
}

func (*lazy) IsLazy() bool { return true }

func (l *lazy) resolve(ctx context.Context) (View, bool, error) {
	if l.done.Load() {
		return l.view, false, nil
	}

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
	defer func() { <-l.sem }()

	// Another caller may have finished while we waited.
	if l.done.Load() {
		return l.view, false, nil
	}

	v, err := l.load(ctx)
	if err != nil {
		return nil, true, err
	}
	l.view = v
	l.done.Store(true)
	return v, true, nil
}
