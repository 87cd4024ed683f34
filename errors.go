package splatrt

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("splatrt: renderer closed")

// ErrNoViews is returned when Render is called with no views at all.
var ErrNoViews = errors.New("splatrt: at least 1 view per frame")

// ErrTooManyViews is returned when Render is asked for more simultaneous
// views than the pipeline supports.
var ErrTooManyViews = errors.New("splatrt: at most 2 views per frame")

// FrameError wraps a transient per-frame failure. The frame is dropped;
// the renderer stays usable.
type FrameError struct {
	Stage string
	Err   error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("splatrt: frame dropped in %s: %v", e.Stage, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }
