package render

import (
	"context"
	"fmt"
)

// Slot is one in-flight frame's command-recording context. It owns its
// transient buffers exclusively; the scheduler recycles slots forever and
// never reallocates them during steady-state rendering.
type Slot struct {
	Index int
	Frame FrameBuffers
}

// Scheduler bounds the number of concurrently in-flight frames. Acquire
// blocks when all slots are occupied — the only intended blocking point
// in steady state — and Release returns a slot on the frame's completion
// signal.
type Scheduler struct {
	slots chan *Slot
	drain chan struct{}
	size  int
}

// NewScheduler creates n slots. n is a small constant; 3 covers CPU
// encoding overlapped with two GPU frames.
func NewScheduler(n int) (*Scheduler, error) {
	if n < 1 {
		return nil, fmt.Errorf("render: frame slot count must be >= 1, got %d", n)
	}
	s := &Scheduler{
		slots: make(chan *Slot, n),
		drain: make(chan struct{}, 1),
		size:  n,
	}
	for i := 0; i < n; i++ {
		s.slots <- &Slot{Index: i}
	}
	return s, nil
}

// Acquire blocks until a slot is free or ctx is done.
func (s *Scheduler) Acquire(ctx context.Context) (*Slot, error) {
	select {
	case slot := <-s.slots:
		return slot, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryAcquire returns a free slot without blocking.
func (s *Scheduler) TryAcquire() (*Slot, bool) {
	select {
	case slot := <-s.slots:
		return slot, true
	default:
		return nil, false
	}
}

// Release returns a completed frame's slot. Releasing a slot twice would
// corrupt the ring; the renderer owns each slot between Acquire and
// exactly one Release.
func (s *Scheduler) Release(slot *Slot) {
	s.slots <- slot
}

// InFlight is the number of currently occupied slots.
func (s *Scheduler) InFlight() int {
	return s.size - len(s.slots)
}

// Size is the configured slot count N.
func (s *Scheduler) Size() int { return s.size }

// Drain acquires every slot and releases them again, returning once no
// frame is in flight. Store updates run behind this so a load never
// overlaps an outstanding frame. Only one drain runs at a time: two
// concurrent drains splitting the slots between them would each hold a
// subset and block forever waiting for the rest.
func (s *Scheduler) Drain(ctx context.Context) error {
	select {
	case s.drain <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.drain }()

	held := make([]*Slot, 0, s.size)
	defer func() {
		for _, slot := range held {
			s.slots <- slot
		}
	}()
	for i := 0; i < s.size; i++ {
		slot, err := s.Acquire(ctx)
		if err != nil {
			return err
		}
		held = append(held, slot)
	}
	return nil
}
