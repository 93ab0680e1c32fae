// Package coro runs stackful coroutines on a single goroutine. It is the
// degenerate form of the job scheduler: one implicit priority, no queue,
// and control passes only through explicit Resume and Yield.
package coro

import (
	"errors"
	"fmt"

	"github.com/joeycumines/go-fibersched/fiber"
	"github.com/joeycumines/go-fibersched/stackarena"
)

var (
	// ErrNilFunc is returned by New for a nil function.
	ErrNilFunc = errors.New("coro: nil function")

	// ErrClosed is returned by operations on a closed Thread.
	ErrClosed = errors.New("coro: thread closed")
)

// State is the lifecycle state of a Coro.
type State uint8

const (
	Suspended State = iota
	Running
	Finished
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case Suspended:
		return "Suspended"
	case Running:
		return "Running"
	case Finished:
		return "Finished"
	default:
		return "Unknown"
	}
}

// Func is the body of a coroutine.
type Func func(arg any)

// Coro is a coroutine owned by a Thread.
type Coro struct {
	thread *Thread
	fn     Func
	arg    any
	ctx    *fiber.Context
	stack  []byte
	state  State

	// resumer is the context of the most recent Resume; Yield returns to it
	resumer *fiber.Context
}

// State returns the current state.
func (c *Coro) State() State {
	return c.state
}

// Alive reports whether c has not yet finished.
func (c *Coro) Alive() bool {
	return c.state != Finished
}

// Thread owns the stacks and the root context of the goroutine that created
// it. A Thread and its coroutines must only be used from that goroutine and
// the coroutines themselves.
type Thread struct {
	main   *fiber.Context
	stacks *stackarena.Pool
	live   map[*Coro]struct{}
	closed bool
}

// NewThread anchors a coroutine thread on the calling goroutine.
func NewThread(opts ...stackarena.Option) (*Thread, error) {
	stacks, err := stackarena.NewPool(opts...)
	if err != nil {
		return nil, fmt.Errorf("coro: %w", err)
	}
	return &Thread{
		main:   fiber.NewMain(),
		stacks: stacks,
		live:   make(map[*Coro]struct{}),
	}, nil
}

// New creates a suspended coroutine that will run fn(arg) on its first
// Resume.
func (t *Thread) New(fn Func, arg any) (*Coro, error) {
	if t.closed {
		return nil, ErrClosed
	}
	if fn == nil {
		return nil, ErrNilFunc
	}
	stack, err := t.stacks.Get()
	if err != nil {
		return nil, fmt.Errorf("coro: %w", err)
	}
	ctx, err := fiber.New(coroMain, stack)
	if err != nil {
		t.stacks.Put(stack)
		return nil, fmt.Errorf("coro: %w", err)
	}
	c := &Coro{
		thread: t,
		fn:     fn,
		arg:    arg,
		ctx:    ctx,
		stack:  stack,
	}
	ctx.SetValue(c)
	t.live[c] = struct{}{}
	return c, nil
}

func coroMain() {
	c := current()
	c.fn(c.arg)
	c.state = Finished
	fiber.Exit(c.ctx, c.resumer)
}

func current() *Coro {
	if ctx := fiber.Current(); ctx != nil {
		c, _ := ctx.Value().(*Coro)
		return c
	}
	return nil
}

// Resume runs c until it yields or finishes, returning whether it is still
// alive. Resuming a coroutine that is not suspended returns false. A
// coroutine may resume another of the same thread; the inner one yields
// back to it.
func (t *Thread) Resume(c *Coro) bool {
	if c == nil || c.thread != t || c.state != Suspended {
		return false
	}
	from := t.main
	if cur := current(); cur != nil && cur.thread == t {
		from = cur.ctx
	}
	c.resumer = from
	c.state = Running
	fiber.Switch(from, c.ctx)
	if c.state != Suspended {
		// finished, or its goroutine ended abnormally
		c.state = Finished
		t.release(c)
		return false
	}
	return true
}

// Yield suspends the calling coroutine, returning control to whoever
// resumed it. It is a no-op outside a coroutine.
func Yield() {
	c := current()
	if c == nil || c.state != Running {
		return
	}
	c.state = Suspended
	fiber.Switch(c.ctx, c.resumer)
}

// Destroy releases c. A suspended coroutine is unwound, running its
// deferred calls, and marked Finished.
func (t *Thread) Destroy(c *Coro) {
	if c == nil || c.thread != t {
		return
	}
	if _, ok := t.live[c]; !ok {
		return
	}
	c.state = Finished
	t.release(c)
}

func (t *Thread) release(c *Coro) {
	fiber.Destroy(c.ctx)
	t.stacks.Put(c.stack)
	c.stack = nil
	delete(t.live, c)
}

// Live returns the number of coroutines not yet finished or destroyed.
func (t *Thread) Live() int {
	return len(t.live)
}

// Stats returns the stack pool counters.
func (t *Thread) Stats() stackarena.Stats {
	return t.stacks.Stats()
}

// Close destroys every live coroutine and releases the stacks.
func (t *Thread) Close() error {
	if t.closed {
		return ErrClosed
	}
	t.closed = true
	for c := range t.live {
		t.Destroy(c)
	}
	fiber.Destroy(t.main)
	return t.stacks.Close()
}
