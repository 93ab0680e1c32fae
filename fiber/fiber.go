// Package fiber provides suspendable execution contexts and a switch
// primitive between them.
//
// Each non-main Context runs on its own goroutine, which only executes
// while it holds the context's handoff token. Switch passes the token and
// parks the caller until some other context switches back, so exactly one
// context of a given chain runs at any instant, and control transfer is
// explicit. The goroutine of a context is started lazily, on the first
// switch into it.
//
// A context borrows its stack block. The block is exposed as scratch memory
// via Stack, StackPtr and Top; Destroy never touches it.
package fiber

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"
)

// StackAlign is the alignment of Top.
const StackAlign = 16

var (
	// ErrInvalidContext is returned by New for a missing entry or an
	// undersized stack.
	ErrInvalidContext = errors.New("fiber: invalid context")

	// ErrFellOffEnd is passed to the abort handler when an entry function
	// returns instead of calling Exit.
	ErrFellOffEnd = errors.New("fiber: entry returned without exit")

	// ErrNoCaller is passed to the abort handler when Exit has nowhere to
	// transfer control.
	ErrNoCaller = errors.New("fiber: exit with no caller")

	// ErrAbnormalExit is passed to the abort handler when an entry function
	// ends its goroutine with runtime.Goexit instead of calling Exit.
	ErrAbnormalExit = errors.New("fiber: entry exited its goroutine")
)

// Context is one suspendable call stack.
type Context struct {
	entry  func()
	stack  []byte
	value  any
	caller *Context // last context to switch in, non-owning

	resume chan struct{}
	kill   chan struct{}
	exited chan struct{}

	main      bool
	started   atomic.Bool
	done      atomic.Bool
	destroyed atomic.Bool
	killOnce  sync.Once
}

// New creates a context that will run entry on stack. The entry function
// must finish by calling Exit; returning normally invokes the abort
// handler. New(nil, nil) is NewMain.
func New(entry func(), stack []byte) (*Context, error) {
	if entry == nil && len(stack) == 0 {
		return NewMain(), nil
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: nil entry", ErrInvalidContext)
	}
	if len(stack) < 2*StackAlign {
		return nil, fmt.Errorf("%w: stack of %d bytes", ErrInvalidContext, len(stack))
	}
	return &Context{
		entry:  entry,
		stack:  stack,
		resume: make(chan struct{}, 1),
		kill:   make(chan struct{}),
		exited: make(chan struct{}),
	}, nil
}

// NewMain returns the root context of the calling goroutine, which is the
// anchor a scheduler or coroutine thread switches out of and back into.
func NewMain() *Context {
	c := &Context{
		main:   true,
		resume: make(chan struct{}, 1),
		kill:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	c.started.Store(true)
	registerIfAbsent(c)
	return c
}

// IsMain reports whether c is a goroutine's root context.
func (c *Context) IsMain() bool {
	return c.main
}

// Stack returns the borrowed stack block.
func (c *Context) Stack() []byte {
	return c.stack
}

// StackPtr returns the lowest address of the stack block, or 0.
func (c *Context) StackPtr() uintptr {
	if len(c.stack) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(unsafe.SliceData(c.stack)))
}

// StackSize returns the length of the stack block.
func (c *Context) StackSize() int {
	return len(c.stack)
}

// Top returns the highest address of the stack block aligned down to
// StackAlign, or 0.
func (c *Context) Top() uintptr {
	if len(c.stack) == 0 {
		return 0
	}
	return (c.StackPtr() + uintptr(len(c.stack))) &^ (StackAlign - 1)
}

// Value returns the value set with SetValue.
func (c *Context) Value() any {
	return c.value
}

// SetValue attaches v to c. It must be called before c is first switched
// into, or by the context holding the token.
func (c *Context) SetValue(v any) {
	c.value = v
}

// Caller returns the context that last switched into c.
func (c *Context) Caller() *Context {
	return c.caller
}

// Done reports whether the goroutine of c has finished.
func (c *Context) Done() bool {
	return c.done.Load()
}

// Switch transfers control from from to to, and returns once another
// context switches back into from. It returns false, without switching, if
// either is nil, if they are the same context, or if to was destroyed.
// It must be called from the goroutine currently running from.
func Switch(from, to *Context) bool {
	if from == nil || to == nil || from == to || to.destroyed.Load() || to.done.Load() {
		return false
	}
	h := loadHooks()
	if h.before != nil {
		h.before(to)
	}
	handoff(from, to)
	select {
	case <-from.resume:
	case <-from.kill:
		runtime.Goexit()
	}
	if h.after != nil {
		h.after(from)
	}
	return true
}

// Exit is the final switch of a finished context. It transfers control to
// to and terminates the calling goroutine; deferred calls run. A nil or
// destroyed to invokes the abort handler with ErrNoCaller.
func Exit(from, to *Context) {
	if from == nil || from.main {
		panic("fiber: exit from a main context")
	}
	if to == nil || to == from || to.destroyed.Load() {
		from.done.Store(true)
		abort(from, ErrNoCaller)
		runtime.Goexit()
	}
	from.done.Store(true)
	h := loadHooks()
	if h.before != nil {
		h.before(to)
	}
	handoff(from, to)
	runtime.Goexit()
}

func handoff(from, to *Context) {
	to.caller = from
	if to.started.CompareAndSwap(false, true) {
		go to.run()
		return
	}
	to.resume <- struct{}{}
}

func (c *Context) run() {
	register(c)
	defer close(c.exited)
	defer unregister(c)
	defer c.exitedAbnormally()
	c.entry()
	// fell off the end
	c.done.Store(true)
	abort(c, ErrFellOffEnd)
	c.handBack()
}

// exitedAbnormally catches an entry that ended through runtime.Goexit,
// which skips both Exit and the fall-off guard. Panics pass through.
func (c *Context) exitedAbnormally() {
	if r := recover(); r != nil {
		panic(r)
	}
	if c.done.Load() || c.destroyed.Load() {
		return
	}
	c.done.Store(true)
	abort(c, ErrAbnormalExit)
	c.handBack()
}

func (c *Context) handBack() {
	if to := c.caller; to != nil && !to.destroyed.Load() {
		handoff(c, to)
	}
}

// Destroy releases c. The stack block is not touched; the caller returns it
// to its arena. Destroying a context that is suspended mid-function unwinds
// its goroutine, running deferred calls, and waits for it. Destroying a
// main context only unregisters it. Destroy of an already destroyed
// context is a no-op.
func Destroy(c *Context) {
	if c == nil || !c.destroyed.CompareAndSwap(false, true) {
		return
	}
	if c.main {
		unregister(c)
		return
	}
	if Current() == c {
		panic("fiber: destroy of the running context")
	}
	c.killOnce.Do(func() { close(c.kill) })
	if c.started.Load() {
		<-c.exited
	}
}
