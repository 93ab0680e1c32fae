package fiber

import (
	"fmt"
	"os"
	"sync/atomic"
)

type switchHooks struct {
	before func(to *Context)
	after  func(from *Context)
}

var hooks atomic.Pointer[switchHooks]

func loadHooks() switchHooks {
	if h := hooks.Load(); h != nil {
		return *h
	}
	return switchHooks{}
}

// SetSwitchHooks installs functions called around every switch, for race
// detector or debugger integration. before receives the destination
// context before control leaves the caller, after receives the resumed
// context once control returns to it. Either may be nil.
func SetSwitchHooks(before func(to *Context), after func(from *Context)) {
	hooks.Store(&switchHooks{before: before, after: after})
}

// abortHandler is invoked when a fiber breaks its contract. The default
// terminates the process.
var abortHandler atomic.Pointer[func(*Context, error)]

// SetAbortHandler replaces the abort handler, returning the previous one.
// A nil fn restores the default. If the handler returns, the context's
// goroutine transfers control back to its caller and exits.
func SetAbortHandler(fn func(c *Context, err error)) (previous func(c *Context, err error)) {
	var p *func(*Context, error)
	if fn != nil {
		p = &fn
	}
	if old := abortHandler.Swap(p); old != nil {
		return *old
	}
	return defaultAbort
}

func defaultAbort(c *Context, err error) {
	fmt.Fprintf(os.Stderr, "fatal: %v (context %p)\n", err, c)
	os.Exit(2)
}

func abort(c *Context, err error) {
	if p := abortHandler.Load(); p != nil {
		(*p)(c, err)
		return
	}
	defaultAbort(c, err)
}
