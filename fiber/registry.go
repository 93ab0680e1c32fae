package fiber

import (
	"sync"

	"github.com/joeycumines/goroutineid"
)

// registry maps goroutine ids to the context running on them. This is the
// only process-wide state of the package; an entry lives from the start of
// a context's goroutine (or NewMain) to its exit (or Destroy).
var registry sync.Map // map[int64]*Context

// Current returns the context running on the calling goroutine, or nil.
func Current() *Context {
	if v, ok := registry.Load(goroutineid.Get()); ok {
		return v.(*Context)
	}
	return nil
}

func register(c *Context) {
	registry.Store(goroutineid.Get(), c)
}

// registerIfAbsent keeps an existing registration, so a main context
// created from inside a running context does not shadow it.
func registerIfAbsent(c *Context) {
	registry.LoadOrStore(goroutineid.Get(), c)
}

func unregister(c *Context) {
	registry.CompareAndDelete(goroutineid.Get(), c)
}
