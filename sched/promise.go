package sched

// Result is the outcome of a job started with Go: Value is meaningful only
// when Err is nil.
type Result[T any] struct {
	Value T
	Err   error
}

// Ok reports whether the job succeeded.
func (r Result[T]) Ok() bool {
	return r.Err == nil
}

// Promise delivers the Result of a job started with Go.
type Promise[T any] struct {
	result Result[T]
	done   Event
}

// Go schedules fn and returns a Promise for its result. A non-nil error
// from fn also marks the job Failed.
func Go[T any](s *Scheduler, prio Priority, fn func() (T, error)) (*Promise[T], error) {
	if fn == nil {
		return nil, ErrNilFunc
	}
	p := new(Promise[T])
	err := s.Schedule(func(any) {
		v, err := fn()
		if err != nil {
			_ = Fail(err)
		}
		p.result = Result[T]{Value: v, Err: err}
		p.done.Signal()
	}, nil, prio)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Wait blocks, as Event.Wait does, until the result is available.
func (p *Promise[T]) Wait() Result[T] {
	p.done.Wait()
	return p.result
}

// Done reports whether the result is available.
func (p *Promise[T]) Done() bool {
	return p.done.IsSignalled()
}

// Result returns the result, and false if it is not yet available.
func (p *Promise[T]) Result() (Result[T], bool) {
	if !p.done.IsSignalled() {
		return Result[T]{}, false
	}
	return p.result, true
}
