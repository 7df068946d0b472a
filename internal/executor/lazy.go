package executor

import (
	"context"
	"sync"
)

// Lazy builds its Executor on the first Run, so a runtime that has to
// connect somewhere (the docker daemon) is only contacted once a command
// actually needs to run.
type Lazy struct {
	build func(ctx context.Context) (Executor, error)

	once sync.Once
	ex   Executor
	err  error
}

// NewLazy returns an Executor that calls build on first use. A build error
// is returned by every Run.
func NewLazy(build func(ctx context.Context) (Executor, error)) *Lazy {
	return &Lazy{build: build}
}

// Run builds the executor if needed and runs cmd on it.
func (l *Lazy) Run(ctx context.Context, cmd Command) (int, error) {
	l.once.Do(func() {
		ex, err := l.build(ctx)
		if err != nil {
			// A failed build may return a typed nil; never keep it.
			l.err = err
			return
		}
		l.ex = ex
	})
	if l.err != nil {
		return -1, l.err
	}
	return l.ex.Run(ctx, cmd)
}

// Close closes the built executor, if any.
func (l *Lazy) Close() error {
	if l.err != nil || l.ex == nil {
		return nil
	}
	return l.ex.Close()
}
