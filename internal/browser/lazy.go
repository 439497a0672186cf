package browser

import (
	"context"
	"sync"
)

// Lazy starts Chrome on the first NewPage so processes that never scrape
// never launch it.
type Lazy struct {
	opts  Options
	start func(Options) (Launcher, func() error, error)

	mu    sync.Mutex
	l     Launcher
	close func() error
}

func NewLazy(opts Options) *Lazy {
	return &Lazy{opts: opts, start: func(o Options) (Launcher, func() error, error) {
		b, err := New(o)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	}}
}

func (z *Lazy) NewPage(ctx context.Context) (Page, error) {
	z.mu.Lock()
	if z.l == nil {
		l, closeFn, err := z.start(z.opts)
		if err != nil {
			z.mu.Unlock()
			return nil, err
		}
		z.l, z.close = l, closeFn
	}
	l := z.l
	z.mu.Unlock()
	return l.NewPage(ctx)
}

// Close stops the browser if it was started.
func (z *Lazy) Close() error {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.close == nil {
		return nil
	}
	err := z.close()
	z.l, z.close = nil, nil
	return err
}
