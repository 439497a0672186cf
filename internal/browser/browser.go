// Package browser wraps a headless Chrome behind a small Page interface
// so scrapers can be tested without a real browser.
package browser

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/chromedp/chromedp"
)

// Page is one browser tab. Every call is bounded by the page's own
// lifetime and the ctx passed in.
type Page interface {
	SetUserAgent(ctx context.Context, ua string) error
	SetViewport(ctx context.Context, width, height int) error
	Goto(ctx context.Context, url string, timeout time.Duration) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	Evaluate(ctx context.Context, js string, out any) error
	HTML(ctx context.Context) (string, error)
	Click(ctx context.Context, selector string) error
	ScrollBy(ctx context.Context, selector string, dy int) error
	Close() error
}

// Launcher hands out pages.
type Launcher interface {
	NewPage(ctx context.Context) (Page, error)
}

type Options struct {
	Headless  bool
	ExecPath  string
	UserAgent string
}

// Browser owns one Chrome process. Pages are tabs inside it.
type Browser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

func New(opts Options) (*Browser, error) {
	flags := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-notifications", true),
	)
	if opts.UserAgent != "" {
		flags = append(flags, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		flags = append(flags, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), flags...)
	ctx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		log.Printf("[browser] "+format, args...)
	}))

	// first Run starts the process
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return &Browser{ctx: ctx, cancel: cancel, allocCancel: allocCancel}, nil
}

func (b *Browser) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tabCtx, cancel := chromedp.NewContext(b.ctx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return &page{ctx: tabCtx, cancel: cancel}, nil
}

func (b *Browser) Close() error {
	if b == nil {
		return nil
	}
	b.cancel()
	b.allocCancel()
	return nil
}
