package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
)

type page struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// run executes actions in the tab, stopping early when ctx is done or
// timeout elapses.
func (p *page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
		defer cancel()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (p *page) SetUserAgent(ctx context.Context, ua string) error {
	return p.run(ctx, 0, emulation.SetUserAgentOverride(ua).WithAcceptLanguage("ru-RU,ru;q=0.9,en;q=0.8"))
}

func (p *page) SetViewport(ctx context.Context, width, height int) error {
	return p.run(ctx, 0, chromedp.EmulateViewport(int64(width), int64(height)))
}

func (p *page) Goto(ctx context.Context, url string, timeout time.Duration) error {
	if err := p.run(ctx, timeout, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("goto %s: %w", url, err)
	}
	return nil
}

func (p *page) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if err := p.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait %s: %w", selector, err)
	}
	return nil
}

func (p *page) Evaluate(ctx context.Context, js string, out any) error {
	return p.run(ctx, 0, chromedp.Evaluate(js, out))
}

func (p *page) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, 0, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (p *page) Click(ctx context.Context, selector string) error {
	return p.run(ctx, 0, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

// ScrollBy scrolls the first element matching selector, or the window
// when nothing matches.
func (p *page) ScrollBy(ctx context.Context, selector string, dy int) error {
	sel, _ := json.Marshal(selector)
	js := fmt.Sprintf(`(() => {
  const el = %s ? document.querySelector(%s) : null;
  if (el) { el.scrollBy(0, %d); return true; }
  window.scrollBy(0, %d);
  return false;
})()`, sel, sel, dy, dy)
	var scrolled bool
	return p.run(ctx, 0, chromedp.Evaluate(js, &scrolled))
}

func (p *page) Close() error {
	p.cancel()
	return nil
}
