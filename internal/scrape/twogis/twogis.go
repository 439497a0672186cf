// Package twogis scrapes business listings from 2GIS search pages.
package twogis

import (
	"context"
	"fmt"
	"log"
	"time"

	"leadgen-engine/internal/browser"
	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/scrape"
)

const (
	firmLinkSelector = `a[href*="/firm/"]`
	scrollStep       = 1500
)

// scrolls the nearest scrollable ancestor of the first firm link, which is
// the results panel; reports false when there is none.
const scrollListJS = `(() => {
  const a = document.querySelector('a[href*="/firm/"]');
  let el = a ? a.parentElement : null;
  while (el && el !== document.body) {
    const st = getComputedStyle(el);
    if ((st.overflowY === 'auto' || st.overflowY === 'scroll') && el.scrollHeight > el.clientHeight) {
      el.scrollBy(0, 1500);
      return true;
    }
    el = el.parentElement;
  }
  return false;
})()`

type Scraper struct {
	launcher browser.Launcher
	settings scrape.Settings
	page     browser.Page
}

func New(l browser.Launcher, s scrape.Settings) *Scraper {
	if s.NavTimeout <= 0 {
		s.NavTimeout = 30 * time.Second
	}
	return &Scraper{launcher: l, settings: s}
}

// Register installs the 2GIS scraper for maps sources.
func Register(r *scrape.Registry, l browser.Launcher) {
	r.Register(domain.SourceMaps, func(_ domain.LeadSource, s scrape.Settings) (scrape.Scraper, error) {
		if l == nil {
			return nil, fmt.Errorf("2gis: no browser available")
		}
		return New(l, s), nil
	})
}

func (s *Scraper) ensurePage(ctx context.Context) (browser.Page, error) {
	if s.page != nil {
		return s.page, nil
	}
	p, err := s.launcher.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}
	if s.settings.UserAgent != "" {
		if err := p.SetUserAgent(ctx, s.settings.UserAgent); err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("set user agent: %w", err)
		}
	}
	if s.settings.ViewportWidth > 0 && s.settings.ViewportHeight > 0 {
		if err := p.SetViewport(ctx, s.settings.ViewportWidth, s.settings.ViewportHeight); err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("set viewport: %w", err)
		}
	}
	s.page = p
	return p, nil
}

func (s *Scraper) Scrape(ctx context.Context, query, city, country string) (res scrape.Result) {
	fail := func(format string, args ...any) {
		res.Errors = append(res.Errors, fmt.Sprintf(format, args...))
	}
	defer func() {
		if r := recover(); r != nil {
			fail("panic: %v", r)
		}
	}()

	searchURL, err := BuildSearchURL(query, city, country)
	if err != nil {
		fail("%v", err)
		return res
	}
	host, _ := Host(country)

	p, err := s.ensurePage(ctx)
	if err != nil {
		fail("%v", err)
		return res
	}

	if err := s.settings.Limiter.WaitURL(ctx, searchURL); err != nil {
		fail("rate limit: %v", err)
		return res
	}
	if err := p.Goto(ctx, searchURL, s.settings.NavTimeout); err != nil {
		fail("%v", err)
		return res
	}
	if err := p.WaitVisible(ctx, firmLinkSelector, s.settings.NavTimeout); err != nil {
		// an empty result page never shows a firm link
		fail("%v", err)
	}

	for i := 0; i < s.settings.ScrollIterations; i++ {
		var moved bool
		if err := p.Evaluate(ctx, scrollListJS, &moved); err != nil {
			fail("scroll %d: %v", i, err)
			break
		}
		if !moved {
			if err := p.ScrollBy(ctx, "", scrollStep); err != nil {
				fail("scroll %d: %v", i, err)
				break
			}
		}
		if !sleep(ctx, s.settings.ScrollDelay) {
			fail("scroll: %v", ctx.Err())
			break
		}
	}

	html, err := p.HTML(ctx)
	if err != nil {
		fail("read page: %v", err)
		return res
	}

	res.Leads = ParseListings(html, ParseOptions{Country: country, Host: host, Max: s.settings.MaxResults})
	res.HasMore = s.settings.MaxResults > 0 && len(res.Leads) == s.settings.MaxResults
	log.Printf("[2gis] search done url=%s leads=%d errors=%d", searchURL, len(res.Leads), len(res.Errors))
	return res
}

func (s *Scraper) Close() error {
	if s.page == nil {
		return nil
	}
	err := s.page.Close()
	s.page = nil
	return err
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
