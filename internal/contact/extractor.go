// Package contact harvests emails, phone numbers and social links from a
// company's website.
package contact

import (
	"context"
	"log"
	"time"

	"github.com/gocolly/colly/v2"

	"leadgen-engine/internal/scrape/util"
)

type Social struct {
	LinkedIn  string `json:"linkedin,omitempty"`
	Facebook  string `json:"facebook,omitempty"`
	Instagram string `json:"instagram,omitempty"`
}

type Result struct {
	Emails []string `json:"emails"`
	Phones []string `json:"phones"`
	Social Social   `json:"socialLinks"`
}

func (r Result) Empty() bool {
	return len(r.Emails) == 0 && len(r.Phones) == 0 && r.Social == (Social{})
}

type Options struct {
	UserAgent string
	Timeout   time.Duration
	// Paths are tried in order after the root page while no email is found.
	Paths []string
	// Limiter paces requests to the same host; nil means no pause.
	Limiter *util.HostLimiter
	// MX, when set, drops emails whose domain has no mail exchanger.
	MX MXChecker
}

type Extractor struct {
	opts Options
}

func New(opts Options) *Extractor {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
	}
	return &Extractor{opts: opts}
}

// Extract never fails: pages that cannot be fetched are skipped and the
// worst case is an empty Result.
func (e *Extractor) Extract(ctx context.Context, website string) Result {
	var out Result
	root := util.EnsureScheme(website)
	if root == "" || util.Hostname(root) == "" {
		return out
	}

	targets := []string{root}
	for _, p := range e.opts.Paths {
		if u := util.JoinPath(root, p); u != "" {
			targets = append(targets, u)
		}
	}

	var emails, phones []string
	for _, target := range targets {
		if ctx.Err() != nil {
			break
		}
		if err := e.opts.Limiter.WaitURL(ctx, target); err != nil {
			break
		}
		pg, err := e.visit(target)
		if err != nil {
			log.Printf("[contact] skip url=%s err=%v", target, err)
			continue
		}
		emails = append(emails, pg.emails...)
		phones = append(phones, pg.phones...)
		out.Social.merge(pg.social)
		if len(emails) > 0 {
			break
		}
	}

	emails = util.UniqStrings(emails)
	if e.opts.MX != nil {
		kept := emails[:0]
		for _, em := range emails {
			if e.opts.MX.HasMX(ctx, domainOf(em)) {
				kept = append(kept, em)
			}
		}
		emails = kept
	}
	out.Emails = emails
	out.Phones = util.UniqStrings(phones)
	return out
}

func (e *Extractor) visit(target string) (page, error) {
	var pg page
	c := colly.NewCollector(
		colly.UserAgent(e.opts.UserAgent),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(5<<20),
	)
	c.SetRequestTimeout(e.opts.Timeout)
	c.OnHTML("html", func(h *colly.HTMLElement) {
		pg = parsePage(h.DOM)
	})
	if err := c.Visit(target); err != nil {
		return pg, err
	}
	c.Wait()
	return pg, nil
}
