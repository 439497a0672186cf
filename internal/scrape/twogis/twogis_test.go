package twogis

import (
	"context"
	"errors"
	"testing"
	"time"

	"leadgen-engine/internal/browser"
	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/scrape"
)

const listingHTML = `<html><body><div class="list">
<div class="card">
  <div><a href="/almaty/firm/1001"><span>Dastarkhan</span></a></div>
  <div>Restaurant</div>
  <div>Алматы, ул. Абая 10</div>
  <div>4,7</div>
  <a href="https://Dastarkhan.kz/">dastarkhan.kz</a>
  <a href="/almaty/firm/1001/tab/reviews">120 reviews</a>
</div>
<div class="card">
  <div><a href="/almaty/firm/1002">Burger Hub</a></div>
  <div>пр. Достык 5</div>
  <a href="tel:+77012345678">+7 701 234 56 78</a>
  <a href="http://burger.kz/?utm_source=2gis">burger.kz</a>
</div>
<div class="card">
  <div><a href="/almaty/firm/1003">Coffee Point</a></div>
  <div>Call +7 (727) 355-00-00</div>
  <a href="https://2gis.kz/almaty/geo/777">On map</a>
  <a href="https://www.coffee.kz">coffee.kz</a>
</div>
<div class="card">
  <div><a href="/almaty/firm/1004">Nameless Kiosk</a></div>
  <div>мкр Самал-2, 33</div>
</div>
<div class="card">
  <div><a href="/almaty/firm/1005">Only On Map</a></div>
  <a href="https://2gis.kz/almaty/firm/1005/photos">photos</a>
</div>
</div></body></html>`

func TestBuildSearchURL(t *testing.T) {
	cases := []struct {
		query, city, country, want string
	}{
		{"restaurant", "Almaty", "KZ", "https://2gis.kz/almaty/search/restaurant"},
		{"кафе", "Алматы", "kz", "https://2gis.kz/almaty/search/%D0%BA%D0%B0%D1%84%D0%B5"},
		{"dental clinic", "Tashkent", "UZ", "https://2gis.uz/tashkent/search/dental%20clinic"},
		{"hotels", "Taraz  City", "KZ", "https://2gis.kz/taraz-city/search/hotels"},
		{"hotels", "", "AE", "https://2gis.ae/search/hotels"},
	}
	for _, tc := range cases {
		got, err := BuildSearchURL(tc.query, tc.city, tc.country)
		if err != nil {
			t.Fatalf("BuildSearchURL(%q,%q,%q): %v", tc.query, tc.city, tc.country, err)
		}
		if got != tc.want {
			t.Errorf("BuildSearchURL(%q,%q,%q) = %q, want %q", tc.query, tc.city, tc.country, got, tc.want)
		}
	}
	if _, err := BuildSearchURL("x", "Paris", "FR"); err == nil {
		t.Error("expected error for unsupported country")
	}
}

func TestParseListings(t *testing.T) {
	leads := ParseListings(listingHTML, ParseOptions{Country: "KZ", Host: "2gis.kz"})
	if len(leads) != 3 {
		t.Fatalf("got %d leads: %+v", len(leads), leads)
	}

	d := leads[0]
	if d.Name != "Dastarkhan" || d.DetailID != "1001" || d.Website != "https://dastarkhan.kz" {
		t.Errorf("lead 0 = %+v", d)
	}
	if d.Address != "Алматы, ул. Абая 10" || d.Rating != 4.7 || d.Phone != "" {
		t.Errorf("lead 0 details = %+v", d)
	}
	if d.Industry != "Restaurant" {
		t.Errorf("lead 0 industry = %q", d.Industry)
	}
	if d.DetailURL != "https://2gis.kz/firm/1001" {
		t.Errorf("detail url = %q", d.DetailURL)
	}

	b := leads[1]
	if b.Phone != "+77012345678" || b.Website != "http://burger.kz" || b.Address != "пр. Достык 5" || b.Industry != "" {
		t.Errorf("lead 1 = %+v", b)
	}

	c := leads[2]
	if c.Phone != "+7 (727) 355-00-00" || c.Website != "https://www.coffee.kz" || c.Industry != "" {
		t.Errorf("lead 2 = %+v", c)
	}
}

func TestParseListingsCapsResults(t *testing.T) {
	leads := ParseListings(listingHTML, ParseOptions{Country: "KZ", Max: 2})
	if len(leads) != 2 {
		t.Fatalf("got %d leads, want 2", len(leads))
	}
}

type fakePage struct {
	html    string
	gotoErr error
	htmlErr error
	visited []string
	evals   int
	scrolls int
	ua      string
	closed  bool
}

func (p *fakePage) SetUserAgent(_ context.Context, ua string) error         { p.ua = ua; return nil }
func (p *fakePage) SetViewport(context.Context, int, int) error              { return nil }
func (p *fakePage) WaitVisible(context.Context, string, time.Duration) error { return nil }
func (p *fakePage) Click(context.Context, string) error                      { return nil }
func (p *fakePage) Close() error                                             { p.closed = true; return nil }

func (p *fakePage) Goto(_ context.Context, url string, _ time.Duration) error {
	p.visited = append(p.visited, url)
	return p.gotoErr
}

func (p *fakePage) Evaluate(_ context.Context, _ string, out any) error {
	p.evals++
	if b, ok := out.(*bool); ok {
		*b = false
	}
	return nil
}

func (p *fakePage) ScrollBy(context.Context, string, int) error {
	p.scrolls++
	return nil
}

func (p *fakePage) HTML(context.Context) (string, error) {
	return p.html, p.htmlErr
}

type fakeLauncher struct {
	page  *fakePage
	opens int
}

func (l *fakeLauncher) NewPage(context.Context) (browser.Page, error) {
	l.opens++
	return l.page, nil
}

func TestScrape(t *testing.T) {
	page := &fakePage{html: listingHTML}
	l := &fakeLauncher{page: page}
	s := New(l, scrape.Settings{MaxResults: 3, ScrollIterations: 2, UserAgent: "test-agent", ViewportWidth: 1366, ViewportHeight: 900})

	res := s.Scrape(context.Background(), "restaurant", "Almaty", "KZ")
	if len(res.Errors) != 0 {
		t.Fatalf("errors = %v", res.Errors)
	}
	if len(res.Leads) != 3 || !res.HasMore {
		t.Fatalf("leads = %d hasMore = %v", len(res.Leads), res.HasMore)
	}
	if page.visited[0] != "https://2gis.kz/almaty/search/restaurant" {
		t.Fatalf("visited = %v", page.visited)
	}
	if page.evals != 2 || page.scrolls != 2 {
		t.Fatalf("evals = %d scrolls = %d, want 2/2", page.evals, page.scrolls)
	}
	if page.ua != "test-agent" {
		t.Fatalf("user agent = %q", page.ua)
	}

	// the page is reused, then released by Close
	s.Scrape(context.Background(), "cafe", "Astana", "KZ")
	if l.opens != 1 {
		t.Fatalf("opened %d pages, want 1", l.opens)
	}
	if err := s.Close(); err != nil || !page.closed {
		t.Fatalf("Close: %v closed=%v", err, page.closed)
	}
}

func TestScrapeHasMoreOnlyAtCap(t *testing.T) {
	s := New(&fakeLauncher{page: &fakePage{html: listingHTML}}, scrape.Settings{MaxResults: 10})
	res := s.Scrape(context.Background(), "restaurant", "Almaty", "KZ")
	if len(res.Leads) != 3 || res.HasMore {
		t.Fatalf("leads = %d hasMore = %v", len(res.Leads), res.HasMore)
	}
}

func TestScrapeCollectsErrors(t *testing.T) {
	nav := New(&fakeLauncher{page: &fakePage{gotoErr: errors.New("timeout")}}, scrape.Settings{MaxResults: 10})
	res := nav.Scrape(context.Background(), "restaurant", "Almaty", "KZ")
	if len(res.Errors) != 1 || len(res.Leads) != 0 {
		t.Fatalf("res = %+v", res)
	}

	bad := New(&fakeLauncher{page: &fakePage{}}, scrape.Settings{})
	res = bad.Scrape(context.Background(), "restaurant", "Paris", "FR")
	if len(res.Errors) != 1 {
		t.Fatalf("unsupported country errors = %v", res.Errors)
	}

	read := New(&fakeLauncher{page: &fakePage{htmlErr: errors.New("detached")}}, scrape.Settings{})
	res = read.Scrape(context.Background(), "restaurant", "Almaty", "KZ")
	if len(res.Errors) != 1 || res.Leads != nil {
		t.Fatalf("read failure res = %+v", res)
	}
}

func TestRegister(t *testing.T) {
	r := scrape.NewRegistry()
	Register(r, &fakeLauncher{page: &fakePage{}})
	sc, err := r.New(domainMaps(), scrape.Settings{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := sc.(*Scraper); !ok {
		t.Fatalf("got %T", sc)
	}
}

func domainMaps() domain.LeadSource {
	return domain.LeadSource{Name: "2GIS", Type: domain.SourceMaps}
}
