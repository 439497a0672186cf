package jobs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"leadgen-engine/internal/browser"
	"leadgen-engine/internal/config"
	"leadgen-engine/internal/contact"
	"leadgen-engine/internal/delivery"
	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/personalize"
	"leadgen-engine/internal/rank"
	"leadgen-engine/internal/runlock"
	"leadgen-engine/internal/scrape"
	"leadgen-engine/internal/scrape/twogis"
	"leadgen-engine/internal/store"
)

func openStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "leadgen.db"), store.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

// five cards, two without any contact
const listingHTML = `<html><body><div class="list">
<div class="card">
  <div><a href="/almaty/firm/1001">Dastarkhan</a></div>
  <div>Алматы, ул. Абая 10</div>
  <a href="https://dastarkhan.kz/">dastarkhan.kz</a>
</div>
<div class="card">
  <div><a href="/almaty/firm/1002">Burger Hub</a></div>
  <a href="tel:+77012345678">+7 701 234 56 78</a>
  <a href="http://burger.kz/">burger.kz</a>
</div>
<div class="card">
  <div><a href="/almaty/firm/1003">Coffee Point</a></div>
  <div>Call +7 (727) 355-00-00</div>
</div>
<div class="card">
  <div><a href="/almaty/firm/1004">Nameless Kiosk</a></div>
  <div>мкр Самал-2, 33</div>
</div>
<div class="card">
  <div><a href="/almaty/firm/1005">Only On Map</a></div>
</div>
</div></body></html>`

type htmlPage struct{ html string }

func (p htmlPage) SetUserAgent(context.Context, string) error               { return nil }
func (p htmlPage) SetViewport(context.Context, int, int) error              { return nil }
func (p htmlPage) Goto(context.Context, string, time.Duration) error        { return nil }
func (p htmlPage) WaitVisible(context.Context, string, time.Duration) error { return nil }
func (p htmlPage) Evaluate(context.Context, string, any) error              { return nil }
func (p htmlPage) HTML(context.Context) (string, error)                     { return p.html, nil }
func (p htmlPage) Click(context.Context, string) error                      { return nil }
func (p htmlPage) ScrollBy(context.Context, string, int) error              { return nil }
func (p htmlPage) Close() error                                             { return nil }

type htmlLauncher struct{ html string }

func (l htmlLauncher) NewPage(context.Context) (browser.Page, error) {
	return htmlPage{html: l.html}, nil
}

type fakeEnricher struct {
	byWebsite map[string]contact.Result
}

func (f fakeEnricher) Extract(_ context.Context, website string) contact.Result {
	return f.byWebsite[website]
}

type firstPicker struct{}

func (firstPicker) Pick(_ string, queries []string) string { return queries[0] }

func testRules() []config.Rule {
	return []config.Rule{{
		Service:  "web_development",
		Keywords: []string{"website", "online store"},
		Queries:  []string{"restaurant"},
	}}
}

func newScrapeJob(db *store.DB, reg *scrape.Registry, cities map[string][]string) *ScrapeJob {
	rules := testRules()
	return &ScrapeJob{
		Store:    db,
		Registry: reg,
		Scorer:   rank.NewRuleScorer(rules),
		Picker:   firstPicker{},
		Enricher: fakeEnricher{byWebsite: map[string]contact.Result{
			"http://burger.kz": {Emails: []string{"hello@burger.kz"}},
		}},
		Settings:    scrape.Settings{MaxResults: 50},
		Rules:       rules,
		Cities:      cities,
		UnitTimeout: time.Minute,
	}
}

func addSource(t *testing.T, db *store.DB) int64 {
	t.Helper()
	id, err := db.CreateSource(context.Background(), domain.LeadSource{
		Name: "2GIS", Type: domain.SourceMaps, Countries: []string{"KZ"}, Active: true,
	})
	if err != nil {
		t.Fatalf("CreateSource: %v", err)
	}
	return id
}

func TestScrapeRunEndToEnd(t *testing.T) {
	ctx := context.Background()
	db := openStore(t)
	srcID := addSource(t, db)

	// already known, so one of the three kept cards is a duplicate
	if _, err := db.InsertLead(ctx, domain.Lead{Name: "Dastarkhan", Website: "https://dastarkhan.kz", Country: "KZ"}); err != nil {
		t.Fatal(err)
	}

	reg := scrape.NewRegistry()
	twogis.Register(reg, htmlLauncher{html: listingHTML})
	job := newScrapeJob(db, reg, map[string][]string{"KZ": {"Almaty"}})

	sum, err := job.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if sum.Units != 1 || sum.Failed != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if sum.Found != 3 || sum.Inserted != 2 || sum.Duplicates != 1 || sum.Enriched != 1 {
		t.Fatalf("summary = %+v", sum)
	}

	jobs, err := db.ListJobs(ctx, sum.RunID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 {
		t.Fatalf("jobs = %d", len(jobs))
	}
	j := jobs[0]
	if j.Status != domain.JobCompleted || j.LeadsFound != 3 || j.LeadsNew != 2 || j.LeadsDuplicate != 1 {
		t.Fatalf("job = %+v", j)
	}
	if j.Query != "restaurant" || j.City != "Almaty" || j.Country != "KZ" || j.Service != "web_development" {
		t.Fatalf("job unit = %+v", j)
	}

	src, err := db.GetSource(ctx, srcID)
	if err != nil {
		t.Fatal(err)
	}
	if src.LeadsFound != 2 || src.LastScrapedAt == nil {
		t.Fatalf("source = %+v", src)
	}

	leads, err := db.ListLeadsByStatus(ctx, domain.LeadNew, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	var burger domain.Lead
	for _, l := range leads {
		if l.Name == "Burger Hub" {
			burger = l
		}
	}
	if burger.Email != "hello@burger.kz" || burger.Phone != "+77012345678" {
		t.Fatalf("burger lead = %+v", burger)
	}
	if burger.Service != "web_development" || burger.RelevanceScore != 0 || burger.SourceID != srcID {
		t.Fatalf("burger categorization = %+v", burger)
	}
}

func TestScrapeRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := openStore(t)
	addSource(t, db)

	reg := scrape.NewRegistry()
	twogis.Register(reg, htmlLauncher{html: listingHTML})
	job := newScrapeJob(db, reg, map[string][]string{"KZ": {"Almaty"}})

	first, err := job.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	second, err := job.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first.Inserted != 3 || second.Inserted != 0 || second.Duplicates != 3 {
		t.Fatalf("first = %+v second = %+v", first, second)
	}
	if first.RunID == second.RunID {
		t.Fatal("runs share an id")
	}
}

func TestScrapedLeadsReachCampaigns(t *testing.T) {
	ctx := context.Background()
	cfg, err := config.Load("../../config/config.yml")
	if err != nil {
		t.Fatal(err)
	}
	db, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "leadgen.db"),
		store.Options{RelevanceFloor: cfg.Campaign.MinRelevance})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	addSource(t, db)

	// every rule's search returns the same three firms
	reg := scrape.NewRegistry()
	twogis.Register(reg, htmlLauncher{html: listingHTML})
	job := newScrapeJob(db, reg, map[string][]string{"KZ": {"Almaty"}})
	job.Rules = config.DefaultRules()
	job.Scorer = rank.NewRuleScorer(job.Rules)

	sum, err := job.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Units != len(job.Rules) || sum.Inserted != 3 || sum.Duplicates != 3*(len(job.Rules)-1) {
		t.Fatalf("summary = %+v", sum)
	}

	id := seedCampaign(t, db, "Sites", "web_development", 10)
	leads, err := db.LeadsForCampaign(ctx, id, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(leads) != 1 {
		t.Fatalf("eligible leads = %+v", leads)
	}
	l := leads[0]
	if l.Name != "Burger Hub" || l.Industry != "restaurants" || l.RelevanceScore < cfg.Campaign.MinRelevance {
		t.Fatalf("lead = %+v", l)
	}
}

type cityScraper struct{}

func (cityScraper) Scrape(_ context.Context, _, city, _ string) scrape.Result {
	switch city {
	case "Astana":
		panic("selector exploded")
	case "Shymkent":
		return scrape.Result{Errors: []string{"navigation timeout"}}
	case "Taraz":
		return scrape.Result{
			Leads:  []domain.RawLead{{Name: "Partial Co", Phone: "+77010000001"}},
			Errors: []string{"scroll 2: detached"},
		}
	default:
		return scrape.Result{Leads: []domain.RawLead{{Name: "Almaty Co", Website: "https://almaty.co"}}}
	}
}

func (cityScraper) Close() error { return nil }

func TestScrapeUnitFailureIsolation(t *testing.T) {
	ctx := context.Background()
	db := openStore(t)
	addSource(t, db)

	reg := scrape.NewRegistry()
	reg.Register(domain.SourceMaps, func(domain.LeadSource, scrape.Settings) (scrape.Scraper, error) {
		return cityScraper{}, nil
	})
	job := newScrapeJob(db, reg, map[string][]string{"KZ": {"Astana", "Shymkent", "Taraz", "Almaty"}})

	sum, err := job.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if sum.Units != 4 || sum.Failed != 2 || sum.Inserted != 2 {
		t.Fatalf("summary = %+v", sum)
	}

	jobs, err := db.ListJobs(ctx, sum.RunID, 10)
	if err != nil {
		t.Fatal(err)
	}
	byCity := map[string]domain.ScrapeJob{}
	for _, j := range jobs {
		byCity[j.City] = j
	}
	if j := byCity["Astana"]; j.Status != domain.JobFailed || !strings.Contains(j.ErrorMessage, "panic") {
		t.Fatalf("astana = %+v", j)
	}
	if j := byCity["Shymkent"]; j.Status != domain.JobFailed || j.ErrorMessage != "navigation timeout" {
		t.Fatalf("shymkent = %+v", j)
	}
	if j := byCity["Taraz"]; j.Status != domain.JobCompleted || j.LeadsNew != 1 || j.ErrorMessage != "scroll 2: detached" {
		t.Fatalf("taraz = %+v", j)
	}
	if j := byCity["Almaty"]; j.Status != domain.JobCompleted || j.LeadsNew != 1 {
		t.Fatalf("almaty = %+v", j)
	}
}

func TestScrapeSkipsWhenLockHeld(t *testing.T) {
	db := openStore(t)
	addSource(t, db)
	path := filepath.Join(t.TempDir(), "scrape.lock")
	held, err := runlock.Acquire(path)
	if err != nil {
		t.Fatal(err)
	}
	defer held.Release()

	reg := scrape.NewRegistry()
	twogis.Register(reg, htmlLauncher{html: listingHTML})
	job := newScrapeJob(db, reg, map[string][]string{"KZ": {"Almaty"}})
	job.LockPath = path

	sum, err := job.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !sum.Skipped || sum.Units != 0 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestScrapeAbortsOnStoreFailure(t *testing.T) {
	db := openStore(t)
	_ = db.Close()

	job := newScrapeJob(db, scrape.NewRegistry(), nil)
	if _, err := job.RunOnce(context.Background()); err == nil {
		t.Fatal("expected store error")
	}
	if st := job.Status(); st.Running || st.LastError == "" {
		t.Fatalf("status = %+v", st)
	}
}

func TestGuardRejectsOverlap(t *testing.T) {
	var g guard
	if !g.begin() {
		t.Fatal("first begin failed")
	}
	if g.begin() {
		t.Fatal("second begin should be rejected")
	}
	g.end(4, nil)
	if st := g.Status(); st.Running || st.LastCount != 4 || st.LastOkAt == "" {
		t.Fatalf("status = %+v", st)
	}
	if !g.begin() {
		t.Fatal("begin after end failed")
	}
}

type recordingSender struct {
	failFor  map[string]bool
	sent     []string
	attempts int
}

func (s *recordingSender) Send(_ context.Context, m delivery.Message) (string, error) {
	s.attempts++
	if s.failFor[m.To] {
		return "", errors.New("mailbox unavailable")
	}
	s.sent = append(s.sent, m.To)
	return "id-" + m.To, nil
}

func seedLead(t *testing.T, db *store.DB, name, email, service string, score int) {
	t.Helper()
	_, err := db.InsertLead(context.Background(), domain.Lead{
		Name: name, CompanyName: name, Email: email, Country: "KZ", City: "Almaty",
		Service: service, RelevanceScore: score,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func seedCampaign(t *testing.T, db *store.DB, name, service string, limit int) int64 {
	t.Helper()
	id, err := db.CreateCampaign(context.Background(), domain.Campaign{
		Name:            name,
		SubjectTemplate: "Hello {{company}}",
		BodyTemplate:    "We build {{service}} for {{industry}} in {{city}}.",
		TargetService:   service,
		Active:          true,
		DailyLimit:      limit,
	})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func newCampaignJob(db *store.DB, s delivery.Sender, limit int) *CampaignJob {
	return &CampaignJob{
		Store:        db,
		Personalizer: personalize.New(nil, personalize.Options{}),
		Delivery:     delivery.NewClient(db, s, "Studio", "hi@studio.kz"),
		DailyLimit:   limit,
	}
}

func TestCampaignBudgetAcrossCampaigns(t *testing.T) {
	ctx := context.Background()
	db := openStore(t)
	for i, e := range []string{"w1@a.kz", "w2@a.kz", "w3@a.kz"} {
		seedLead(t, db, "Web "+e, e, "web_development", 50-i)
	}
	for i, e := range []string{"c1@b.kz", "c2@b.kz", "c3@b.kz"} {
		seedLead(t, db, "Crm "+e, e, "crm_automation", 50-i)
	}
	a := seedCampaign(t, db, "A", "web_development", 2)
	b := seedCampaign(t, db, "B", "crm_automation", 5)

	snd := &recordingSender{}
	job := newCampaignJob(db, snd, 3)
	sum, err := job.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Sent != 3 || len(snd.sent) != 3 {
		t.Fatalf("summary = %+v sent = %v", sum, snd.sent)
	}

	ca, _ := db.GetCampaign(ctx, a)
	cb, _ := db.GetCampaign(ctx, b)
	if ca.SentCount != 2 || cb.SentCount != 1 {
		t.Fatalf("campaign counts a=%d b=%d", ca.SentCount, cb.SentCount)
	}

	again, err := job.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if again.Sent != 0 || again.Budget != 0 {
		t.Fatalf("second run = %+v", again)
	}
}

func TestCampaignFailedSendKeepsBudget(t *testing.T) {
	ctx := context.Background()
	db := openStore(t)
	seedLead(t, db, "One", "one@a.kz", "web_development", 90)
	seedLead(t, db, "Two", "two@a.kz", "web_development", 80)
	seedLead(t, db, "Three", "three@a.kz", "web_development", 70)
	seedCampaign(t, db, "A", "web_development", 10)

	snd := &recordingSender{failFor: map[string]bool{"one@a.kz": true}}
	job := newCampaignJob(db, snd, 2)
	sum, err := job.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Sent != 1 || sum.Failed != 1 || snd.attempts != 2 {
		t.Fatalf("summary = %+v attempts = %d", sum, snd.attempts)
	}
	if len(snd.sent) != 1 || snd.sent[0] != "two@a.kz" {
		t.Fatalf("sent = %v", snd.sent)
	}

	// the failed send left one slot of today's quota for the next run
	snd.failFor = nil
	again, err := job.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if again.Budget != 1 || again.Sent != 1 || snd.sent[1] != "one@a.kz" {
		t.Fatalf("second run = %+v sent = %v", again, snd.sent)
	}

	n, err := db.CountSentSince(ctx, startOfDay(time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("sent today = %d", n)
	}
}

func TestCampaignFailingProviderStaysWithinBudget(t *testing.T) {
	db := openStore(t)
	fail := map[string]bool{}
	for i := 0; i < 10; i++ {
		e := fmt.Sprintf("w%d@a.kz", i)
		seedLead(t, db, "Web "+e, e, "web_development", 50)
		fail[e] = true
		e = fmt.Sprintf("c%d@b.kz", i)
		seedLead(t, db, "Crm "+e, e, "crm_automation", 50)
		fail[e] = true
	}
	seedCampaign(t, db, "A", "web_development", 10)
	seedCampaign(t, db, "B", "crm_automation", 10)

	snd := &recordingSender{failFor: fail}
	sum, err := newCampaignJob(db, snd, 3).RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if snd.attempts > 3 || sum.Sent != 0 || sum.Failed != snd.attempts {
		t.Fatalf("summary = %+v attempts = %d", sum, snd.attempts)
	}
}

func TestCampaignSkipsWithoutSender(t *testing.T) {
	db := openStore(t)
	seedLead(t, db, "One", "one@a.kz", "web_development", 90)
	seedCampaign(t, db, "A", "web_development", 10)

	sum, err := newCampaignJob(db, nil, 5).RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Sent != 0 || sum.Failed != 1 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestRescore(t *testing.T) {
	ctx := context.Background()
	db := openStore(t)
	seedLead(t, db, "Acme online store", "a@acme.kz", "crm_automation", 0)
	seedLead(t, db, "Plain Bakery", "b@bakery.kz", "crm_automation", 0)

	job := &RescoreJob{Store: db, Scorer: rank.NewRuleScorer(testRules())}
	n, err := job.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("updated = %d", n)
	}
	leads, _ := db.ListLeadsByStatus(ctx, domain.LeadNew, 0, 10)
	for _, l := range leads {
		switch l.Name {
		case "Acme online store":
			if l.Service != "web_development" || l.RelevanceScore != 10 {
				t.Fatalf("acme = %+v", l)
			}
		case "Plain Bakery":
			if l.Service != "crm_automation" {
				t.Fatalf("bakery = %+v", l)
			}
		}
	}

	if n, _ := job.RunOnce(ctx); n != 0 {
		t.Fatalf("second rescore updated %d", n)
	}
}
