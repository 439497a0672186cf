// Package personalize turns a campaign template into a lead-specific email.
package personalize

import (
	"context"
	"fmt"
	"log"
	"strings"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/llm"
	"leadgen-engine/internal/scrape/util"
)

type Email struct {
	Subject string
	Body    string
	// Rewritten is true when the body came from the completion service.
	Rewritten bool
}

// Render substitutes the {{...}} placeholders in subject and body.
// Unknown placeholders are left as they are. A body without the
// unsubscribe link gets it appended.
func Render(c domain.Campaign, l domain.Lead, unsubscribeURL string) Email {
	company := firstNonEmpty(l.CompanyName, l.Name)
	unsub := unsubscribeLink(unsubscribeURL, l)
	r := strings.NewReplacer(
		"{{company}}", company,
		"{{company_name}}", company,
		"{{name}}", firstNonEmpty(l.Name, company),
		"{{country}}", util.CountryName(l.Country),
		"{{city}}", l.City,
		"{{industry}}", firstNonEmpty(l.Industry, "your industry"),
		"{{service}}", serviceLabel(l.Service),
		"{{unsubscribe_link}}", unsub,
	)
	return Email{
		Subject: strings.TrimSpace(r.Replace(c.SubjectTemplate)),
		Body:    withUnsubscribe(r.Replace(c.BodyTemplate), unsub),
	}
}

type Options struct {
	UnsubscribeURL   string
	MaxTokens        int
	Temperature      float64
	MinRewriteLength int
}

// Personalizer renders templates and, when a completer is configured and
// the lead has a description, asks it to tailor the body.
type Personalizer struct {
	llm  llm.Completer
	opts Options
}

func New(c llm.Completer, opts Options) *Personalizer {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 600
	}
	return &Personalizer{llm: c, opts: opts}
}

const systemPrompt = `You write short, polite B2B cold emails. Keep the offer and any links from the draft, ` +
	`mention one concrete detail about the company, and answer with the email body only.`

func (p *Personalizer) Personalize(ctx context.Context, c domain.Campaign, l domain.Lead) Email {
	out := Render(c, l, p.opts.UnsubscribeURL)
	if p.llm == nil || strings.TrimSpace(l.Description) == "" {
		return out
	}

	user := fmt.Sprintf("Company: %s\nCity: %s, %s\nIndustry: %s\nAbout them: %s\n\nDraft:\n%s",
		firstNonEmpty(l.CompanyName, l.Name), l.City, util.CountryName(l.Country), l.Industry, l.Description, out.Body)

	body, err := p.llm.Complete(ctx, systemPrompt, user, p.opts.MaxTokens, p.opts.Temperature)
	if err != nil {
		log.Printf("[personalize] warn: rewrite failed lead=%d err=%v", l.ID, err)
		return out
	}
	if len([]rune(body)) < p.opts.MinRewriteLength {
		log.Printf("[personalize] warn: rewrite too short lead=%d len=%d", l.ID, len([]rune(body)))
		return out
	}
	out.Body = withUnsubscribe(body, unsubscribeLink(p.opts.UnsubscribeURL, l))
	out.Rewritten = true
	return out
}

func unsubscribeLink(base string, l domain.Lead) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%slead=%d", base, sep, l.ID)
}

func withUnsubscribe(body, link string) string {
	if link == "" || strings.Contains(body, link) {
		return body
	}
	return strings.TrimRight(body, " \n") + "\n\nUnsubscribe: " + link
}

func serviceLabel(s string) string {
	if s == "" {
		return "digital services"
	}
	return strings.ReplaceAll(s, "_", " ")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
