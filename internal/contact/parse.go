package contact

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"leadgen-engine/internal/scrape/util"
)

var (
	emailRe = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	phoneRe = regexp.MustCompile(`\+?\d[\d\s\-().]{7,}\d`)

	placeholderParts = []string{"example", "test", "noreply", "no-reply", "domain", "email"}
	imageSuffixes    = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp"}
)

const (
	minPhoneDigits = 9
	maxPhoneDigits = 15
)

// page is what one HTML document contributed.
type page struct {
	emails []string
	phones []string
	social Social
}

func parsePage(doc *goquery.Selection) page {
	var p page

	doc.Find("script, style, noscript").Remove()
	text := doc.Find("body").Text()
	if text == "" {
		text = doc.Text()
	}

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		lower := strings.ToLower(href)
		switch {
		case strings.HasPrefix(lower, "mailto:"):
			if e := mailtoAddress(href); e != "" {
				p.emails = append(p.emails, e)
			}
		case strings.HasPrefix(lower, "tel:"):
			if ph := cleanPhone(strings.TrimPrefix(href[len("tel:"):], "//")); ph != "" {
				p.phones = append(p.phones, ph)
			}
		default:
			p.social.take(href)
		}
	})

	for _, m := range emailRe.FindAllString(text, -1) {
		p.emails = append(p.emails, m)
	}
	for _, m := range phoneRe.FindAllString(text, -1) {
		if ph := cleanPhone(m); ph != "" {
			p.phones = append(p.phones, ph)
		}
	}

	var emails []string
	for _, e := range p.emails {
		if e = strings.ToLower(strings.Trim(e, " .,;:")); usableEmail(e) {
			emails = append(emails, e)
		}
	}
	p.emails = util.UniqStrings(emails)
	p.phones = util.UniqStrings(p.phones)
	return p
}

func mailtoAddress(href string) string {
	addr := href[len("mailto:"):]
	if i := strings.IndexByte(addr, '?'); i >= 0 {
		addr = addr[:i]
	}
	if dec, err := url.PathUnescape(addr); err == nil {
		addr = dec
	}
	// mailto:a@x.kz,b@x.kz keeps the first
	if i := strings.IndexByte(addr, ','); i >= 0 {
		addr = addr[:i]
	}
	return emailRe.FindString(strings.TrimSpace(addr))
}

func usableEmail(e string) bool {
	if e == "" || !emailRe.MatchString(e) {
		return false
	}
	for _, s := range imageSuffixes {
		if strings.HasSuffix(e, s) {
			return false
		}
	}
	for _, p := range placeholderParts {
		if strings.Contains(e, p) {
			return false
		}
	}
	return true
}

func cleanPhone(s string) string {
	s = util.CleanText(s)
	n := len(util.DigitsOnly(s))
	if n < minPhoneDigits || n > maxPhoneDigits {
		return ""
	}
	return util.NormalizePhone(s, minPhoneDigits)
}

// take records href under the first platform it belongs to, unless that
// platform already has a link.
func (s *Social) take(href string) {
	u, err := url.Parse(href)
	if err != nil || u.Host == "" {
		return
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch {
	case s.LinkedIn == "" && (host == "linkedin.com" || strings.HasSuffix(host, ".linkedin.com")):
		s.LinkedIn = href
	case s.Facebook == "" && (host == "facebook.com" || strings.HasSuffix(host, ".facebook.com") || host == "fb.com"):
		s.Facebook = href
	case s.Instagram == "" && (host == "instagram.com" || strings.HasSuffix(host, ".instagram.com")):
		s.Instagram = href
	}
}

func (s *Social) merge(o Social) {
	if s.LinkedIn == "" {
		s.LinkedIn = o.LinkedIn
	}
	if s.Facebook == "" {
		s.Facebook = o.Facebook
	}
	if s.Instagram == "" {
		s.Instagram = o.Instagram
	}
}
