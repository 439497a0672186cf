package twogis

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/scrape/util"
)

var (
	firmRe   = regexp.MustCompile(`/firm/(\d+)`)
	ratingRe = regexp.MustCompile(`^[1-5](?:[.,]\d)?$`)
	rubricRe = regexp.MustCompile(`^[\p{L}][\p{L}\s,&-]{2,59}$`)

	phoneByCountry = map[string]*regexp.Regexp{
		"KZ": regexp.MustCompile(`(?:\+7|8)[\s\-(]*\d{3}[\s\-)]*\d{3}[\s\-]*\d{2}[\s\-]*\d{2}`),
		"RU": regexp.MustCompile(`(?:\+7|8)[\s\-(]*\d{3}[\s\-)]*\d{3}[\s\-]*\d{2}[\s\-]*\d{2}`),
		"UZ": regexp.MustCompile(`\+998[\s\-(]*\d{2}[\s\-)]*\d{3}[\s\-]*\d{2}[\s\-]*\d{2}`),
		"KG": regexp.MustCompile(`\+996[\s\-(]*\d{3}[\s\-)]*\d{3}[\s\-]*\d{3}`),
		"AE": regexp.MustCompile(`\+971[\s\-(]*\d{1,2}[\s\-)]*\d{3}[\s\-]*\d{4}`),
	}
	phoneFallback = regexp.MustCompile(`\+?\d[\d\s\-()]{7,}\d`)

	streetPrefixes = []string{
		"ул.", "улица", "пр.", "проспект", "пр-т", "мкр", "микрорайон", "пер.", "переулок",
		"бульвар", "б-р", "шоссе", "пл.", "площадь", "наб.", "көшесі", "даңғылы",
		"street", "st.", "avenue", "ave", "road", "rd.", "blvd",
	}
)

// maximum number of ancestors climbed from a firm link to find its card
const maxCardDepth = 8

type ParseOptions struct {
	Country string
	Host    string
	Max     int
}

// ParseListings extracts contactable firms from a rendered search page.
// Firms are deduplicated by their 2GIS id within this page.
func ParseListings(html string, opts ParseOptions) []domain.RawLead {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	seen := map[string]bool{}
	var out []domain.RawLead

	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if opts.Max > 0 && len(out) >= opts.Max {
			return false
		}
		href, _ := a.Attr("href")
		m := firmRe.FindStringSubmatch(href)
		if m == nil {
			return true
		}
		id := m[1]
		name := util.CleanText(a.Text())
		if seen[id] || name == "" {
			return true
		}
		seen[id] = true

		card := cardFor(a, id)
		lead := domain.RawLead{
			Name:      name,
			DetailID:  id,
			DetailURL: detailURL(opts.Host, id),
		}
		fillFromCard(&lead, card, opts)
		if lead.HasContact() {
			out = append(out, lead)
		}
		return true
	})

	return out
}

// cardFor climbs from a firm link to the largest ancestor that holds no
// other firm's link.
func cardFor(a *goquery.Selection, id string) *goquery.Selection {
	card := a
	for depth := 0; depth < maxCardDepth; depth++ {
		parent := card.Parent()
		if parent.Length() == 0 || goquery.NodeName(parent) == "body" {
			break
		}
		if hasOtherFirm(parent, id) {
			break
		}
		card = parent
	}
	return card
}

func hasOtherFirm(s *goquery.Selection, id string) bool {
	other := false
	s.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if m := firmRe.FindStringSubmatch(href); m != nil && m[1] != id {
			other = true
			return false
		}
		return true
	})
	return other
}

func fillFromCard(lead *domain.RawLead, card *goquery.Selection, opts ParseOptions) {
	var lines, plain []string
	card.Find("*").Each(func(_ int, s *goquery.Selection) {
		if s.Children().Length() > 0 {
			return
		}
		t := util.CleanText(s.Text())
		if t == "" {
			return
		}
		lines = append(lines, t)
		if s.Closest("a").Length() == 0 {
			plain = append(plain, t)
		}
	})

	card.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		switch {
		case strings.HasPrefix(href, "tel:") && lead.Phone == "":
			lead.Phone = util.NormalizePhone(strings.TrimPrefix(href, "tel:"), 9)
		case lead.Website == "" && isExternal(href):
			lead.Website = util.CanonicalWebsite(href)
		}
		return lead.Phone == "" || lead.Website == ""
	})

	re := phoneByCountry[strings.ToUpper(opts.Country)]
	if re == nil {
		re = phoneFallback
	}
	for _, l := range lines {
		if lead.Phone == "" {
			if p := re.FindString(l); p != "" {
				lead.Phone = util.NormalizePhone(p, 9)
			}
		}
		if lead.Address == "" && looksLikeAddress(l) {
			lead.Address = l
		}
		if lead.Rating == 0 && ratingRe.MatchString(l) {
			lead.Rating, _ = strconv.ParseFloat(strings.ReplaceAll(l, ",", "."), 64)
		}
	}

	// the rubric is the first unlinked line made of words only
	for _, l := range plain {
		if l != lead.Name && l != lead.Address && rubricRe.MatchString(l) {
			lead.Industry = l
			break
		}
	}
}

func looksLikeAddress(line string) bool {
	l := strings.ToLower(line)
	for _, p := range streetPrefixes {
		if strings.HasPrefix(l, p) || strings.Contains(l, " "+p) {
			return true
		}
	}
	return false
}

func isExternal(href string) bool {
	u, err := url.Parse(href)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	return !strings.Contains(strings.ToLower(u.Host), "2gis.")
}

func detailURL(host, id string) string {
	if host == "" {
		host = "2gis.kz"
	}
	return "https://" + host + "/firm/" + id
}
