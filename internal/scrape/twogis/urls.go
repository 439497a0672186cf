package twogis

import (
	"fmt"
	"net/url"
	"strings"
)

var hosts = map[string]string{
	"KZ": "2gis.kz",
	"RU": "2gis.ru",
	"UZ": "2gis.uz",
	"KG": "2gis.kg",
	"AE": "2gis.ae",
}

// city display names (Latin and Cyrillic) to 2GIS URL slugs
var citySlugs = map[string]string{
	"almaty":           "almaty",
	"алматы":           "almaty",
	"astana":           "astana",
	"nur-sultan":       "astana",
	"астана":           "astana",
	"shymkent":         "shymkent",
	"шымкент":          "shymkent",
	"karaganda":        "karaganda",
	"караганда":        "karaganda",
	"aktobe":           "aktobe",
	"актобе":           "aktobe",
	"atyrau":           "atyrau",
	"атырау":           "atyrau",
	"pavlodar":         "pavlodar",
	"павлодар":         "pavlodar",
	"ust-kamenogorsk":  "ustkam",
	"усть-каменогорск": "ustkam",
	"moscow":           "moscow",
	"москва":           "moscow",
	"saint petersburg": "spb",
	"st. petersburg":   "spb",
	"санкт-петербург":  "spb",
	"novosibirsk":      "novosibirsk",
	"новосибирск":      "novosibirsk",
	"yekaterinburg":    "ekaterinburg",
	"екатеринбург":     "ekaterinburg",
	"kazan":            "kazan",
	"казань":           "kazan",
	"tashkent":         "tashkent",
	"ташкент":          "tashkent",
	"samarkand":        "samarkand",
	"самарканд":        "samarkand",
	"bishkek":          "bishkek",
	"бишкек":           "bishkek",
	"osh":              "osh",
	"ош":               "osh",
	"dubai":            "dubai",
	"дубай":            "dubai",
	"abu dhabi":        "abudhabi",
}

// Host returns the 2GIS domain serving country.
func Host(country string) (string, bool) {
	h, ok := hosts[strings.ToUpper(strings.TrimSpace(country))]
	return h, ok
}

// CitySlug maps a city to its URL slug, falling back to the lowercased
// name with spaces turned into dashes.
func CitySlug(city string) string {
	key := strings.ToLower(strings.Join(strings.Fields(city), " "))
	if s, ok := citySlugs[key]; ok {
		return s
	}
	return strings.ReplaceAll(key, " ", "-")
}

// BuildSearchURL renders https://<host>/<city>/search/<query>.
func BuildSearchURL(query, city, country string) (string, error) {
	host, ok := Host(country)
	if !ok {
		return "", fmt.Errorf("2gis: no host for country %q", country)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("2gis: empty query")
	}
	slug := CitySlug(city)
	if slug == "" {
		return fmt.Sprintf("https://%s/search/%s", host, url.PathEscape(query)), nil
	}
	return fmt.Sprintf("https://%s/%s/search/%s", host, url.PathEscape(slug), url.PathEscape(query)), nil
}
