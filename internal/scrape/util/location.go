package util

import "strings"

var countryNames = map[string]string{
	"KZ": "Kazakhstan",
	"RU": "Russia",
	"UZ": "Uzbekistan",
	"KG": "Kyrgyzstan",
	"TJ": "Tajikistan",
	"BY": "Belarus",
	"AE": "United Arab Emirates",
	"TR": "Turkey",
	"GE": "Georgia",
	"AZ": "Azerbaijan",
	"AM": "Armenia",
	"US": "United States",
	"GB": "United Kingdom",
	"DE": "Germany",
}

// CountryName maps an ISO code to an English display name, falling back
// to the code itself.
func CountryName(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if n, ok := countryNames[code]; ok {
		return n
	}
	return code
}
