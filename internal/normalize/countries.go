package normalize

import "strings"

// Countries maps common country names to ISO 3166-1 alpha-2 codes.
var Countries = map[string]string{
	"australia":                "AU",
	"austria":                  "AT",
	"bangladesh":               "BD",
	"belgium":                  "BE",
	"brazil":                   "BR",
	"cambodia":                 "KH",
	"canada":                   "CA",
	"chile":                    "CL",
	"china":                    "CN",
	"colombia":                 "CO",
	"czech republic":           "CZ",
	"czechia":                  "CZ",
	"denmark":                  "DK",
	"egypt":                    "EG",
	"finland":                  "FI",
	"france":                   "FR",
	"germany":                  "DE",
	"greece":                   "GR",
	"hong kong":                "HK",
	"hungary":                  "HU",
	"india":                    "IN",
	"indonesia":                "ID",
	"ireland":                  "IE",
	"israel":                   "IL",
	"italy":                    "IT",
	"japan":                    "JP",
	"malaysia":                 "MY",
	"mexico":                   "MX",
	"morocco":                  "MA",
	"netherlands":              "NL",
	"new zealand":              "NZ",
	"nigeria":                  "NG",
	"norway":                   "NO",
	"pakistan":                 "PK",
	"peru":                     "PE",
	"philippines":              "PH",
	"poland":                   "PL",
	"portugal":                 "PT",
	"romania":                  "RO",
	"saudi arabia":             "SA",
	"singapore":                "SG",
	"south africa":             "ZA",
	"south korea":              "KR",
	"korea":                    "KR",
	"spain":                    "ES",
	"sri lanka":                "LK",
	"sweden":                   "SE",
	"switzerland":              "CH",
	"taiwan":                   "TW",
	"thailand":                 "TH",
	"turkey":                   "TR",
	"turkiye":                  "TR",
	"united arab emirates":     "AE",
	"uae":                      "AE",
	"united kingdom":           "GB",
	"uk":                       "GB",
	"great britain":            "GB",
	"united states":            "US",
	"united states of america": "US",
	"usa":                      "US",
	"vietnam":                  "VN",
	"viet nam":                 "VN",
}

var countryCodes = func() map[string]bool {
	codes := make(map[string]bool, len(Countries))
	for _, code := range Countries {
		codes[code] = true
	}
	return codes
}()

// Country converts a country name to its two-letter code. Codes and
// unrecognized input are returned trimmed but otherwise unchanged.
func Country(s string) string {
	s = CleanCell(s)
	if code, ok := Countries[strings.ToLower(s)]; ok {
		return code
	}
	return s
}

// IsCountryName reports whether s is a recognized full name rather than a code.
func IsCountryName(s string) bool {
	_, ok := Countries[strings.ToLower(CleanCell(s))]
	return ok
}

// ValidCountry accepts any two or three letter code, or a recognized name.
// The code list is not exhaustive, so unknown letter codes are trusted.
func ValidCountry(s string) bool {
	s = CleanCell(s)
	if IsCountryName(s) || countryCodes[strings.ToUpper(s)] {
		return true
	}
	if len(s) < 2 || len(s) > 3 {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return true
}
