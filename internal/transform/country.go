package transform

// countryNames maps source spellings to canonical country names.
var countryNames = map[string]string{
	"EIRE":        "Ireland",
	"RSA":         "South Africa",
	"U.K.":        "United Kingdom",
	"Unspecified": "Unknown",
	"West Indies": "Unknown",
	"nan":         "Unknown",
}

// NormalizeCountry returns the canonical name for country. Unmapped values
// pass through unchanged.
func NormalizeCountry(country string) string {
	if c, ok := countryNames[country]; ok {
		return c
	}
	return country
}
