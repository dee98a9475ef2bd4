package stats

// UnknownCountryCode is returned for country names with no alpha-2
// mapping, including the "Unknown" sentinel produced by failed GeoIP
// lookups.
const UnknownCountryCode = "XX"

// legacyCountryAliases covers names the upstream lookup table
// mis-resolves. "Turkey" and "Russia" are the common English names; the
// table below only carries the official short names ("Türkiye",
// "Russian Federation"), so both would otherwise fall through to XX.
var legacyCountryAliases = map[string]string{
	"Turkey": "TR",
	"Russia": "RU",
}

// countryCodes maps human-readable country names (as stored on click
// records by the GeoIP enricher) to ISO 3166-1 alpha-2 codes.
var countryCodes = map[string]string{
	"Afghanistan":            "AF",
	"Albania":                "AL",
	"Algeria":                "DZ",
	"Andorra":                "AD",
	"Angola":                 "AO",
	"Argentina":              "AR",
	"Armenia":                "AM",
	"Australia":              "AU",
	"Austria":                "AT",
	"Azerbaijan":             "AZ",
	"Bahamas":                "BS",
	"Bahrain":                "BH",
	"Bangladesh":             "BD",
	"Belarus":                "BY",
	"Belgium":                "BE",
	"Benin":                  "BJ",
	"Bolivia":                "BO",
	"Bosnia and Herzegovina": "BA",
	"Botswana":               "BW",
	"Brazil":                 "BR",
	"Bulgaria":               "BG",
	"Cambodia":               "KH",
	"Cameroon":               "CM",
	"Canada":                 "CA",
	"Chile":                  "CL",
	"China":                  "CN",
	"Colombia":               "CO",
	"Costa Rica":             "CR",
	"Croatia":                "HR",
	"Cuba":                   "CU",
	"Cyprus":                 "CY",
	"Czechia":                "CZ",
	"Denmark":                "DK",
	"Dominican Republic":     "DO",
	"Ecuador":                "EC",
	"Egypt":                  "EG",
	"El Salvador":            "SV",
	"Estonia":                "EE",
	"Ethiopia":               "ET",
	"Finland":                "FI",
	"France":                 "FR",
	"Georgia":                "GE",
	"Germany":                "DE",
	"Ghana":                  "GH",
	"Greece":                 "GR",
	"Guatemala":              "GT",
	"Honduras":               "HN",
	"Hong Kong":              "HK",
	"Hungary":                "HU",
	"Iceland":                "IS",
	"India":                  "IN",
	"Indonesia":              "ID",
	"Iran":                   "IR",
	"Iraq":                   "IQ",
	"Ireland":                "IE",
	"Israel":                 "IL",
	"Italy":                  "IT",
	"Jamaica":                "JM",
	"Japan":                  "JP",
	"Jordan":                 "JO",
	"Kazakhstan":             "KZ",
	"Kenya":                  "KE",
	"Kuwait":                 "KW",
	"Kyrgyzstan":             "KG",
	"Laos":                   "LA",
	"Latvia":                 "LV",
	"Lebanon":                "LB",
	"Libya":                  "LY",
	"Lithuania":              "LT",
	"Luxembourg":             "LU",
	"Macao":                  "MO",
	"Madagascar":             "MG",
	"Malaysia":               "MY",
	"Maldives":               "MV",
	"Malta":                  "MT",
	"Mexico":                 "MX",
	"Moldova":                "MD",
	"Monaco":                 "MC",
	"Mongolia":               "MN",
	"Montenegro":             "ME",
	"Morocco":                "MA",
	"Mozambique":             "MZ",
	"Myanmar":                "MM",
	"Namibia":                "NA",
	"Nepal":                  "NP",
	"Netherlands":            "NL",
	"New Zealand":            "NZ",
	"Nicaragua":              "NI",
	"Nigeria":                "NG",
	"North Macedonia":        "MK",
	"Norway":                 "NO",
	"Oman":                   "OM",
	"Pakistan":               "PK",
	"Panama":                 "PA",
	"Paraguay":               "PY",
	"Peru":                   "PE",
	"Philippines":            "PH",
	"Poland":                 "PL",
	"Portugal":               "PT",
	"Qatar":                  "QA",
	"Romania":                "RO",
	"Russian Federation":     "RU",
	"Rwanda":                 "RW",
	"Saudi Arabia":           "SA",
	"Senegal":                "SN",
	"Serbia":                 "RS",
	"Singapore":              "SG",
	"Slovakia":               "SK",
	"Slovenia":               "SI",
	"South Africa":           "ZA",
	"South Korea":            "KR",
	"Spain":                  "ES",
	"Sri Lanka":              "LK",
	"Sudan":                  "SD",
	"Sweden":                 "SE",
	"Switzerland":            "CH",
	"Syria":                  "SY",
	"Taiwan":                 "TW",
	"Tajikistan":             "TJ",
	"Tanzania":               "TZ",
	"Thailand":               "TH",
	"Tunisia":                "TN",
	"Türkiye":                "TR",
	"Turkmenistan":           "TM",
	"Uganda":                 "UG",
	"Ukraine":                "UA",
	"United Arab Emirates":   "AE",
	"United Kingdom":         "GB",
	"United States":          "US",
	"Uruguay":                "UY",
	"Uzbekistan":             "UZ",
	"Venezuela":              "VE",
	"Vietnam":                "VN",
	"Yemen":                  "YE",
	"Zambia":                 "ZM",
	"Zimbabwe":               "ZW",
}

// CountryCode converts a human-readable country name to its ISO alpha-2
// code. Unrecognized names map to UnknownCountryCode.
func CountryCode(name string) string {
	if code, ok := legacyCountryAliases[name]; ok {
		return code
	}
	if code, ok := countryCodes[name]; ok {
		return code
	}
	return UnknownCountryCode
}
