package checkout

import (
	"regexp"
	"strings"
)

var countryRe = regexp.MustCompile(`^[A-Z]{2}$`)

// Postal formats for destinations we ship to most; everything else gets the
// generic alphanumeric check.
var postalRes = map[string]*regexp.Regexp{
	"US": regexp.MustCompile(`^\d{5}(-\d{4})?$`),
	"CA": regexp.MustCompile(`^[A-Za-z]\d[A-Za-z] ?\d[A-Za-z]\d$`),
	"GB": regexp.MustCompile(`^[A-Za-z]{1,2}\d[A-Za-z\d]? ?\d[A-Za-z]{2}$`),
	"DE": regexp.MustCompile(`^\d{5}$`),
	"FR": regexp.MustCompile(`^\d{5}$`),
	"NL": regexp.MustCompile(`^\d{4} ?[A-Za-z]{2}$`),
}

var genericPostalRe = regexp.MustCompile(`^[A-Za-z\d][A-Za-z\d\- ]{1,9}$`)

// ValidateAddress checks required fields and the postal format for the
// destination country.
func ValidateAddress(a *Address) error {
	if a == nil {
		return ErrInvalidAddress
	}
	a.Country = strings.ToUpper(strings.TrimSpace(a.Country))

	if strings.TrimSpace(a.Line1) == "" ||
		strings.TrimSpace(a.City) == "" ||
		strings.TrimSpace(a.PostalCode) == "" ||
		!countryRe.MatchString(a.Country) {
		return ErrInvalidAddress
	}

	re, ok := postalRes[a.Country]
	if !ok {
		re = genericPostalRe
	}
	if !re.MatchString(strings.TrimSpace(a.PostalCode)) {
		return ErrInvalidPostalCode
	}
	return nil
}
