package domain

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is assumed for numbers written without a country code
const DefaultPhoneRegion = "SG"

// NormalizePhone parses raw and returns it in E.164 form. An empty value is allowed.
func NormalizePhone(raw string) (string, *ValidationError) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	num, err := phonenumbers.Parse(raw, DefaultPhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", NewValidationError("phone", "phone number is not valid")
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
