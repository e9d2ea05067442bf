package whatsapp

import (
	"errors"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used for numbers written without a country code
const DefaultRegion = "BR"

// ErrInvalidPhone is returned when a number cannot be parsed as a valid phone number
var ErrInvalidPhone = errors.New("invalid phone number")

// NormalizePhone returns the number in E.164 without the leading plus, which is what the
// gateway expects (5511987654321)
func NormalizePhone(input, region string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", ErrInvalidPhone
	}
	if region == "" {
		region = DefaultRegion
	}

	number, err := phonenumbers.Parse(trimmed, region)
	if err != nil || !phonenumbers.IsValidNumber(number) {
		return "", ErrInvalidPhone
	}

	return strings.TrimPrefix(phonenumbers.Format(number, phonenumbers.E164), "+"), nil
}
