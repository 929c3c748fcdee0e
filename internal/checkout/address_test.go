package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validAddress() *Address {
	return &Address{
		Type:       AddressShipping,
		Line1:      "1 Main St",
		City:       "Springfield",
		PostalCode: "12345",
		Country:    "US",
	}
}

func TestValidateAddress(t *testing.T) {
	assert.NoError(t, ValidateAddress(validAddress()))
}

func TestValidateAddressRequiredFields(t *testing.T) {
	a := validAddress()
	a.Line1 = "  "
	assert.ErrorIs(t, ValidateAddress(a), ErrInvalidAddress)

	a = validAddress()
	a.City = ""
	assert.ErrorIs(t, ValidateAddress(a), ErrInvalidAddress)

	a = validAddress()
	a.Country = "USA"
	assert.ErrorIs(t, ValidateAddress(a), ErrInvalidAddress)

	assert.ErrorIs(t, ValidateAddress(nil), ErrInvalidAddress)
}

func TestValidateAddressNormalizesCountry(t *testing.T) {
	a := validAddress()
	a.Country = " us "
	assert.NoError(t, ValidateAddress(a))
	assert.Equal(t, "US", a.Country)
}

func TestValidatePostalFormats(t *testing.T) {
	cases := []struct {
		country, postal string
		ok              bool
	}{
		{"US", "12345", true},
		{"US", "12345-6789", true},
		{"US", "1234", false},
		{"CA", "K1A 0B1", true},
		{"CA", "12345", false},
		{"GB", "SW1A 1AA", true},
		{"DE", "10115", true},
		{"DE", "101", false},
		{"NL", "1012 AB", true},
		{"JP", "100-0001", true}, // generic fallback
		{"JP", "!", false},
	}
	for _, tc := range cases {
		a := validAddress()
		a.Country = tc.country
		a.PostalCode = tc.postal
		err := ValidateAddress(a)
		if tc.ok {
			assert.NoError(t, err, "%s %s", tc.country, tc.postal)
		} else {
			assert.ErrorIs(t, err, ErrInvalidPostalCode, "%s %s", tc.country, tc.postal)
		}
	}
}
