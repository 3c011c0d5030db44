package enums

import "fmt"

// Currency is the denomination recorded on orders. The storefront trades in GBP only.
type Currency string

const (
	CurrencyGBP Currency = "GBP"
)

var validCurrencies = []Currency{
	CurrencyGBP,
}

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// Symbol returns the display prefix for the currency.
func (c Currency) Symbol() string {
	switch c {
	case CurrencyGBP:
		return "£"
	}
	return string(c) + " "
}

// IsValid reports whether the currency is recognized.
func (c Currency) IsValid() bool {
	for _, candidate := range validCurrencies {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCurrency converts a raw string into a Currency.
func ParseCurrency(value string) (Currency, error) {
	for _, candidate := range validCurrencies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid currency %q", value)
}
