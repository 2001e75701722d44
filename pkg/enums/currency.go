package enums

import "slices"

// Currency is one of the two fungible balances a user holds.
type Currency string

const (
	CurrencyCredits Currency = "credits"
	CurrencyTokens  Currency = "tokens"
)

var validCurrencies = []Currency{
	CurrencyCredits,
	CurrencyTokens,
}

func (c Currency) String() string {
	return string(c)
}

// IsValid reports whether the currency is recognized.
func (c Currency) IsValid() bool {
	return slices.Contains(validCurrencies, c)
}

// ParseCurrency converts a raw string into a Currency.
func ParseCurrency(value string) (Currency, error) {
	return parseOneOf(validCurrencies, value, "currency")
}
