package oxapay

import (
	"regexp"
	"strings"
)

// Withdrawal amount bounds per currency, in crypto units.
type CurrencyLimits struct {
	Min float64
	Max float64
}

var currencyLimits = map[string]CurrencyLimits{
	"TON":  {Min: 0.05, Max: 10000},
	"BTC":  {Min: 0.00005, Max: 10},
	"ETH":  {Min: 0.001, Max: 1000},
	"USDT": {Min: 1, Max: 1000000},
}

var addressPatterns = map[string]*regexp.Regexp{
	// friendly (base64url, 48 chars) or raw workchain:hex form
	"TON":  regexp.MustCompile(`^([UE][Qf][A-Za-z0-9_-]{46}|-?[0-9]:[0-9a-fA-F]{64})$`),
	"BTC":  regexp.MustCompile(`^(bc1[a-z0-9]{25,62}|[13][a-km-zA-HJ-NP-Z1-9]{25,34})$`),
	"ETH":  regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`),
	"USDT": regexp.MustCompile(`^([UE][Qf][A-Za-z0-9_-]{46}|-?[0-9]:[0-9a-fA-F]{64})$`), // USDT rides on TON here
}

// SupportedCurrency reports whether withdrawals in cur are configured.
func SupportedCurrency(cur string) bool {
	_, ok := currencyLimits[strings.ToUpper(cur)]
	return ok
}

// Limits returns the [min, max] crypto amount for a currency.
func Limits(cur string) (CurrencyLimits, bool) {
	l, ok := currencyLimits[strings.ToUpper(cur)]
	return l, ok
}

// ValidateAddress checks the destination format for a currency. Unknown
// currencies always fail.
func ValidateAddress(cur, address string) bool {
	re, ok := addressPatterns[strings.ToUpper(cur)]
	if !ok {
		return false
	}
	return re.MatchString(address)
}

// ValidateAmount checks a crypto amount against the currency's bounds.
func ValidateAmount(cur string, amount float64) bool {
	l, ok := Limits(cur)
	if !ok {
		return false
	}
	return amount >= l.Min && amount <= l.Max
}
