package oxapay

import "testing"

func TestValidateAddress(t *testing.T) {
	cases := []struct {
		currency string
		address  string
		want     bool
	}{
		{"TON", "UQabcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOP0123", true},
		{"TON", "EQabcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOP0123", true},
		{"TON", "0:abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789", true},
		{"TON", "-1:abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789", true},
		{"TON", "not-an-address", false},
		{"TON", "", false},
		{"ton", "UQabcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOP0123", true},

		{"BTC", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", true},
		{"BTC", "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq", true},
		{"BTC", "0x52908400098527886E0F7030069857D2E4169EE7", false},

		{"ETH", "0x52908400098527886E0F7030069857D2E4169EE7", true},
		{"ETH", "52908400098527886E0F7030069857D2E4169EE7", false},

		// USDT rides on TON
		{"USDT", "UQabcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOP0123", true},
		{"USDT", "0x52908400098527886E0F7030069857D2E4169EE7", false},

		{"DOGE", "DH5yaieqoZN36fDVciNyRueRGvGLR3mr7L", false},
	}
	for _, c := range cases {
		if got := ValidateAddress(c.currency, c.address); got != c.want {
			t.Errorf("ValidateAddress(%s, %q) = %v, want %v", c.currency, c.address, got, c.want)
		}
	}
}

func TestValidateAmount(t *testing.T) {
	if !ValidateAmount("TON", 0.05) {
		t.Fatal("min TON amount should validate")
	}
	if ValidateAmount("TON", 0.01) {
		t.Fatal("below-min TON amount should not validate")
	}
	if ValidateAmount("TON", 10001) {
		t.Fatal("above-max TON amount should not validate")
	}
	if ValidateAmount("XYZ", 1) {
		t.Fatal("unknown currency should not validate")
	}
}

func TestSupportedCurrency(t *testing.T) {
	if !SupportedCurrency("ton") {
		t.Fatal("TON should be supported, case-insensitively")
	}
	if SupportedCurrency("DOGE") {
		t.Fatal("DOGE should not be supported")
	}
}
