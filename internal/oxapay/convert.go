package oxapay

// StonToTon converts STON into TON at the configured fixed rate. The rate is
// admin configuration, not a live oracle.
func StonToTon(ston int64, stonPerTon int64) float64 {
	if stonPerTon <= 0 {
		return 0
	}
	return float64(ston) / float64(stonPerTon)
}

// TonToSton converts TON into whole STON, truncating fractions.
func TonToSton(ton float64, stonPerTon int64) int64 {
	if stonPerTon <= 0 {
		return 0
	}
	return int64(ton * float64(stonPerTon))
}
