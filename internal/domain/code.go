package domain

// Score counts the positions where guess and secret agree. Inputs of
// different length are compared up to the shorter one.
func Score(guess, secret string) int {
	n := len(guess)
	if len(secret) < n {
		n = len(secret)
	}
	bulls := 0
	for i := 0; i < n; i++ {
		if guess[i] == secret[i] {
			bulls++
		}
	}
	return bulls
}

// ValidateCode checks that code has exactly n ASCII digits, all distinct.
func ValidateCode(code string, n int) error {
	if len(code) != n {
		return ErrCodeLength
	}
	var seen [10]bool
	for i := 0; i < len(code); i++ {
		c := code[i]
		if c < '0' || c > '9' {
			return ErrCodeNotDigits
		}
		if seen[c-'0'] {
			return ErrCodeDuplicates
		}
		seen[c-'0'] = true
	}
	return nil
}
