package utils

// IsValidPincode reports whether s is an Indian postal PIN: six digits, the
// first one non-zero.
func IsValidPincode(s string) bool {
	if len(s) != 6 {
		return false
	}
	if s[0] < '1' || s[0] > '9' {
		return false
	}
	for i := 1; i < 6; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
