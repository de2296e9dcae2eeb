package novaposhta

import "strings"

// NormalizePhone reduces a Ukrainian phone number to the 380XXXXXXXXX form
// the API expects. Numbers it does not recognise are returned as digits only.
func NormalizePhone(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)

	switch {
	case len(digits) == 10 && strings.HasPrefix(digits, "0"):
		return "38" + digits
	case len(digits) == 11 && strings.HasPrefix(digits, "80"):
		return "3" + digits
	}
	return digits
}
