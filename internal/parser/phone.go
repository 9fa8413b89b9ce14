package parser

import "strings"

// Digits drops every non-digit rune from s.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePhone formats 10 digits as 3-3-4 and 11 digits as 3-4-4. Any
// other length comes back as the bare digit string.
func NormalizePhone(phone string) string {
	d := Digits(phone)
	switch len(d) {
	case 10:
		return d[:3] + "-" + d[3:6] + "-" + d[6:]
	case 11:
		return d[:3] + "-" + d[3:7] + "-" + d[7:]
	}
	return d
}
