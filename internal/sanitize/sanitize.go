// Package sanitize masks sensitive values before they reach logs.
package sanitize

import "strings"

// Phone masks a phone number, keeping the dialing prefix and the last
// two digits.
func Phone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return phone[:3] + strings.Repeat("*", len(phone)-5) + phone[len(phone)-2:]
}

// PartialMask masks the middle of s, keeping the first keepStart and the
// last keepEnd characters.
func PartialMask(s string, keepStart, keepEnd int) string {
	if len(s) <= keepStart+keepEnd {
		return strings.Repeat("*", len(s))
	}
	return s[:keepStart] + strings.Repeat("*", len(s)-keepStart-keepEnd) + s[len(s)-keepEnd:]
}

// ID masks an identifier, showing the first and last four characters.
func ID(id string) string {
	return PartialMask(id, 4, 4)
}
