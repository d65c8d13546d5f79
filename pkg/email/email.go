// Package email holds address helpers shared by the notification adapters.
package email

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"
)

// Normalize trims and lowercases addr and checks it is a bare address
// (no display name).
func Normalize(addr string) (string, error) {
	addr = strings.ToLower(strings.TrimSpace(addr))
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr {
		return "", fmt.Errorf("invalid email address %q", addr)
	}
	return addr, nil
}

// GreetingName derives a display name from the local part of an address:
// "fleet.manager@example.com" greets "Fleet". Falls back to "there".
func GreetingName(addr string) string {
	localPart := addr
	if at := strings.IndexByte(addr, '@'); at >= 0 {
		localPart = addr[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return "there"
	}
	return capitalize(parts[0])
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
