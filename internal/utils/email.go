package utils

import (
	"regexp"
	"strings"

	"github.com/customeros/mailsherpa/mailvalidate"
)

var angleAddressRegex = regexp.MustCompile(`<(.+)>`)

func ExtractDomainFromEmail(email string) string {
	if email == "" {
		return ""
	}

	email = strings.TrimSpace(email)

	// "Name <email@domain.com>"
	if strings.Contains(email, "<") && strings.Contains(email, ">") {
		startIdx := strings.LastIndex(email, "<") + 1
		endIdx := strings.LastIndex(email, ">")
		if startIdx > 0 && endIdx > startIdx {
			email = email[startIdx:endIdx]
		}
	}

	idx := strings.LastIndex(email, "@")
	if idx < 0 || idx == len(email)-1 {
		return ""
	}

	return strings.ToLower(strings.TrimSpace(email[idx+1:]))
}

// ExtractAngleAddress pulls a bare address out of a raw From header value.
// Returns "" when the value holds no usable address.
func ExtractAngleAddress(raw string) string {
	if m := angleAddressRegex.FindStringSubmatch(raw); len(m) == 2 {
		return NormalizeAddress(m[1])
	}
	if strings.Contains(raw, "@") {
		return NormalizeAddress(raw)
	}
	return ""
}

func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// IsValidAddress runs the syntax check shared by the API and bot inputs.
func IsValidAddress(address string) bool {
	if address == "" {
		return false
	}
	return mailvalidate.ValidateEmailSyntax(address).IsValid
}

func UniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	unique := make([]string, 0, len(values))

	for _, v := range values {
		if _, exists := seen[v]; !exists {
			seen[v] = struct{}{}
			unique = append(unique, v)
		}
	}

	return unique
}
