package utils

import "regexp"

const otpSearchLimit = 5000

var otpRegex = regexp.MustCompile(`(?is)(?:code|otp|verify|verification|pin|secret|mã|xác\s?thực|số|login).*?(\b\d{4,8}\b)`)

// ExtractOTP returns the first 4-8 digit number that follows a verification keyword
// in subject+body, looking only at the first few thousand characters.
func ExtractOTP(subject, body string) string {
	area := Truncate(subject+" "+body, otpSearchLimit)
	match := otpRegex.FindStringSubmatch(area)
	if len(match) < 2 {
		return ""
	}
	return match[1]
}
