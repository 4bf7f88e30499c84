package rest

import (
	"regexp"
)

var (
	rePassword = regexp.MustCompile(`(?i)("?password"?\s*[:=]\s*"?)([^\s;&",}]+)`)
	reToken    = regexp.MustCompile(`(?i)((?:access_?token|token)"?\s*[:=]\s*"?|bearer\s+)([A-Za-z0-9._~+/=-]+)`)
	reAPIKey   = regexp.MustCompile(`(?i)(apikey=|api_key=)([^\s;&]+)`)
	reUserInfo = regexp.MustCompile(`(://)([^:/@\s]+):([^@/\s]+)(@)`)
)

// Mask replaces credentials in s with "***".
func Mask(s string) string {
	out := s
	out = rePassword.ReplaceAllString(out, "$1***")
	out = reToken.ReplaceAllString(out, "$1***")
	out = reAPIKey.ReplaceAllString(out, "$1***")
	out = reUserInfo.ReplaceAllString(out, "$1*:*$4")
	return out
}
