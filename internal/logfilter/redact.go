package logfilter

import "regexp"

// Matches the "/203.0.113.7:51234" form servers print on player login.
var addressPattern = regexp.MustCompile(`/(?:\d{1,3}\.){3}\d{1,3}(?::\d{1,5})?\b`)

// RedactAddresses masks client network addresses before text leaves the host.
func RedactAddresses(text string) string {
	return addressPattern.ReplaceAllString(text, "/<redacted>")
}
