// Package utils provides helpers for scrubbing secrets out of log output.
// Both the Helius and PumpPortal endpoints carry API keys in the URL query
// string, so anything derived from those URLs must pass through here before
// being logged.
package utils

import (
	"net/url"
	"regexp"
	"strings"
)

var keyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`api-key=[a-zA-Z0-9-]+`),
	regexp.MustCompile(`token=[a-zA-Z0-9-]+`),
	regexp.MustCompile(`key=[a-zA-Z0-9-]+`),
}

// SanitizeURL strips the query string (where API keys live) and masks the
// host's first label so endpoints can be logged safely.
func SanitizeURL(rawURL string) string {
	if rawURL == "" {
		return "unknown"
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url"
	}

	parsedURL.RawQuery = ""

	host := parsedURL.Host
	if strings.Contains(host, ".") {
		parts := strings.Split(host, ".")
		if len(parts) > 2 {
			parts[0] = parts[0][:min(3, len(parts[0]))] + "***"
		}
		parsedURL.Host = strings.Join(parts, ".")
	}

	return parsedURL.String()
}

// SanitizeError scrubs endpoint URLs and API keys from an error message
// before it is logged. Transport errors frequently embed the full dial URL.
func SanitizeError(err error, endpointURL string) string {
	if err == nil {
		return ""
	}

	errMsg := err.Error()

	if endpointURL != "" {
		errMsg = strings.ReplaceAll(errMsg, endpointURL, SanitizeURL(endpointURL))
	}

	for _, re := range keyPatterns {
		errMsg = re.ReplaceAllString(errMsg, "***API-KEY-HIDDEN***")
	}

	return errMsg
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
