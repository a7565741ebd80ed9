package instagram

import (
	"net/url"
	"strings"
)

const (
	// BaseURL is the base URL for Instagram
	BaseURL = "https://www.instagram.com"

	// MobileBaseURL is the lightweight mobile site used by the browser path
	MobileBaseURL = "https://m.instagram.com"

	// SessionCookieName is the cookie carrying a logged-in session
	SessionCookieName = "sessionid"

	// CookieDomain scopes session cookies to every Instagram host
	CookieDomain = ".instagram.com"
)

// RewriteHost moves pageURL onto base (scheme and host), keeping path and
// query. pageURL is returned unchanged if either URL is unparsable.
func RewriteHost(pageURL, base string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}
	b, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil || b.Host == "" {
		return pageURL
	}
	u.Scheme = b.Scheme
	u.Host = b.Host
	return u.String()
}

// ToMobileURL rewrites pageURL onto the mobile site
func ToMobileURL(pageURL string) string {
	return RewriteHost(pageURL, MobileBaseURL)
}

// IsValidUsername checks if a username is valid according to Instagram rules
func IsValidUsername(username string) bool {
	if username == "" || len(username) > 30 {
		return false
	}
	for _, char := range username {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '.' || char == '_') {
			return false
		}
	}
	return true
}

// SanitizeUsername strips a leading @ and trailing slashes or spaces
func SanitizeUsername(username string) string {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	return strings.TrimRight(username, "/ ")
}
