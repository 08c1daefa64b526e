package fingerprint

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

// LinkType classifies a detected link.
type LinkType string

const (
	TypeMagnet       LinkType = "magnet"
	TypeTorrent      LinkType = "torrent"
	TypeHTMLRedirect LinkType = "html-redirect"
)

var redirectShapes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\.html?$`),
	regexp.MustCompile(`(?i)/download/\d+\.html`),
	regexp.MustCompile(`(?i)/torrent/\d+\.html`),
	regexp.MustCompile(`(?i)/torrents/download/id/\d+`),
	regexp.MustCompile(`(?i)action=download`),
	regexp.MustCompile(`(?i)download\.php`),
	regexp.MustCompile(`(?i)get\.php`),
}

// IsHTMLRedirectURL reports whether u looks like an HTML page that leads to a
// torrent file rather than the file itself.
func IsHTMLRedirectURL(u string) bool {
	for _, re := range redirectShapes {
		if re.MatchString(u) {
			return true
		}
	}
	return false
}

// Classify returns the link type of u.
func Classify(u string) LinkType {
	switch {
	case IsMagnet(u):
		return TypeMagnet
	case IsHTMLRedirectURL(u):
		return TypeHTMLRedirect
	default:
		return TypeTorrent
	}
}

// MagnetParam returns the first value of key in a magnet URI's query.
func MagnetParam(u, key string) string {
	i := strings.IndexByte(u, '?')
	if i < 0 {
		return ""
	}
	// ParseQuery keeps the pairs it could decode
	values, _ := url.ParseQuery(u[i+1:])
	return values.Get(key)
}

// DisplayName returns a human readable name for a link.
func DisplayName(u string) string {
	if IsMagnet(u) {
		if dn := MagnetParam(u, "dn"); dn != "" {
			return strings.ReplaceAll(dn, "+", " ")
		}
		if hash := MagnetHash(u); hash != "" {
			return "Torrent " + hash[:8] + "..."
		}
		return "Magnet link"
	}

	parsed, err := url.Parse(u)
	if err != nil || parsed.Path == "" {
		return u
	}
	name := path.Base(parsed.Path)
	if name == "/" || name == "." {
		return u
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return strings.TrimSuffix(name, ".torrent")
}
