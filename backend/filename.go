package backend

import (
	"mime"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/s0up4200/torrentsnag/fingerprint"
)

// DefaultFilename is used when neither the response nor the URL names the file.
const DefaultFilename = "download.torrent"

var dispositionFilename = regexp.MustCompile(`filename[^;=\n]*=((['"]).*?['"]|[^;\n]*)`)

// IsHTMLRedirectURL reports whether u looks like a page that leads to a torrent
// file instead of being one.
func IsHTMLRedirectURL(u string) bool {
	return fingerprint.IsHTMLRedirectURL(u)
}

// ExtractFilename picks a file name from a Content-Disposition header, then from
// the last path segment of rawURL when it has an extension, then DefaultFilename.
func ExtractFilename(contentDisposition, rawURL string) string {
	if contentDisposition != "" {
		if _, params, err := mime.ParseMediaType(contentDisposition); err == nil {
			if name := strings.TrimSpace(params["filename"]); name != "" {
				return path.Base(name)
			}
		}
		if m := dispositionFilename.FindStringSubmatch(contentDisposition); m != nil {
			name := strings.Trim(strings.TrimSpace(m[1]), `"'`)
			if name != "" {
				return path.Base(name)
			}
		}
	}

	if parsed, err := url.Parse(rawURL); err == nil {
		segment := path.Base(parsed.Path)
		if strings.Contains(segment, ".") && segment != "." && segment != ".." {
			if unescaped, err := url.PathUnescape(segment); err == nil {
				segment = unescaped
			}
			return segment
		}
	}

	return DefaultFilename
}
