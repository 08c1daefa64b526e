package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"
)

// ErrDigestUnavailable is returned when the digest function cannot produce a value.
// Callers treat the link as not yet seen.
var ErrDigestUnavailable = errors.New("digest unavailable")

var btihPattern = regexp.MustCompile(`(?i)btih:([a-f0-9]{40}|[a-z2-7]{32})`)

// Hasher digests the normalized form of a non-magnet URL.
type Hasher func(data []byte) ([]byte, error)

// SHA256 is the default Hasher.
func SHA256(data []byte) ([]byte, error) {
	sum := sha256.Sum256(data)
	return sum[:], nil
}

// Engine computes fingerprints with a configurable digest.
type Engine struct {
	hasher Hasher
}

// New returns an Engine using h, or SHA256 when h is nil.
func New(h Hasher) *Engine {
	if h == nil {
		h = SHA256
	}
	return &Engine{hasher: h}
}

var defaultEngine = New(nil)

// Fingerprint returns the deduplication key for url using SHA-256.
func Fingerprint(url string) (string, error) {
	return defaultEngine.Fingerprint(url)
}

// Fingerprint returns the lower-cased BTIH for magnet URIs. Any other URL is
// lower-cased, cut at the first '?' and digested.
func (e *Engine) Fingerprint(url string) (string, error) {
	if hash := MagnetHash(url); hash != "" {
		return hash, nil
	}

	normalized := strings.ToLower(url)
	if i := strings.IndexByte(normalized, '?'); i >= 0 {
		normalized = normalized[:i]
	}

	sum, err := e.hasher([]byte(normalized))
	if err != nil {
		return "", errors.Join(ErrDigestUnavailable, err)
	}
	if len(sum) == 0 {
		return "", ErrDigestUnavailable
	}

	return hex.EncodeToString(sum), nil
}

// IsMagnet reports whether url is a magnet URI.
func IsMagnet(url string) bool {
	return len(url) >= 7 && strings.EqualFold(url[:7], "magnet:")
}

// MagnetHash returns the lower-cased info hash of a magnet URI, or "" when url is
// not a magnet or carries no btih parameter.
func MagnetHash(url string) string {
	if !IsMagnet(url) {
		return ""
	}
	m := btihPattern.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}
