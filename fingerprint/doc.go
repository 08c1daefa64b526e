// Package fingerprint derives stable deduplication keys from torrent links.
//
// Magnet URIs are keyed by their BitTorrent info hash so that two magnets for the
// same content always collide. Every other URL is keyed by the SHA-256 of its
// lower-cased form with the query string removed.
package fingerprint
