package matcher

// Rule is an inclusion pattern or an exclusion filter.
type Rule struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Regex   string `json:"regex"`
	Enabled bool   `json:"enabled"`
	Builtin bool   `json:"builtin"`
}

// Link is one hyperlink of a document.
type Link struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

// Budget bounds a single scan.
type Budget struct {
	ChunkSize       int `json:"chunkSize"`
	MaxLinksPerScan int `json:"maxLinksPerScan"`
}

const (
	DefaultChunkSize       = 100
	DefaultMaxLinksPerScan = 1000
)

func (b Budget) normalize() Budget {
	if b.ChunkSize <= 0 {
		b.ChunkSize = DefaultChunkSize
	}
	if b.MaxLinksPerScan <= 0 {
		b.MaxLinksPerScan = DefaultMaxLinksPerScan
	}
	return b
}
