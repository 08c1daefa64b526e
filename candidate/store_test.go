package candidate

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddIsKeyedByURL(t *testing.T) {
	s := NewStore()

	assert.True(t, s.Add(Candidate{URL: "magnet:?xt=urn:btih:1", PatternID: "magnet-links", ElementText: "first"}))
	assert.False(t, s.Add(Candidate{URL: "magnet:?xt=urn:btih:1", PatternID: "magnet-links", ElementText: "second"}))
	// same content, different URL: both kept
	assert.True(t, s.Add(Candidate{URL: "magnet:?xt=urn:btih:1&dn=x", Hash: "1"}))
	assert.False(t, s.Add(Candidate{}))

	list := s.List()
	assert.Len(t, list, 2)
	assert.Equal(t, "first", list[0].ElementText)
}

func TestListOrderIsStable(t *testing.T) {
	s := NewStore()
	for i := range 5 {
		s.Add(Candidate{URL: fmt.Sprintf("https://example.com/%d.torrent", i)})
	}

	assert.True(t, s.Remove("https://example.com/2.torrent"))
	assert.False(t, s.Remove("https://example.com/2.torrent"))

	assert.Equal(t, []string{
		"https://example.com/0.torrent",
		"https://example.com/1.torrent",
		"https://example.com/3.torrent",
		"https://example.com/4.torrent",
	}, s.URLs())
}

func TestClearAndReplace(t *testing.T) {
	s := NewStore()
	s.Add(Candidate{URL: "a"})
	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.List())

	s.Replace([]Candidate{{URL: "b"}, {URL: "c"}, {URL: "b"}})
	assert.Equal(t, []string{"b", "c"}, s.URLs())
	assert.True(t, s.Has("c"))
}

func TestConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup

	for i := range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Add(Candidate{URL: fmt.Sprintf("u%d", i)})
		}()
		go func() {
			defer wg.Done()
			s.Remove(fmt.Sprintf("u%d", i-1))
			_ = s.List()
		}()
	}
	wg.Wait()

	assert.Equal(t, len(s.URLs()), s.Len())
}
