package browser

import (
	"fmt"
	"regexp"
	"strings"
)

const DefaultPattern = `(?i)\.m3u8`

var DefaultBlocklist = []string{"amazonaws", "knitcdn", "jwpltx"}

// Matcher decides whether an observed request URL is the stream manifest.
// A URL matches when Pattern finds it and no Blocklist entry occurs in it,
// compared case-insensitively.
type Matcher struct {
	Pattern   *regexp.Regexp
	Blocklist []string
}

func NewMatcher(pattern string, blocklist []string) (Matcher, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Matcher{}, fmt.Errorf("capture pattern %q: %w", pattern, err)
	}

	blocked := make([]string, 0, len(blocklist))
	for _, b := range blocklist {
		if b = strings.ToLower(strings.TrimSpace(b)); b != "" {
			blocked = append(blocked, b)
		}
	}
	return Matcher{Pattern: re, Blocklist: blocked}, nil
}

func DefaultMatcher() Matcher {
	m, _ := NewMatcher(DefaultPattern, DefaultBlocklist)
	return m
}

func (m Matcher) Match(url string) bool {
	if m.Pattern == nil || !m.Pattern.MatchString(url) {
		return false
	}
	lower := strings.ToLower(url)
	for _, b := range m.Blocklist {
		if strings.Contains(lower, strings.ToLower(b)) {
			return false
		}
	}
	return true
}
