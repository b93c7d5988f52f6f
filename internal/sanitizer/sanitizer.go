// Package sanitizer strips article HTML down to an allow-list of elements.
package sanitizer

import (
	"sort"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer builds one bluemonday policy per allow-list and reuses it.
// It is safe for concurrent use.
type Sanitizer struct {
	mu       sync.RWMutex
	policies map[string]*bluemonday.Policy
}

func New() *Sanitizer {
	return &Sanitizer{policies: make(map[string]*bluemonday.Policy)}
}

// Sanitize removes every element not in allowedTags while keeping its text.
// Script and style bodies are dropped entirely. A nil body stays nil.
func (s *Sanitizer) Sanitize(raw *string, allowedTags []string) *string {
	if raw == nil {
		return nil
	}
	out := s.policy(allowedTags).Sanitize(*raw)
	return &out
}

func (s *Sanitizer) policy(allowedTags []string) *bluemonday.Policy {
	key := policyKey(allowedTags)

	s.mu.RLock()
	p, ok := s.policies[key]
	s.mu.RUnlock()
	if ok {
		return p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.policies[key]; ok {
		return p
	}
	p = buildPolicy(allowedTags)
	s.policies[key] = p
	return p
}

func buildPolicy(allowedTags []string) *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowURLSchemes("http", "https")

	for _, tag := range normalize(allowedTags) {
		p.AllowElements(tag)

		switch tag {
		case "a":
			p.AllowAttrs("href").OnElements("a")
			p.RequireNoFollowOnLinks(false)
		case "img":
			p.AllowAttrs("src", "alt").OnElements("img")
		}
	}

	return p
}

func normalize(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.Trim(strings.TrimSpace(tag), "<>/"))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

func policyKey(tags []string) string {
	return strings.Join(normalize(tags), ",")
}
