// Package embed recognizes media sharing links and turns them into stable
// embed codes.
package embed

import (
	"errors"
	"regexp"
)

// Platform identifies the service a link belongs to
type Platform string

const (
	PlatformYouTube Platform = "YouTube"
	PlatformSpotify Platform = "Spotify"
)

var (
	ErrEmptyInput   = errors.New("please paste a URL")
	ErrUnrecognized = errors.New("could not recognize a supported URL; check the link and try again")
)

// Descriptor is the normalized, embeddable form of a recognized link
type Descriptor struct {
	Platform      Platform `json:"platform" yaml:"platform"`
	EmbedURL      string   `json:"embed_url" yaml:"embed_url"`
	EmbedCode     string   `json:"embed_code" yaml:"embed_code"`
	PreviewHeight string   `json:"preview_height,omitempty" yaml:"preview_height,omitempty"` // pixels, empty means use a 16:9 box
}

// Result is returned for every link a registered matcher claims
type Result struct {
	Descriptor  `yaml:",inline"`
	ContentID   string `json:"content_id" yaml:"content_id"`
	ContentType string `json:"content_type" yaml:"content_type"` // e.g. "video", "track", "episode"
	OriginalURL string `json:"original_url" yaml:"original_url"`
	Explanation string `json:"explanation" yaml:"explanation"`
}

// Generator builds a descriptor from the submatches of a successful pattern match.
// groups[0] is the whole match.
type Generator func(groups []string) (Descriptor, string)

// Matcher recognizes the links of one platform. A Matcher is immutable once
// built and may be shared between goroutines.
type Matcher struct {
	platform Platform
	pattern  *regexp.Regexp
	idGroup  int
	generate Generator
}

// NewMatcher creates a matcher. idGroup is the index of the capture group that
// holds the content ID; generate also reports the content type.
func NewMatcher(platform Platform, pattern *regexp.Regexp, idGroup int, generate Generator) *Matcher {
	if idGroup < 1 || idGroup > pattern.NumSubexp() {
		panic("embed: id group out of range for " + string(platform) + " pattern")
	}
	return &Matcher{
		platform: platform,
		pattern:  pattern,
		idGroup:  idGroup,
		generate: generate,
	}
}

// Platform returns the platform this matcher handles
func (m *Matcher) Platform() Platform {
	return m.platform
}

// Match tests s against the platform pattern. On success it returns the
// generated descriptor, the content ID and the content type.
func (m *Matcher) Match(s string) (d Descriptor, contentID, contentType string, ok bool) {
	groups := m.pattern.FindStringSubmatch(s)
	if groups == nil {
		return Descriptor{}, "", "", false
	}
	d, contentType = m.generate(groups)
	return d, groups[m.idGroup], contentType, true
}
