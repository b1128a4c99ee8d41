package embed

import "strings"

// Registry holds the ordered matchers. The first matcher that claims a link
// wins, so order matters. A Registry is never modified after construction and
// is safe for concurrent use.
type Registry struct {
	matchers []*Matcher
}

// NewRegistry creates a registry trying matchers in the given order
func NewRegistry(matchers ...*Matcher) *Registry {
	return &Registry{
		matchers: append([]*Matcher(nil), matchers...),
	}
}

// DefaultRegistry creates a registry with the built-in matchers, YouTube first
func DefaultRegistry() *Registry {
	return NewRegistry(NewYouTubeMatcher(), NewSpotifyMatcher())
}

// Recognize finds the matcher for rawURL and normalizes it. It returns
// ErrEmptyInput for blank input and ErrUnrecognized when no matcher claims it.
func (r *Registry) Recognize(rawURL string) (*Result, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, ErrEmptyInput
	}

	for _, m := range r.matchers {
		d, id, contentType, ok := m.Match(rawURL)
		if !ok {
			continue
		}
		return &Result{
			Descriptor:  d,
			ContentID:   id,
			ContentType: contentType,
			OriginalURL: rawURL,
			Explanation: Explain(rawURL, m.Platform()),
		}, nil
	}

	return nil, ErrUnrecognized
}

// Platforms returns the supported platforms in matching order
func (r *Registry) Platforms() []Platform {
	platforms := make([]Platform, 0, len(r.matchers))
	for _, m := range r.matchers {
		platforms = append(platforms, m.Platform())
	}
	return platforms
}
