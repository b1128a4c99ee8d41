package embed

import (
	"fmt"
	"regexp"
)

// spotifyPattern captures the content type (group 1) and the 22 character
// base62 ID (group 2).
var spotifyPattern = regexp.MustCompile(
	`open\.spotify\.com/(track|album|playlist|artist|episode|show)/([a-zA-Z0-9]{22})`,
)

const (
	spotifyHeight        = "352"
	spotifyCompactHeight = "232"
)

// NewSpotifyMatcher creates the Spotify matcher
func NewSpotifyMatcher() *Matcher {
	return NewMatcher(PlatformSpotify, spotifyPattern, 2, generateSpotify)
}

func generateSpotify(groups []string) (Descriptor, string) {
	contentType, id := groups[1], groups[2]
	embedURL := fmt.Sprintf("https://open.spotify.com/embed/%s/%s?utm_source=generator", contentType, id)

	// Podcast players render without the cover art block
	height := spotifyHeight
	if contentType == "episode" || contentType == "show" {
		height = spotifyCompactHeight
	}

	return Descriptor{
		Platform: PlatformSpotify,
		EmbedURL: embedURL,
		EmbedCode: fmt.Sprintf(
			`<iframe style="border-radius:12px" src="%s" width="100%%" height="%s" frameBorder="0" allowfullscreen="" `+
				`allow="autoplay; clipboard-write; encrypted-media; fullscreen; picture-in-picture" loading="lazy"></iframe>`,
			embedURL, height,
		),
		PreviewHeight: height,
	}, contentType
}
