package embed

import (
	"fmt"
	"regexp"
)

// youtubePattern accepts youtube.com, www.youtube.com, music.youtube.com and
// youtu.be links. The video ID is always 11 characters.
var youtubePattern = regexp.MustCompile(
	`(?:(?:www\.)?(?:music\.)?youtube\.com/(?:[^/\n\s]+/\S+/|(?:v|e(?:mbed)?)/|\S*?[?&]v=)|youtu\.be/)([a-zA-Z0-9_-]{11})`,
)

const youtubeEmbedBase = "https://www.youtube.com/embed/"

// NewYouTubeMatcher creates the YouTube matcher
func NewYouTubeMatcher() *Matcher {
	return NewMatcher(PlatformYouTube, youtubePattern, 1, generateYouTube)
}

func generateYouTube(groups []string) (Descriptor, string) {
	embedURL := youtubeEmbedBase + groups[1]
	return Descriptor{
		Platform: PlatformYouTube,
		EmbedURL: embedURL,
		EmbedCode: fmt.Sprintf(
			`<iframe width="560" height="315" src="%s" title="YouTube video player" frameborder="0" `+
				`allow="accelerometer; autoplay; clipboard-write; encrypted-media; gyroscope; picture-in-picture; web-share" `+
				`referrerpolicy="strict-origin-when-cross-origin" allowfullscreen></iframe>`,
			embedURL,
		),
	}, "video"
}
