package embed

import "strings"

const (
	explainTracking = "We removed extra sharing parameters (like ?si=...) and generated a stable embed code that will always work."
	explainShortURL = "We converted the short youtu.be sharing link into a proper embed format for reliability."
	explainGeneric  = "We cleaned up the link and generated a stable embed code that will always work correctly."
)

// Explain describes what was fixed in rawURL. It looks at the text exactly as
// the user supplied it, so a "youtu.be" anywhere in the string selects the
// short link message.
func Explain(rawURL string, _ Platform) string {
	switch {
	case strings.Contains(rawURL, "?si="):
		return explainTracking
	case strings.Contains(rawURL, "youtu.be"):
		return explainShortURL
	default:
		return explainGeneric
	}
}
