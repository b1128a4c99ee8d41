package embed

import (
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// CleanInput drops invisible format characters (zero width spaces, joiners,
// byte order marks) that chat apps and rich text editors leave in copied links.
// Recognize matches its input as given; interactive callers clean pasted text
// with CleanInput first.
func CleanInput(s string) string {
	t := runes.Remove(runes.In(unicode.Cf))
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}
