package extract

import "regexp"

// Emphasis markers the model wraps around decorative brackets.
var (
	boldAround = regexp.MustCompile(`\*\*([「『])(.*?)([」』])\*\*`)
	boldOpen   = regexp.MustCompile(`\*\*([「『])(.*?)\*\*`)
	boldClose  = regexp.MustCompile(`\*\*(.*?)([」』])\*\*`)
)

// Sanitize normalizes a text field before it is persisted: wrapping fences and
// brackets are removed and emphasis markers touching a bracket are dropped.
// The result is a fixed point, so Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(s string) string {
	for {
		next := sanitizeOnce(s)
		if next == s {
			return next
		}
		s = next
	}
}

func sanitizeOnce(s string) string {
	s = unwrap(s)
	s = boldAround.ReplaceAllString(s, "$1$2$3")
	s = boldOpen.ReplaceAllString(s, "$1$2")
	s = boldClose.ReplaceAllString(s, "$1$2")
	return unwrap(s)
}
