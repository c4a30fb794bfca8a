package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	lower     = cases.Lower(language.Und)
	stripMark = runes.Remove(runes.In(unicode.Mn))
)

// Slugify turns a display name into a lowercase ASCII slug.
// "Bague Élégance Or" becomes "bague-elegance-or".
func Slugify(name string) string {
	t := transform.Chain(norm.NFD, stripMark, norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	folded = lower.String(folded)

	var b strings.Builder
	dash := false
	for _, r := range folded {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
