package text

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/xbst-tools/xbst/internal/model"
)

// Transliterate folds s to printable ASCII. Accented letters lose their
// marks; other scripts go through a transliteration table; anything left
// without an ASCII form is dropped.
func Transliterate(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}
	if !isASCII(folded) {
		folded = unidecode.Unidecode(folded)
	}

	var sb strings.Builder
	sb.Grow(len(folded))
	for i := 0; i < len(folded); i++ {
		if c := folded[i]; c >= 0x20 && c < 0x7f {
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// Encode returns exactly maxChars wide characters holding the transliterated,
// trimmed and truncated name. It never fails.
func Encode(s string, maxChars int) []model.WideChar {
	if maxChars <= 0 {
		return nil
	}
	out := make([]model.WideChar, maxChars)
	EncodeInto(out, s)
	return out
}

// EncodeInto writes the encoded name into dst, using len(dst) as the
// character limit, and returns the number of characters written. Slots past
// the name are zeroed.
func EncodeInto(dst []model.WideChar, s string) int {
	name := strings.TrimSpace(Transliterate(strings.TrimSpace(s)))
	if len(name) > len(dst) {
		name = name[:len(dst)]
	}

	for i := range dst {
		dst[i] = model.WideChar{}
	}
	for i := 0; i < len(name); i++ {
		dst[i] = model.WideChar{name[i], 0}
	}
	return len(name)
}

// EncodeName encodes a soundtrack or song name into a NameChars-wide field.
func EncodeName(s string) [model.NameChars]model.WideChar {
	var out [model.NameChars]model.WideChar
	EncodeInto(out[:], s)
	return out
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
