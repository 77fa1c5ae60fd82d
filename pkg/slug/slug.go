package slug

import (
	"regexp"
	"strings"
)

var (
	nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

	// Letters commonly seen in product names that have an obvious ASCII form.
	transliterate = strings.NewReplacer(
		"ç", "c", "ğ", "g", "ı", "i", "ö", "o", "ş", "s", "ü", "u",
		"ä", "a", "ß", "ss", "é", "e", "è", "e", "ê", "e", "á", "a",
		"à", "a", "â", "a", "í", "i", "ó", "o", "ú", "u", "û", "u", "ñ", "n",
	)
)

// Generate creates a URL-friendly slug from the given product name.
//
//   - "Kadın Giyim" → "kadin-giyim"
//   - "  Crème Brûlée  " → "creme-brulee"
//   - "Hello   World!" → "hello-world"
func Generate(name string) string {
	s := transliterate.Replace(strings.ToLower(strings.TrimSpace(name)))
	return strings.Trim(nonAlnum.ReplaceAllString(s, "-"), "-")
}

// Valid reports whether s is already in canonical slug form.
func Valid(s string) bool {
	return s != "" && Generate(s) == s
}
