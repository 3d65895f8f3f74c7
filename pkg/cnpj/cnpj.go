// Package cnpj normalizes Brazilian tax identifiers. Uploaded XML and stored
// company records may carry punctuation (12.345.678/0001-90); every comparison
// in the system happens on the digits-only form.
package cnpj

import "strings"

// Normalize strips everything but digits. Empty input stays empty.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Equal reports whether two identifiers match after normalization. Two empty
// identifiers never match: absence is not an identity.
func Equal(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	return na == nb
}
