package schema

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// namer hands out DTO names. The first claimant of a name keeps it; later
// claimants get the lowest free numeric suffix starting at 2.
type namer struct {
	used  map[string]bool
	caser cases.Caser
}

func newNamer() *namer {
	return &namer{
		used:  make(map[string]bool),
		caser: cases.Title(language.Und, cases.NoLower),
	}
}

func (n *namer) claim(raw string) string {
	base := n.normalize(raw)
	if !n.used[base] {
		n.used[base] = true
		return base
	}
	for i := 2; ; i++ {
		candidate := base + strconv.Itoa(i)
		if !n.used[candidate] {
			n.used[candidate] = true
			return candidate
		}
	}
}

// normalize turns a schema key into PascalCase: "pet_store" and "pet-store"
// both become "PetStore", while "HTTPError" is left alone.
func (n *namer) normalize(raw string) string {
	words := strings.FieldsFunc(raw, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return "Schema"
	}

	var b strings.Builder
	for _, w := range words {
		b.WriteString(n.caser.String(w))
	}
	return b.String()
}

// NormalizeName exposes the PascalCase rule used for DTO names.
func NormalizeName(raw string) string {
	return newNamer().normalize(raw)
}
