package nfe

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// cleanText normaliza a NFC, quita caracteres de control y colapsa espacios.
// La SEFAZ rechaza espacios al inicio/fin y saltos de línea dentro de los campos.
func cleanText(s string) string {
	t := transform.Chain(norm.NFC, runes.Map(blankSpace), runes.Remove(runes.In(unicode.Cc)))
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(out), " ")
}

func blankSpace(r rune) rune {
	if unicode.IsSpace(r) {
		return ' '
	}
	return r
}
