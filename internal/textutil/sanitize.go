package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
	"\x00", "",
)

// segmentReplacer turns a URL path fragment into a single directory name.
var segmentReplacer = strings.NewReplacer(
	"&", "and",
	"/", "",
	"\\", "",
	"#", "",
	"%", "",
	"{", "",
	"}", "",
	"<", "",
	">", "",
	"*", "",
	"?", "",
	"$", "",
	"!", "",
	":", "",
	"@", "",
)

var titleCaser = cases.Title(language.Und, cases.NoLower)

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters are removed. The result is trimmed of leading/trailing whitespace.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(norm.NFC.String(name))
	if name == "" || name == "." || name == ".." {
		return ""
	}
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}

// CleanSegment strips characters that cannot appear in a directory name
// derived from a URL path. "&" becomes "and". The relative names "." and ".."
// clean to "".
func CleanSegment(value string) string {
	cleaned := strings.TrimSpace(segmentReplacer.Replace(norm.NFC.String(value)))
	if cleaned == "." || cleaned == ".." {
		return ""
	}
	return cleaned
}

// TitleCase upper-cases the first letter of every word and leaves the rest
// untouched.
func TitleCase(value string) string {
	return titleCaser.String(value)
}
