package engine

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxNameLen bounds a node name in runes.
const MaxNameLen = 64

// NormalizeName trims a node name supplied from outside the process and
// rejects names that are empty, too long, or carry control or separator
// characters other than a plain space. Unicode letters and symbols are kept,
// so "Aegis-Σ" is valid.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(name); n > MaxNameLen {
		return "", fmt.Errorf("%w: name is %d characters, max %d", ErrInvalidInput, n, MaxNameLen)
	}
	if !utf8.ValidString(name) {
		return "", fmt.Errorf("%w: name is not valid UTF-8", ErrInvalidInput)
	}
	for _, r := range name {
		if unicode.IsControl(r) || (unicode.IsSpace(r) && r != ' ') {
			return "", fmt.Errorf("%w: name contains %U", ErrInvalidInput, r)
		}
	}
	return name, nil
}
