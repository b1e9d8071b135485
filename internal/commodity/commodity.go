package commodity

import (
	"errors"
	"strings"

	"github.com/gosimple/slug"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var ErrInvalidCommodity = errors.New("invalid_commodity")

// Normalize turns a free-form commodity name into its storage key.
func Normalize(name string) string {
	trimmed := strings.ToLower(strings.TrimSpace(name))
	if trimmed == "" {
		return ""
	}
	return slug.Make(trimmed)
}

// Parse normalizes name and rejects empty identifiers.
func Parse(name string) (string, error) {
	key := Normalize(name)
	if key == "" {
		return "", ErrInvalidCommodity
	}
	return key, nil
}

// DisplayName renders a storage key the way the reference source spells it.
func DisplayName(key string) string {
	words := strings.ReplaceAll(strings.TrimSpace(key), "-", " ")
	return cases.Title(language.English).String(words)
}
