// Package tags canonicalizes raw tag input before it reaches storage.
package tags

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/chepyr/go-todo-tracker/shared/models"
)

// MaxLength is the longest tag name accepted, in characters.
const MaxLength = 50

// Normalize trims, validates and lower-cases a single tag.
// ok is false when the input is blank; blank tags are dropped, not rejected.
func Normalize(raw string) (name string, ok bool, err error) {
	name = strings.TrimSpace(raw)
	if name == "" {
		return "", false, nil
	}
	if utf8.RuneCountInString(name) > MaxLength {
		return "", false, models.NewValidationError("tags",
			fmt.Sprintf("tag %q exceeds %d characters", name, MaxLength))
	}
	if strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return "", false, models.NewValidationError("tags",
			fmt.Sprintf("tag %q contains spaces, tags must be single words", name))
	}
	return strings.ToLower(name), true, nil
}

// NormalizeList normalizes every entry, drops blanks and removes duplicates
// by normalized value, keeping the first occurrence.
func NormalizeList(raws []string) ([]string, error) {
	out := make([]string, 0, len(raws))
	seen := make(map[string]bool, len(raws))
	for _, raw := range raws {
		name, ok, err := Normalize(raw)
		if err != nil {
			return nil, err
		}
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out, nil
}
