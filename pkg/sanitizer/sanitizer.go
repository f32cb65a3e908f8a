// Package sanitizer normalizes free text coming from requests and catalog
// files before it is validated and stored. Every function is idempotent.
package sanitizer

import (
	"strings"
	"unicode"

	"labbroker/pkg/model"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

// TrimAndNormalize trims s and collapses every run of whitespace into a
// single space.
func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
			continue
		}
		result.WriteRune(r)
		lastWasSpace = false
	}
	return result.String()
}

// Tag is the comparison form of an equipment tag or search term.
func Tag(s string) string {
	return Pipeline{TrimAndNormalize, strings.ToLower}.Apply(s)
}

// Tags applies Tag to every value, dropping empties and duplicates.
func Tags(values []string) []string {
	return SanitizeSlice(values, Tag)
}

func SanitizeSlice(values []string, strategy Strategy) []string {
	seen := make(map[string]struct{}, len(values))
	out := []string{}
	for _, v := range values {
		s := strategy(v)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Resource normalizes the text fields of r in place. Equipment entries keep
// their case and position so the validator still sees blanks and duplicates.
func Resource(r *model.Resource) {
	if r == nil {
		return
	}
	r.Name = TrimAndNormalize(r.Name)
	r.Description = strings.TrimSpace(r.Description)
	r.OperatingStart = strings.TrimSpace(r.OperatingStart)
	r.OperatingEnd = strings.TrimSpace(r.OperatingEnd)
	for i, e := range r.Equipment {
		r.Equipment[i] = TrimAndNormalize(e)
	}
}

// ResourceUpdate normalizes the fields present in u in place.
func ResourceUpdate(u *model.ResourceUpdate) {
	if u == nil {
		return
	}
	u.Name = TrimAndNormalize(u.Name)
	if u.Description != nil {
		d := strings.TrimSpace(*u.Description)
		u.Description = &d
	}
	if u.Equipment != nil {
		equipment := make([]string, len(*u.Equipment))
		for i, e := range *u.Equipment {
			equipment[i] = TrimAndNormalize(e)
		}
		u.Equipment = &equipment
	}
}
