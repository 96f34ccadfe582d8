package catalog

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"vtex/migrator/internal/domain"
)

var titleCaser = cases.Title(language.Und)

// reservedRoots are breadcrumb markers that never participate in
// matching. Site-specific roots like "Início" are deliberately not
// listed: many storefronts use them as real departments.
var reservedRoots = map[string]struct{}{
	"home":    {},
	"root":    {},
	"default": {},
}

// normalizeCategoryName title-cases the trimmed name so remote and local
// spellings compare equal regardless of source-site casing.
func normalizeCategoryName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return name
	}
	return titleCaser.String(strings.ToLower(name))
}

// normalizeBrandName trims whitespace but preserves case for display.
// Comparison happens on the lower-cased form.
func normalizeBrandName(name string) string {
	return strings.TrimSpace(name)
}

// matchKey is the case-insensitive comparison form of a category name.
func matchKey(name string) string {
	return strings.ToLower(normalizeCategoryName(name))
}

func stripReservedRoots(path []domain.CategoryPathSegment) []domain.CategoryPathSegment {
	out := make([]domain.CategoryPathSegment, 0, len(path))
	for _, seg := range path {
		key := matchKey(seg.Name)
		if key == "" {
			continue
		}
		if _, reserved := reservedRoots[key]; reserved {
			continue
		}
		out = append(out, seg)
	}
	return out
}

func pathNames(path []domain.CategoryPathSegment) []string {
	names := make([]string, 0, len(path))
	for _, seg := range path {
		names = append(names, seg.Name)
	}
	return names
}

var numericIDPattern = regexp.MustCompile(`\d+`)

// extractNumericID pulls a numeric identifier out of whatever format the
// source page carried it in ("12345", "PROD-12345", ...). Returns nil
// when no digits are present.
func extractNumericID(raw string) *int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	digits := numericIDPattern.FindString(raw)
	if digits == "" {
		return nil
	}
	id, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}
