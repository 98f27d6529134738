package util

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

// DefaultSlugMaxLen bounds generated slugs, suffix included
const DefaultSlugMaxLen = 160

var (
	reNonAlnum = regexp.MustCompile(`[^a-z0-9]+`)
	reHyphen   = regexp.MustCompile(`-+`)
)

// Slugify turns free text into [a-z0-9-], stripping diacritics.
// Empty results fall back to "property".
func Slugify(s string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultSlugMaxLen
	}
	s = strings.ToLower(strings.TrimSpace(s))

	var b strings.Builder
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	s = reNonAlnum.ReplaceAllString(b.String(), "-")
	s = reHyphen.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	if utf8.RuneCountInString(s) > maxLen {
		s = strings.Trim(string([]rune(s)[:maxLen]), "-")
	}
	if s == "" {
		s = "property"
	}
	return s
}

// UniqueSlug returns base, or base-2, base-3, ... for the first value not
// present in table.column. Soft-deleted rows still hold their slug.
func UniqueSlug(db *gorm.DB, table, column, base string) (string, error) {
	base = Slugify(base, DefaultSlugMaxLen)

	var rows []string
	if err := db.Table(table).
		Where(fmt.Sprintf("%s = ? OR %s LIKE ?", column, column), base, base+"-%").
		Pluck(column, &rows).Error; err != nil {
		return "", err
	}

	taken := make(map[string]bool, len(rows))
	for _, r := range rows {
		taken[r] = true
	}
	if !taken[base] {
		return base, nil
	}
	for i := 2; ; i++ {
		suffix := fmt.Sprintf("-%d", i)
		if len(base)+len(suffix) <= DefaultSlugMaxLen {
			if candidate := base + suffix; !taken[candidate] {
				return candidate, nil
			}
			continue
		}

		// the shortened stem falls outside the base-% rows fetched above
		candidate := strings.Trim(base[:DefaultSlugMaxLen-len(suffix)], "-") + suffix
		if taken[candidate] {
			continue
		}
		var count int64
		if err := db.Table(table).Where(fmt.Sprintf("%s = ?", column), candidate).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		taken[candidate] = true
	}
}
