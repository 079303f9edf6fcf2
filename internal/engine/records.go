package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mrlokans/epubreader/internal/validation"
)

// NavItem is a table of contents entry.
type NavItem struct {
	Label    string    `json:"label" validate:"required"`
	Href     string    `json:"href" validate:"required"`
	Subitems []NavItem `json:"subitems,omitempty" validate:"-"`
}

// SearchHit is one match of a whole-document search.
type SearchHit struct {
	CFI     string `json:"cfi" validate:"required,startswith=epubcfi("`
	Excerpt string `json:"excerpt"`
}

// ValidateNavigation returns the well-formed part of a navigation tree.
// Invalid entries are dropped together with their subitems; the returned
// error describes what was dropped and is nil when nothing was.
func ValidateNavigation(items []NavItem) ([]NavItem, error) {
	var errs []error
	valid := validateNav(items, "", &errs)
	return valid, errors.Join(errs...)
}

func validateNav(items []NavItem, prefix string, errs *[]error) []NavItem {
	valid := make([]NavItem, 0, len(items))
	for i, item := range items {
		item.Label = strings.TrimSpace(item.Label)
		path := fmt.Sprintf("%s%d", prefix, i)
		if err := validation.Struct(item); err != nil {
			*errs = append(*errs, fmt.Errorf("navigation entry %s: %w", path, err))
			continue
		}
		item.Subitems = validateNav(item.Subitems, path+".", errs)
		valid = append(valid, item)
	}
	return valid
}

// ValidateSearchHits returns the hits carrying a usable CFI, in order.
func ValidateSearchHits(hits []SearchHit) ([]SearchHit, error) {
	var errs []error
	valid := make([]SearchHit, 0, len(hits))
	for i, hit := range hits {
		hit.Excerpt = strings.TrimSpace(hit.Excerpt)
		if err := validation.Struct(hit); err != nil {
			errs = append(errs, fmt.Errorf("search hit %d: %w", i, err))
			continue
		}
		valid = append(valid, hit)
	}
	return valid, errors.Join(errs...)
}

// Flatten lists a navigation tree depth first, parents before children.
func Flatten(items []NavItem) []NavItem {
	var out []NavItem
	for _, item := range items {
		out = append(out, NavItem{Label: item.Label, Href: item.Href})
		out = append(out, Flatten(item.Subitems)...)
	}
	return out
}

// SameSection reports whether a navigation href points into the spine
// section sectionHref, ignoring fragments and relative prefixes.
func SameSection(navHref, sectionHref string) bool {
	if navHref == "" || sectionHref == "" {
		return false
	}
	nav := stripFragment(navHref)
	section := stripFragment(sectionHref)
	return nav == section || strings.HasSuffix(nav, "/"+section) || strings.HasSuffix(section, "/"+nav)
}

func stripFragment(href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	return strings.TrimPrefix(href, "./")
}
