package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateNavigation_DropsInvalidEntries(t *testing.T) {
	items := []NavItem{
		{Label: " Chapter 1 ", Href: "ch1.xhtml", Subitems: []NavItem{
			{Label: "1.1", Href: "ch1.xhtml#s1"},
			{Label: "", Href: "ch1.xhtml#s2"},
		}},
		{Label: "Broken", Href: ""},
		{Label: "Chapter 2", Href: "ch2.xhtml"},
	}

	valid, err := ValidateNavigation(items)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "navigation entry 0.1")
	assert.Contains(t, err.Error(), "navigation entry 1")

	require.Len(t, valid, 2)
	assert.Equal(t, "Chapter 1", valid[0].Label)
	require.Len(t, valid[0].Subitems, 1)
	assert.Equal(t, "1.1", valid[0].Subitems[0].Label)
	assert.Equal(t, "Chapter 2", valid[1].Label)
}

func TestValidateNavigation_AllValid(t *testing.T) {
	valid, err := ValidateNavigation([]NavItem{{Label: "A", Href: "a.xhtml"}})
	assert.NoError(t, err)
	assert.Len(t, valid, 1)
}

func TestValidateSearchHits(t *testing.T) {
	hits := []SearchHit{
		{CFI: "epubcfi(/6/4!/4/2,/1:0,/1:4)", Excerpt: "  spice  "},
		{CFI: "", Excerpt: "nothing"},
		{CFI: "not-a-cfi", Excerpt: "bad"},
	}

	valid, err := ValidateSearchHits(hits)
	require.Error(t, err)
	require.Len(t, valid, 1)
	assert.Equal(t, "spice", valid[0].Excerpt)
}

func TestFlatten(t *testing.T) {
	items := []NavItem{
		{Label: "Part 1", Href: "p1.xhtml", Subitems: []NavItem{
			{Label: "Ch 1", Href: "ch1.xhtml"},
			{Label: "Ch 2", Href: "ch2.xhtml"},
		}},
		{Label: "Part 2", Href: "p2.xhtml"},
	}

	flat := Flatten(items)
	labels := make([]string, len(flat))
	for i, item := range flat {
		labels[i] = item.Label
	}
	assert.Equal(t, []string{"Part 1", "Ch 1", "Ch 2", "Part 2"}, labels)
}

func TestSameSection(t *testing.T) {
	tests := []struct {
		nav, section string
		want         bool
	}{
		{"ch1.xhtml", "ch1.xhtml", true},
		{"ch1.xhtml#start", "ch1.xhtml", true},
		{"Text/ch1.xhtml", "ch1.xhtml", true},
		{"./ch1.xhtml", "OEBPS/ch1.xhtml", true},
		{"ch10.xhtml", "ch1.xhtml", false},
		{"ch1.xhtml", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.nav+"|"+tt.section, func(t *testing.T) {
			assert.Equal(t, tt.want, SameSection(tt.nav, tt.section))
		})
	}
}
