package workspace

import "strings"

// Tab is a single editor tab. Label is what the editor shows, usually the
// file's base name.
type Tab struct {
	Label string `json:"label"`
}

// TabGroup is one editor group (split) and its tabs.
type TabGroup struct {
	Tabs []Tab `json:"tabs"`
}

// GroupOf builds a single tab group from labels.
func GroupOf(labels ...string) TabGroup {
	g := TabGroup{Tabs: make([]Tab, 0, len(labels))}
	for _, l := range labels {
		g.Tabs = append(g.Tabs, Tab{Label: l})
	}
	return g
}

// OpenSolidityFiles flattens every group's tab labels and keeps those ending
// in SolidityExt. Order follows the groups; duplicates are kept, the locator
// dedups its output.
func OpenSolidityFiles(groups []TabGroup) []string {
	return FilterSolidity(labels(groups))
}

// FilterSolidity keeps the names that end in SolidityExt.
func FilterSolidity(names []string) []string {
	var out []string
	for _, n := range names {
		if strings.HasSuffix(n, SolidityExt) {
			out = append(out, n)
		}
	}
	return out
}

func labels(groups []TabGroup) []string {
	var out []string
	for _, g := range groups {
		for _, t := range g.Tabs {
			out = append(out, t.Label)
		}
	}
	return out
}
