package tool

import (
	"fmt"
	"sort"
	"strings"

	contractx "github.com/tanpawarit/aws-assistant/agent/contract"
)

// BuildRegistry registers every tool of the given sets. Nil sets are skipped,
// which is how disabled services stay out of the registry.
func BuildRegistry(sets []Set, opts ...RegistryOption) (*Registry, error) {
	r := NewRegistry(opts...)
	for _, set := range sets {
		if set == nil {
			continue
		}
		for _, d := range set.Descriptors() {
			if err := r.Register(d); err != nil {
				return nil, fmt.Errorf("register %s tools: %w", set.Service(), err)
			}
		}
	}
	return r, nil
}

// Category groups tools by what they do for the commands listing.
type Category struct {
	Name  string
	Tools []contractx.ToolSummary
}

var categoryPrefixes = []struct {
	prefix string
	name   string
}{
	{prefix: "list_", name: "List"},
	{prefix: "get_", name: "Get details"},
	{prefix: "search_", name: "Search"},
	{prefix: "inspect_", name: "Inspect"},
}

// Categorize groups summaries by name prefix. Categories keep a fixed order;
// tools inside one are sorted by name. Unmatched names land in "Other".
func Categorize(summaries []contractx.ToolSummary) []Category {
	byName := make(map[string][]contractx.ToolSummary)
	for _, s := range summaries {
		cat := "Other"
		for _, p := range categoryPrefixes {
			if strings.HasPrefix(s.Name, p.prefix) {
				cat = p.name
				break
			}
		}
		byName[cat] = append(byName[cat], s)
	}

	var out []Category
	for _, name := range []string{"List", "Get details", "Search", "Inspect", "Other"} {
		tools := byName[name]
		if len(tools) == 0 {
			continue
		}
		sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
		out = append(out, Category{Name: name, Tools: tools})
	}
	return out
}
