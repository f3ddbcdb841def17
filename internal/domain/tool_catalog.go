package domain

import (
	"fmt"
	"strings"
)

// Category groups related remote operations under one name.
type Category struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tools       []string `json:"tools"`
	// Write marks categories that change remote configuration.
	Write bool `json:"write,omitempty"`
}

// Catalog is the ordered, immutable category index loaded at startup.
type Catalog struct {
	categories []Category
	index      map[string]int
	owners     map[string][]string
}

// NewCatalog validates and indexes categories, preserving their order.
func NewCatalog(categories []Category) (Catalog, error) {
	if len(categories) == 0 {
		return Catalog{}, fmt.Errorf("%w: no categories", ErrInvalidCatalog)
	}
	c := Catalog{
		categories: make([]Category, 0, len(categories)),
		index:      make(map[string]int, len(categories)),
		owners:     make(map[string][]string),
	}
	for _, category := range categories {
		name := strings.TrimSpace(category.Name)
		if name == "" {
			return Catalog{}, fmt.Errorf("%w: category name is required", ErrInvalidCatalog)
		}
		if _, ok := c.index[name]; ok {
			return Catalog{}, fmt.Errorf("%w: duplicate category %q", ErrInvalidCatalog, name)
		}
		seen := make(map[string]struct{}, len(category.Tools))
		tools := make([]string, 0, len(category.Tools))
		for _, tool := range category.Tools {
			tool = strings.TrimSpace(tool)
			if tool == "" {
				return Catalog{}, fmt.Errorf("%w: empty tool name in category %q", ErrInvalidCatalog, name)
			}
			if _, dup := seen[tool]; dup {
				continue
			}
			seen[tool] = struct{}{}
			tools = append(tools, tool)
			c.owners[tool] = append(c.owners[tool], name)
		}
		c.index[name] = len(c.categories)
		c.categories = append(c.categories, Category{
			Name:        name,
			Description: category.Description,
			Tools:       tools,
			Write:       category.Write,
		})
	}
	return c, nil
}

// Categories returns a copy of all categories in catalog order.
func (c Catalog) Categories() []Category {
	out := make([]Category, len(c.categories))
	for i, category := range c.categories {
		out[i] = category
		out[i].Tools = append([]string(nil), category.Tools...)
	}
	return out
}

// Names returns category names in catalog order.
func (c Catalog) Names() []string {
	out := make([]string, len(c.categories))
	for i, category := range c.categories {
		out[i] = category.Name
	}
	return out
}

func (c Catalog) Category(name string) (Category, bool) {
	idx, ok := c.index[name]
	if !ok {
		return Category{}, false
	}
	category := c.categories[idx]
	category.Tools = append([]string(nil), category.Tools...)
	return category, true
}

func (c Catalog) Has(name string) bool {
	_, ok := c.index[name]
	return ok
}

// CategoriesOf lists the categories that contain tool.
func (c Catalog) CategoriesOf(tool string) []string {
	return append([]string(nil), c.owners[tool]...)
}

// Tools returns every catalog operation once, in catalog order.
func (c Catalog) Tools() []string {
	out := make([]string, 0, len(c.owners))
	seen := make(map[string]struct{}, len(c.owners))
	for _, category := range c.categories {
		for _, tool := range category.Tools {
			if _, ok := seen[tool]; ok {
				continue
			}
			seen[tool] = struct{}{}
			out = append(out, tool)
		}
	}
	return out
}

func (c Catalog) Len() int {
	return len(c.categories)
}

// NormalizeCategoryName maps agent-supplied names to catalog keys.
func NormalizeCategoryName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ReplaceAll(name, "-", "_")
}
