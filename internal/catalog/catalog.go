// Package catalog loads the master test catalog: the ordered category schema
// of a report and the reference definitions a technician can pick from.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/caddl-lab-desk/internal/domain"
)

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

var categoryKeyPattern = regexp.MustCompile(`^[a-z][A-Za-z0-9]*$`)

// Category is one section of the report schema.
type Category struct {
	Key   domain.CategoryKey `json:"key" yaml:"key"`
	Label string             `json:"label" yaml:"label"`
}

type catalogFile struct {
	Categories []Category                    `yaml:"categories"`
	Tests      []domain.MasterTestDefinition `yaml:"tests"`
}

// Catalog is an immutable, validated test catalog.
type Catalog struct {
	categories []Category
	tests      []domain.MasterTestDefinition
	labels     map[domain.CategoryKey]string
	index      map[string]int
}

// Default returns the catalog embedded in the binary.
func Default() *Catalog {
	c, err := Parse(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

// Load reads a catalog file. An empty path yields the default catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return New(file.Categories, file.Tests)
}

// New validates categories and definitions and builds a catalog.
func New(categories []Category, tests []domain.MasterTestDefinition) (*Catalog, error) {
	if len(categories) == 0 {
		return nil, domain.NewValidationError("categories", "catalog defines no categories", nil)
	}

	c := &Catalog{
		categories: make([]Category, len(categories)),
		tests:      make([]domain.MasterTestDefinition, len(tests)),
		labels:     make(map[domain.CategoryKey]string, len(categories)),
		index:      make(map[string]int, len(tests)),
	}
	copy(c.categories, categories)
	copy(c.tests, tests)

	for _, cat := range categories {
		if !categoryKeyPattern.MatchString(string(cat.Key)) {
			return nil, domain.NewValidationError("categories.key", "category key must be a lowerCamel identifier", cat.Key)
		}
		if _, dup := c.labels[cat.Key]; dup {
			return nil, domain.NewValidationError("categories.key", "duplicate category key", cat.Key)
		}
		label := strings.TrimSpace(cat.Label)
		if label == "" {
			label = strings.ToUpper(string(cat.Key))
		}
		c.labels[cat.Key] = label
	}

	for i, def := range tests {
		if _, ok := c.labels[def.Category]; !ok {
			return nil, domain.NewValidationError("tests.category",
				fmt.Sprintf("test %q references unknown category", def.Name), def.Category)
		}
		if strings.TrimSpace(def.Name) == "" {
			return nil, domain.NewValidationError("tests.name", "test name is required", i)
		}
		key := indexKey(def.Category, def.Name)
		if _, dup := c.index[key]; dup {
			return nil, domain.NewValidationError("tests.name", "duplicate test in category", def.Name)
		}
		c.index[key] = i
	}

	return c, nil
}

func indexKey(category domain.CategoryKey, name string) string {
	return string(category) + "\x00" + strings.ToLower(strings.TrimSpace(name))
}

// Categories returns the schema in print order.
func (c *Catalog) Categories() []Category {
	out := make([]Category, len(c.categories))
	copy(out, c.categories)
	return out
}

// Keys returns the category keys in print order.
func (c *Catalog) Keys() []domain.CategoryKey {
	keys := make([]domain.CategoryKey, len(c.categories))
	for i, cat := range c.categories {
		keys[i] = cat.Key
	}
	return keys
}

// HasCategory reports whether key is part of the schema.
func (c *Catalog) HasCategory(key domain.CategoryKey) bool {
	_, ok := c.labels[key]
	return ok
}

// Label returns the print header of a category. Unknown keys are upper-cased.
func (c *Catalog) Label(key domain.CategoryKey) string {
	if l, ok := c.labels[key]; ok {
		return l
	}
	return strings.ToUpper(string(key))
}

// Tests returns every definition in catalog order.
func (c *Catalog) Tests() []domain.MasterTestDefinition {
	out := make([]domain.MasterTestDefinition, len(c.tests))
	copy(out, c.tests)
	return out
}

// ForCategory returns the definitions of one category in catalog order.
func (c *Catalog) ForCategory(key domain.CategoryKey) []domain.MasterTestDefinition {
	var out []domain.MasterTestDefinition
	for _, def := range c.tests {
		if def.Category == key {
			out = append(out, def)
		}
	}
	return out
}

// SubCategories lists the distinct sub-categories of a category, in order of
// first appearance.
func (c *Catalog) SubCategories(key domain.CategoryKey) []string {
	seen := make(map[string]bool)
	var out []string
	for _, def := range c.tests {
		if def.Category != key || def.SubCategory == "" || seen[def.SubCategory] {
			continue
		}
		seen[def.SubCategory] = true
		out = append(out, def.SubCategory)
	}
	return out
}

// Lookup finds a definition by category and case-insensitive name.
func (c *Catalog) Lookup(category domain.CategoryKey, name string) (*domain.MasterTestDefinition, bool) {
	i, ok := c.index[indexKey(category, name)]
	if !ok {
		return nil, false
	}
	def := c.tests[i]
	return &def, true
}

// NewResultSet creates an empty result set covering the whole schema.
func (c *Catalog) NewResultSet() domain.CategorizedResultSet {
	return domain.NewResultSet(c.Keys())
}
